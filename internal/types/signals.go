// Package types holds the data model shared by the motor signal pipeline:
// channels, the normalized tensor, spectral patterns and prediction results.
package types

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ChannelName identifies one of the sensor signals recorded on the test rig
type ChannelName string

// The nine channels recorded for every test run
const (
	ChannelI1     ChannelName = "i1"     // phase 1 current
	ChannelI2     ChannelName = "i2"     // phase 2 current
	ChannelI3     ChannelName = "i3"     // phase 3 current
	ChannelV1     ChannelName = "v1"     // phase 1 voltage
	ChannelV2     ChannelName = "v2"     // phase 2 voltage
	ChannelV3     ChannelName = "v3"     // phase 3 voltage
	ChannelVN     ChannelName = "vn"     // neutral voltage
	ChannelSpeed  ChannelName = "w_m"    // shaft speed
	ChannelVibRad ChannelName = "vibrad" // radial vibration
)

const (
	// SamplesPerChannel is the fixed length of every channel
	SamplesPerChannel = 50001

	// SampleRate is the implied sample rate in Hz (one-second capture window)
	SampleRate = 50001.0

	// NormEpsilon is added to the standard deviation during normalization.
	// It must match the preprocessing the classifier was trained with.
	NormEpsilon = 1e-8
)

// RequiredChannels lists the channels in canonical tensor order
var RequiredChannels = []ChannelName{
	ChannelI1, ChannelI2, ChannelI3,
	ChannelV1, ChannelV2, ChannelV3,
	ChannelVN, ChannelSpeed, ChannelVibRad,
}

// IsRequired reports whether name is one of the nine required channels
func IsRequired(name ChannelName) bool {
	return ChannelIndex(name) >= 0
}

// ChannelIndex returns the canonical row of a channel, or -1 if unknown
func ChannelIndex(name ChannelName) int {
	for i, c := range RequiredChannels {
		if c == name {
			return i
		}
	}
	return -1
}

// ChannelSet maps channel names to raw samples. Unknown names are tolerated
// and ignored by every consumer.
type ChannelSet map[ChannelName][]float64

// Missing returns the required channels absent from the set, in canonical order
func (cs ChannelSet) Missing() []ChannelName {
	var missing []ChannelName
	for _, name := range RequiredChannels {
		if _, ok := cs[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether all nine required channels are present
func (cs ChannelSet) Complete() bool {
	return len(cs.Missing()) == 0
}

// SignalTensor is the normalized (9, 50001) stack of channels in canonical order
type SignalTensor struct {
	data *mat.Dense
}

// NewSignalTensor wraps a matrix whose rows follow RequiredChannels
func NewSignalTensor(m *mat.Dense) (*SignalTensor, error) {
	r, c := m.Dims()
	if r != len(RequiredChannels) || c != SamplesPerChannel {
		return nil, fmt.Errorf("tensor must be %dx%d, got %dx%d", len(RequiredChannels), SamplesPerChannel, r, c)
	}
	return &SignalTensor{data: m}, nil
}

// Matrix exposes the underlying matrix. Callers must treat it as read-only.
func (t *SignalTensor) Matrix() mat.Matrix {
	return t.data
}

// Channel returns the samples of a channel. The slice aliases the tensor and
// must not be modified.
func (t *SignalTensor) Channel(name ChannelName) []float64 {
	idx := ChannelIndex(name)
	if idx < 0 {
		return nil
	}
	return t.data.RawRowView(idx)
}

// Row returns the samples of the i-th canonical channel
func (t *SignalTensor) Row(i int) []float64 {
	return t.data.RawRowView(i)
}

// ClassifierInput returns the tensor laid out the way the classifier expects:
// batch of one, time-major, channel-last, i.e. shape (1, 50001, 9) flattened.
func (t *SignalTensor) ClassifierInput() []float32 {
	var timeMajor mat.Dense
	timeMajor.CloneFrom(t.data.T())

	rows, cols := timeMajor.Dims()
	out := make([]float32, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for _, v := range timeMajor.RawRowView(i) {
			out = append(out, float32(v))
		}
	}
	return out
}

// ClassifierShape is the shape of the flattened buffer returned by ClassifierInput
func ClassifierShape() []int {
	return []int{1, SamplesPerChannel, len(RequiredChannels)}
}

// Label is one of the three motor conditions
type Label string

const (
	LabelBrokenRotor Label = "cassure"
	LabelHealthy     Label = "sain"
	LabelImbalance   Label = "desiquilibre"
)

// ClassOrder is the fixed order of the classifier's output vector
var ClassOrder = [3]Label{LabelBrokenRotor, LabelHealthy, LabelImbalance}

// Distribution is a classifier output, indexed by ClassOrder
type Distribution [3]float64

// Argmax returns the most probable label and its probability. Ties resolve to
// the earliest class in ClassOrder.
func (d Distribution) Argmax() (Label, float64) {
	best := 0
	for i := 1; i < len(d); i++ {
		if d[i] > d[best] {
			best = i
		}
	}
	return ClassOrder[best], d[best]
}

// Probabilities returns the distribution keyed by label
func (d Distribution) Probabilities() map[Label]float64 {
	probs := make(map[Label]float64, len(d))
	for i, label := range ClassOrder {
		probs[label] = d[i]
	}
	return probs
}

// SpectralPattern holds the fault-signature flags computed from a tensor
type SpectralPattern struct {
	BaseFreq      bool `json:"base_freq"`
	Mod25Hz       bool `json:"mod_25hz"`
	Sideband100Hz bool `json:"sideband_100hz"`
	PhaseBalance  bool `json:"phase_balance"`

	// DominantFrequencies lists the detected dominant frequencies below 200 Hz
	DominantFrequencies []float64 `json:"-"`
}

// PredictionResult is the fused outcome of a single prediction
type PredictionResult struct {
	Label              Label             `json:"prediction"`
	Confidence         float64           `json:"confidence"`
	ClassProbabilities map[Label]float64 `json:"class_probabilities"`
	Pattern            *SpectralPattern  `json:"validation_patterns"`
	Overridden         bool              `json:"overridden"`
	Reason             string            `json:"reason,omitempty"`
}
