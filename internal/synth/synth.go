// Package synth generates synthetic nine-channel motor recordings with
// injected fault signatures and serializes them in the rig's MAT-file layout.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chrissnell/motorwatch/internal/spectral"
	"github.com/chrissnell/motorwatch/internal/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	modulationHz    = 25.0
	modulationDepth = 0.6
	sidebandAmp     = 0.4

	currentAmp    = 1.0
	voltageAmp    = 220.0
	neutralAmp    = 0.1
	nominalSpeed  = 1500.0
	voltageNoise  = 0.1
	verifyTolHz   = 2.0
	phaseShiftRad = 2 * math.Pi / 3
)

// Options configures a Synthesizer
type Options struct {
	// Seed makes generation reproducible; zero seeds from the clock
	Seed uint64
	// MaxAttempts bounds the generate-and-verify loop (default 3)
	MaxAttempts int
	// NoiseLevel is the std of the Gaussian noise added to currents, speed
	// and vibration (default 0.05)
	NoiseLevel float64
	// BaseFreq is the supply frequency in Hz (default 50)
	BaseFreq float64
}

// Synthesizer produces ChannelSets. It is safe for concurrent use.
type Synthesizer struct {
	opts   Options
	logger *zap.SugaredLogger
	t      []float64

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a synthesizer, filling in defaults for unset options
func New(opts Options, logger *zap.SugaredLogger) *Synthesizer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.NoiseLevel <= 0 {
		opts.NoiseLevel = 0.05
	}
	if opts.BaseFreq <= 0 {
		opts.BaseFreq = 50
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// one-second window sampled at both ends
	t := make([]float64, types.SamplesPerChannel)
	floats.Span(t, 0, 1)

	return &Synthesizer{
		opts:   opts,
		logger: logger,
		t:      t,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Synthesize generates a recording with the given fault. Each attempt is
// checked for the fault's spectral signature on i1; after MaxAttempts
// failures the last attempt is returned and a warning is logged.
func (s *Synthesizer) Synthesize(fault FaultType) (types.ChannelSet, error) {
	switch fault {
	case FaultNone, FaultBrokenRotor, FaultImbalance:
	default:
		return nil, fmt.Errorf("unknown fault type %q", fault)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var set types.ChannelSet
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		set = s.generate(fault)

		ok, dominant, err := s.verify(set, fault)
		if err != nil {
			// a broken check is no reason to discard a recording
			s.logger.Warnf("verification of %s signals failed: %v", fault, err)
			return set, nil
		}
		if ok {
			s.logger.Debugf("generated %s signals on attempt %d, dominant frequencies %v", fault, attempt, below(dominant, spectral.ReportBelowHz))
			return set, nil
		}
		s.logger.Infof("attempt %d: %s signals lack the expected %.0f Hz line, retrying", attempt, fault, fault.signatureHz(s.opts.BaseFreq))
	}

	s.logger.Warnf("could not generate ideal %s signals after %d attempts, using last attempt", fault, s.opts.MaxAttempts)
	return set, nil
}

// Verify reports whether i1 carries the fault's signature, along with the
// dominant frequencies it found (DC excluded)
func (s *Synthesizer) Verify(set types.ChannelSet, fault FaultType) (bool, []float64, error) {
	return s.verify(set, fault)
}

func (s *Synthesizer) verify(set types.ChannelSet, fault FaultType) (bool, []float64, error) {
	i1, ok := set[types.ChannelI1]
	if !ok {
		return false, nil, &types.ChannelNotFoundError{Missing: []types.ChannelName{types.ChannelI1}}
	}
	dominant, err := spectral.DominantFrequencies(i1, types.SampleRate)
	if err != nil {
		return false, nil, err
	}
	if len(dominant) > 0 && dominant[0] == 0 {
		dominant = dominant[1:]
	}
	return spectral.Near(dominant, fault.signatureHz(s.opts.BaseFreq), verifyTolHz), dominant, nil
}

func (s *Synthesizer) generate(fault FaultType) types.ChannelSet {
	set := make(types.ChannelSet, len(types.RequiredChannels))

	for k, name := range []types.ChannelName{types.ChannelI1, types.ChannelI2, types.ChannelI3} {
		set[name] = s.current(fault, -float64(k)*phaseShiftRad)
	}
	for k, name := range []types.ChannelName{types.ChannelV1, types.ChannelV2, types.ChannelV3} {
		set[name] = s.voltage(voltageAmp, -float64(k)*phaseShiftRad)
	}
	set[types.ChannelVN] = s.voltage(neutralAmp, 0)
	set[types.ChannelSpeed] = s.speed(fault)
	set[types.ChannelVibRad] = s.vibration(fault)

	return set
}

func (s *Synthesizer) sine(amp, freq, t, phase float64) float64 {
	return amp * math.Sin(2*math.Pi*freq*t+phase)
}

func (s *Synthesizer) noise(level float64) float64 {
	return level * s.rng.NormFloat64()
}

func (s *Synthesizer) current(fault FaultType, phase float64) []float64 {
	f := s.opts.BaseFreq
	out := make([]float64, len(s.t))
	for i, t := range s.t {
		v := s.sine(currentAmp, f, t, phase)
		switch fault {
		case FaultBrokenRotor:
			// rotor bar breakage shows up as sidebands at 2f and 3f
			v += s.sine(sidebandAmp, 2*f, t, phase)
			v += s.sine(sidebandAmp, 3*f, t, phase)
		case FaultImbalance:
			v *= 1 + s.sine(modulationDepth, modulationHz, t, 0)
			v += s.sine(0.2, 2*modulationHz, t, 0)
			v += s.sine(0.1, 3*modulationHz, t, 0)
		}
		out[i] = v + s.noise(s.opts.NoiseLevel)
	}
	return out
}

func (s *Synthesizer) voltage(amp, phase float64) []float64 {
	out := make([]float64, len(s.t))
	for i, t := range s.t {
		out[i] = s.sine(amp, s.opts.BaseFreq, t, phase) + s.noise(voltageNoise)
	}
	return out
}

func (s *Synthesizer) speed(fault FaultType) []float64 {
	out := make([]float64, len(s.t))
	for i, t := range s.t {
		v := nominalSpeed
		switch fault {
		case FaultImbalance:
			v += s.sine(150, modulationHz, t, 0)
			v += s.sine(50, 2*modulationHz, t, 0)
		case FaultBrokenRotor:
			v += s.sine(20, 2*s.opts.BaseFreq, t, 0)
		}
		out[i] = v + s.noise(s.opts.NoiseLevel)
	}
	return out
}

func (s *Synthesizer) vibration(fault FaultType) []float64 {
	f := s.opts.BaseFreq
	out := make([]float64, len(s.t))
	for i, t := range s.t {
		v := s.sine(1, f, t, 0)
		switch fault {
		case FaultBrokenRotor:
			v += s.sine(0.7, 2*f, t, 0)
			v += s.sine(0.3, 3*f, t, 0)
		case FaultImbalance:
			v += s.sine(1.2, modulationHz, t, 0)
			v += s.sine(0.4, 2*modulationHz, t, 0)
			v += s.sine(0.2, 3*modulationHz, t, 0)
		}
		out[i] = v + s.noise(s.opts.NoiseLevel)
	}
	return out
}

func below(freqs []float64, limit float64) []float64 {
	var out []float64
	for _, f := range freqs {
		if f < limit {
			out = append(out, f)
		}
	}
	return out
}
