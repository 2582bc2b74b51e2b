// Package spectral checks a signal tensor for the frequency signatures of the
// motor faults the classifier is trained on.
package spectral

import (
	"fmt"
	"math"
	"sort"

	"github.com/chrissnell/motorwatch/internal/types"
	vecmath "github.com/cwbudde/algo-vecmath"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Signature frequencies and the tolerance bands they are matched with
const (
	BaseFreqHz      = 50.0
	BaseFreqTol     = 2.0
	Mod25Hz         = 25.0
	Mod25Tol        = 5.0
	Sideband100Hz   = 100.0
	Sideband100Tol  = 5.0
	PhaseBalanceMax = 0.2

	// ReportBelowHz bounds the dominant frequencies kept for diagnostics
	ReportBelowHz = 200.0
)

// Analyzer computes SpectralPatterns. The zero value is ready to use.
type Analyzer struct {
	// SampleRate overrides types.SampleRate when set
	SampleRate float64
}

func (a Analyzer) sampleRate() float64 {
	if a.SampleRate > 0 {
		return a.SampleRate
	}
	return types.SampleRate
}

// Analyze runs the pattern tests. Frequency tests use i1; the phase balance
// test compares the spread of the three currents.
func (a Analyzer) Analyze(t *types.SignalTensor) (pattern *types.SpectralPattern, err error) {
	if t == nil {
		return nil, &types.SpectralAnalysisError{Cause: fmt.Errorf("no tensor")}
	}

	defer func() {
		if r := recover(); r != nil {
			pattern = nil
			err = &types.SpectralAnalysisError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	i1 := t.Channel(types.ChannelI1)
	dominant, err := DominantFrequencies(i1, a.sampleRate())
	if err != nil {
		return nil, &types.SpectralAnalysisError{Cause: err}
	}

	stds := make([]float64, 0, 3)
	for _, name := range []types.ChannelName{types.ChannelI1, types.ChannelI2, types.ChannelI3} {
		_, std := stat.PopMeanStdDev(t.Channel(name), nil)
		stds = append(stds, std)
	}
	_, spread := stat.PopMeanStdDev(stds, nil)

	p := &types.SpectralPattern{
		BaseFreq:      Near(dominant, BaseFreqHz, BaseFreqTol),
		Mod25Hz:       Near(dominant, Mod25Hz, Mod25Tol),
		Sideband100Hz: Near(dominant, Sideband100Hz, Sideband100Tol),
		PhaseBalance:  spread < PhaseBalanceMax,
	}
	for _, f := range dominant {
		if f < ReportBelowHz {
			p.DominantFrequencies = append(p.DominantFrequencies, f)
		}
	}
	sort.Float64s(p.DominantFrequencies)

	return p, nil
}

// Validate runs Analyze and degrades any failure to a nil pattern, which
// disables the override rules downstream. Failures are logged, never returned.
func (a Analyzer) Validate(t *types.SignalTensor, logger *zap.SugaredLogger) *types.SpectralPattern {
	p, err := a.Analyze(t)
	if err != nil {
		if logger != nil {
			logger.Warnf("spectral validation skipped: %v", err)
		}
		return nil
	}
	if logger != nil {
		logger.Debugw("spectral patterns",
			"dominant_below_200hz", p.DominantFrequencies,
			"base_freq", p.BaseFreq,
			"mod_25hz", p.Mod25Hz,
			"sideband_100hz", p.Sideband100Hz,
			"phase_balance", p.PhaseBalance)
	}
	return p
}

// DominantFrequencies returns the positive frequencies whose FFT magnitude
// exceeds mean + 2*std of the full two-sided magnitude spectrum. No window is
// applied. Bin k maps to k*sampleRate/len(samples) Hz.
func DominantFrequencies(samples []float64, sampleRate float64) ([]float64, error) {
	n := len(samples)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", n)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v", sampleRate)
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite sample at index %d", i)
		}
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, samples)

	re := make([]float64, len(coeffs))
	im := make([]float64, len(coeffs))
	for k, c := range coeffs {
		re[k] = real(c)
		im[k] = imag(c)
	}
	mags := make([]float64, len(coeffs))
	vecmath.Magnitude(mags, re, im)

	// The one-sided coefficients stand for the mirrored negative half too:
	// every bin except DC (and Nyquist for even n) appears twice.
	weights := make([]float64, len(mags))
	for k := range weights {
		weights[k] = 2
	}
	weights[0] = 1
	if n%2 == 0 {
		weights[len(weights)-1] = 1
	}
	mean, std := stat.PopMeanStdDev(mags, weights)
	threshold := mean + 2*std

	binWidth := sampleRate / float64(n)
	var dominant []float64
	// positive half only; for even n the Nyquist bin is its own mirror and belongs to neither
	for k := 0; k < (n+1)/2; k++ {
		if mags[k] > threshold {
			dominant = append(dominant, float64(k)*binWidth)
		}
	}
	return dominant, nil
}

// Near reports whether any frequency lies strictly within tol of target
func Near(freqs []float64, target, tol float64) bool {
	for _, f := range freqs {
		if math.Abs(f-target) < tol {
			return true
		}
	}
	return false
}
