package spectral

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/motorwatch/internal/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// tone returns sum(amp_k * sin(2*pi*f_k*i/fs)) over the full channel length
func tone(components map[float64]float64) []float64 {
	out := make([]float64, types.SamplesPerChannel)
	for i := range out {
		x := float64(i) / types.SampleRate
		for f, amp := range components {
			out[i] += amp * math.Sin(2*math.Pi*f*x)
		}
	}
	return out
}

// tensorOf builds a tensor whose currents are the given signals and whose
// other channels are a 50 Hz tone
func tensorOf(t *testing.T, i1, i2, i3 []float64) *types.SignalTensor {
	t.Helper()
	m := mat.NewDense(len(types.RequiredChannels), types.SamplesPerChannel, nil)
	filler := tone(map[float64]float64{50: 1})
	for r := range types.RequiredChannels {
		switch r {
		case 0:
			m.SetRow(r, i1)
		case 1:
			m.SetRow(r, i2)
		case 2:
			m.SetRow(r, i3)
		default:
			m.SetRow(r, filler)
		}
	}
	tensor, err := types.NewSignalTensor(m)
	if err != nil {
		t.Fatal(err)
	}
	return tensor
}

func TestAnalyzePatterns(t *testing.T) {
	tests := []struct {
		name       string
		components map[float64]float64
		want       types.SpectralPattern
	}{
		{
			name:       "pure 50 Hz",
			components: map[float64]float64{50: 1},
			want:       types.SpectralPattern{BaseFreq: true, PhaseBalance: true},
		},
		{
			name:       "broken rotor sidebands",
			components: map[float64]float64{50: 1, 100: 0.5, 150: 0.3},
			want:       types.SpectralPattern{BaseFreq: true, Sideband100Hz: true, PhaseBalance: true},
		},
		{
			name:       "25 Hz modulation",
			components: map[float64]float64{50: 1, 25: 0.6, 75: 0.3},
			want:       types.SpectralPattern{BaseFreq: true, Mod25Hz: true, PhaseBalance: true},
		},
		{
			name:       "off-band tone",
			components: map[float64]float64{60: 1},
			want:       types.SpectralPattern{PhaseBalance: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tone(tt.components)
			p, err := Analyzer{}.Analyze(tensorOf(t, sig, sig, sig))
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if p.BaseFreq != tt.want.BaseFreq || p.Mod25Hz != tt.want.Mod25Hz ||
				p.Sideband100Hz != tt.want.Sideband100Hz || p.PhaseBalance != tt.want.PhaseBalance {
				t.Errorf("pattern = %+v, want %+v", *p, tt.want)
			}
		})
	}
}

func TestAnalyzeReportsDominantFrequencies(t *testing.T) {
	sig := tone(map[float64]float64{50: 1, 100: 0.5, 1000: 0.5})
	p, err := Analyzer{}.Analyze(tensorOf(t, sig, sig, sig))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(p.DominantFrequencies) != 2 || p.DominantFrequencies[0] != 50 || p.DominantFrequencies[1] != 100 {
		t.Errorf("DominantFrequencies = %v, want [50 100]", p.DominantFrequencies)
	}
}

func TestAnalyzePhaseImbalance(t *testing.T) {
	i1 := tone(map[float64]float64{50: 1})
	i2 := tone(map[float64]float64{50: 0.1})
	i3 := tone(map[float64]float64{50: 2})

	p, err := Analyzer{}.Analyze(tensorOf(t, i1, i2, i3))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.PhaseBalance {
		t.Error("currents with very different spreads reported as balanced")
	}
	if !p.BaseFreq {
		t.Error("50 Hz not detected on i1")
	}
}

func TestValidateSwallowsFailures(t *testing.T) {
	bad := tone(map[float64]float64{50: 1})
	bad[17] = math.NaN()
	tensor := tensorOf(t, bad, bad, bad)

	_, err := Analyzer{}.Analyze(tensor)
	var sae *types.SpectralAnalysisError
	if !errors.As(err, &sae) {
		t.Fatalf("expected SpectralAnalysisError, got %v", err)
	}

	if p := (Analyzer{}).Validate(tensor, zap.NewNop().Sugar()); p != nil {
		t.Errorf("Validate should return nil on failure, got %+v", p)
	}
	if p := (Analyzer{}).Validate(nil, nil); p != nil {
		t.Errorf("Validate(nil) = %+v", p)
	}
}

func TestDominantFrequencies(t *testing.T) {
	// 1000 samples at 1000 Hz, tones at 10 Hz and 200 Hz
	n := 1000
	samples := make([]float64, n)
	for i := range samples {
		x := float64(i) / 1000
		samples[i] = math.Sin(2*math.Pi*10*x) + math.Cos(2*math.Pi*200*x)
	}

	got, err := DominantFrequencies(samples, 1000)
	if err != nil {
		t.Fatalf("DominantFrequencies: %v", err)
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 200 {
		t.Errorf("got %v, want [10 200]", got)
	}

	if _, err := DominantFrequencies([]float64{1}, 1000); err == nil {
		t.Error("expected an error for a single sample")
	}
	if _, err := DominantFrequencies(samples, 0); err == nil {
		t.Error("expected an error for a zero sample rate")
	}
}

func TestNear(t *testing.T) {
	tests := []struct {
		freqs  []float64
		target float64
		tol    float64
		want   bool
	}{
		{[]float64{48.5}, 50, 2, true},
		{[]float64{48}, 50, 2, false},
		{[]float64{10, 104}, 100, 5, true},
		{nil, 25, 5, false},
	}
	for _, tt := range tests {
		if got := Near(tt.freqs, tt.target, tt.tol); got != tt.want {
			t.Errorf("Near(%v, %v, %v) = %v", tt.freqs, tt.target, tt.tol, got)
		}
	}
}
