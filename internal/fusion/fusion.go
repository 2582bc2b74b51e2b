// Package fusion reconciles the classifier's output with the spectral
// patterns found in the signals.
//
// The rules are a physics-informed plausibility guard, not ground truth: they
// encode the expectation that a healthy motor shows a clean 50 Hz line, an
// imbalanced one a 25 Hz modulation with balanced phases and a broken rotor a
// sideband near 100 Hz. They can be wrong, and a relabel to healthy is a
// heuristic, not an authoritative diagnosis.
package fusion

import (
	"fmt"
	"math"

	"github.com/chrissnell/motorwatch/internal/types"
)

const (
	// ConfidenceThreshold is the confidence below which a prediction is
	// reconsidered even when the spectral pattern agrees with it
	ConfidenceThreshold = 0.7

	// HealthyFloor is the minimum confidence given to a relabel to healthy
	HealthyFloor = 0.65

	// OtherClassCeiling caps the probabilities of the two other classes after
	// a relabel to healthy
	OtherClassCeiling = 0.3

	// LowTrustCap caps the confidence of a prediction that could not be
	// confirmed and could not be relabeled
	LowTrustCap = 0.6
)

// Decide fuses a raw classifier distribution with a spectral pattern. A nil
// pattern means the spectral check was unavailable, and the raw prediction is
// returned untouched.
func Decide(raw types.Distribution, pattern *types.SpectralPattern) types.PredictionResult {
	label, confidence := raw.Argmax()
	result := types.PredictionResult{
		Label:              label,
		Confidence:         confidence,
		ClassProbabilities: raw.Probabilities(),
		Pattern:            pattern,
	}
	if pattern == nil {
		return result
	}

	reason := disagreement(label, pattern)
	if reason == "" && confidence >= ConfidenceThreshold {
		return result
	}
	if reason == "" {
		reason = fmt.Sprintf("low confidence prediction (%.2f < %.2f)", confidence, ConfidenceThreshold)
	}

	result.Overridden = true
	if pattern.BaseFreq && !pattern.Sideband100Hz && !pattern.Mod25Hz {
		result.Label = types.LabelHealthy
		result.Confidence = math.Max(confidence, HealthyFloor)
		probs := result.ClassProbabilities
		probs[types.LabelHealthy] = math.Max(result.Confidence, probs[types.LabelHealthy])
		probs[types.LabelBrokenRotor] = math.Min(OtherClassCeiling, probs[types.LabelBrokenRotor])
		probs[types.LabelImbalance] = math.Min(OtherClassCeiling, probs[types.LabelImbalance])
		result.Reason = reason + "; clean 50 Hz line without fault signatures, relabeled as " + string(types.LabelHealthy)
		return result
	}

	result.Confidence = math.Min(confidence, LowTrustCap)
	result.Reason = reason + "; keeping model prediction with reduced confidence"
	return result
}

// disagreement returns why the pattern contradicts the label, or "" when it
// supports it
func disagreement(label types.Label, p *types.SpectralPattern) string {
	switch label {
	case types.LabelHealthy:
		if !p.BaseFreq {
			return "signal characteristics don't match healthy state pattern"
		}
	case types.LabelImbalance:
		if !p.Mod25Hz || !p.PhaseBalance {
			return "signal characteristics don't match unbalance pattern"
		}
	case types.LabelBrokenRotor:
		if !p.Sideband100Hz {
			return "signal characteristics don't match broken rotor pattern"
		}
	}
	return ""
}

// Validate rejects classifier outputs that are not a usable distribution
func Validate(raw types.Distribution) error {
	for i, p := range raw {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return &types.ScoringError{Cause: fmt.Errorf("invalid probability %v for %s", p, types.ClassOrder[i])}
		}
	}
	return nil
}
