// Package classifier abstracts the trained sequence model behind a single
// scoring interface. The model itself lives elsewhere: a model server reached
// over HTTP or gRPC, or a fixed distribution for demos and tests.
package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/motorwatch/internal/types"
)

// Scorer maps a normalized tensor to a probability distribution over
// ClassOrder
type Scorer interface {
	Score(ctx context.Context, t *types.SignalTensor) (types.Distribution, error)
}

// ScorerFunc adapts a function to the Scorer interface
type ScorerFunc func(ctx context.Context, t *types.SignalTensor) (types.Distribution, error)

// Score calls f
func (f ScorerFunc) Score(ctx context.Context, t *types.SignalTensor) (types.Distribution, error) {
	return f(ctx, t)
}

// StaticScorer always returns the same distribution
type StaticScorer struct {
	Distribution types.Distribution
}

// Score returns the fixed distribution
func (s StaticScorer) Score(ctx context.Context, _ *types.SignalTensor) (types.Distribution, error) {
	if err := ctx.Err(); err != nil {
		return types.Distribution{}, &types.ScoringError{Cause: err}
	}
	return s.Distribution, nil
}

// toDistribution validates raw model output: exactly one value per class,
// each finite and non-negative
func toDistribution(probs []float64) (types.Distribution, error) {
	var d types.Distribution
	if len(probs) != len(d) {
		return d, &types.ScoringError{Cause: fmt.Errorf("model returned %d probabilities, want %d", len(probs), len(d))}
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return types.Distribution{}, &types.ScoringError{Cause: fmt.Errorf("invalid probability %v for %s", p, types.ClassOrder[i])}
		}
		d[i] = p
	}
	return d, nil
}
