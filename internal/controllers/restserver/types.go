package restserver

import (
	"github.com/chrissnell/motorwatch/internal/pipeline"
	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/internal/types"
)

// Monitoring states reported by /get-monitoring-status
const (
	monitorStopped = "stopped"
	monitorWaiting = "waiting"
	monitorRunning = "running"
)

// StatusResponse is a bare acknowledgement
type StatusResponse struct {
	Status string `json:"status"`
}

// MonitoringStatus is the body of /get-monitoring-status
type MonitoringStatus struct {
	Status     string                          `json:"status"`
	Timestamp  *float64                        `json:"timestamp"`
	Prediction *MonitoredPrediction            `json:"prediction"`
	File       string                          `json:"file,omitempty"`
	Message    string                          `json:"message,omitempty"`
	Error      string                          `json:"error,omitempty"`
	Signals    map[types.ChannelName][]float64 `json:"signals,omitempty"`
	Metrics    *pipeline.Metrics               `json:"metrics,omitempty"`
}

// MonitoredPrediction is the prediction block of a running status
type MonitoredPrediction struct {
	State      types.Label       `json:"state"`
	Confidence float64           `json:"confidence"`
	Details    PredictionDetails `json:"details"`
}

// PredictionDetails carries the evidence behind a monitored prediction
type PredictionDetails struct {
	ClassProbabilities map[types.Label]float64 `json:"class_probabilities"`
	ValidationPatterns *types.SpectralPattern  `json:"validation_patterns"`
	Overridden         bool                    `json:"overridden"`
	Reason             string                  `json:"reason,omitempty"`
}

// HistoryResponse is the body of /history
type HistoryResponse struct {
	Count   int             `json:"count"`
	Entries []storage.Entry `json:"entries"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status     string                    `json:"status"`
	Monitoring bool                      `json:"monitoring"`
	Backends   map[string]storage.Health `json:"backends"`
}
