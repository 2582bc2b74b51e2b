package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Prediction sources
const (
	SourceUpload  = "upload"
	SourceMonitor = "monitor"
)

// Entry is one journaled prediction
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Source   string    `json:"source"`
	FileName string    `json:"file_name"`
	types.PredictionResult
}

// NewEntry stamps a result with a fresh id and the current time
func NewEntry(source, fileName string, result types.PredictionResult) Entry {
	return Entry{
		ID:               uuid.NewString(),
		Time:             time.Now().UTC(),
		Source:           source,
		FileName:         fileName,
		PredictionResult: result,
	}
}

// Journal records predictions and returns recent ones, newest first
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// NopJournal discards everything
type NopJournal struct{}

func (NopJournal) Record(context.Context, Entry) error          { return nil }
func (NopJournal) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (NopJournal) Close() error                                 { return nil }

// Journal backends accepted in configuration
const (
	JournalSQLite      = "sqlite"
	JournalTimescaleDB = "timescaledb"
)

// NewJournal builds the journal described by cfg; nil means NopJournal
func NewJournal(ctx context.Context, cfg *config.JournalData, logger *zap.SugaredLogger) (Journal, error) {
	if cfg == nil || cfg.Type == "" {
		logger.Info("no prediction journal configured")
		return NopJournal{}, nil
	}

	switch cfg.Type {
	case JournalSQLite:
		path := cfg.Path
		if path == "" {
			path = "motorwatch.db"
			logger.Infof("journal path not provided; using default of %s", path)
		}
		return NewSQLiteJournal(ctx, path)
	case JournalTimescaleDB:
		if cfg.ConnectionString == "" {
			return nil, fmt.Errorf("timescaledb journal requires connection-string")
		}
		return NewTimescaleJournal(ctx, cfg.ConnectionString)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}

// probabilities flattens the class probabilities in ClassOrder
func (e Entry) probabilities() types.Distribution {
	var d types.Distribution
	for i, label := range types.ClassOrder {
		d[i] = e.ClassProbabilities[label]
	}
	return d
}
