package storage

import (
	"context"
	"fmt"

	"github.com/chrissnell/motorwatch/internal/database"
	"github.com/chrissnell/motorwatch/internal/log"
	"github.com/chrissnell/motorwatch/internal/types"
	"gorm.io/gorm"
)

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('predictions', 'time', if_not_exists => TRUE, migrate_data => TRUE);`

// TimescaleJournal keeps predictions in a TimescaleDB hypertable
type TimescaleJournal struct {
	db *gorm.DB
}

// NewTimescaleJournal connects, migrates the predictions table and turns it
// into a hypertable
func NewTimescaleJournal(ctx context.Context, connectionString string) (*TimescaleJournal, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return newTimescaleJournal(ctx, db)
}

func newTimescaleJournal(ctx context.Context, db *gorm.DB) (*TimescaleJournal, error) {
	log.Info("creating TimescaleDB extension...")
	if err := db.WithContext(ctx).Exec(createExtensionSQL).Error; err != nil {
		log.Warn("warning: could not create TimescaleDB extension")
		return nil, err
	}

	log.Info("migrating predictions table...")
	if err := db.WithContext(ctx).AutoMigrate(&database.PredictionRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate predictions table: %w", err)
	}

	log.Info("creating hypertable...")
	if err := db.WithContext(ctx).Exec(createHypertableSQL).Error; err != nil {
		log.Warn("warning: could not create hypertable")
		return nil, err
	}

	return &TimescaleJournal{db: db}, nil
}

// Record inserts an entry
func (j *TimescaleJournal) Record(ctx context.Context, e Entry) error {
	rec := toRecord(e)
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("could not journal prediction %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (j *TimescaleJournal) Recent(ctx context.Context, n int) ([]Entry, error) {
	var recs []database.PredictionRecord
	if err := j.db.WithContext(ctx).Order("time DESC").Limit(n).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("could not query predictions: %w", err)
	}

	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = fromRecord(r)
	}
	return out, nil
}

// Close closes the underlying connection pool
func (j *TimescaleJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(e Entry) database.PredictionRecord {
	p := e.probabilities()
	rec := database.PredictionRecord{
		Time:         e.Time,
		ID:           e.ID,
		Source:       e.Source,
		FileName:     e.FileName,
		Label:        string(e.Label),
		Confidence:   e.Confidence,
		PBrokenRotor: p[0],
		PHealthy:     p[1],
		PImbalance:   p[2],
		Overridden:   e.Overridden,
		Reason:       e.Reason,
	}
	if e.Pattern != nil {
		rec.HasPattern = true
		rec.BaseFreq = e.Pattern.BaseFreq
		rec.Mod25Hz = e.Pattern.Mod25Hz
		rec.Sideband100Hz = e.Pattern.Sideband100Hz
		rec.PhaseBalance = e.Pattern.PhaseBalance
	}
	return rec
}

func fromRecord(r database.PredictionRecord) Entry {
	e := Entry{
		ID:       r.ID,
		Time:     r.Time.UTC(),
		Source:   r.Source,
		FileName: r.FileName,
	}
	e.Label = types.Label(r.Label)
	e.Confidence = r.Confidence
	e.ClassProbabilities = types.Distribution{r.PBrokenRotor, r.PHealthy, r.PImbalance}.Probabilities()
	e.Overridden = r.Overridden
	e.Reason = r.Reason
	if r.HasPattern {
		e.Pattern = &types.SpectralPattern{
			BaseFreq:      r.BaseFreq,
			Mod25Hz:       r.Mod25Hz,
			Sideband100Hz: r.Sideband100Hz,
			PhaseBalance:  r.PhaseBalance,
		}
	}
	return e
}
