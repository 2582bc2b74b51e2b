package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrissnell/motorwatch/internal/database"
	"github.com/chrissnell/motorwatch/internal/types"
)

const createPredictionsSQLite = `
CREATE TABLE IF NOT EXISTS predictions (
    id TEXT PRIMARY KEY,
    time_ms INTEGER NOT NULL,
    source TEXT NOT NULL,
    file_name TEXT NOT NULL,
    label TEXT NOT NULL,
    confidence REAL NOT NULL,
    p_cassure REAL NOT NULL,
    p_sain REAL NOT NULL,
    p_desiquilibre REAL NOT NULL,
    has_pattern INTEGER NOT NULL,
    base_freq INTEGER NOT NULL,
    mod_25hz INTEGER NOT NULL,
    sideband_100hz INTEGER NOT NULL,
    phase_balance INTEGER NOT NULL,
    overridden INTEGER NOT NULL,
    reason TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS predictions_time_idx ON predictions (time_ms);
`

// SQLiteJournal keeps predictions in a local SQLite file
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens path and creates the predictions table
func NewSQLiteJournal(ctx context.Context, path string) (*SQLiteJournal, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createPredictionsSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create predictions table: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Record inserts an entry
func (j *SQLiteJournal) Record(ctx context.Context, e Entry) error {
	p := e.probabilities()
	var pat types.SpectralPattern
	if e.Pattern != nil {
		pat = *e.Pattern
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO predictions (id, time_ms, source, file_name, label, confidence,
			p_cassure, p_sain, p_desiquilibre, has_pattern, base_freq, mod_25hz,
			sideband_100hz, phase_balance, overridden, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixMilli(), e.Source, e.FileName, string(e.Label), e.Confidence,
		p[0], p[1], p[2], e.Pattern != nil, pat.BaseFreq, pat.Mod25Hz,
		pat.Sideband100Hz, pat.PhaseBalance, e.Overridden, e.Reason)
	if err != nil {
		return fmt.Errorf("could not journal prediction %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (j *SQLiteJournal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, time_ms, source, file_name, label, confidence,
			p_cassure, p_sain, p_desiquilibre, has_pattern, base_freq, mod_25hz,
			sideband_100hz, phase_balance, overridden, reason
		FROM predictions
		ORDER BY time_ms DESC, rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("could not query predictions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			ms         int64
			label      string
			p          types.Distribution
			hasPattern bool
			pat        types.SpectralPattern
		)
		if err := rows.Scan(&e.ID, &ms, &e.Source, &e.FileName, &label, &e.Confidence,
			&p[0], &p[1], &p[2], &hasPattern, &pat.BaseFreq, &pat.Mod25Hz,
			&pat.Sideband100Hz, &pat.PhaseBalance, &e.Overridden, &e.Reason); err != nil {
			return nil, fmt.Errorf("could not scan prediction: %w", err)
		}
		e.Time = time.UnixMilli(ms).UTC()
		e.Label = types.Label(label)
		e.ClassProbabilities = p.Probabilities()
		if hasPattern {
			e.Pattern = &pat
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
