package database

import (
	"time"
)

// PredictionRecord is one journaled prediction in TimescaleDB
type PredictionRecord struct {
	Time          time.Time `gorm:"column:time;primaryKey"`
	ID            string    `gorm:"column:id;primaryKey"`
	Source        string    `gorm:"column:source"`
	FileName      string    `gorm:"column:file_name"`
	Label         string    `gorm:"column:label"`
	Confidence    float64   `gorm:"column:confidence"`
	PBrokenRotor  float64   `gorm:"column:p_cassure"`
	PHealthy      float64   `gorm:"column:p_sain"`
	PImbalance    float64   `gorm:"column:p_desiquilibre"`
	HasPattern    bool      `gorm:"column:has_pattern"`
	BaseFreq      bool      `gorm:"column:base_freq"`
	Mod25Hz       bool      `gorm:"column:mod_25hz"`
	Sideband100Hz bool      `gorm:"column:sideband_100hz"`
	PhaseBalance  bool      `gorm:"column:phase_balance"`
	Overridden    bool      `gorm:"column:overridden"`
	Reason        string    `gorm:"column:reason"`
}

// TableName specifies the table name for PredictionRecord
func (PredictionRecord) TableName() string {
	return "predictions"
}
