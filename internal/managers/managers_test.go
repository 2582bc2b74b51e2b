package managers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.ConfigData {
	t.Helper()
	dir := t.TempDir()
	return &config.ConfigData{
		Server:     config.ServerData{ListenAddr: "127.0.0.1"},
		Classifier: config.ClassifierData{Type: "static", Static: []float64{0.2, 0.6, 0.2}},
		Storage: config.StorageData{
			UploadDir:    filepath.Join(dir, "uploads"),
			GeneratedDir: filepath.Join(dir, "generated"),
			StagingDir:   filepath.Join(dir, "staging"),
			Journal:      &config.JournalData{Type: "sqlite", Path: filepath.Join(dir, "journal.db")},
		},
		Generator: config.GeneratorData{Enabled: true, Interval: "1m", KeepLatest: 5},
		Scoring:   &config.ScoringData{ListenAddr: "127.0.0.1"},
	}
}

func TestManagersFromConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := zap.NewNop().Sugar()
	cfg := testConfig(t)

	sm, err := NewStorageManager(ctx, cfg.Storage, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer sm.Close()
	if _, ok := sm.Journal.(*storage.SQLiteJournal); !ok {
		t.Errorf("journal is %T, want sqlite", sm.Journal)
	}

	pm, err := NewPipelineManager(cfg, sm, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer pm.Close()

	cm, err := NewControllerManager(ctx, &sync.WaitGroup{}, cfg, sm, pm, logger)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(cm.(*controllerManager).controllers); n != 3 {
		t.Errorf("%d controllers, want REST, generator and scoring", n)
	}
}

func TestManagersRejectBadConfig(t *testing.T) {
	logger := zap.NewNop().Sugar()

	tests := []struct {
		name   string
		mutate func(*config.ConfigData)
	}{
		{"journal type", func(c *config.ConfigData) { c.Storage.Journal.Type = "cassandra" }},
		{"name segment", func(c *config.ConfigData) { c.Parser.NameSegment = "first" }},
		{"classifier type", func(c *config.ConfigData) { c.Classifier.Type = "onnx" }},
		{"generator interval", func(c *config.ConfigData) { c.Generator.Interval = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			cfg := testConfig(t)
			tt.mutate(cfg)

			sm, err := NewStorageManager(ctx, cfg.Storage, logger)
			if err != nil {
				return
			}
			defer sm.Close()
			pm, err := NewPipelineManager(cfg, sm, logger)
			if err != nil {
				return
			}
			defer pm.Close()
			if _, err := NewControllerManager(ctx, &sync.WaitGroup{}, cfg, sm, pm, logger); err == nil {
				t.Error("expected a configuration error")
			}
		})
	}
}
