package managers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

// Storage defaults
const (
	DefaultUploadDir    = "uploads"
	DefaultGeneratedDir = "generated_signals"

	journalHealthInterval = time.Minute
	journalBackend        = "journal"
)

// StorageManager holds the blob stores, the prediction journal and their
// health
type StorageManager struct {
	Uploads    storage.BlobStore
	Generated  storage.BlobStore
	Journal    storage.Journal
	Health     *storage.HealthManager
	StagingDir string
}

// NewStorageManager opens every configured storage backend and starts the
// journal health monitor
func NewStorageManager(ctx context.Context, sd config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	if sd.UploadDir == "" {
		logger.Infof("storage.upload_dir not provided; defaulting to %s", DefaultUploadDir)
		sd.UploadDir = DefaultUploadDir
	}
	if sd.GeneratedDir == "" {
		logger.Infof("storage.generated_dir not provided; defaulting to %s", DefaultGeneratedDir)
		sd.GeneratedDir = DefaultGeneratedDir
	}
	if sd.StagingDir == "" {
		sd.StagingDir = filepath.Join(os.TempDir(), "motorwatch")
	}

	uploads, err := storage.NewFSBlobStore(sd.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("could not open upload store: %v", err)
	}
	generated, err := storage.NewFSBlobStore(sd.GeneratedDir)
	if err != nil {
		return nil, fmt.Errorf("could not open generated signal store: %v", err)
	}

	journal, err := storage.NewJournal(ctx, sd.Journal, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open prediction journal: %v", err)
	}

	s := &StorageManager{
		Uploads:    uploads,
		Generated:  generated,
		Journal:    journal,
		Health:     storage.NewHealthManager(),
		StagingDir: sd.StagingDir,
	}
	s.Health.StartHealthMonitor(ctx, journalBackend, journal, journalHealthInterval)

	return s, nil
}

// Close releases the journal
func (s *StorageManager) Close() error {
	return s.Journal.Close()
}
