package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/motorwatch/internal/controllers/generator"
	"github.com/chrissnell/motorwatch/internal/controllers/restserver"
	"github.com/chrissnell/motorwatch/internal/controllers/scoring"
	"github.com/chrissnell/motorwatch/internal/monitor"
	"github.com/chrissnell/motorwatch/internal/synth"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates the REST server plus the generator and the
// scoring sidecar when they are configured
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, c *config.ConfigData, sm *StorageManager, pm *PipelineManager, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		config:      c,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	session := monitor.NewSession()
	producer := &generator.Producer{
		Synth: pm.Synthesizer,
		Store: sm.Generated,
		Serialize: synth.SerializeOptions{
			EssaisNumber: c.Generator.EssaisNumber,
		},
		Session:    session,
		KeepLatest: c.Generator.KeepLatest,
		Logger:     logger.Named("generator"),
	}

	rest, err := restserver.NewController(ctx, wg, c.Server, restserver.Deps{
		Predictor: pm.Predictor,
		Producer:  producer,
		Uploads:   sm.Uploads,
		Generated: sm.Generated,
		Journal:   sm.Journal,
		Session:   session,
		Health:    sm.Health,
	}, logger.Named("rest"))
	if err != nil {
		return nil, fmt.Errorf("error creating REST server: %v", err)
	}
	cm.controllers = append(cm.controllers, rest)

	if c.Generator.Enabled {
		gen, err := generator.NewController(ctx, wg, c.Generator, producer, logger.Named("generator"))
		if err != nil {
			return nil, fmt.Errorf("error creating generator: %v", err)
		}
		cm.controllers = append(cm.controllers, gen)
	}

	if c.Scoring != nil {
		sidecar, err := scoring.NewController(ctx, wg, *c.Scoring, pm.Scorer, logger.Named("scoring"))
		if err != nil {
			return nil, fmt.Errorf("error creating scoring sidecar: %v", err)
		}
		cm.controllers = append(cm.controllers, sidecar)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	config      *config.ConfigData
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}
