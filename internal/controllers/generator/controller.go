package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/motorwatch/internal/synth"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

// DefaultInterval is how often a recording is generated when unconfigured
const DefaultInterval = 5 * time.Second

// Controller feeds the monitoring loop with a fresh recording every interval,
// rotating through the fault types
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	producer *Producer
	interval time.Duration
	logger   *zap.SugaredLogger

	mu   sync.Mutex
	next int
}

// NewController creates a generator controller
func NewController(ctx context.Context, wg *sync.WaitGroup, gc config.GeneratorData, producer *Producer, logger *zap.SugaredLogger) (*Controller, error) {
	interval := DefaultInterval
	if gc.Interval != "" {
		d, err := time.ParseDuration(gc.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid generator interval %q: %v", gc.Interval, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("generator interval must be positive, got %v", d)
		}
		interval = d
	} else {
		logger.Infof("generator.interval not provided; defaulting to %v", DefaultInterval)
	}

	return &Controller{
		ctx:      ctx,
		wg:       wg,
		producer: producer,
		interval: interval,
		logger:   logger,
	}, nil
}

// StartController starts the generation loop
func (c *Controller) StartController() error {
	c.logger.Infof("Starting signal generator controller (every %v)...", c.interval)
	c.wg.Add(1)
	go c.run()
	return nil
}

func (c *Controller) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.Tick(); err != nil {
				c.logger.Errorf("error generating recording: %v", err)
			}
		case <-c.ctx.Done():
			c.logger.Info("stopping signal generator controller")
			return
		}
	}
}

// Tick produces the next recording in the rotation
func (c *Controller) Tick() (*Produced, error) {
	c.mu.Lock()
	fault := synth.FaultTypes[c.next%len(synth.FaultTypes)]
	c.next++
	c.mu.Unlock()

	return c.producer.Produce(fault)
}
