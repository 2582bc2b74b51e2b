// Package scoring serves the configured classifier to other hosts over gRPC.
package scoring

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/chrissnell/motorwatch/internal/classifier"
	"github.com/chrissnell/motorwatch/internal/grpcutil"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
)

const defaultPort = 5601

// Controller represents the gRPC scorer sidecar
type Controller struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	config config.ScoringData
	Server *grpc.Server
	logger *zap.SugaredLogger
}

// NewController creates a sidecar that answers Score calls with scorer
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ScoringData, scorer classifier.Scorer, logger *zap.SugaredLogger) (*Controller, error) {
	if scorer == nil {
		return nil, fmt.Errorf("scoring sidecar requires a scorer")
	}
	if sc.Port == 0 {
		logger.Infof("scoring.port not provided; defaulting to %d", defaultPort)
		sc.Port = defaultPort
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(grpcutil.MaxMessageSize),
		grpc.MaxSendMsgSize(grpcutil.MaxMessageSize),
	}
	if sc.Cert != "" && sc.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(sc.Cert, sc.Key)
		if err != nil {
			return nil, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	ctrl := &Controller{
		ctx:    ctx,
		wg:     wg,
		config: sc,
		Server: grpc.NewServer(opts...),
		logger: logger,
	}

	classifier.RegisterScorerServer(ctrl.Server, scorer)
	reflection.Register(ctrl.Server)

	return ctrl, nil
}

// Addr is the address the sidecar listens on
func (c *Controller) Addr() string {
	return fmt.Sprintf("%s:%d", c.config.ListenAddr, c.config.Port)
}

// StartController listens on the configured address and serves until the
// context is cancelled
func (c *Controller) StartController() error {
	l, err := net.Listen("tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("scoring sidecar could not create listener: %v", err)
	}
	c.Serve(l)
	return nil
}

// Serve serves on l in the background
func (c *Controller) Serve(l net.Listener) {
	c.logger.Infof("scoring sidecar listening on %s", l.Addr())
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(l); err != nil {
			c.logger.Errorf("scoring sidecar serve error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.StopController()
	}()
}

// StopController stops the sidecar after in-flight calls finish
func (c *Controller) StopController() {
	c.logger.Info("Stopping scoring sidecar...")
	c.Server.GracefulStop()
}
