// Package restserver exposes prediction, generation and monitoring over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/motorwatch/internal/controllers/generator"
	"github.com/chrissnell/motorwatch/internal/monitor"
	"github.com/chrissnell/motorwatch/internal/pipeline"
	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/pkg/config"
	"github.com/chrissnell/motorwatch/pkg/responseformat"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultPort        = 5600
	defaultMaxUploadMB = 64
)

// Deps are the collaborators the handlers work with
type Deps struct {
	Predictor *pipeline.Predictor
	Producer  *generator.Producer
	Uploads   storage.BlobStore
	Generated storage.BlobStore
	Journal   storage.Journal
	Session   *monitor.Session
	Health    *storage.HealthManager
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	deps       Deps
	formatter  *responseformat.Formatter
	logger     *zap.SugaredLogger
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.ServerData, deps Deps, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Predictor == nil || deps.Producer == nil || deps.Uploads == nil || deps.Generated == nil || deps.Session == nil {
		return nil, fmt.Errorf("REST server requires a predictor, producer, upload and generated stores and a session")
	}
	if deps.Journal == nil {
		deps.Journal = storage.NopJournal{}
	}
	if deps.Health == nil {
		deps.Health = storage.NewHealthManager()
	}

	if rc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", defaultPort)
		rc.Port = defaultPort
	}
	if rc.MaxUploadMB <= 0 {
		rc.MaxUploadMB = defaultMaxUploadMB
	}
	if rc.SignalTail <= 0 {
		rc.SignalTail = pipeline.DefaultSignalTail
	}
	if rc.AdminToken == "" {
		rc.AdminToken = uuid.New().String()
		logger.Infof("server.admin-token not provided; generated token for /debug endpoints: %s", rc.AdminToken)
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		deps:       deps,
		formatter:  responseformat.NewFormatter(),
		logger:     logger,
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Router()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server controller on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(c.loggingMiddleware)
	if c.restConfig.EnableCORS {
		router.Use(c.corsMiddleware)
	}

	router.HandleFunc("/predict", c.handlePredict).Methods(c.methods(http.MethodPost)...)
	router.HandleFunc("/generate", c.handleGenerate).Methods(c.methods(http.MethodPost)...)
	router.HandleFunc("/start-monitoring", c.handleStartMonitoring).Methods(c.methods(http.MethodPost)...)
	router.HandleFunc("/stop-monitoring", c.handleStopMonitoring).Methods(c.methods(http.MethodPost)...)
	router.HandleFunc("/get-monitoring-status", c.handleMonitoringStatus).Methods(c.methods(http.MethodGet)...)
	router.HandleFunc("/history", c.handleHistory).Methods(c.methods(http.MethodGet)...)
	router.HandleFunc("/healthz", c.handleHealth).Methods(http.MethodGet)

	debug := router.PathPrefix("/debug").Subrouter()
	debug.Use(c.authMiddleware)
	debug.HandleFunc("/requests", c.handleRecentRequests).Methods(http.MethodGet)

	return router
}

// methods adds OPTIONS for preflight requests when CORS is on
func (c *Controller) methods(m ...string) []string {
	if c.restConfig.EnableCORS {
		return append(m, http.MethodOptions)
	}
	return m
}
