package classifier

import (
	"fmt"
	"io"
	"time"

	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

// Scorer types accepted in configuration
const (
	TypeStatic = "static"
	TypeHTTP   = "http"
	TypeGRPC   = "grpc"
)

// defaultStatic is served by a static scorer with no configured distribution
var defaultStatic = types.Distribution{0.1, 0.8, 0.1}

// New builds the scorer described by cfg. The returned closer releases any
// connection the scorer holds and is never nil.
func New(cfg config.ClassifierData, logger *zap.SugaredLogger) (Scorer, io.Closer, error) {
	var timeout time.Duration
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid classifier timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	switch cfg.Type {
	case "", TypeStatic:
		d := defaultStatic
		if len(cfg.Static) > 0 {
			var err error
			if d, err = toDistribution(cfg.Static); err != nil {
				return nil, nil, fmt.Errorf("invalid static distribution: %w", err)
			}
		}
		logger.Infof("using static classifier %v", d)
		return StaticScorer{Distribution: d}, nopCloser{}, nil

	case TypeHTTP:
		if cfg.Endpoint == "" || cfg.ModelName == "" {
			return nil, nil, fmt.Errorf("http classifier requires endpoint and model-name")
		}
		logger.Infof("using HTTP classifier %s model %s", cfg.Endpoint, cfg.ModelName)
		return NewHTTPScorer(cfg.Endpoint, cfg.ModelName, timeout, logger), nopCloser{}, nil

	case TypeGRPC:
		if cfg.Endpoint == "" {
			return nil, nil, fmt.Errorf("grpc classifier requires endpoint")
		}
		s, err := NewGRPCScorer(cfg.Endpoint, cfg.Cert, timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using gRPC classifier %s", cfg.Endpoint)
		return s, s, nil

	default:
		return nil, nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
