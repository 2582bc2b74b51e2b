package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chrissnell/motorwatch/internal/retry"
	"github.com/chrissnell/motorwatch/internal/types"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single scoring request
const DefaultTimeout = 30 * time.Second

// HTTPScorer calls a TensorFlow Serving style REST endpoint:
// POST {endpoint}/v1/models/{model}:predict with {"instances": [...]}
type HTTPScorer struct {
	url        string
	httpClient *http.Client
	retry      retry.Config
	logger     *zap.SugaredLogger
}

type predictRequest struct {
	Instances [][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// httpStatusError marks a non-200 reply from the model server
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("model server returned %d: %s", e.status, e.body)
}

// NewHTTPScorer creates an HTTP scorer. A zero timeout uses DefaultTimeout.
func NewHTTPScorer(endpoint, model string, timeout time.Duration, logger *zap.SugaredLogger) *HTTPScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &HTTPScorer{
		url:        fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(endpoint, "/"), model),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.DefaultConfig(),
		logger:     logger,
	}
}

// Score sends the tensor as a batch of one, time-major and channel-last
func (s *HTTPScorer) Score(ctx context.Context, t *types.SignalTensor) (types.Distribution, error) {
	body, err := json.Marshal(predictRequest{Instances: [][][]float32{timeMajor(t)}})
	if err != nil {
		return types.Distribution{}, &types.ScoringError{Cause: fmt.Errorf("error encoding request: %w", err)}
	}

	probs, err := retry.Do(ctx, s.retry, "model server", retryableHTTP, s.logger.Warnf, func(int) ([]float64, error) {
		return s.predict(ctx, body)
	})
	if err != nil {
		var se *types.ScoringError
		if errors.As(err, &se) {
			return types.Distribution{}, err
		}
		return types.Distribution{}, &types.ScoringError{Cause: err}
	}
	return toDistribution(probs)
}

func (s *HTTPScorer) predict(ctx context.Context, body []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling model server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading model server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode, body: string(respBody)}
	}

	var pr predictResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, &types.ScoringError{Cause: fmt.Errorf("error decoding model server response: %w", err)}
	}
	if pr.Error != "" {
		return nil, &types.ScoringError{Cause: errors.New(pr.Error)}
	}
	if len(pr.Predictions) != 1 {
		return nil, &types.ScoringError{Cause: fmt.Errorf("model server returned %d predictions for a batch of one", len(pr.Predictions))}
	}
	return pr.Predictions[0], nil
}

// retryableHTTP retries transport failures, 5xx and 429, never malformed output
func retryableHTTP(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *types.ScoringError
	if errors.As(err, &se) {
		return false
	}
	var status *httpStatusError
	if errors.As(err, &status) {
		return status.status >= 500 || status.status == http.StatusTooManyRequests
	}
	return true
}

// timeMajor reshapes the flat classifier input into (50001, 9)
func timeMajor(t *types.SignalTensor) [][]float32 {
	flat := t.ClassifierInput()
	channels := len(types.RequiredChannels)
	rows := make([][]float32, types.SamplesPerChannel)
	for i := range rows {
		rows[i] = flat[i*channels : (i+1)*channels]
	}
	return rows
}
