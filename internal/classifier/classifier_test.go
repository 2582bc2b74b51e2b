package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrissnell/motorwatch/internal/grpcutil"
	"github.com/chrissnell/motorwatch/internal/retry"
	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func zeroTensor(t *testing.T) *types.SignalTensor {
	t.Helper()
	tensor, err := types.NewSignalTensor(mat.NewDense(len(types.RequiredChannels), types.SamplesPerChannel, nil))
	if err != nil {
		t.Fatal(err)
	}
	return tensor
}

func TestToDistribution(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		wantErr bool
	}{
		{name: "valid", in: []float64{0.2, 0.5, 0.3}},
		{name: "too few", in: []float64{0.5, 0.5}, wantErr: true},
		{name: "too many", in: []float64{0.25, 0.25, 0.25, 0.25}, wantErr: true},
		{name: "nan", in: []float64{math.NaN(), 0.5, 0.5}, wantErr: true},
		{name: "inf", in: []float64{math.Inf(1), 0, 0}, wantErr: true},
		{name: "negative", in: []float64{-0.1, 0.6, 0.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toDistribution(tt.in)
			if tt.wantErr {
				var se *types.ScoringError
				if !errors.As(err, &se) {
					t.Errorf("err = %v, want ScoringError", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestStaticScorer(t *testing.T) {
	s := StaticScorer{Distribution: types.Distribution{0.1, 0.2, 0.7}}
	d, err := s.Score(context.Background(), zeroTensor(t))
	if err != nil || d[2] != 0.7 {
		t.Errorf("Score = %v, %v", d, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Score(ctx, zeroTensor(t)); err == nil {
		t.Error("expected an error on a cancelled context")
	}
}

func fastHTTPScorer(url string) *HTTPScorer {
	s := NewHTTPScorer(url, "motor", time.Second, nil)
	s.retry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiple: 1}
	return s
}

func TestHTTPScorer(t *testing.T) {
	var gotPath string
	var gotShape [3]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotShape = [3]int{len(req.Instances), len(req.Instances[0]), len(req.Instances[0][0])}
		w.Write([]byte(`{"predictions": [[0.05, 0.9, 0.05]]}`))
	}))
	defer srv.Close()

	d, err := fastHTTPScorer(srv.URL + "/").Score(context.Background(), zeroTensor(t))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if label, p := d.Argmax(); label != types.LabelHealthy || p != 0.9 {
		t.Errorf("distribution = %v", d)
	}
	if gotPath != "/v1/models/motor:predict" {
		t.Errorf("path = %q", gotPath)
	}
	if gotShape != [3]int{1, types.SamplesPerChannel, len(types.RequiredChannels)} {
		t.Errorf("instance shape = %v", gotShape)
	}
}

func TestHTTPScorerRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		wantErr   bool
	}{
		{name: "unavailable then ok", status: http.StatusServiceUnavailable, wantCalls: 2},
		{name: "rate limited then ok", status: http.StatusTooManyRequests, wantCalls: 2},
		{name: "bad request", status: http.StatusBadRequest, wantCalls: 1, wantErr: true},
		{name: "wrong arity", status: http.StatusOK, body: `{"predictions": [[0.5, 0.5]]}`, wantCalls: 1, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `not json`, wantCalls: 1, wantErr: true},
		{name: "server error field", status: http.StatusOK, body: `{"error": "model not loaded"}`, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if tt.status == http.StatusOK {
					w.Write([]byte(tt.body))
					return
				}
				if n == 1 || tt.wantErr {
					http.Error(w, "nope", tt.status)
					return
				}
				w.Write([]byte(`{"predictions": [[0.7, 0.2, 0.1]]}`))
			}))
			defer srv.Close()

			_, err := fastHTTPScorer(srv.URL).Score(context.Background(), zeroTensor(t))
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantErr {
				var se *types.ScoringError
				if !errors.As(err, &se) {
					t.Errorf("err = %v, want ScoringError", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func dialBufconn(t *testing.T, s Scorer) *GRPCScorer {
	t.Helper()
	lis := bufconn.Listen(grpcutil.MaxMessageSize)
	srv := grpc.NewServer(grpc.MaxRecvMsgSize(grpcutil.MaxMessageSize))
	RegisterScorerServer(srv, s)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewGRPCScorerFromConn(conn, 10*time.Second)
}

func TestGRPCScorer(t *testing.T) {
	var sawRows int
	remote := ScorerFunc(func(_ context.Context, tensor *types.SignalTensor) (types.Distribution, error) {
		sawRows, _ = tensor.Matrix().Dims()
		return types.Distribution{0.6, 0.3, 0.1}, nil
	})

	client := dialBufconn(t, remote)
	d, err := client.Score(context.Background(), zeroTensor(t))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if d != (types.Distribution{0.6, 0.3, 0.1}) {
		t.Errorf("distribution = %v", d)
	}
	if sawRows != len(types.RequiredChannels) {
		t.Errorf("server saw %d rows", sawRows)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on a borrowed connection: %v", err)
	}
}

func TestGRPCScorerRemoteFailure(t *testing.T) {
	remote := ScorerFunc(func(context.Context, *types.SignalTensor) (types.Distribution, error) {
		return types.Distribution{}, errors.New("model crashed")
	})

	_, err := dialBufconn(t, remote).Score(context.Background(), zeroTensor(t))
	var se *types.ScoringError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ScoringError", err)
	}
	if !strings.Contains(err.Error(), "model crashed") {
		t.Errorf("err = %v", err)
	}
}

func TestNew(t *testing.T) {
	logger := zap.NewNop().Sugar()
	tests := []struct {
		name    string
		cfg     config.ClassifierData
		want    string
		wantErr bool
	}{
		{name: "default static", cfg: config.ClassifierData{}, want: "static"},
		{name: "configured static", cfg: config.ClassifierData{Type: "static", Static: []float64{0.1, 0.1, 0.8}}, want: "static"},
		{name: "bad static", cfg: config.ClassifierData{Type: "static", Static: []float64{1}}, wantErr: true},
		{name: "http", cfg: config.ClassifierData{Type: "http", Endpoint: "http://localhost:8501", ModelName: "m"}, want: "http"},
		{name: "http without model", cfg: config.ClassifierData{Type: "http", Endpoint: "http://localhost:8501"}, wantErr: true},
		{name: "grpc", cfg: config.ClassifierData{Type: "grpc", Endpoint: "localhost:9000", Timeout: "5s"}, want: "grpc"},
		{name: "bad timeout", cfg: config.ClassifierData{Type: "grpc", Endpoint: "localhost:9000", Timeout: "soon"}, wantErr: true},
		{name: "unknown", cfg: config.ClassifierData{Type: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closer, err := New(tt.cfg, logger)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer closer.Close()

			var got string
			switch s.(type) {
			case StaticScorer:
				got = "static"
			case *HTTPScorer:
				got = "http"
			case *GRPCScorer:
				got = "grpc"
			}
			if got != tt.want {
				t.Errorf("scorer type = %s, want %s", got, tt.want)
			}
		})
	}
}
