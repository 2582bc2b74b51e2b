package classifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/chrissnell/motorwatch/internal/grpcutil"
	"github.com/chrissnell/motorwatch/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScoreMethod is the full gRPC method name of the scoring RPC
const ScoreMethod = "/motorwatch.scoring.v1.Scorer/Score"

// ScorerServer is the server side of the scoring RPC
type ScorerServer interface {
	Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func scoreHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScorerServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScoreMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScorerServer).Score(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ScorerServiceDesc describes the scoring service. Messages are
// google.protobuf.Struct so no generated code is needed on either side.
var ScorerServiceDesc = grpc.ServiceDesc{
	ServiceName: "motorwatch.scoring.v1.Scorer",
	HandlerType: (*ScorerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "motorwatch/scoring/v1/scorer.proto",
}

// scorerServer exposes a Scorer over gRPC
type scorerServer struct {
	scorer Scorer
}

// RegisterScorerServer serves s on r under ScoreMethod
func RegisterScorerServer(r grpc.ServiceRegistrar, s Scorer) {
	r.RegisterService(&ScorerServiceDesc, &scorerServer{scorer: s})
}

func (s *scorerServer) Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := grpcutil.DecodeTensor(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad tensor: %v", err)
	}
	d, err := s.scorer.Score(ctx, t)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "scoring failed: %v", err)
	}
	return grpcutil.EncodeDistribution(d), nil
}

// GRPCScorer calls a remote ScorerServer
type GRPCScorer struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	owned   bool
}

// NewGRPCScorer dials endpoint. caCert is "" for plaintext, "system" for
// TLS against the host roots, or the path of a PEM CA bundle.
func NewGRPCScorer(endpoint, caCert string, timeout time.Duration) (*GRPCScorer, error) {
	var opts []grpc.DialOption

	switch caCert {
	case "":
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	case "system":
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	default:
		creds, err := credentials.NewClientTLSFromFile(caCert, "")
		if err != nil {
			return nil, fmt.Errorf("could not load CA certificate %s: %w", caCert, err)
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	}

	opts = append(opts,
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(grpcutil.MaxMessageSize),
			grpc.MaxCallRecvMsgSize(grpcutil.MaxMessageSize),
		),
	)

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}

	s := NewGRPCScorerFromConn(conn, timeout)
	s.owned = true
	return s, nil
}

// NewGRPCScorerFromConn wraps an existing connection. The caller keeps
// ownership of conn.
func NewGRPCScorerFromConn(conn *grpc.ClientConn, timeout time.Duration) *GRPCScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GRPCScorer{conn: conn, timeout: timeout}
}

// Score sends the tensor and validates the reply
func (s *GRPCScorer) Score(ctx context.Context, t *types.SignalTensor) (types.Distribution, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := new(structpb.Struct)
	err := s.conn.Invoke(ctx, ScoreMethod, grpcutil.EncodeTensor(t), out,
		grpc.MaxCallSendMsgSize(grpcutil.MaxMessageSize),
		grpc.MaxCallRecvMsgSize(grpcutil.MaxMessageSize))
	if err != nil {
		return types.Distribution{}, &types.ScoringError{Cause: err}
	}

	probs, err := grpcutil.DecodeProbabilities(out)
	if err != nil {
		return types.Distribution{}, &types.ScoringError{Cause: err}
	}
	return toDistribution(probs)
}

// Close releases the connection if this scorer dialed it
func (s *GRPCScorer) Close() error {
	if s.owned && s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
