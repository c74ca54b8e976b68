package ptbgrpc

import (
	"context"
	"errors"
	"net"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compile-time interface check.
var _ LedgerServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a ptb.Ledger as a gRPC service. Domain types are
// serialized directly via cramberry.
type GRPCServer struct {
	ledger ptb.Ledger
	logger *zap.Logger
}

// ServerOption configures a GRPCServer.
type ServerOption func(*GRPCServer)

// WithServerLogger sets the logger for request failures.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *GRPCServer) { s.logger = l }
}

// NewGRPCServer creates a gRPC server wrapping the given ledger.
func NewGRPCServer(ledger ptb.Ledger, opts ...ServerOption) *GRPCServer {
	s := &GRPCServer{ledger: ledger, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the ledger service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterLedgerServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener. It blocks until the
// server stops.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// --- Reader RPCs ---

func (s *GRPCServer) GetObject(ctx context.Context, req *ObjectRequest) (*types.ObjectMetadata, error) {
	md, err := s.ledger.GetObject(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus("GetObject", err)
	}
	return &md, nil
}

func (s *GRPCServer) GetOwnedObjects(req *OwnerRequest, stream grpc.ServerStream) error {
	objs, err := s.ledger.GetOwnedObjects(stream.Context(), req.Address)
	if err != nil {
		return s.toStatus("GetOwnedObjects", err)
	}
	for i := range objs {
		if err := stream.SendMsg(&objs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *GRPCServer) GetTransaction(ctx context.Context, req *DigestRequest) (*types.ExecutionResult, error) {
	res, err := s.ledger.GetTransaction(ctx, req.Digest)
	if err != nil {
		return nil, s.toStatus("GetTransaction", err)
	}
	return &res, nil
}

// --- Writer RPCs ---

func (s *GRPCServer) GetReferencePrice(ctx context.Context, _ *PriceRequest) (*PriceResponse, error) {
	price, err := s.ledger.GetReferencePrice(ctx)
	if err != nil {
		return nil, s.toStatus("GetReferencePrice", err)
	}
	return &PriceResponse{Price: price}, nil
}

func (s *GRPCServer) SubmitTransaction(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	res, err := s.ledger.SubmitTransaction(ctx, req.Tx, req.Mode)
	if err != nil {
		if se, ok := ptb.IsSubmission(err); ok && se.Kind == ptb.SubmissionRejected {
			return &SubmitResponse{Rejection: &Rejection{Digest: se.Digest, Reason: se.Reason, Message: se.Message}}, nil
		}
		return nil, s.toStatus("SubmitTransaction", err)
	}
	return &SubmitResponse{Result: &res}, nil
}

// toStatus maps a ledger error to a gRPC status. Context errors keep
// their codes so that clients can tell a timeout from a failure.
func (s *GRPCServer) toStatus(method string, err error) error {
	switch {
	case errors.Is(err, ptb.ErrObjectNotFound), errors.Is(err, ptb.ErrTransactionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	case ptb.IsIndeterminate(err):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Warn("ledger request failed", zap.String("method", method), zap.Error(err))
	return status.Error(codes.Unavailable, err.Error())
}
