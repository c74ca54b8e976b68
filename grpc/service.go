package ptbgrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/ptb/types"

	"google.golang.org/grpc"
)

const serviceName = "github.com/blockberries/ptb.v1.LedgerService"

// LedgerServiceServer is the server-side interface for the ledger gRPC
// service.
type LedgerServiceServer interface {
	GetObject(context.Context, *ObjectRequest) (*types.ObjectMetadata, error)
	GetOwnedObjects(*OwnerRequest, grpc.ServerStream) error
	GetTransaction(context.Context, *DigestRequest) (*types.ExecutionResult, error)
	GetReferencePrice(context.Context, *PriceRequest) (*PriceResponse, error)
	SubmitTransaction(context.Context, *SubmitRequest) (*SubmitResponse, error)
}

// RegisterLedgerServiceServer registers the LedgerServiceServer on a
// gRPC server.
func RegisterLedgerServiceServer(s *grpc.Server, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerGetObject(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ObjectRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).GetObject(ctx, req)
}

func handlerGetOwnedObjects(srv any, stream grpc.ServerStream) error {
	req := new(OwnerRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(LedgerServiceServer).GetOwnedObjects(req, stream)
}

func handlerGetTransaction(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(DigestRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).GetTransaction(ctx, req)
}

func handlerGetReferencePrice(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PriceRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).GetReferencePrice(ctx, req)
}

func handlerSubmitTransaction(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SubmitRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(LedgerServiceServer).SubmitTransaction(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

var ownedObjectsStream = grpc.StreamDesc{
	StreamName:    "GetOwnedObjects",
	Handler:       handlerGetOwnedObjects,
	ServerStreams: true,
}

// serviceDesc is the manual gRPC service descriptor for the ledger.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetObject", Handler: handlerGetObject},
		{MethodName: "GetTransaction", Handler: handlerGetTransaction},
		{MethodName: "GetReferencePrice", Handler: handlerGetReferencePrice},
		{MethodName: "SubmitTransaction", Handler: handlerSubmitTransaction},
	},
	Streams:  []grpc.StreamDesc{ownedObjectsStream},
	Metadata: "github.com/blockberries/ptb/v1/ledger.cram",
}
