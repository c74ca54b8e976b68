package ptbgrpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compile-time interface check.
var _ ptb.Ledger = (*Client)(nil)

// Client implements ptb.Ledger for a remote ledger over gRPC using
// cramberry serialization.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote ledger.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("ptb client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// --- ptb.LedgerReader ---

func (c *Client) GetObject(ctx context.Context, id types.ObjectID) (types.ObjectMetadata, error) {
	resp := new(types.ObjectMetadata)
	if err := c.cc.Invoke(ctx, fullMethod("GetObject"), &ObjectRequest{ID: id}, resp); err != nil {
		return types.ObjectMetadata{}, fromStatus(err, ptb.ErrObjectNotFound)
	}
	return *resp, nil
}

func (c *Client) GetOwnedObjects(ctx context.Context, addr types.Address) ([]types.ObjectMetadata, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.cc.NewStream(ctx, &ownedObjectsStream, fullMethod("GetOwnedObjects"))
	if err != nil {
		return nil, fromStatus(err, nil)
	}
	if err := stream.SendMsg(&OwnerRequest{Address: addr}); err != nil {
		return nil, fromStatus(err, nil)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fromStatus(err, nil)
	}

	var out []types.ObjectMetadata
	for {
		md := new(types.ObjectMetadata)
		if err := stream.RecvMsg(md); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fromStatus(err, nil)
		}
		out = append(out, *md)
	}
}

func (c *Client) GetTransaction(ctx context.Context, digest types.Digest) (types.ExecutionResult, error) {
	resp := new(types.ExecutionResult)
	if err := c.cc.Invoke(ctx, fullMethod("GetTransaction"), &DigestRequest{Digest: digest}, resp); err != nil {
		return types.ExecutionResult{}, fromStatus(err, ptb.ErrTransactionNotFound)
	}
	return *resp, nil
}

// --- ptb.LedgerWriter ---

func (c *Client) GetReferencePrice(ctx context.Context) (uint64, error) {
	resp := new(PriceResponse)
	if err := c.cc.Invoke(ctx, fullMethod("GetReferencePrice"), &PriceRequest{}, resp); err != nil {
		return 0, fromStatus(err, nil)
	}
	return resp.Price, nil
}

func (c *Client) SubmitTransaction(ctx context.Context, tx types.SignedTransaction, mode types.RequestMode) (types.ExecutionResult, error) {
	resp := new(SubmitResponse)
	if err := c.cc.Invoke(ctx, fullMethod("SubmitTransaction"), &SubmitRequest{Tx: tx, Mode: mode}, resp); err != nil {
		return types.ExecutionResult{}, fromStatus(err, nil)
	}
	switch {
	case resp.Rejection != nil:
		return types.ExecutionResult{}, resp.Rejection.err()
	case resp.Result != nil:
		return *resp.Result, nil
	}
	return types.ExecutionResult{}, errors.New("ptb client: empty submit response")
}

// fromStatus turns a gRPC status back into the errors the pipeline
// classifies on. notFound is the sentinel for codes.NotFound, if any.
func fromStatus(err error, notFound error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		if notFound != nil {
			return fmt.Errorf("%s: %w", st.Message(), notFound)
		}
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	}
	return err
}
