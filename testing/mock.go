package ptbtest

import (
	"context"
	"sync/atomic"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// Compile-time check that MockLedger satisfies ptb.Ledger.
var _ ptb.Ledger = (*MockLedger)(nil)

// MockLedger is a configurable mock ledger for pipeline testing. All
// methods are configurable via function fields. Unconfigured methods
// return sensible zero-value defaults: reads report not found and
// submissions succeed with empty successful effects.
type MockLedger struct {
	// Configurable handlers. If nil, defaults are used.
	GetObjectFn         func(context.Context, types.ObjectID) (types.ObjectMetadata, error)
	GetOwnedObjectsFn   func(context.Context, types.Address) ([]types.ObjectMetadata, error)
	GetTransactionFn    func(context.Context, types.Digest) (types.ExecutionResult, error)
	SubmitTransactionFn func(context.Context, types.SignedTransaction, types.RequestMode) (types.ExecutionResult, error)
	GetReferencePriceFn func(context.Context) (uint64, error)

	// Call counters (atomic for concurrent access).
	GetObjectCalls         atomic.Int64
	GetOwnedObjectsCalls   atomic.Int64
	GetTransactionCalls    atomic.Int64
	SubmitTransactionCalls atomic.Int64
	GetReferencePriceCalls atomic.Int64
	CloseCalls             atomic.Int64
}

func (m *MockLedger) GetObject(ctx context.Context, id types.ObjectID) (types.ObjectMetadata, error) {
	m.GetObjectCalls.Add(1)
	if m.GetObjectFn != nil {
		return m.GetObjectFn(ctx, id)
	}
	return types.ObjectMetadata{}, ptb.ErrObjectNotFound
}

func (m *MockLedger) GetOwnedObjects(ctx context.Context, addr types.Address) ([]types.ObjectMetadata, error) {
	m.GetOwnedObjectsCalls.Add(1)
	if m.GetOwnedObjectsFn != nil {
		return m.GetOwnedObjectsFn(ctx, addr)
	}
	return nil, nil
}

func (m *MockLedger) GetTransaction(ctx context.Context, digest types.Digest) (types.ExecutionResult, error) {
	m.GetTransactionCalls.Add(1)
	if m.GetTransactionFn != nil {
		return m.GetTransactionFn(ctx, digest)
	}
	return types.ExecutionResult{}, ptb.ErrTransactionNotFound
}

func (m *MockLedger) SubmitTransaction(ctx context.Context, tx types.SignedTransaction, mode types.RequestMode) (types.ExecutionResult, error) {
	m.SubmitTransactionCalls.Add(1)
	if m.SubmitTransactionFn != nil {
		return m.SubmitTransactionFn(ctx, tx, mode)
	}
	digest, err := tx.Digest()
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return types.ExecutionResult{
		Digest: digest,
		Effects: &types.Effects{
			Status:            types.ExecutionStatus{Success: true},
			TransactionDigest: digest,
		},
		Confirmed: mode == types.WaitForLocalExecution,
	}, nil
}

func (m *MockLedger) GetReferencePrice(ctx context.Context) (uint64, error) {
	m.GetReferencePriceCalls.Add(1)
	if m.GetReferencePriceFn != nil {
		return m.GetReferencePriceFn(ctx)
	}
	return 1000, nil
}

func (m *MockLedger) Close() error {
	m.CloseCalls.Add(1)
	return nil
}
