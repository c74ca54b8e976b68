// Package ptbtest provides test utilities for transaction pipelines:
// an in-memory ledger that executes programmable transactions, a
// configurable mock, a test harness, and a compliance suite for
// ptb.Ledger implementations.
package ptbtest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/signing"
	"github.com/blockberries/ptb/types"
)

// Compile-time check that Ledger satisfies ptb.Ledger.
var _ ptb.Ledger = (*Ledger)(nil)

// ErrClosed is returned by every call on a closed Ledger.
var ErrClosed = errors.New("ptbtest: ledger closed")

// Gas schedule of the in-memory ledger, in gas units multiplied by the
// transaction's gas price.
const (
	BaseComputationUnits    = 1000
	CommandComputationUnits = 100
	StorageUnitsPerObject   = 76
	RebateUnitsPerObject    = 50
)

// Ledger is an in-memory ledger. It verifies signatures, enforces
// owned object versions and shared object initial versions, assigns
// lamport versions, charges gas and records effects. Move calls are
// dispatched to handlers registered with Register.
//
// Ledger is safe for concurrent use; transactions execute one at a
// time.
type Ledger struct {
	mu       sync.Mutex
	objects  map[types.ObjectID]types.ObjectMetadata
	txs      map[types.Digest]types.ExecutionResult
	handlers map[string]MoveFunc
	price    uint64
	epoch    uint64
	nonce    uint64
	closed   bool

	deferEffects bool
	delay        time.Duration
	failures     []error
	conflicts    map[types.ObjectID]int

	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithReferencePrice sets the reference gas price. Default 1000.
func WithReferencePrice(p uint64) Option {
	return func(l *Ledger) { l.price = p }
}

// WithEpoch sets the current epoch.
func WithEpoch(e uint64) Option {
	return func(l *Ledger) { l.epoch = e }
}

// WithDeferredEffects makes WaitForEffectsCert submissions return
// without effects. The transaction still executes; its effects become
// visible through GetTransaction.
func WithDeferredEffects() Option {
	return func(l *Ledger) { l.deferEffects = true }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Ledger) { l.logger = lg }
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		objects:   make(map[types.ObjectID]types.ObjectMetadata),
		txs:       make(map[types.Digest]types.ExecutionResult),
		handlers:  make(map[string]MoveFunc),
		conflicts: make(map[types.ObjectID]int),
		price:     1000,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// --- Seeding ---

// Put stores md as is, replacing any object with the same ID.
func (l *Ledger) Put(md types.ObjectMetadata) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.objects[md.Ref.ID] = md
}

// Create adds a new object at version 1 and returns its metadata.
func (l *Ledger) Create(typ string, owner types.Owner, balance uint64) types.ObjectMetadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonce++
	id := types.ObjectID(types.DigestOf("ptbtest::genesis::", binary.BigEndian.AppendUint64(nil, l.nonce)))
	md := types.ObjectMetadata{
		Ref:     types.ObjectRef{ID: id, Version: 1, Digest: objectDigest(id, 1, types.Digest{})},
		Type:    typ,
		Owner:   owner,
		Balance: balance,
	}
	l.objects[id] = md
	return md
}

// Mint creates a gas coin of the given value owned by owner.
func (l *Ledger) Mint(owner types.Address, value uint64) types.ObjectMetadata {
	return l.Create(types.GasCoinType, types.AddressOwner(owner), value)
}

// CreateShared creates a shared object whose initial shared version is 1.
func (l *Ledger) CreateShared(typ string) types.ObjectMetadata {
	return l.Create(typ, types.SharedSince(1), 0)
}

// Touch simulates another actor mutating id: its version and digest
// advance, so every owned reference resolved earlier becomes stale. A
// shared object keeps its initial shared version.
func (l *Ledger) Touch(id types.ObjectID) (types.ObjectMetadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	md, ok := l.objects[id]
	if !ok {
		return types.ObjectMetadata{}, fmt.Errorf("touch %s: %w", id, ptb.ErrObjectNotFound)
	}
	v := md.Ref.Version + 1
	md.Ref = types.ObjectRef{ID: id, Version: v, Digest: objectDigest(id, v, types.Digest{0xFF})}
	l.objects[id] = md
	return md, nil
}

// Register installs the handler for the Move function named by target,
// "0x<package>::<module>::<function>".
func (l *Ledger) Register(pkg types.ObjectID, module, function string, fn MoveFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[target(pkg, module, function)] = fn
}

// --- Failure injection ---

// FailNextSubmits makes the next submissions return errs in order
// before the transaction is looked at.
func (l *Ledger) FailNextSubmits(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, errs...)
}

// ConflictOn makes the next n transactions that use shared object id
// fail with a shared object conflict.
func (l *Ledger) ConflictOn(id types.ObjectID, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conflicts[id] += n
}

// SetSubmitDelay delays every submission by d, honoring the caller's
// context. A context that ends during the delay aborts the submission
// before execution.
func (l *Ledger) SetSubmitDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = d
}

// SetEpoch advances the current epoch.
func (l *Ledger) SetEpoch(e uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch = e
}

// --- ptb.LedgerReader ---

// GetObject returns the live metadata of id.
func (l *Ledger) GetObject(ctx context.Context, id types.ObjectID) (types.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return types.ObjectMetadata{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return types.ObjectMetadata{}, ErrClosed
	}
	md, ok := l.objects[id]
	if !ok {
		return types.ObjectMetadata{}, fmt.Errorf("object %s: %w", id, ptb.ErrObjectNotFound)
	}
	return md, nil
}

// GetOwnedObjects lists the objects owned by addr in ID order.
func (l *Ledger) GetOwnedObjects(ctx context.Context, addr types.Address) ([]types.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	var out []types.ObjectMetadata
	for _, md := range l.objects {
		if md.Owner.Address != nil && *md.Owner.Address == addr {
			out = append(out, md)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Ref.ID[:], out[j].Ref.ID[:]) < 0 })
	return out, nil
}

// GetTransaction returns the recorded result of an executed transaction.
func (l *Ledger) GetTransaction(ctx context.Context, digest types.Digest) (types.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ExecutionResult{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return types.ExecutionResult{}, ErrClosed
	}
	res, ok := l.txs[digest]
	if !ok {
		return types.ExecutionResult{}, fmt.Errorf("transaction %s: %w", digest, ptb.ErrTransactionNotFound)
	}
	res.Confirmed = true
	return res, nil
}

// --- ptb.LedgerWriter ---

// GetReferencePrice returns the reference gas price.
func (l *Ledger) GetReferencePrice(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.price, nil
}

// SubmitTransaction validates and executes tx. Resubmitting an executed
// transaction returns its recorded result.
func (l *Ledger) SubmitTransaction(ctx context.Context, tx types.SignedTransaction, mode types.RequestMode) (types.ExecutionResult, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return types.ExecutionResult{}, ErrClosed
	}
	delay := l.delay
	var injected error
	if len(l.failures) > 0 {
		injected, l.failures = l.failures[0], l.failures[1:]
	}
	l.mu.Unlock()

	if injected != nil {
		return types.ExecutionResult{}, injected
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.ExecutionResult{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return types.ExecutionResult{}, err
	}

	digest, err := tx.Digest()
	if err != nil {
		return types.ExecutionResult{}, ptb.Rejected(digest, ptb.ReasonInvalidTransaction, err.Error())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.txs[digest]
	if !ok {
		if err := signing.Verify(tx); err != nil {
			return types.ExecutionResult{}, ptb.Rejected(digest, ptb.ReasonInvalidSignature, err.Error())
		}
		if tx.Intent != types.TransactionIntent() {
			return types.ExecutionResult{}, ptb.Rejected(digest, ptb.ReasonInvalidSignature, "payload not signed under the transaction intent")
		}
		x, err := l.prepare(tx, digest)
		if err != nil {
			l.logger.Debug("transaction rejected", zap.Stringer("digest", digest), zap.Error(err))
			return types.ExecutionResult{}, err
		}
		res = x.run()
		l.txs[digest] = res
		l.logger.Debug("transaction executed",
			zap.Stringer("digest", digest),
			zap.Bool("success", res.Effects.Status.Success))
	}

	if mode == types.WaitForEffectsCert && l.deferEffects {
		return types.ExecutionResult{Digest: digest}, nil
	}
	res.Confirmed = mode == types.WaitForLocalExecution
	return res, nil
}

// Close closes the ledger.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Transactions returns the number of executed transactions.
func (l *Ledger) Transactions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

func target(pkg types.ObjectID, module, function string) string {
	return types.ProgrammableMoveCall{Package: pkg, Module: module, Function: function}.Target()
}

func objectDigest(id types.ObjectID, v types.SequenceNumber, tx types.Digest) types.Digest {
	buf := make([]byte, 0, 72)
	buf = append(buf, id[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	buf = append(buf, tx[:]...)
	return types.DigestOf("ObjectDigest::", buf)
}
