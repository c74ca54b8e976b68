// Package resolver turns object identifiers into input references by
// reading their current metadata from the ledger.
//
// Every read is point in time: an owned reference is only valid until
// another transaction mutates the object, so references must be
// resolved immediately before a plan is built. The resolver does not
// retry; retry policy belongs to the caller.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// Resolver reads object metadata through a LedgerReader.
type Resolver struct {
	reader      ptb.LedgerReader
	logger      *zap.Logger
	concurrency int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithConcurrency bounds the number of reads ResolveAll issues at once.
// Zero or negative means unbounded.
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.concurrency = n }
}

// New creates a Resolver reading from reader.
func New(reader ptb.LedgerReader, opts ...Option) *Resolver {
	r := &Resolver{reader: reader, logger: zap.NewNop(), concurrency: 8}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metadata returns the current metadata of id.
func (r *Resolver) Metadata(ctx context.Context, id types.ObjectID) (types.ObjectMetadata, error) {
	md, err := r.reader.GetObject(ctx, id)
	if err != nil {
		kind := ptb.ResolutionUnreadable
		if errors.Is(err, ptb.ErrObjectNotFound) {
			kind = ptb.ResolutionNotFound
		}
		r.logger.Debug("object read failed",
			zap.Stringer("id", id),
			zap.Stringer("kind", kind),
			zap.Error(err))
		return types.ObjectMetadata{}, ptb.NewResolutionError(kind, id, err)
	}
	return md, nil
}

// Owned resolves id as an owned or immutable object pinned at its
// current version and digest.
func (r *Resolver) Owned(ctx context.Context, id types.ObjectID) (types.ObjectArg, error) {
	md, err := r.Metadata(ctx, id)
	if err != nil {
		return types.ObjectArg{}, err
	}
	if md.Owner.Shared != nil {
		return types.ObjectArg{}, unexpected(id, "object is shared since version %d", md.Owner.Shared.InitialSharedVersion)
	}
	r.logger.Debug("resolved owned object", zap.Stringer("ref", md.Ref))
	return types.OwnedObject(md.Ref), nil
}

// Shared resolves id as a shared object. The reference carries the
// version at which the object became shared, not its live version; the
// ledger picks the live version when it orders the transaction.
func (r *Resolver) Shared(ctx context.Context, id types.ObjectID, mutable bool) (types.ObjectArg, error) {
	md, err := r.Metadata(ctx, id)
	if err != nil {
		return types.ObjectArg{}, err
	}
	if md.Owner.Shared == nil {
		return types.ObjectArg{}, unexpected(id, "object is not shared, owner is %s", md.Owner)
	}
	initial := md.Owner.Shared.InitialSharedVersion
	r.logger.Debug("resolved shared object",
		zap.Stringer("id", id),
		zap.Uint64("initial_shared_version", uint64(initial)),
		zap.Bool("mutable", mutable))
	return types.SharedObject(id, initial, mutable), nil
}

// Receiving resolves id as an object sent to another object's address.
func (r *Resolver) Receiving(ctx context.Context, id types.ObjectID) (types.ObjectArg, error) {
	md, err := r.Metadata(ctx, id)
	if err != nil {
		return types.ObjectArg{}, err
	}
	if md.Owner.Object == nil && md.Owner.Address == nil {
		return types.ObjectArg{}, unexpected(id, "object cannot be received, owner is %s", md.Owner)
	}
	return types.ReceivingObject(md.Ref), nil
}

// Resolve picks the reference form from the object's current owner:
// shared objects become shared references with the given mutability,
// everything else is pinned as owned.
func (r *Resolver) Resolve(ctx context.Context, id types.ObjectID, mutable bool) (types.ObjectArg, error) {
	md, err := r.Metadata(ctx, id)
	if err != nil {
		return types.ObjectArg{}, err
	}
	if md.Owner.Shared != nil {
		return types.SharedObject(id, md.Owner.Shared.InitialSharedVersion, mutable), nil
	}
	return types.OwnedObject(md.Ref), nil
}

// Mode selects how a Request is resolved.
type Mode uint8

const (
	// Auto resolves by ownership, like Resolve.
	Auto Mode = iota
	// Owned requires an owned or immutable object.
	Owned
	// Shared requires a shared object.
	Shared
)

// Request is one entry of a ResolveAll batch.
type Request struct {
	ID      types.ObjectID
	Mode    Mode
	Mutable bool
}

// ResolveAll resolves the requests concurrently. Results are returned
// in request order. The first failure cancels the remaining reads and
// is returned alone.
func (r *Resolver) ResolveAll(ctx context.Context, reqs ...Request) ([]types.ObjectArg, error) {
	out := make([]types.ObjectArg, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			var (
				arg types.ObjectArg
				err error
			)
			switch req.Mode {
			case Owned:
				arg, err = r.Owned(ctx, req.ID)
			case Shared:
				arg, err = r.Shared(ctx, req.ID, req.Mutable)
			default:
				arg, err = r.Resolve(ctx, req.ID, req.Mutable)
			}
			if err != nil {
				return err
			}
			out[i] = arg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func unexpected(id types.ObjectID, format string, args ...any) *ptb.ResolutionError {
	e := ptb.NewResolutionError(ptb.ResolutionUnexpected, id, nil)
	e.Detail = fmt.Sprintf(format, args...)
	return e
}
