// Package submit sends signed payloads to the ledger and interprets the
// outcome.
//
// A Submitter remembers, per transaction digest, what happened to every
// payload it sent. A payload the ledger rejected is never sent again:
// its pinned owned references are stale and a new payload must be built.
// A payload whose submission timed out is never sent again either; its
// fate is recovered with Status or AwaitEffects.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

const tracerName = "github.com/blockberries/ptb/submit"

// Backend is the part of a ledger connection a Submitter needs.
type Backend interface {
	ptb.LedgerReader
	ptb.LedgerWriter
}

// Submitter submits signed payloads through a Backend.
type Submitter struct {
	backend Backend
	guard   *payloadGuard
	logger  *zap.Logger
	tracer  trace.Tracer

	timeout      time.Duration
	awaitTimeout time.Duration
	pollInterval time.Duration
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// WithTracerProvider sets the provider spans are created from. The
// default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Submitter) { s.tracer = tp.Tracer(tracerName) }
}

// WithTimeout bounds a single submission. Zero leaves only the
// caller's context deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Submitter) { s.timeout = d }
}

// WithAwait configures AwaitEffects: initial poll interval and total
// time spent waiting. A value that is not positive keeps the default.
func WithAwait(interval, total time.Duration) Option {
	return func(s *Submitter) {
		if interval > 0 {
			s.pollInterval = interval
		}
		if total > 0 {
			s.awaitTimeout = total
		}
	}
}

// New creates a Submitter.
func New(backend Backend, opts ...Option) *Submitter {
	s := &Submitter{
		backend:      backend,
		guard:        newPayloadGuard(),
		logger:       zap.NewNop(),
		tracer:       otel.Tracer(tracerName),
		timeout:      30 * time.Second,
		awaitTimeout: 60 * time.Second,
		pollInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends tx and waits according to mode.
//
// With WaitForEffectsCert the call returns as soon as the ledger accepts
// the payload; the result may lack effects. With WaitForLocalExecution
// the call returns only once effects are known, polling by digest if
// the ledger answered early.
//
// Failures are *ptb.SubmissionError values:
//   - SubmissionRejected when the ledger refused the payload;
//   - SubmissionTimeout when the outcome is unknown;
//   - SubmissionDuplicate when tx was already rejected, timed out or is
//     in flight;
//   - SubmissionTransport when the request never reached the ledger.
func (s *Submitter) Submit(ctx context.Context, tx types.SignedTransaction, mode types.RequestMode) (types.ExecutionResult, error) {
	digest, err := tx.Digest()
	if err != nil {
		return types.ExecutionResult{}, ptb.NewSigningError(ptb.SigningEncoding, tx.Data.Sender, err)
	}
	ctx, span := s.tracer.Start(ctx, "ptb.submit",
		trace.WithAttributes(
			attribute.String("ptb.digest", digest.String()),
			attribute.String("ptb.mode", mode.String()),
			attribute.Int("ptb.commands", commandCount(tx.Data)),
		))
	defer span.End()

	log := s.logger.With(zap.Stringer("digest", digest), zap.Stringer("mode", mode))

	prev, ok := s.guard.Acquire(digest)
	if !ok {
		err := &ptb.SubmissionError{
			Kind:    ptb.SubmissionDuplicate,
			Digest:  digest,
			Message: "payload is " + prev.String(),
		}
		fail(span, err)
		log.Warn("refusing resubmission", zap.Stringer("state", prev))
		return types.ExecutionResult{}, err
	}

	sctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.backend.SubmitTransaction(sctx, tx, mode)
	if err != nil {
		err = s.classify(digest, prev, err)
		fail(span, err)
		se, _ := ptb.IsSubmission(err)
		switch se.Kind {
		case ptb.SubmissionRejected:
			log.Warn("transaction rejected", zap.Stringer("reason", se.Reason), zap.String("message", se.Message))
		case ptb.SubmissionTimeout:
			log.Error("submission outcome unknown", zap.Error(err))
		default:
			log.Error("submission failed", zap.Error(err))
		}
		return types.ExecutionResult{}, err
	}
	if res.Digest == (types.Digest{}) {
		res.Digest = digest
	}

	if res.Effects == nil {
		s.guard.Accept(digest)
		if mode == types.WaitForLocalExecution {
			log.Debug("accepted without effects, waiting")
			res, err = s.AwaitEffects(ctx, digest)
			if err != nil {
				s.guard.Timeout(digest)
				fail(span, err)
				return types.ExecutionResult{}, err
			}
		} else {
			log.Info("transaction accepted")
			return res, nil
		}
	}

	s.guard.Execute(digest)
	span.SetAttributes(attribute.Bool("ptb.success", res.Effects.Status.Success))
	log.Info("transaction executed",
		zap.Bool("success", res.Effects.Status.Success),
		zap.String("error", res.Effects.Status.Error),
		zap.Int("created", len(res.Effects.Created)),
		zap.Int("mutated", len(res.Effects.Mutated)),
		zap.Uint64("gas", res.Effects.GasUsed.Net()))
	return res, nil
}

// classify maps a backend failure to a SubmissionError and records the
// payload's new state.
func (s *Submitter) classify(digest types.Digest, prev payloadState, err error) error {
	if se, ok := ptb.IsSubmission(err); ok {
		out := *se
		if out.Digest == (types.Digest{}) {
			out.Digest = digest
		}
		switch out.Kind {
		case ptb.SubmissionRejected:
			s.guard.Reject(digest)
		case ptb.SubmissionTimeout:
			s.guard.Timeout(digest)
		default:
			s.guard.Release(digest, prev)
		}
		return &out
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.guard.Timeout(digest)
		return &ptb.SubmissionError{Kind: ptb.SubmissionTimeout, Digest: digest, Err: err}
	}
	s.guard.Release(digest, prev)
	return &ptb.SubmissionError{Kind: ptb.SubmissionTransport, Digest: digest, Err: err}
}

// Status looks up the outcome of a transaction by digest. This is the
// recovery path for a SubmissionTimeout. An unknown digest returns an
// error wrapping ptb.ErrTransactionNotFound.
func (s *Submitter) Status(ctx context.Context, digest types.Digest) (types.ExecutionResult, error) {
	res, err := s.backend.GetTransaction(ctx, digest)
	if err != nil {
		s.guard.Resolve(digest, false)
		return types.ExecutionResult{}, fmt.Errorf("status %s: %w", digest, err)
	}
	if res.Effects != nil {
		s.guard.Resolve(digest, true)
	}
	return res, nil
}

// AwaitEffects polls Status with exponential backoff until effects for
// digest are known, the await budget is spent, or ctx is done. Running
// out of time is a SubmissionTimeout; the payload stays indeterminate.
func (s *Submitter) AwaitEffects(ctx context.Context, digest types.Digest) (types.ExecutionResult, error) {
	ctx, span := s.tracer.Start(ctx, "ptb.await_effects",
		trace.WithAttributes(attribute.String("ptb.digest", digest.String())))
	defer span.End()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.pollInterval
	bo.MaxElapsedTime = s.awaitTimeout

	attempts := 0
	res, err := backoff.RetryWithData(func() (types.ExecutionResult, error) {
		attempts++
		res, err := s.Status(ctx, digest)
		if err != nil {
			return res, err
		}
		if res.Effects == nil {
			return res, errNoEffects
		}
		return res, nil
	}, backoff.WithContext(bo, ctx))
	span.SetAttributes(attribute.Int("ptb.attempts", attempts))
	if err != nil {
		err = &ptb.SubmissionError{Kind: ptb.SubmissionTimeout, Digest: digest, Message: "effects not observed", Err: err}
		fail(span, err)
		return types.ExecutionResult{}, err
	}
	return res, nil
}

var errNoEffects = errors.New("effects not yet available")

// ReferencePrice returns the ledger's current reference gas price.
func (s *Submitter) ReferencePrice(ctx context.Context) (uint64, error) {
	price, err := s.backend.GetReferencePrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("reference price: %w", err)
	}
	return price, nil
}

// PayloadState reports what the Submitter knows about a digest:
// Unknown, Submitting, Accepted, Executed, Rejected or Indeterminate.
func (s *Submitter) PayloadState(digest types.Digest) string {
	return s.guard.State(digest).String()
}

func commandCount(d types.TransactionData) int {
	if p := d.Programmable(); p != nil {
		return len(p.Commands)
	}
	return 0
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
