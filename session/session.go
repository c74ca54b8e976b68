// Package session runs the whole pipeline for one logical transaction:
// resolve, build, package, sign, submit.
//
// A payload rejected for a version-dependent reason is never sent
// again. Instead the session starts over from resolution, so the
// rebuilt payload pins the objects' current versions, and signs it
// anew.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/resolver"
	"github.com/blockberries/ptb/signing"
	"github.com/blockberries/ptb/submit"
	"github.com/blockberries/ptb/types"
)

// BuildFunc adds the transaction's inputs and commands to b, resolving
// object references through r. It is called once per attempt and must
// resolve every object it uses each time.
type BuildFunc func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error

// Report describes a completed Execute.
type Report struct {
	Result types.ExecutionResult
	// Attempts counts the plans built, including the last one.
	Attempts int
	// Rejected holds the digests of payloads the ledger rejected, in
	// submission order. A digest appears at most once.
	Rejected []types.Digest
}

func (r *Report) rejected(d types.Digest) bool {
	for _, x := range r.Rejected {
		if x == d {
			return true
		}
	}
	return false
}

// Session wires a resolver, a submitter and a keystore together.
type Session struct {
	resolver  *resolver.Resolver
	submitter *submit.Submitter
	keystore  ptb.Keystore
	logger    *zap.Logger

	budget      uint64
	mode        types.RequestMode
	maxAttempts int
	retryWait   time.Duration
	builderOpts []builder.Option
	packageOpts []signing.PackageOption
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithGasBudget sets the gas budget of every payload. Default 10_000_000.
func WithGasBudget(b uint64) Option {
	return func(s *Session) { s.budget = b }
}

// WithRequestMode sets the submission mode. Default WaitForLocalExecution.
func WithRequestMode(m types.RequestMode) Option {
	return func(s *Session) { s.mode = m }
}

// WithMaxAttempts bounds the number of payloads submitted. Default 3.
func WithMaxAttempts(n int) Option {
	return func(s *Session) { s.maxAttempts = n }
}

// WithRetryWait sets the initial pause before rebuilding. Later pauses
// grow exponentially. Default 100ms.
func WithRetryWait(d time.Duration) Option {
	return func(s *Session) { s.retryWait = d }
}

// WithBuilderOptions passes options to every Builder.
func WithBuilderOptions(opts ...builder.Option) Option {
	return func(s *Session) { s.builderOpts = append(s.builderOpts, opts...) }
}

// WithPackageOptions passes options to every Package call.
func WithPackageOptions(opts ...signing.PackageOption) Option {
	return func(s *Session) { s.packageOpts = append(s.packageOpts, opts...) }
}

// New creates a Session.
func New(r *resolver.Resolver, sub *submit.Submitter, ks ptb.Keystore, opts ...Option) *Session {
	s := &Session{
		resolver:    r,
		submitter:   sub,
		keystore:    ks,
		logger:      zap.NewNop(),
		budget:      10_000_000,
		mode:        types.WaitForLocalExecution,
		maxAttempts: 3,
		retryWait:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute builds and submits a transaction from sender. It returns as
// soon as a payload is answered with effects, or with the first error
// that rebuilding cannot fix. Resolution, build and signing errors are
// returned at once; so are rejections that do not depend on object
// versions, and timeouts, whose outcome must be recovered by digest.
func (s *Session) Execute(ctx context.Context, sender types.Address, build BuildFunc) (*Report, error) {
	price, err := s.submitter.ReferencePrice(ctx)
	if err != nil {
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryWait
	bo.MaxElapsedTime = 0
	bo.Reset()

	report := &Report{}
	var last *ptb.SubmissionError
	for {
		report.Attempts++
		signed, err := s.prepare(ctx, sender, price, build)
		if err != nil {
			return report, err
		}
		digest, err := signed.Digest()
		if err != nil {
			return report, fmt.Errorf("digest: %w", err)
		}
		log := s.logger.With(zap.Stringer("digest", digest), zap.Int("attempt", report.Attempts))

		if last != nil && report.rejected(digest) {
			// Fresh resolution produced the payload that was already
			// refused. Wait for the references to move instead.
			log.Debug("references unchanged since rejection")
		} else {
			res, err := s.submitter.Submit(ctx, signed, s.mode)
			if err == nil {
				report.Result = res
				log.Info("transaction complete", zap.Bool("success", res.OK()))
				return report, nil
			}
			se, ok := ptb.IsSubmission(err)
			if !ok || se.Kind != ptb.SubmissionRejected || !se.Reason.VersionDependent() {
				return report, err
			}
			report.Rejected = append(report.Rejected, digest)
			last = se
		}
		if report.Attempts >= s.maxAttempts {
			return report, fmt.Errorf("giving up after %d attempts: %w", report.Attempts, last)
		}

		wait := bo.NextBackOff()
		log.Warn("rebuilding with fresh references",
			zap.Stringer("reason", last.Reason),
			zap.String("message", last.Message),
			zap.Duration("wait", wait))
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return report, ctx.Err()
		}
	}
}

// prepare runs one pass of resolve, build, gas selection, package and
// sign.
func (s *Session) prepare(ctx context.Context, sender types.Address, price uint64, build BuildFunc) (types.SignedTransaction, error) {
	b := builder.New(s.builderOpts...)
	if err := build(ctx, s.resolver, b); err != nil {
		return types.SignedTransaction{}, err
	}
	plan, err := b.Finish()
	if err != nil {
		return types.SignedTransaction{}, err
	}
	gas, err := s.resolver.SelectGas(ctx, sender, s.budget, resolver.Exclusions(plan)...)
	if err != nil {
		return types.SignedTransaction{}, err
	}
	data, err := signing.Package(plan, sender, gas, s.budget, price, s.packageOpts...)
	if err != nil {
		return types.SignedTransaction{}, err
	}
	return signing.Sign(ctx, s.keystore, data, types.TransactionIntent())
}
