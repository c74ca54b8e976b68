package ptbtest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/resolver"
	"github.com/blockberries/ptb/session"
	"github.com/blockberries/ptb/signing"
	"github.com/blockberries/ptb/submit"
	"github.com/blockberries/ptb/types"
)

// DefaultGas is the value of the gas coin minted for every harness
// account.
const DefaultGas = 1_000_000_000

// Harness wires a keystore, an in-memory ledger and the pipeline
// together for tests.
type Harness struct {
	t        *testing.T
	Ledger   *Ledger
	Keystore *signing.MemoryKeystore
	Resolver *resolver.Resolver
	Submit   *submit.Submitter
	Session  *session.Session
}

// NewHarness creates a harness around a fresh in-memory ledger.
// Session options are applied on top of a short retry wait.
func NewHarness(t *testing.T, opts ...session.Option) *Harness {
	t.Helper()
	ledger := NewLedger()
	return NewHarnessWith(t, ledger, ledger, opts...)
}

// NewHarnessWith creates a harness that talks to backend while seeding
// objects through ledger. Use it to run the pipeline over a transport
// that fronts ledger.
func NewHarnessWith(t *testing.T, ledger *Ledger, backend ptb.Ledger, opts ...session.Option) *Harness {
	t.Helper()
	h := &Harness{
		t:        t,
		Ledger:   ledger,
		Keystore: signing.NewMemoryKeystore(),
		Resolver: resolver.New(backend),
		Submit:   submit.New(backend, submit.WithAwait(5*time.Millisecond, time.Second)),
	}
	opts = append([]session.Option{session.WithRetryWait(time.Millisecond)}, opts...)
	h.Session = session.New(h.Resolver, h.Submit, h.Keystore, opts...)
	return h
}

// Account creates a deterministic key from seed byte n and mints it a
// gas coin worth DefaultGas.
func (h *Harness) Account(n byte) types.Address {
	h.t.Helper()
	addr, err := h.Keystore.FromSeed(bytes.Repeat([]byte{n}, 32))
	if err != nil {
		h.t.Fatalf("FromSeed failed: %v", err)
	}
	h.Ledger.Mint(addr, DefaultGas)
	return addr
}

// Execute runs build through the session and fails the test on error.
func (h *Harness) Execute(sender types.Address, build session.BuildFunc) *session.Report {
	h.t.Helper()
	report, err := h.Session.Execute(context.Background(), sender, build)
	if err != nil {
		h.t.Fatalf("Execute failed: %v", err)
	}
	return report
}

// MustSucceed runs build and fails the test unless the effects record
// success.
func (h *Harness) MustSucceed(sender types.Address, build session.BuildFunc) types.ExecutionResult {
	h.t.Helper()
	report := h.Execute(sender, build)
	if !report.Result.OK() {
		h.t.Fatalf("expected success, got status %+v", report.Result.Effects.Status)
	}
	return report.Result
}

// Sign packages plan for sender with a freshly selected gas coin and
// signs it.
func (h *Harness) Sign(sender types.Address, plan types.ProgrammableTransaction) types.SignedTransaction {
	h.t.Helper()
	ctx := context.Background()
	const budget = 10_000_000
	gas, err := h.Resolver.SelectGas(ctx, sender, budget, resolver.Exclusions(plan)...)
	if err != nil {
		h.t.Fatalf("SelectGas failed: %v", err)
	}
	price, err := h.Submit.ReferencePrice(ctx)
	if err != nil {
		h.t.Fatalf("ReferencePrice failed: %v", err)
	}
	data, err := signing.Package(plan, sender, gas, budget, price)
	if err != nil {
		h.t.Fatalf("Package failed: %v", err)
	}
	signed, err := signing.Sign(ctx, h.Keystore, data, types.TransactionIntent())
	if err != nil {
		h.t.Fatalf("Sign failed: %v", err)
	}
	return signed
}

// Plan runs build against a fresh builder and returns the finished plan.
func (h *Harness) Plan(build session.BuildFunc) types.ProgrammableTransaction {
	h.t.Helper()
	b := builder.New()
	if err := build(context.Background(), h.Resolver, b); err != nil {
		h.t.Fatalf("build failed: %v", err)
	}
	plan, err := b.Finish()
	if err != nil {
		h.t.Fatalf("Finish failed: %v", err)
	}
	return plan
}

// MustObject returns the live metadata of id.
func (h *Harness) MustObject(id types.ObjectID) types.ObjectMetadata {
	h.t.Helper()
	md, err := h.Ledger.GetObject(context.Background(), id)
	if err != nil {
		h.t.Fatalf("GetObject failed: %v", err)
	}
	return md
}

// --- Helper Factories ---

// TransferBuild returns a BuildFunc that transfers obj to recipient.
func TransferBuild(obj types.ObjectID, recipient types.Address) session.BuildFunc {
	return func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error {
		arg, err := r.Owned(ctx, obj)
		if err != nil {
			return err
		}
		in := b.Object(arg)
		to := b.Pure(builder.PureAddress(recipient))
		_, err = b.TransferObjects(to.Arg(), in.Arg())
		return err
	}
}

// SplitBuild returns a BuildFunc that splits amount off the gas coin
// and sends it to recipient.
func SplitBuild(amount uint64, recipient types.Address) session.BuildFunc {
	return func(_ context.Context, _ *resolver.Resolver, b *builder.Builder) error {
		amt := b.Pure(builder.PureU64(amount))
		split, err := b.SplitCoins(types.GasCoin(), amt.Arg())
		if err != nil {
			return err
		}
		to := b.Pure(builder.PureAddress(recipient))
		_, err = b.TransferObjects(to.Arg(), split.Nested(0))
		return err
	}
}
