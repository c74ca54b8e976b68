package ptbgrpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/builder"
	ptbgrpc "github.com/blockberries/ptb/grpc"
	"github.com/blockberries/ptb/resolver"
	"github.com/blockberries/ptb/submit"
	ptbtest "github.com/blockberries/ptb/testing"
	"github.com/blockberries/ptb/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// startServer starts a gRPC server on a random port and returns
// the listener address and a cleanup function.
func startServer(t *testing.T, gs *ptbgrpc.GRPCServer) (string, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := grpc.NewServer()
	gs.Register(s)

	go func() {
		// Serve returns once GracefulStop is called.
		_ = s.Serve(lis)
	}()

	return lis.Addr().String(), func() {
		s.GracefulStop()
	}
}

func dial(t *testing.T, addr string) *ptbgrpc.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := ptbgrpc.Dial(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return client
}

// remote serves a fresh in-memory ledger over gRPC and returns it with
// a connected client.
func remote(t *testing.T) (*ptbtest.Ledger, *ptbgrpc.Client) {
	t.Helper()
	seed := ptbtest.NewLedger()
	addr, cleanup := startServer(t, ptbgrpc.NewGRPCServer(seed))
	client := dial(t, addr)
	t.Cleanup(func() {
		client.Close()
		cleanup()
	})
	return seed, client
}

func TestGRPC_LedgerCompliance(t *testing.T) {
	ptbtest.RunLedgerSuite(t, func(t *testing.T) (*ptbtest.Ledger, ptb.Ledger) {
		return remote(t)
	})
}

func TestGRPC_TransactionNotFound(t *testing.T) {
	_, client := remote(t)
	_, err := client.GetTransaction(context.Background(), types.Digest{0x42})
	if !errors.Is(err, ptb.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestGRPC_OwnedObjectsStream(t *testing.T) {
	seed, client := remote(t)
	owner := types.MustAddress("0xa11ce")
	for i := 0; i < 5; i++ {
		seed.Mint(owner, uint64(i+1)*100)
	}
	objs, err := client.GetOwnedObjects(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetOwnedObjects: %v", err)
	}
	if len(objs) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(objs))
	}

	none, err := client.GetOwnedObjects(context.Background(), types.MustAddress("0xb0b"))
	if err != nil {
		t.Fatalf("GetOwnedObjects: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no objects, got %d", len(none))
	}
}

// TestGRPC_RejectionReason verifies that the reason code of a refused
// transaction survives the transport.
func TestGRPC_RejectionReason(t *testing.T) {
	seed, client := remote(t)
	h := ptbtest.NewHarnessWith(t, seed, client)
	alice, bob := h.Account(1), h.Account(2)
	card := seed.Create("0x2::test::Card", types.AddressOwner(alice), 0)

	b := builder.New()
	in := b.Object(types.OwnedObject(card.Ref))
	to := b.Pure(builder.PureAddress(bob))
	if _, err := b.TransferObjects(to.Arg(), in.Arg()); err != nil {
		t.Fatal(err)
	}
	plan, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	signed := h.Sign(alice, plan)
	if _, err := seed.Touch(card.Ref.ID); err != nil {
		t.Fatal(err)
	}

	_, err = client.SubmitTransaction(context.Background(), signed, types.WaitForLocalExecution)
	se, ok := ptb.IsSubmission(err)
	if !ok {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if se.Kind != ptb.SubmissionRejected || se.Reason != ptb.ReasonObjectVersionMismatch {
		t.Fatalf("unexpected rejection %v", se)
	}
	digest, _ := signed.Digest()
	if se.Digest != digest {
		t.Fatalf("expected digest %s, got %s", digest, se.Digest)
	}
}

// TestGRPC_DeadlineIsIndeterminate checks that a client-side deadline
// is reported as a timeout, not as a transport failure.
func TestGRPC_DeadlineIsIndeterminate(t *testing.T) {
	seed, client := remote(t)
	h := ptbtest.NewHarnessWith(t, seed, client)
	alice := h.Account(1)
	seed.SetSubmitDelay(time.Second)

	signed := h.Sign(alice, h.Plan(ptbtest.SplitBuild(10, alice)))

	sub := submit.New(client, submit.WithTimeout(50*time.Millisecond))
	_, err := sub.Submit(context.Background(), signed, types.WaitForLocalExecution)
	if !ptb.IsIndeterminate(err) {
		t.Fatalf("expected indeterminate outcome, got %v", err)
	}
}

// TestGRPC_SessionRebuild runs the rebuild-on-stale-version scenario
// end to end over the transport.
func TestGRPC_SessionRebuild(t *testing.T) {
	seed, client := remote(t)
	h := ptbtest.NewHarnessWith(t, seed, client)
	alice, bob := h.Account(1), h.Account(2)
	card := seed.Create("0x2::test::Card", types.AddressOwner(alice), 0)

	first := true
	report := h.Execute(alice, func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error {
		if err := ptbtest.TransferBuild(card.Ref.ID, bob)(ctx, r, b); err != nil {
			return err
		}
		if first {
			first = false
			_, err := seed.Touch(card.Ref.ID)
			return err
		}
		return nil
	})
	if report.Attempts != 2 || len(report.Rejected) != 1 {
		t.Fatalf("expected one rebuild, got %d attempts and %d rejections", report.Attempts, len(report.Rejected))
	}
	if !report.Result.OK() {
		t.Fatalf("expected success, got %+v", report.Result.Effects.Status)
	}
	if got := h.MustObject(card.Ref.ID).Owner; got.Address == nil || *got.Address != bob {
		t.Fatalf("card not transferred: owner %s", got)
	}
}

// TestGRPC_EmptyPlan submits a plan with no inputs and no commands. The
// server decodes the payload and must verify the same signing message.
func TestGRPC_EmptyPlan(t *testing.T) {
	seed, client := remote(t)
	h := ptbtest.NewHarnessWith(t, seed, client)
	alice := h.Account(1)

	res := h.MustSucceed(alice, func(context.Context, *resolver.Resolver, *builder.Builder) error {
		return nil
	})
	if res.Effects.GasUsed.ComputationCost == 0 {
		t.Fatalf("empty plan was not charged: %+v", res.Effects.GasUsed)
	}
}

// TestGRPC_FailureAtFirstCommand checks that a failure attributed to
// command 0 keeps its index across the transport.
func TestGRPC_FailureAtFirstCommand(t *testing.T) {
	seed, client := remote(t)
	h := ptbtest.NewHarnessWith(t, seed, client)
	alice := h.Account(1)
	card := seed.Create("0x2::test::Card", types.AddressOwner(alice), 0)

	report := h.Execute(alice, func(ctx context.Context, r *resolver.Resolver, b *builder.Builder) error {
		arg, err := r.Owned(ctx, card.Ref.ID)
		if err != nil {
			return err
		}
		_, err = b.MoveCall(types.MustObjectID("0xdead"), "missing", "nothing", nil, b.Object(arg).Arg())
		return err
	})
	if report.Result.OK() {
		t.Fatal("expected the call to fail")
	}
	cmd, ok := report.Result.Effects.Status.FailedCommand()
	if !ok || cmd != 0 {
		t.Fatalf("failing command lost over the transport: %d, %v", cmd, ok)
	}
}
