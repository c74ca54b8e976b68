package ptbtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/builder"
	"github.com/blockberries/ptb/types"
)

// LedgerFactory returns a fresh in-memory ledger used for seeding and
// the ptb.Ledger under test, which must serve that ledger's state. The
// two may be the same value.
type LedgerFactory func(t *testing.T) (seed *Ledger, backend ptb.Ledger)

// RunLedgerSuite runs a standard compliance test suite against a
// ptb.Ledger implementation to verify it honors the collaborator
// contracts the pipeline depends on.
func RunLedgerSuite(t *testing.T, factory LedgerFactory) {
	t.Helper()

	setup := func(t *testing.T) (*Harness, ptb.Ledger) {
		seed, backend := factory(t)
		return NewHarnessWith(t, seed, backend), backend
	}
	transferPlan := func(t *testing.T, obj types.ObjectRef, to types.Address) types.ProgrammableTransaction {
		b := builder.New()
		in := b.Object(types.OwnedObject(obj))
		addr := b.Pure(builder.PureAddress(to))
		if _, err := b.TransferObjects(addr.Arg(), in.Arg()); err != nil {
			t.Fatalf("TransferObjects failed: %v", err)
		}
		plan, err := b.Finish()
		if err != nil {
			t.Fatalf("Finish failed: %v", err)
		}
		return plan
	}

	t.Run("get_object_not_found", func(t *testing.T) {
		_, backend := setup(t)
		_, err := backend.GetObject(context.Background(), types.MustObjectID("0x404"))
		if !errors.Is(err, ptb.ErrObjectNotFound) {
			t.Fatalf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("get_object_returns_seeded", func(t *testing.T) {
		h, backend := setup(t)
		want := h.Ledger.CreateShared("0x2::test::Room")
		got, err := backend.GetObject(context.Background(), want.Ref.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Ref != want.Ref || got.Type != want.Type {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		if got.Owner.Shared == nil || got.Owner.Shared.InitialSharedVersion != 1 {
			t.Fatalf("owner lost in transit: %s", got.Owner)
		}
	})

	t.Run("owned_objects_lists_gas", func(t *testing.T) {
		h, backend := setup(t)
		alice := h.Account(1)
		objs, err := backend.GetOwnedObjects(context.Background(), alice)
		if err != nil {
			t.Fatal(err)
		}
		if len(objs) != 1 || !objs[0].IsGasCoin() || objs[0].Balance != DefaultGas {
			t.Fatalf("unexpected owned objects %+v", objs)
		}
	})

	t.Run("reference_price", func(t *testing.T) {
		_, backend := setup(t)
		price, err := backend.GetReferencePrice(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if price == 0 {
			t.Fatal("reference price should be positive")
		}
	})

	t.Run("submit_executes_transfer", func(t *testing.T) {
		h, backend := setup(t)
		alice, bob := h.Account(1), h.Account(2)
		card := h.Ledger.Create("0x2::test::Card", types.AddressOwner(alice), 0)

		signed := h.Sign(alice, transferPlan(t, card.Ref, bob))
		res, err := backend.SubmitTransaction(context.Background(), signed, types.WaitForLocalExecution)
		if err != nil {
			t.Fatal(err)
		}
		if !res.OK() {
			t.Fatalf("expected success, got %+v", res.Effects.Status)
		}
		ref, ok := res.Effects.Find(card.Ref.ID)
		if !ok {
			t.Fatal("transferred object missing from effects")
		}
		if ref.Owner.Address == nil || *ref.Owner.Address != bob {
			t.Fatalf("expected owner %s, got %s", bob, ref.Owner)
		}
		if ref.Ref.Version <= card.Ref.Version {
			t.Fatalf("version did not advance: %d", ref.Ref.Version)
		}
	})

	t.Run("stale_owned_reference_rejected", func(t *testing.T) {
		h, backend := setup(t)
		alice, bob := h.Account(1), h.Account(2)
		card := h.Ledger.Create("0x2::test::Card", types.AddressOwner(alice), 0)

		signed := h.Sign(alice, transferPlan(t, card.Ref, bob))
		if _, err := h.Ledger.Touch(card.Ref.ID); err != nil {
			t.Fatal(err)
		}
		_, err := backend.SubmitTransaction(context.Background(), signed, types.WaitForLocalExecution)
		se, ok := ptb.IsSubmission(err)
		if !ok {
			t.Fatalf("expected SubmissionError, got %v", err)
		}
		if se.Kind != ptb.SubmissionRejected || se.Reason != ptb.ReasonObjectVersionMismatch {
			t.Fatalf("expected version mismatch rejection, got %v", se)
		}
	})

	t.Run("tampered_signature_rejected", func(t *testing.T) {
		h, backend := setup(t)
		alice, bob := h.Account(1), h.Account(2)
		card := h.Ledger.Create("0x2::test::Card", types.AddressOwner(alice), 0)

		signed := h.Sign(alice, transferPlan(t, card.Ref, bob))
		signed.Signatures[0].Signature[0] ^= 0xFF
		_, err := backend.SubmitTransaction(context.Background(), signed, types.WaitForLocalExecution)
		se, ok := ptb.IsSubmission(err)
		if !ok || se.Reason != ptb.ReasonInvalidSignature {
			t.Fatalf("expected invalid signature rejection, got %v", err)
		}
	})

	t.Run("resubmit_executed_is_idempotent", func(t *testing.T) {
		h, backend := setup(t)
		alice, bob := h.Account(1), h.Account(2)
		card := h.Ledger.Create("0x2::test::Card", types.AddressOwner(alice), 0)

		signed := h.Sign(alice, transferPlan(t, card.Ref, bob))
		r1, err := backend.SubmitTransaction(context.Background(), signed, types.WaitForLocalExecution)
		if err != nil {
			t.Fatal(err)
		}
		r2, err := backend.SubmitTransaction(context.Background(), signed, types.WaitForLocalExecution)
		if err != nil {
			t.Fatal(err)
		}
		if r1.Digest != r2.Digest || h.Ledger.Transactions() != 1 {
			t.Fatalf("resubmission executed twice: %s vs %s", r1.Digest, r2.Digest)
		}
	})

	t.Run("get_transaction", func(t *testing.T) {
		h, backend := setup(t)
		alice, bob := h.Account(1), h.Account(2)

		_, err := backend.GetTransaction(context.Background(), types.Digest{1})
		if !errors.Is(err, ptb.ErrTransactionNotFound) {
			t.Fatalf("expected ErrTransactionNotFound, got %v", err)
		}

		card := h.Ledger.Create("0x2::test::Card", types.AddressOwner(alice), 0)
		signed := h.Sign(alice, transferPlan(t, card.Ref, bob))
		res, err := backend.SubmitTransaction(context.Background(), signed, types.WaitForEffectsCert)
		if err != nil {
			t.Fatal(err)
		}
		got, err := backend.GetTransaction(context.Background(), res.Digest)
		if err != nil {
			t.Fatal(err)
		}
		if !got.OK() || !got.Confirmed {
			t.Fatalf("unexpected recorded result %+v", got)
		}
	})

	t.Run("concurrent_reads", func(t *testing.T) {
		h, backend := setup(t)
		alice := h.Account(1)
		card := h.Ledger.Create("0x2::test::Card", types.AddressOwner(alice), 0)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := backend.GetObject(context.Background(), card.Ref.ID); err != nil {
					t.Errorf("concurrent GetObject failed: %v", err)
				}
				if _, err := backend.GetOwnedObjects(context.Background(), alice); err != nil {
					t.Errorf("concurrent GetOwnedObjects failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})
}
