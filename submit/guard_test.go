package submit

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/blockberries/ptb/types"
)

func TestPayloadGuard_HappyPath(t *testing.T) {
	g := newPayloadGuard()
	d := types.Digest{1}

	// Unknown → Submitting → Accepted → Executed
	prev, ok := g.Acquire(d)
	if !ok || prev != stateUnknown {
		t.Fatalf("expected first Acquire to succeed from Unknown, got %s", prev)
	}
	g.Accept(d)
	if g.State(d) != stateAccepted {
		t.Fatalf("expected Accepted, got %s", g.State(d))
	}
	g.Execute(d)

	// An executed payload may be sent again; the ledger answers from
	// its record.
	prev, ok = g.Acquire(d)
	if !ok || prev != stateExecuted {
		t.Fatalf("expected Acquire after Executed to succeed, got %s", prev)
	}
}

func TestPayloadGuard_RejectedIsTerminal(t *testing.T) {
	g := newPayloadGuard()
	d := types.Digest{2}
	g.Acquire(d)
	g.Reject(d)

	state, ok := g.Acquire(d)
	if ok {
		t.Fatal("expected rejected payload to be refused")
	}
	if state != stateRejected {
		t.Fatalf("expected Rejected, got %s", state)
	}

	// Other payloads are unaffected.
	if _, ok := g.Acquire(types.Digest{3}); !ok {
		t.Fatal("unrelated payload refused")
	}
}

func TestPayloadGuard_IndeterminateUntilResolved(t *testing.T) {
	g := newPayloadGuard()
	d := types.Digest{4}
	g.Acquire(d)
	g.Timeout(d)

	if _, ok := g.Acquire(d); ok {
		t.Fatal("expected indeterminate payload to be refused")
	}
	g.Resolve(d, false)
	if g.State(d) != stateIndeterminate {
		t.Fatalf("not-found status must keep payload indeterminate, got %s", g.State(d))
	}
	g.Resolve(d, true)
	if g.State(d) != stateExecuted {
		t.Fatalf("expected Executed after status found it, got %s", g.State(d))
	}
}

func TestPayloadGuard_ReleaseRestoresPrevious(t *testing.T) {
	g := newPayloadGuard()
	d := types.Digest{5}
	prev, _ := g.Acquire(d)
	g.Release(d, prev)
	if g.State(d) != stateUnknown {
		t.Fatalf("expected Unknown after release, got %s", g.State(d))
	}
	if _, ok := g.Acquire(d); !ok {
		t.Fatal("expected Acquire after release to succeed")
	}
}

func TestPayloadGuard_SingleFlight(t *testing.T) {
	g := newPayloadGuard()
	d := types.Digest{6}

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.Acquire(d); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one in-flight submission, got %d", wins.Load())
	}
}

func TestPayloadState_String(t *testing.T) {
	if stateIndeterminate.String() != "Indeterminate" {
		t.Fatalf("unexpected %q", stateIndeterminate.String())
	}
	if payloadState(99).String() != "unknown(99)" {
		t.Fatalf("unexpected %q", payloadState(99).String())
	}
}
