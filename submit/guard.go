package submit

import (
	"fmt"
	"sync"

	"github.com/blockberries/ptb/types"
)

// payloadState is a state in the per-payload submission state machine.
type payloadState uint32

const (
	// stateUnknown: never submitted through this guard.
	stateUnknown payloadState = iota
	// stateSubmitting: a submission is in flight. No other submission
	// of the same payload is allowed until it returns.
	stateSubmitting
	// stateAccepted: the ledger accepted the payload for processing
	// but effects have not been observed yet.
	stateAccepted
	// stateExecuted: effects were observed. Resubmission is harmless
	// and answered from the ledger.
	stateExecuted
	// stateRejected: the ledger refused the payload. Terminal; a new
	// payload must be built from fresh references.
	stateRejected
	// stateIndeterminate: the submission timed out. The payload may or
	// may not have been executed; only a status query may resolve it.
	stateIndeterminate
)

func (s payloadState) String() string {
	switch s {
	case stateUnknown:
		return "Unknown"
	case stateSubmitting:
		return "Submitting"
	case stateAccepted:
		return "Accepted"
	case stateExecuted:
		return "Executed"
	case stateRejected:
		return "Rejected"
	case stateIndeterminate:
		return "Indeterminate"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// payloadGuard enforces that a signed payload is never resubmitted after
// a rejection or while its outcome is unknown.
type payloadGuard struct {
	mu     sync.Mutex
	states map[types.Digest]payloadState
}

// newPayloadGuard creates an empty guard.
func newPayloadGuard() *payloadGuard {
	return &payloadGuard{states: make(map[types.Digest]payloadState)}
}

// State returns the state of the payload with the given digest.
func (g *payloadGuard) State(d types.Digest) payloadState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[d]
}

// Acquire transitions a payload to Submitting and returns the state it
// left. It fails, returning the blocking state, when the payload is in
// flight, rejected or indeterminate.
func (g *payloadGuard) Acquire(d types.Digest) (payloadState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.states[d]
	switch prev {
	case stateSubmitting, stateRejected, stateIndeterminate:
		return prev, false
	}
	g.states[d] = stateSubmitting
	return prev, true
}

// Accept transitions Submitting to Accepted.
func (g *payloadGuard) Accept(d types.Digest) { g.set(d, stateAccepted) }

// Execute records observed effects. Reachable from Submitting,
// Accepted and Indeterminate.
func (g *payloadGuard) Execute(d types.Digest) { g.set(d, stateExecuted) }

// Reject transitions Submitting to Rejected.
func (g *payloadGuard) Reject(d types.Digest) { g.set(d, stateRejected) }

// Timeout transitions Submitting to Indeterminate.
func (g *payloadGuard) Timeout(d types.Digest) { g.set(d, stateIndeterminate) }

// Release rolls Submitting back to its previous state when the request
// never reached the ledger.
func (g *payloadGuard) Release(d types.Digest, prev payloadState) { g.set(d, prev) }

// Resolve records the outcome of a status query on an indeterminate
// payload: executed when the ledger knows it, otherwise it stays
// indeterminate.
func (g *payloadGuard) Resolve(d types.Digest, found bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if found {
		g.states[d] = stateExecuted
	}
}

func (g *payloadGuard) set(d types.Digest, s payloadState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s == stateUnknown {
		delete(g.states, d)
		return
	}
	g.states[d] = s
}
