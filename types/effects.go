package types

// RequestMode selects how long a submission waits.
type RequestMode uint8

const (
	// WaitForEffectsCert returns once the network has certified the
	// transaction's effects, without waiting for local execution.
	WaitForEffectsCert RequestMode = 0
	// WaitForLocalExecution blocks until the effects have been applied
	// by the node serving the request and are observable by reads.
	WaitForLocalExecution RequestMode = 1
)

func (m RequestMode) String() string {
	switch m {
	case WaitForEffectsCert:
		return "WaitForEffectsCert"
	case WaitForLocalExecution:
		return "WaitForLocalExecution"
	}
	return "unknown"
}

// ExecutionStatus is the success or failure of an executed transaction.
type ExecutionStatus struct {
	Success bool `cramberry:"1"`
	// Failure reason. Empty on success.
	Error string `cramberry:"2"`
	// Attributed is set when Command names the failing command.
	Attributed bool   `cramberry:"3"`
	Command    uint32 `cramberry:"4"`
}

// FailedAt is the status of a transaction whose command cmd failed.
func FailedAt(cmd uint32, reason string) ExecutionStatus {
	return ExecutionStatus{Error: reason, Attributed: true, Command: cmd}
}

// FailedCommand returns the index of the failing command, if known.
func (s ExecutionStatus) FailedCommand() (uint32, bool) {
	return s.Command, s.Attributed
}

// OwnedObjectRef is an object reference together with its new owner.
type OwnedObjectRef struct {
	Ref   ObjectRef `cramberry:"1"`
	Owner Owner     `cramberry:"2"`
}

// GasCostSummary breaks down what a transaction was charged.
type GasCostSummary struct {
	ComputationCost uint64 `cramberry:"1"`
	StorageCost     uint64 `cramberry:"2"`
	StorageRebate   uint64 `cramberry:"3"`
}

// Net returns the total charge after rebates, floored at zero.
func (g GasCostSummary) Net() uint64 {
	total := g.ComputationCost + g.StorageCost
	if g.StorageRebate >= total {
		return 0
	}
	return total - g.StorageRebate
}

// Effects summarizes what a transaction did to ledger state.
type Effects struct {
	Status            ExecutionStatus  `cramberry:"1"`
	TransactionDigest Digest           `cramberry:"2"`
	Created           []OwnedObjectRef `cramberry:"3"`
	Mutated           []OwnedObjectRef `cramberry:"4"`
	Deleted           []ObjectRef      `cramberry:"5"`
	GasObject         OwnedObjectRef   `cramberry:"6"`
	GasUsed           GasCostSummary   `cramberry:"7"`
	Epoch             uint64           `cramberry:"8"`
}

// Event is emitted by a Move call during execution.
type Event struct {
	PackageID ObjectID `cramberry:"1"`
	Module    string   `cramberry:"2"`
	Sender    Address  `cramberry:"3"`
	Type      string   `cramberry:"4"`
	Contents  []byte   `cramberry:"5"`
}

// ExecutionResult is the outcome returned for a submitted transaction.
type ExecutionResult struct {
	Digest Digest `cramberry:"1"`
	// Nil when the submission returned before effects were known.
	Effects *Effects `cramberry:"2"`
	Events  []Event  `cramberry:"3"`
	// Confirmed is true when the effects were observed locally.
	Confirmed bool `cramberry:"4"`
}

// OK reports whether effects are present and record success.
func (r ExecutionResult) OK() bool {
	return r.Effects != nil && r.Effects.Status.Success
}

// Find returns the reference to id among created or mutated objects.
func (e *Effects) Find(id ObjectID) (OwnedObjectRef, bool) {
	if e == nil {
		return OwnedObjectRef{}, false
	}
	for _, lists := range [][]OwnedObjectRef{e.Created, e.Mutated} {
		for _, r := range lists {
			if r.Ref.ID == id {
				return r, true
			}
		}
	}
	return OwnedObjectRef{}, false
}
