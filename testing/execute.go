package ptbtest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

const coinTypePrefix = "0x2::coin::Coin<"

// execution is one transaction being applied. All writes go to working
// copies and reach the ledger only in commit. Callers hold l.mu.
type execution struct {
	l      *Ledger
	digest types.Digest
	data   types.TransactionData
	plan   *types.ProgrammableTransaction

	lamport   types.SequenceNumber
	mutable   []types.ObjectID  // inputs whose version advances, in input order
	gas       types.ObjectID
	gasTotal  uint64
	gasBudget uint64

	working map[types.ObjectID]*types.ObjectMetadata
	created []types.ObjectID
	deleted []types.ObjectID
	gone    map[types.ObjectID]bool
	events  []types.Event
	results [][]Value
	counter uint64
}

// prepare checks tx against ledger state. Every failure here is a
// rejection; nothing is charged and no version advances.
func (l *Ledger) prepare(tx types.SignedTransaction, digest types.Digest) (*execution, error) {
	data := tx.Data
	reject := func(reason ptb.RejectReason, format string, args ...any) (*execution, error) {
		return nil, ptb.Rejected(digest, reason, fmt.Sprintf(format, args...))
	}

	plan := data.Programmable()
	if plan == nil {
		return reject(ptb.ReasonInvalidTransaction, "not a programmable transaction")
	}
	if data.Expiration.Expired(l.epoch) {
		return reject(ptb.ReasonInvalidTransaction, "expired at epoch %d, current epoch %d", data.Expiration.Epoch, l.epoch)
	}
	if data.Gas.Price < l.price {
		return reject(ptb.ReasonInvalidTransaction, "gas price %d below reference price %d", data.Gas.Price, l.price)
	}
	if len(data.Gas.Payment) == 0 || data.Gas.Budget == 0 {
		return reject(ptb.ReasonInsufficientGas, "no gas payment or zero budget")
	}
	if err := checkStructure(plan); err != nil {
		return reject(ptb.ReasonInvalidTransaction, "%v", err)
	}

	x := &execution{
		l:         l,
		digest:    digest,
		data:      data,
		plan:      plan,
		gas:       data.Gas.Payment[0].ID,
		gasBudget: data.Gas.Budget,
	}
	var lamport types.SequenceNumber
	bump := func(v types.SequenceNumber) {
		if v > lamport {
			lamport = v
		}
	}

	gasIDs := make(map[types.ObjectID]bool, len(data.Gas.Payment))
	for _, ref := range data.Gas.Payment {
		md, ok := l.objects[ref.ID]
		switch {
		case !ok:
			return reject(ptb.ReasonObjectNotFound, "gas coin %s", ref.ID)
		case md.Ref != ref:
			return reject(ptb.ReasonObjectVersionMismatch, "gas coin %s at version %d, latest %d", ref.ID, ref.Version, md.Ref.Version)
		case !md.IsGasCoin():
			return reject(ptb.ReasonInvalidTransaction, "gas object %s has type %s", ref.ID, md.Type)
		case md.Owner.Address == nil || *md.Owner.Address != data.Gas.Owner:
			return reject(ptb.ReasonInvalidTransaction, "gas coin %s not owned by %s", ref.ID, data.Gas.Owner)
		case gasIDs[ref.ID]:
			return reject(ptb.ReasonInvalidTransaction, "gas coin %s listed twice", ref.ID)
		}
		gasIDs[ref.ID] = true
		x.gasTotal += md.Balance
		bump(md.Ref.Version)
	}
	if x.gasTotal < data.Gas.Budget {
		return reject(ptb.ReasonInsufficientGas, "gas coins hold %d, budget is %d", x.gasTotal, data.Gas.Budget)
	}

	seen := make(map[types.ObjectID]bool)
	for i, in := range plan.Inputs {
		if in.Object == nil {
			continue
		}
		arg := *in.Object
		id := arg.ID()
		if gasIDs[id] {
			return reject(ptb.ReasonInvalidTransaction, "input %d: gas coin %s used as input", i, id)
		}
		md, ok := l.objects[id]
		if !ok {
			return reject(ptb.ReasonObjectNotFound, "input %d: %s", i, id)
		}
		mutable := false
		switch {
		case arg.ImmOrOwned != nil:
			ref := *arg.ImmOrOwned
			if md.Owner.Shared != nil {
				return reject(ptb.ReasonInvalidTransaction, "input %d: %s is shared", i, id)
			}
			if md.Ref != ref {
				return reject(ptb.ReasonObjectVersionMismatch, "input %d: %s at version %d, latest %d", i, id, ref.Version, md.Ref.Version)
			}
			switch {
			case md.Owner.Immutable:
			case md.Owner.Address != nil && *md.Owner.Address == data.Sender:
				mutable = true
			default:
				return reject(ptb.ReasonInvalidTransaction, "input %d: %s is owned by %s", i, id, md.Owner)
			}
			bump(ref.Version)
		case arg.Shared != nil:
			if md.Owner.Shared == nil {
				return reject(ptb.ReasonInvalidTransaction, "input %d: %s is not shared", i, id)
			}
			if md.Owner.Shared.InitialSharedVersion != arg.Shared.InitialSharedVersion {
				return reject(ptb.ReasonSharedObjectConflict, "input %d: %s shared at version %d, not %d",
					i, id, md.Owner.Shared.InitialSharedVersion, arg.Shared.InitialSharedVersion)
			}
			if l.conflicts[id] > 0 {
				l.conflicts[id]--
				return reject(ptb.ReasonSharedObjectConflict, "input %d: %s is locked by a concurrent transaction", i, id)
			}
			mutable = arg.Shared.Mutable
			bump(md.Ref.Version)
		case arg.Receiving != nil:
			if md.Ref != *arg.Receiving {
				return reject(ptb.ReasonObjectVersionMismatch, "input %d: %s at version %d, latest %d", i, id, arg.Receiving.Version, md.Ref.Version)
			}
			if md.Owner.Object == nil && md.Owner.Address == nil {
				return reject(ptb.ReasonInvalidTransaction, "input %d: %s cannot be received", i, id)
			}
			mutable = true
			bump(md.Ref.Version)
		}
		if mutable && !seen[id] {
			seen[id] = true
			x.mutable = append(x.mutable, id)
		}
	}
	x.lamport = lamport + 1
	return x, nil
}

// checkStructure repeats the builder's bounds checks; the ledger cannot
// assume a payload came from a Builder.
func checkStructure(plan *types.ProgrammableTransaction) error {
	for i, in := range plan.Inputs {
		if (in.Pure == nil) == (in.Object == nil) || (in.Object != nil && !in.Object.Valid()) {
			return fmt.Errorf("input %d is malformed", i)
		}
	}
	for i, cmd := range plan.Commands {
		if !cmd.Valid() {
			return fmt.Errorf("command %d is malformed", i)
		}
		for _, a := range cmd.Arguments() {
			switch a.Kind {
			case types.ArgGasCoin:
			case types.ArgInput:
				if int(a.Index) >= len(plan.Inputs) {
					return fmt.Errorf("command %d: %s out of range", i, a)
				}
			case types.ArgResult, types.ArgNestedResult:
				if int(a.Index) >= i {
					return fmt.Errorf("command %d: %s is not a prior command", i, a)
				}
			default:
				return fmt.Errorf("command %d: unknown argument kind %d", i, a.Kind)
			}
		}
	}
	return nil
}

// run executes the commands and commits the outcome. A failing command
// reverts every change except the gas charge and the version bump of
// mutable inputs.
func (x *execution) run() types.ExecutionResult {
	x.reset()
	status := types.ExecutionStatus{Success: true}
	for i, cmd := range x.plan.Commands {
		vals, err := x.exec(cmd)
		if err != nil {
			status = types.FailedAt(uint32(i), err.Error())
			break
		}
		x.results = append(x.results, vals)
	}

	price := x.data.Gas.Price
	computation := price * (BaseComputationUnits + CommandComputationUnits*uint64(len(x.plan.Commands)))
	costs := func() types.GasCostSummary {
		return types.GasCostSummary{
			ComputationCost: computation,
			StorageCost:     price * StorageUnitsPerObject * uint64(len(x.created)+len(x.mutable)+1),
			StorageRebate:   price * RebateUnitsPerObject * uint64(len(x.deleted)),
		}
	}
	if status.Success {
		if c := costs(); c.ComputationCost+c.StorageCost > x.gasBudget {
			status = types.ExecutionStatus{Error: fmt.Sprintf("InsufficientGas: cost %d exceeds budget %d", c.ComputationCost+c.StorageCost, x.gasBudget)}
		}
	}
	if !status.Success {
		x.reset()
	}

	cost := costs()
	charge := min(cost.Net(), x.gasBudget)
	x.working[x.gas].Balance += x.gasBudget - charge

	return x.commit(status, cost)
}

// reset discards every change and smashes the gas coins into the first
// one, holding back the budget.
func (x *execution) reset() {
	x.working = make(map[types.ObjectID]*types.ObjectMetadata)
	x.created, x.deleted, x.events, x.results = nil, nil, nil, nil
	x.gone = make(map[types.ObjectID]bool)
	x.counter = 0
	for _, id := range x.mutable {
		x.obj(id)
	}
	gas, _ := x.obj(x.gas)
	gas.Balance = x.gasTotal - x.gasBudget
	for _, ref := range x.data.Gas.Payment[1:] {
		x.delete(ref.ID)
	}
}

func (x *execution) commit(status types.ExecutionStatus, cost types.GasCostSummary) types.ExecutionResult {
	l := x.l
	fx := &types.Effects{
		Status:            status,
		TransactionDigest: x.digest,
		GasUsed:           cost,
		Epoch:             l.epoch,
	}
	stamp := func(id types.ObjectID) types.OwnedObjectRef {
		md := *x.working[id]
		md.Ref = types.ObjectRef{ID: id, Version: x.lamport, Digest: objectDigest(id, x.lamport, x.digest)}
		md.PreviousTransaction = x.digest
		l.objects[id] = md
		return types.OwnedObjectRef{Ref: md.Ref, Owner: md.Owner}
	}

	isNew := make(map[types.ObjectID]bool, len(x.created))
	for _, id := range x.created {
		isNew[id] = true
		if !x.gone[id] {
			fx.Created = append(fx.Created, stamp(id))
		}
	}
	for _, id := range x.deleted {
		if isNew[id] {
			continue
		}
		delete(l.objects, id)
		fx.Deleted = append(fx.Deleted, types.ObjectRef{ID: id, Version: x.lamport})
	}
	done := map[types.ObjectID]bool{x.gas: true}
	fx.GasObject = stamp(x.gas)
	order := append(append([]types.ObjectID(nil), x.mutable...), x.touched()...)
	for _, id := range order {
		if done[id] || isNew[id] || x.gone[id] {
			continue
		}
		done[id] = true
		fx.Mutated = append(fx.Mutated, stamp(id))
	}
	fx.Mutated = append(fx.Mutated, fx.GasObject)

	var events []types.Event
	if status.Success {
		events = x.events
	}
	return types.ExecutionResult{Digest: x.digest, Effects: fx, Events: events}
}

// touched lists, in ID order, pre-existing objects that commands
// changed without them being mutable inputs.
func (x *execution) touched() []types.ObjectID {
	var out []types.ObjectID
	for id, md := range x.working {
		orig, ok := x.l.objects[id]
		if ok && !reflect.DeepEqual(*md, orig) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func (x *execution) obj(id types.ObjectID) (*types.ObjectMetadata, error) {
	if x.gone[id] {
		return nil, fmt.Errorf("object %s was deleted", id)
	}
	if md, ok := x.working[id]; ok {
		return md, nil
	}
	md, ok := x.l.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, ptb.ErrObjectNotFound)
	}
	cp := md
	x.working[id] = &cp
	return &cp, nil
}

func (x *execution) delete(id types.ObjectID) {
	if !x.gone[id] {
		x.gone[id] = true
		x.deleted = append(x.deleted, id)
	}
}

func (x *execution) create(typ string, owner types.Owner, balance uint64) types.ObjectID {
	x.counter++
	buf := binary.BigEndian.AppendUint64(append([]byte(nil), x.digest[:]...), x.counter)
	id := types.ObjectID(types.DigestOf("ObjectID::", buf))
	x.working[id] = &types.ObjectMetadata{Ref: types.ObjectRef{ID: id}, Type: typ, Owner: owner, Balance: balance}
	x.created = append(x.created, id)
	return id
}

// --- argument resolution ---

func (x *execution) values(a types.Argument) ([]Value, error) {
	switch a.Kind {
	case types.ArgGasCoin:
		return []Value{ObjectValue(x.gas)}, nil
	case types.ArgInput:
		in := x.plan.Inputs[a.Index]
		if in.Pure != nil {
			return []Value{PureValue(in.Pure.Bytes)}, nil
		}
		return []Value{ObjectValue(in.Object.ID())}, nil
	case types.ArgResult:
		return x.results[a.Index], nil
	case types.ArgNestedResult:
		res := x.results[a.Index]
		if int(a.Subresult) >= len(res) {
			return nil, fmt.Errorf("%s: command has %d results", a, len(res))
		}
		return []Value{res[a.Subresult]}, nil
	}
	return nil, fmt.Errorf("unknown argument %s", a)
}

func (x *execution) one(a types.Argument) (Value, error) {
	vs, err := x.values(a)
	if err != nil {
		return Value{}, err
	}
	if len(vs) != 1 {
		return Value{}, fmt.Errorf("%s: expected one value, got %d", a, len(vs))
	}
	return vs[0], nil
}

func (x *execution) many(args []types.Argument) ([]Value, error) {
	var out []Value
	for _, a := range args {
		vs, err := x.values(a)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

func (x *execution) coin(v Value) (*types.ObjectMetadata, error) {
	if v.Object == nil {
		return nil, errors.New("expected a coin, got a pure value")
	}
	md, err := x.obj(*v.Object)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(md.Type, coinTypePrefix) {
		return nil, fmt.Errorf("object %s of type %s is not a coin", md.Ref.ID, md.Type)
	}
	return md, nil
}

// --- commands ---

func (x *execution) exec(cmd types.Command) ([]Value, error) {
	switch {
	case cmd.SplitCoins != nil:
		return x.splitCoins(cmd.SplitCoins)
	case cmd.MergeCoins != nil:
		return nil, x.mergeCoins(cmd.MergeCoins)
	case cmd.TransferObjects != nil:
		return nil, x.transferObjects(cmd.TransferObjects)
	case cmd.MakeMoveVec != nil:
		elems, err := x.many(cmd.MakeMoveVec.Elements)
		if err != nil {
			return nil, err
		}
		return []Value{{Elems: elems}}, nil
	case cmd.Publish != nil:
		x.create("package", types.Owner{Immutable: true}, 0)
		upgradeCap := x.create("0x2::package::UpgradeCap", types.AddressOwner(x.data.Sender), 0)
		return []Value{ObjectValue(upgradeCap)}, nil
	case cmd.Upgrade != nil:
		ticket, err := x.one(cmd.Upgrade.Ticket)
		if err != nil {
			return nil, err
		}
		if ticket.Object == nil {
			return nil, errors.New("upgrade ticket must be an object")
		}
		if _, err := x.obj(*ticket.Object); err != nil {
			return nil, err
		}
		x.delete(*ticket.Object)
		pkg := x.create("package", types.Owner{Immutable: true}, 0)
		return []Value{PureValue(pkg[:])}, nil
	case cmd.MoveCall != nil:
		return x.moveCall(cmd.MoveCall)
	}
	return nil, errors.New("empty command")
}

func (x *execution) splitCoins(c *types.SplitCoins) ([]Value, error) {
	src, err := x.one(c.Coin)
	if err != nil {
		return nil, err
	}
	coin, err := x.coin(src)
	if err != nil {
		return nil, err
	}
	amounts, err := x.many(c.Amounts)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, a := range amounts {
		amt, err := a.U64()
		if err != nil {
			return nil, err
		}
		if amt > coin.Balance {
			return nil, fmt.Errorf("InsufficientCoinBalance: coin %s holds %d, split %d", coin.Ref.ID, coin.Balance, amt)
		}
		coin.Balance -= amt
		out = append(out, ObjectValue(x.create(coin.Type, types.AddressOwner(x.data.Sender), amt)))
	}
	return out, nil
}

func (x *execution) mergeCoins(c *types.MergeCoins) error {
	dst, err := x.one(c.Destination)
	if err != nil {
		return err
	}
	into, err := x.coin(dst)
	if err != nil {
		return err
	}
	srcs, err := x.many(c.Sources)
	if err != nil {
		return err
	}
	for _, s := range srcs {
		from, err := x.coin(s)
		if err != nil {
			return err
		}
		switch {
		case from.Ref.ID == into.Ref.ID:
			return fmt.Errorf("coin %s merged into itself", from.Ref.ID)
		case from.Ref.ID == x.gas:
			return errors.New("the gas coin cannot be merged away")
		case from.Type != into.Type:
			return fmt.Errorf("cannot merge %s into %s", from.Type, into.Type)
		}
		into.Balance += from.Balance
		x.delete(from.Ref.ID)
	}
	return nil
}

func (x *execution) transferObjects(c *types.TransferObjects) error {
	objs, err := x.many(c.Objects)
	if err != nil {
		return err
	}
	to, err := x.one(c.Address)
	if err != nil {
		return err
	}
	addr, err := to.Address()
	if err != nil {
		return err
	}
	for _, v := range objs {
		if v.Object == nil {
			return errors.New("cannot transfer a pure value")
		}
		md, err := x.obj(*v.Object)
		if err != nil {
			return err
		}
		if md.Owner.Shared != nil || md.Owner.Immutable {
			return fmt.Errorf("object %s cannot be transferred, owner is %s", md.Ref.ID, md.Owner)
		}
		md.Owner = types.AddressOwner(addr)
	}
	return nil
}

func (x *execution) moveCall(c *types.ProgrammableMoveCall) ([]Value, error) {
	fn, ok := x.l.handlers[c.Target()]
	if !ok {
		return nil, fmt.Errorf("FunctionNotFound: %s", c.Target())
	}
	args, err := x.many(c.Arguments)
	if err != nil {
		return nil, err
	}
	call := &Call{
		Sender:        x.data.Sender,
		Package:       c.Package,
		Module:        c.Module,
		Function:      c.Function,
		TypeArguments: c.TypeArguments,
		Args:          args,
		x:             x,
	}
	return fn(call)
}
