package types

import "fmt"

// CallArg is one slot of the transaction's input list. Exactly one
// field is set.
type CallArg struct {
	Pure   *PureArg   `cramberry:"1"`
	Object *ObjectArg `cramberry:"2"`
}

// PureArg is an already-encoded literal value.
type PureArg struct {
	Bytes []byte `cramberry:"1"`
}

// PureInput wraps encoded literal bytes as a CallArg.
func PureInput(b []byte) CallArg {
	return CallArg{Pure: &PureArg{Bytes: b}}
}

// ObjectInput wraps an ObjectArg as a CallArg.
func ObjectInput(a ObjectArg) CallArg {
	return CallArg{Object: &a}
}

// ArgumentKind selects what an Argument points at.
type ArgumentKind uint8

const (
	// ArgGasCoin is the coin paying for gas, already smashed into one.
	ArgGasCoin ArgumentKind = 0
	// ArgInput indexes the input list.
	ArgInput ArgumentKind = 1
	// ArgResult is the whole result of a prior command.
	ArgResult ArgumentKind = 2
	// ArgNestedResult is one value out of a prior command's results.
	ArgNestedResult ArgumentKind = 3
)

// Argument references an input or the output of an earlier command.
type Argument struct {
	Kind ArgumentKind `cramberry:"1"`
	// Input index for ArgInput, command index for ArgResult and
	// ArgNestedResult.
	Index uint32 `cramberry:"2"`
	// Result position for ArgNestedResult.
	Subresult uint32 `cramberry:"3"`
}

// GasCoin returns the gas coin argument.
func GasCoin() Argument { return Argument{Kind: ArgGasCoin} }

// Input returns a reference to input i.
func Input(i uint32) Argument { return Argument{Kind: ArgInput, Index: i} }

// Result returns a reference to the full result of command c.
func Result(c uint32) Argument { return Argument{Kind: ArgResult, Index: c} }

// NestedResult returns a reference to result n of command c.
func NestedResult(c, n uint32) Argument {
	return Argument{Kind: ArgNestedResult, Index: c, Subresult: n}
}

func (a Argument) String() string {
	switch a.Kind {
	case ArgGasCoin:
		return "GasCoin"
	case ArgInput:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ArgResult:
		return fmt.Sprintf("Result(%d)", a.Index)
	case ArgNestedResult:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Subresult)
	default:
		return fmt.Sprintf("Argument(kind=%d)", a.Kind)
	}
}

// TypeTag is a fully qualified Move type, e.g. "0x2::sui::SUI".
type TypeTag string

// ProgrammableMoveCall invokes package::module::function.
type ProgrammableMoveCall struct {
	Package       ObjectID   `cramberry:"1"`
	Module        string     `cramberry:"2"`
	Function      string     `cramberry:"3"`
	TypeArguments []TypeTag  `cramberry:"4"`
	Arguments     []Argument `cramberry:"5"`
}

// Target returns the "0x..::module::function" form of the call.
func (c ProgrammableMoveCall) Target() string {
	return fmt.Sprintf("%s::%s::%s", c.Package, c.Module, c.Function)
}

// TransferObjects sends Objects to the address in Address.
type TransferObjects struct {
	Objects []Argument `cramberry:"1"`
	Address Argument   `cramberry:"2"`
}

// SplitCoins splits one coin per amount off Coin.
type SplitCoins struct {
	Coin    Argument   `cramberry:"1"`
	Amounts []Argument `cramberry:"2"`
}

// MergeCoins merges Sources into Destination.
type MergeCoins struct {
	Destination Argument   `cramberry:"1"`
	Sources     []Argument `cramberry:"2"`
}

// Publish publishes a package; its result is the upgrade capability.
type Publish struct {
	Modules      [][]byte   `cramberry:"1"`
	Dependencies []ObjectID `cramberry:"2"`
}

// MakeMoveVec builds a vector out of Elements. Type is required when
// Elements is empty.
type MakeMoveVec struct {
	Type     *TypeTag   `cramberry:"1"`
	Elements []Argument `cramberry:"2"`
}

// Upgrade upgrades Package using the ticket in Ticket.
type Upgrade struct {
	Modules      [][]byte   `cramberry:"1"`
	Dependencies []ObjectID `cramberry:"2"`
	Package      ObjectID   `cramberry:"3"`
	Ticket       Argument   `cramberry:"4"`
}

// Command is one step of a programmable transaction. Exactly one field
// is set.
type Command struct {
	MoveCall        *ProgrammableMoveCall `cramberry:"1"`
	TransferObjects *TransferObjects      `cramberry:"2"`
	SplitCoins      *SplitCoins           `cramberry:"3"`
	MergeCoins      *MergeCoins           `cramberry:"4"`
	Publish         *Publish              `cramberry:"5"`
	MakeMoveVec     *MakeMoveVec          `cramberry:"6"`
	Upgrade         *Upgrade              `cramberry:"7"`
}

// Name returns the variant name.
func (c Command) Name() string {
	switch {
	case c.MoveCall != nil:
		return "MoveCall"
	case c.TransferObjects != nil:
		return "TransferObjects"
	case c.SplitCoins != nil:
		return "SplitCoins"
	case c.MergeCoins != nil:
		return "MergeCoins"
	case c.Publish != nil:
		return "Publish"
	case c.MakeMoveVec != nil:
		return "MakeMoveVec"
	case c.Upgrade != nil:
		return "Upgrade"
	}
	return "Empty"
}

// Valid reports whether exactly one variant is set.
func (c Command) Valid() bool {
	n := 0
	for _, set := range []bool{
		c.MoveCall != nil, c.TransferObjects != nil, c.SplitCoins != nil,
		c.MergeCoins != nil, c.Publish != nil, c.MakeMoveVec != nil, c.Upgrade != nil,
	} {
		if set {
			n++
		}
	}
	return n == 1
}

// Arguments returns every argument the command references, in
// declaration order.
func (c Command) Arguments() []Argument {
	switch {
	case c.MoveCall != nil:
		return c.MoveCall.Arguments
	case c.TransferObjects != nil:
		return append(append([]Argument(nil), c.TransferObjects.Objects...), c.TransferObjects.Address)
	case c.SplitCoins != nil:
		return append([]Argument{c.SplitCoins.Coin}, c.SplitCoins.Amounts...)
	case c.MergeCoins != nil:
		return append([]Argument{c.MergeCoins.Destination}, c.MergeCoins.Sources...)
	case c.MakeMoveVec != nil:
		return c.MakeMoveVec.Elements
	case c.Upgrade != nil:
		return []Argument{c.Upgrade.Ticket}
	}
	return nil
}

// ResultCount returns how many values the command produces, or -1 when
// that depends on the called function's signature.
func (c Command) ResultCount() int {
	switch {
	case c.MoveCall != nil:
		return -1
	case c.SplitCoins != nil:
		return len(c.SplitCoins.Amounts)
	case c.MakeMoveVec != nil, c.Publish != nil, c.Upgrade != nil:
		return 1
	}
	return 0
}
