// Package builder accumulates inputs and commands into a programmable
// transaction.
//
// A Builder is append-only. Every input and command receives a dense,
// zero-based index at the moment it is added, and a command may only
// reference inputs and commands that already exist. The resulting graph
// is therefore acyclic by construction and needs no separate validation
// pass.
//
// Finish consumes the builder: the accumulated lists move into the
// returned plan and every later call fails with a BuildFinished error.
//
// A Builder is not safe for concurrent use.
package builder

import (
	"fmt"
	"unicode/utf8"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// Protocol limits of the ledger for a single programmable transaction.
const (
	DefaultMaxInputs   = 2048
	DefaultMaxCommands = 1024

	maxIdentifierLength = 128
)

// InputIndex is the position of an input in the input list.
type InputIndex uint32

// Arg returns the argument referencing this input.
func (i InputIndex) Arg() types.Argument { return types.Input(uint32(i)) }

// CommandIndex is the position of a command in the command list.
type CommandIndex uint32

// Result returns the argument referencing the whole result of the command.
func (c CommandIndex) Result() types.Argument { return types.Result(uint32(c)) }

// Nested returns the argument referencing result n of the command.
func (c CommandIndex) Nested(n uint32) types.Argument {
	return types.NestedResult(uint32(c), n)
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxInputs bounds the number of inputs.
func WithMaxInputs(n int) Option {
	return func(b *Builder) { b.maxInputs = n }
}

// WithMaxCommands bounds the number of commands.
func WithMaxCommands(n int) Option {
	return func(b *Builder) { b.maxCommands = n }
}

// Builder accumulates a programmable transaction.
type Builder struct {
	inputs   []types.CallArg
	commands []types.Command
	// results holds the static result count of each command, or -1.
	results []int
	done    bool
	// err is the first error returned by an input method. Input
	// methods return only an index, so the error is reported by the
	// next Command or Finish.
	err error

	maxInputs   int
	maxCommands int
}

// New creates an empty builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		maxInputs:   DefaultMaxInputs,
		maxCommands: DefaultMaxCommands,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Input appends arg to the input list and returns its index.
//
// Input never fails immediately. An invalid argument, a limit violation
// or a call after Finish is recorded and reported by the next call to
// Command or Finish.
func (b *Builder) Input(arg types.CallArg) InputIndex {
	idx := InputIndex(len(b.inputs))
	switch {
	case b.err != nil:
	case b.done:
		b.err = finished()
	case !validCallArg(arg):
		b.err = ptb.NewBuildError(ptb.BuildInvalidCommand, -1, "input %d: exactly one of Pure or Object must be set", idx)
	case arg.Pure != nil && len(arg.Pure.Bytes) == 0:
		b.err = ptb.NewBuildError(ptb.BuildEncoding, -1, "input %d: empty pure value", idx)
	case len(b.inputs) >= b.maxInputs:
		b.err = ptb.NewBuildError(ptb.BuildLimitExceeded, -1, "more than %d inputs", b.maxInputs)
	}
	if b.err != nil {
		return idx
	}
	b.inputs = append(b.inputs, arg)
	return idx
}

// Object appends an object input.
func (b *Builder) Object(arg types.ObjectArg) InputIndex {
	return b.Input(types.ObjectInput(arg))
}

// Pure appends an already-encoded literal.
func (b *Builder) Pure(encoded []byte) InputIndex {
	return b.Input(types.PureInput(append([]byte(nil), encoded...)))
}

// PureString appends a std::string::String literal. Strings that are
// not valid UTF-8 are recorded as a BuildEncoding error.
func (b *Builder) PureString(s string) InputIndex {
	if !utf8.ValidString(s) && b.err == nil && !b.done {
		b.err = ptb.NewBuildError(ptb.BuildEncoding, -1, "input %d: string is not valid UTF-8", len(b.inputs))
	}
	return b.Pure(PureString(s))
}

// Err returns the first recorded error, if any.
func (b *Builder) Err() error { return b.err }

// Len returns the current number of inputs and commands.
func (b *Builder) Len() (inputs, commands int) {
	return len(b.inputs), len(b.commands)
}

// Command appends cmd and returns its index. Every argument is checked
// against the inputs and commands added so far; an argument that names
// an index not yet assigned fails with BuildInvalidArgumentReference and
// leaves the builder unchanged.
func (b *Builder) Command(cmd types.Command) (CommandIndex, error) {
	idx := CommandIndex(len(b.commands))
	if b.done {
		return idx, finished()
	}
	if b.err != nil {
		return idx, b.err
	}
	if err := b.check(int(idx), cmd); err != nil {
		return idx, err
	}
	b.commands = append(b.commands, cmd)
	b.results = append(b.results, cmd.ResultCount())
	return idx, nil
}

func (b *Builder) check(idx int, cmd types.Command) error {
	if !cmd.Valid() {
		return ptb.NewBuildError(ptb.BuildInvalidCommand, idx, "exactly one command variant must be set, got %s", cmd.Name())
	}
	if len(b.commands) >= b.maxCommands {
		return ptb.NewBuildError(ptb.BuildLimitExceeded, idx, "more than %d commands", b.maxCommands)
	}
	for _, arg := range cmd.Arguments() {
		if err := b.checkArg(idx, arg); err != nil {
			return err
		}
	}

	switch {
	case cmd.MoveCall != nil:
		c := cmd.MoveCall
		if !ValidIdentifier(c.Module) {
			return ptb.NewBuildError(ptb.BuildInvalidIdentifier, idx, "module %q", c.Module)
		}
		if !ValidIdentifier(c.Function) {
			return ptb.NewBuildError(ptb.BuildInvalidIdentifier, idx, "function %q", c.Function)
		}
	case cmd.MakeMoveVec != nil:
		if len(cmd.MakeMoveVec.Elements) == 0 && cmd.MakeMoveVec.Type == nil {
			return ptb.NewBuildError(ptb.BuildEmptyVector, idx, "an empty vector needs an element type")
		}
	case cmd.Publish != nil:
		if len(cmd.Publish.Modules) == 0 {
			return ptb.NewBuildError(ptb.BuildInvalidCommand, idx, "publish without modules")
		}
	case cmd.Upgrade != nil:
		if len(cmd.Upgrade.Modules) == 0 {
			return ptb.NewBuildError(ptb.BuildInvalidCommand, idx, "upgrade without modules")
		}
	case cmd.TransferObjects != nil:
		if len(cmd.TransferObjects.Objects) == 0 {
			return ptb.NewBuildError(ptb.BuildInvalidCommand, idx, "transfer without objects")
		}
	case cmd.SplitCoins != nil:
		if len(cmd.SplitCoins.Amounts) == 0 {
			return ptb.NewBuildError(ptb.BuildInvalidCommand, idx, "split without amounts")
		}
	case cmd.MergeCoins != nil:
		if len(cmd.MergeCoins.Sources) == 0 {
			return ptb.NewBuildError(ptb.BuildInvalidCommand, idx, "merge without sources")
		}
	}
	return nil
}

func (b *Builder) checkArg(idx int, arg types.Argument) error {
	switch arg.Kind {
	case types.ArgGasCoin:
		return nil
	case types.ArgInput:
		if int(arg.Index) >= len(b.inputs) {
			return ptb.NewBuildError(ptb.BuildInvalidArgumentReference, idx,
				"%s with %d inputs", arg, len(b.inputs))
		}
		return nil
	case types.ArgResult, types.ArgNestedResult:
		if int(arg.Index) >= len(b.commands) {
			return ptb.NewBuildError(ptb.BuildInvalidArgumentReference, idx,
				"%s with %d prior commands", arg, len(b.commands))
		}
		n := b.results[arg.Index]
		if arg.Kind == types.ArgResult && n == 0 {
			return ptb.NewBuildError(ptb.BuildInvalidArgumentReference, idx,
				"%s: command %d returns nothing", arg, arg.Index)
		}
		if arg.Kind == types.ArgNestedResult && n >= 0 && int(arg.Subresult) >= n {
			return ptb.NewBuildError(ptb.BuildInvalidArgumentReference, idx,
				"%s: command %d has %d results", arg, arg.Index, n)
		}
		return nil
	}
	return ptb.NewBuildError(ptb.BuildInvalidArgumentReference, idx, "%s", arg)
}

// Finish consumes the builder and returns the plan. The plan's lists
// are exactly the inputs and commands added, in order. After Finish the
// builder holds nothing and every further call fails.
func (b *Builder) Finish() (types.ProgrammableTransaction, error) {
	if b.done {
		return types.ProgrammableTransaction{}, finished()
	}
	if b.err != nil {
		return types.ProgrammableTransaction{}, b.err
	}
	plan := types.ProgrammableTransaction{Inputs: b.inputs, Commands: b.commands}
	b.inputs, b.commands, b.results = nil, nil, nil
	b.done = true
	return plan, nil
}

// MoveCall appends a call to pkg::module::function.
func (b *Builder) MoveCall(pkg types.ObjectID, module, function string, typeArgs []types.TypeTag, args ...types.Argument) (CommandIndex, error) {
	return b.Command(types.Command{MoveCall: &types.ProgrammableMoveCall{
		Package:       pkg,
		Module:        module,
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}})
}

// MakeMoveVec appends a command building a vector of elems. typ may be
// nil unless elems is empty.
func (b *Builder) MakeMoveVec(typ *types.TypeTag, elems ...types.Argument) (CommandIndex, error) {
	return b.Command(types.Command{MakeMoveVec: &types.MakeMoveVec{Type: typ, Elements: elems}})
}

// SplitCoins appends a split of coin into one new coin per amount.
func (b *Builder) SplitCoins(coin types.Argument, amounts ...types.Argument) (CommandIndex, error) {
	return b.Command(types.Command{SplitCoins: &types.SplitCoins{Coin: coin, Amounts: amounts}})
}

// MergeCoins appends a merge of sources into dst.
func (b *Builder) MergeCoins(dst types.Argument, sources ...types.Argument) (CommandIndex, error) {
	return b.Command(types.Command{MergeCoins: &types.MergeCoins{Destination: dst, Sources: sources}})
}

// TransferObjects appends a transfer of objs to the address argument.
func (b *Builder) TransferObjects(addr types.Argument, objs ...types.Argument) (CommandIndex, error) {
	return b.Command(types.Command{TransferObjects: &types.TransferObjects{Objects: objs, Address: addr}})
}

// Publish appends a package publication.
func (b *Builder) Publish(modules [][]byte, deps []types.ObjectID) (CommandIndex, error) {
	return b.Command(types.Command{Publish: &types.Publish{Modules: modules, Dependencies: deps}})
}

// Upgrade appends a package upgrade authorized by ticket.
func (b *Builder) Upgrade(modules [][]byte, deps []types.ObjectID, pkg types.ObjectID, ticket types.Argument) (CommandIndex, error) {
	return b.Command(types.Command{Upgrade: &types.Upgrade{
		Modules: modules, Dependencies: deps, Package: pkg, Ticket: ticket,
	}})
}

// ValidIdentifier reports whether s is a valid Move identifier:
// [A-Za-z_][A-Za-z0-9_]* excluding a lone underscore.
func ValidIdentifier(s string) bool {
	if s == "" || s == "_" || len(s) > maxIdentifierLength {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}

func validCallArg(a types.CallArg) bool {
	if (a.Pure == nil) == (a.Object == nil) {
		return false
	}
	return a.Object == nil || a.Object.Valid()
}

func finished() error {
	return ptb.NewBuildError(ptb.BuildFinished, -1, "Finish was already called")
}

// String summarizes the builder's contents.
func (b *Builder) String() string {
	return fmt.Sprintf("Builder{inputs: %d, commands: %d, finished: %v}", len(b.inputs), len(b.commands), b.done)
}
