package ptbtest

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blockberries/ptb/types"
)

// Value is a runtime value flowing between commands: an object, a pure
// literal or a vector of values.
type Value struct {
	Object *types.ObjectID
	Pure   []byte
	Elems  []Value
}

// ObjectValue wraps an object ID.
func ObjectValue(id types.ObjectID) Value { return Value{Object: &id} }

// PureValue wraps literal bytes.
func PureValue(b []byte) Value { return Value{Pure: b} }

// U64 decodes a pure u64.
func (v Value) U64() (uint64, error) {
	if v.Object != nil || len(v.Pure) != 8 {
		return 0, fmt.Errorf("expected a u64, got %s", v)
	}
	return binary.LittleEndian.Uint64(v.Pure), nil
}

// Address decodes a pure address.
func (v Value) Address() (types.Address, error) {
	var a types.Address
	if v.Object != nil || len(v.Pure) != len(a) {
		return a, fmt.Errorf("expected an address, got %s", v)
	}
	copy(a[:], v.Pure)
	return a, nil
}

func (v Value) String() string {
	switch {
	case v.Object != nil:
		return "object " + v.Object.String()
	case v.Elems != nil:
		return fmt.Sprintf("vector of %d", len(v.Elems))
	}
	return fmt.Sprintf("%d pure bytes", len(v.Pure))
}

// MoveFunc implements a Move function for the in-memory ledger. A
// returned error aborts the transaction at the calling command.
type MoveFunc func(c *Call) ([]Value, error)

// Call is the context handed to a MoveFunc.
type Call struct {
	Sender        types.Address
	Package       types.ObjectID
	Module        string
	Function      string
	TypeArguments []types.TypeTag
	Args          []Value

	x *execution
}

// Arg returns argument i, failing if it is absent.
func (c *Call) Arg(i int) (Value, error) {
	if i >= len(c.Args) {
		return Value{}, fmt.Errorf("%s: missing argument %d", c.Function, i)
	}
	return c.Args[i], nil
}

// Object returns the current metadata of an object value as seen by
// this transaction.
func (c *Call) Object(v Value) (types.ObjectMetadata, error) {
	if v.Object == nil {
		return types.ObjectMetadata{}, fmt.Errorf("expected an object, got %s", v)
	}
	md, err := c.x.obj(*v.Object)
	if err != nil {
		return types.ObjectMetadata{}, err
	}
	return *md, nil
}

// Update writes the type, owner and balance of md back to the object.
func (c *Call) Update(md types.ObjectMetadata) error {
	cur, err := c.x.obj(md.Ref.ID)
	if err != nil {
		return err
	}
	if cur.Owner.Immutable {
		return fmt.Errorf("object %s is immutable", md.Ref.ID)
	}
	cur.Type, cur.Owner, cur.Balance = md.Type, md.Owner, md.Balance
	return nil
}

// Create creates an object owned as given.
func (c *Call) Create(typ string, owner types.Owner, balance uint64) Value {
	return ObjectValue(c.x.create(typ, owner, balance))
}

// Share creates a shared object. Its initial shared version is the
// version this transaction assigns.
func (c *Call) Share(typ string) Value {
	return ObjectValue(c.x.create(typ, types.SharedSince(c.x.lamport), 0))
}

// Delete deletes an object.
func (c *Call) Delete(v Value) error {
	md, err := c.Object(v)
	if err != nil {
		return err
	}
	if md.Owner.Shared != nil {
		return errors.New("shared objects cannot be deleted")
	}
	c.x.delete(md.Ref.ID)
	return nil
}

// Emit records an event. Events of aborted transactions are dropped.
func (c *Call) Emit(typ string, contents []byte) {
	c.x.events = append(c.x.events, types.Event{
		PackageID: c.Package,
		Module:    c.Module,
		Sender:    c.Sender,
		Type:      fmt.Sprintf("%s::%s::%s", c.Package, c.Module, typ),
		Contents:  contents,
	})
}
