package types

import "fmt"

// ObjectRef pins an owned or immutable object at an exact version.
// Using a stale ref causes the ledger to reject the transaction.
type ObjectRef struct {
	ID      ObjectID       `cramberry:"1"`
	Version SequenceNumber `cramberry:"2"`
	Digest  Digest         `cramberry:"3"`
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s@%d", r.ID, r.Version)
}

// SharedObjectRef references a shared object by the version at which
// it became shared. The ledger picks the live version at execution.
type SharedObjectRef struct {
	ID                   ObjectID       `cramberry:"1"`
	InitialSharedVersion SequenceNumber `cramberry:"2"`
	Mutable              bool           `cramberry:"3"`
}

// ObjectArg is a tagged union over the ways an object can be used as a
// transaction input. Exactly one field is set.
type ObjectArg struct {
	ImmOrOwned *ObjectRef       `cramberry:"1"`
	Shared     *SharedObjectRef `cramberry:"2"`
	// Receiving is an object sent to another object's address, consumed
	// by a Move call on the receiving object.
	Receiving *ObjectRef `cramberry:"3"`
}

// OwnedObject wraps ref as an ObjectArg.
func OwnedObject(ref ObjectRef) ObjectArg {
	return ObjectArg{ImmOrOwned: &ref}
}

// SharedObject wraps a shared reference as an ObjectArg.
func SharedObject(id ObjectID, initial SequenceNumber, mutable bool) ObjectArg {
	return ObjectArg{Shared: &SharedObjectRef{ID: id, InitialSharedVersion: initial, Mutable: mutable}}
}

// ReceivingObject wraps ref as a receiving ObjectArg.
func ReceivingObject(ref ObjectRef) ObjectArg {
	return ObjectArg{Receiving: &ref}
}

// ID returns the referenced object's ID.
func (a ObjectArg) ID() ObjectID {
	switch {
	case a.ImmOrOwned != nil:
		return a.ImmOrOwned.ID
	case a.Shared != nil:
		return a.Shared.ID
	case a.Receiving != nil:
		return a.Receiving.ID
	}
	return ObjectID{}
}

// Valid reports whether exactly one variant is set.
func (a ObjectArg) Valid() bool {
	n := 0
	if a.ImmOrOwned != nil {
		n++
	}
	if a.Shared != nil {
		n++
	}
	if a.Receiving != nil {
		n++
	}
	return n == 1
}

// Owner is a tagged union describing who may use an object.
type Owner struct {
	Address   *Address     `cramberry:"1"`
	Object    *ObjectID    `cramberry:"2"`
	Shared    *SharedOwner `cramberry:"3"`
	Immutable bool         `cramberry:"4"`
}

// SharedOwner records the version at which an object became shared.
type SharedOwner struct {
	InitialSharedVersion SequenceNumber `cramberry:"1"`
}

// AddressOwner returns an Owner for an address-owned object.
func AddressOwner(a Address) Owner { return Owner{Address: &a} }

// SharedSince returns an Owner for an object shared at version v.
func SharedSince(v SequenceNumber) Owner {
	return Owner{Shared: &SharedOwner{InitialSharedVersion: v}}
}

func (o Owner) String() string {
	switch {
	case o.Address != nil:
		return "address(" + o.Address.String() + ")"
	case o.Object != nil:
		return "object(" + o.Object.String() + ")"
	case o.Shared != nil:
		return fmt.Sprintf("shared(%d)", o.Shared.InitialSharedVersion)
	case o.Immutable:
		return "immutable"
	}
	return "unknown"
}

// ObjectMetadata is the subset of object state needed to reference an
// object from a transaction.
type ObjectMetadata struct {
	Ref                 ObjectRef `cramberry:"1"`
	Type                string    `cramberry:"2"`
	Owner               Owner     `cramberry:"3"`
	PreviousTransaction Digest    `cramberry:"4"`
	StorageRebate       uint64    `cramberry:"5"`
	// Balance is the coin value for coin objects and zero otherwise.
	Balance uint64 `cramberry:"6"`
}

// GasCoinType is the Move type of coins usable for gas payment.
const GasCoinType = "0x2::coin::Coin<0x2::sui::SUI>"

// IsGasCoin reports whether the object can pay for gas.
func (m ObjectMetadata) IsGasCoin() bool { return m.Type == GasCoinType }
