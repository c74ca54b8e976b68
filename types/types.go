// Package types defines the core data types of a programmable
// transaction: object references, inputs, commands, the finished
// plan, the signed payload and the execution outcome.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. The encoded bytes of a
// TransactionData are what gets hashed and signed, so field tags
// must never be renumbered.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// IDLength is the byte length of object IDs, addresses and digests.
const IDLength = 32

// ObjectID uniquely identifies a ledger object.
type ObjectID [IDLength]byte

// Address identifies an account on the ledger.
type Address [IDLength]byte

// Digest is a 32-byte content or transaction digest.
type Digest [IDLength]byte

// SequenceNumber is the version of a ledger object.
type SequenceNumber uint64

// ParseObjectID parses a 0x-prefixed hex literal. Short literals are
// left-padded with zeros, so "0x2" names the framework package.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if err := parseHexLiteral(s, id[:]); err != nil {
		return ObjectID{}, fmt.Errorf("parse object id %q: %w", s, err)
	}
	return id, nil
}

// MustObjectID is like ParseObjectID but panics on error. Intended for
// package-level constants and tests.
func MustObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := parseHexLiteral(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return a, nil
}

// MustAddress is like ParseAddress but panics on error.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func parseHexLiteral(s string, out []byte) error {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return fmt.Errorf("missing 0x prefix")
	}
	s = s[2:]
	if len(s) == 0 {
		return fmt.Errorf("empty literal")
	}
	if len(s) > 2*len(out) {
		return fmt.Errorf("literal longer than %d bytes", len(out))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	clear(out)
	copy(out[len(out)-len(raw):], raw)
	return nil
}

func (id ObjectID) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether the ID is all zeros.
func (id ObjectID) IsZero() bool { return id == ObjectID{} }

// String returns the base58 form used by explorers and RPC responses.
func (d Digest) String() string { return base58.Encode(d[:]) }

// ParseDigest parses the base58 form of a digest.
func ParseDigest(s string) (Digest, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Digest{}, fmt.Errorf("parse digest %q: %w", s, err)
	}
	if len(raw) != IDLength {
		return Digest{}, fmt.Errorf("parse digest %q: got %d bytes, want %d", s, len(raw), IDLength)
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}
