package types

import (
	"golang.org/x/crypto/blake2b"
)

// ProgrammableTransaction is the finished, immutable graph of inputs
// and commands. Command i may only reference inputs and the results of
// commands 0..i-1.
type ProgrammableTransaction struct {
	Inputs   []CallArg `cramberry:"1"`
	Commands []Command `cramberry:"2"`
}

// GasData describes who pays for execution and how much.
type GasData struct {
	Payment []ObjectRef `cramberry:"1"`
	Owner   Address     `cramberry:"2"`
	Price   uint64      `cramberry:"3"`
	Budget  uint64      `cramberry:"4"`
}

// KindTag discriminates TransactionKind.
type KindTag uint8

const (
	KindNone         KindTag = 0
	KindProgrammable KindTag = 1
)

// TransactionKind is a tagged union over transaction kinds. Only
// programmable transactions are built by this module. An empty plan
// with Tag set is still a programmable transaction.
type TransactionKind struct {
	Tag          KindTag                 `cramberry:"1"`
	Programmable ProgrammableTransaction `cramberry:"2"`
}

// ProgrammableKind wraps a plan as a TransactionKind.
func ProgrammableKind(p ProgrammableTransaction) TransactionKind {
	return TransactionKind{Tag: KindProgrammable, Programmable: p}
}

// Expiration bounds the epochs in which the transaction is valid. The
// zero value means no expiration.
type Expiration struct {
	Bounded bool   `cramberry:"1"`
	Epoch   uint64 `cramberry:"2"`
}

// ExpiresAt returns an expiration after the given epoch.
func ExpiresAt(epoch uint64) Expiration {
	return Expiration{Bounded: true, Epoch: epoch}
}

// Expired reports whether the transaction may no longer run in epoch.
func (e Expiration) Expired(epoch uint64) bool {
	return e.Bounded && e.Epoch < epoch
}

// TransactionData is the payload that gets signed.
type TransactionData struct {
	Kind       TransactionKind `cramberry:"1"`
	Sender     Address         `cramberry:"2"`
	Gas        GasData         `cramberry:"3"`
	Expiration Expiration      `cramberry:"4"`
}

// Programmable returns the plan carried by the payload, or nil when
// the payload is of another kind.
func (d TransactionData) Programmable() *ProgrammableTransaction {
	if d.Kind.Tag != KindProgrammable {
		return nil
	}
	p := d.Kind.Programmable
	return &p
}

// transactionDataDomain prefixes the digest preimage so that a
// transaction digest can never collide with another hashed type.
const transactionDataDomain = "TransactionData::"

// Digest computes the transaction identifier: blake2b-256 over the
// domain prefix and the deterministic encoding of the payload.
func (d TransactionData) Digest() (Digest, error) {
	data, err := Encode(d)
	if err != nil {
		return Digest{}, err
	}
	return DigestOf(transactionDataDomain, data), nil
}

// DigestOf hashes prefix followed by data with blake2b-256.
func DigestOf(prefix string, data []byte) Digest {
	h, _ := blake2b.New256(nil) // only fails for an oversized key
	h.Write([]byte(prefix))
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// IntentScope names the kind of message being signed.
type IntentScope uint8

const (
	ScopeTransactionData    IntentScope = 0
	ScopeTransactionEffects IntentScope = 1
	ScopeCheckpointSummary  IntentScope = 2
	ScopePersonalMessage    IntentScope = 3
)

// IntentVersion is the version of the intent encoding.
type IntentVersion uint8

const IntentV0 IntentVersion = 0

// AppID separates signing domains between applications.
type AppID uint8

const (
	AppSui       AppID = 0
	AppNarwhal   AppID = 1
	AppConsensus AppID = 2
)

// Intent is the domain tag mixed into every signed message so that a
// signature for one purpose cannot be replayed as another.
type Intent struct {
	Scope   IntentScope   `cramberry:"1"`
	Version IntentVersion `cramberry:"2"`
	AppID   AppID         `cramberry:"3"`
}

// TransactionIntent is the intent for signing TransactionData.
func TransactionIntent() Intent {
	return Intent{Scope: ScopeTransactionData, Version: IntentV0, AppID: AppSui}
}

// PersonalMessageIntent is the intent for signing arbitrary bytes.
func PersonalMessageIntent() Intent {
	return Intent{Scope: ScopePersonalMessage, Version: IntentV0, AppID: AppSui}
}

// Bytes returns the 3-byte intent prefix.
func (i Intent) Bytes() []byte {
	return []byte{byte(i.Scope), byte(i.Version), byte(i.AppID)}
}

// SignatureScheme identifies the key algorithm of a signature.
type SignatureScheme uint8

const (
	SchemeEd25519   SignatureScheme = 0
	SchemeSecp256k1 SignatureScheme = 1
)

func (s SignatureScheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSecp256k1:
		return "secp256k1"
	}
	return "unknown"
}

// Signature is an authorization by one key over an intent message.
type Signature struct {
	Scheme    SignatureScheme `cramberry:"1"`
	Signature []byte          `cramberry:"2"`
	PublicKey []byte          `cramberry:"3"`
}

// SignedTransaction is a payload plus the signatures authorizing it.
type SignedTransaction struct {
	Data       TransactionData `cramberry:"1"`
	Intent     Intent          `cramberry:"2"`
	Signatures []Signature     `cramberry:"3"`
}

// Digest returns the digest of the signed payload.
func (t SignedTransaction) Digest() (Digest, error) {
	return t.Data.Digest()
}
