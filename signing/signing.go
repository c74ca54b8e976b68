// Package signing wraps a finished plan with gas data and produces the
// signatures that authorize it.
//
// Every signature is taken over an intent message: the 3-byte intent
// followed by the deterministic encoding of the payload. The intent
// separates signing domains, so a signature over a transaction can
// never be replayed as a personal message signature or vice versa.
package signing

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// PackageOption configures Package.
type PackageOption func(*types.TransactionData)

// WithGasOwner makes addr pay for gas instead of the sender. A
// sponsored payload needs a signature from both.
func WithGasOwner(addr types.Address) PackageOption {
	return func(d *types.TransactionData) { d.Gas.Owner = addr }
}

// WithExpiration makes the payload invalid after epoch.
func WithExpiration(epoch uint64) PackageOption {
	return func(d *types.TransactionData) { d.Expiration = types.ExpiresAt(epoch) }
}

// Package wraps plan with the sender and gas data. It performs no I/O.
//
// The gas payment must be non-empty, free of duplicates and disjoint
// from the plan's object inputs, and the budget must be positive.
// Violations fail with BuildInvalidGas.
func Package(plan types.ProgrammableTransaction, sender types.Address, gas []types.ObjectRef, budget, price uint64, opts ...PackageOption) (types.TransactionData, error) {
	if len(gas) == 0 {
		return types.TransactionData{}, ptb.NewBuildError(ptb.BuildInvalidGas, -1, "no gas payment")
	}
	if budget == 0 {
		return types.TransactionData{}, ptb.NewBuildError(ptb.BuildInvalidGas, -1, "zero gas budget")
	}
	inputs := make(map[types.ObjectID]struct{}, len(plan.Inputs))
	for _, in := range plan.Inputs {
		if in.Object != nil {
			inputs[in.Object.ID()] = struct{}{}
		}
	}
	seen := make(map[types.ObjectID]struct{}, len(gas))
	for _, ref := range gas {
		if _, ok := seen[ref.ID]; ok {
			return types.TransactionData{}, ptb.NewBuildError(ptb.BuildInvalidGas, -1, "gas coin %s listed twice", ref.ID)
		}
		if _, ok := inputs[ref.ID]; ok {
			return types.TransactionData{}, ptb.NewBuildError(ptb.BuildInvalidGas, -1, "gas coin %s is also a transaction input", ref.ID)
		}
		seen[ref.ID] = struct{}{}
	}

	data := types.TransactionData{
		Kind:   types.ProgrammableKind(plan),
		Sender: sender,
		Gas: types.GasData{
			Payment: append([]types.ObjectRef(nil), gas...),
			Owner:   sender,
			Price:   price,
			Budget:  budget,
		},
	}
	for _, opt := range opts {
		opt(&data)
	}
	return data, nil
}

// IntentMessage returns intent || payload, the bytes that are hashed
// and signed.
func IntentMessage(intent types.Intent, payload []byte) []byte {
	msg := make([]byte, 0, 3+len(payload))
	msg = append(msg, intent.Bytes()...)
	return append(msg, payload...)
}

// MessageDigest hashes an intent message with blake2b-256. Keys sign
// the digest, not the message.
func MessageDigest(msg []byte) [32]byte {
	return blake2b.Sum256(msg)
}

// Signers returns the addresses that must sign data: the sender, and
// the gas owner when it differs.
func Signers(data types.TransactionData) []types.Address {
	if data.Gas.Owner == data.Sender || data.Gas.Owner == (types.Address{}) {
		return []types.Address{data.Sender}
	}
	return []types.Address{data.Sender, data.Gas.Owner}
}

// Sign authorizes data under intent with keys held by ks. Every
// required signer must sign; if any signature cannot be produced or
// does not verify, no SignedTransaction is returned.
func Sign(ctx context.Context, ks ptb.Keystore, data types.TransactionData, intent types.Intent) (types.SignedTransaction, error) {
	payload, err := types.Encode(data)
	if err != nil {
		return types.SignedTransaction{}, ptb.NewSigningError(ptb.SigningEncoding, data.Sender, err)
	}
	msg := IntentMessage(intent, payload)

	sigs := make([]types.Signature, 0, 2)
	for _, addr := range Signers(data) {
		sig, err := ks.Sign(ctx, addr, msg, intent)
		if err != nil {
			return types.SignedTransaction{}, keystoreError(addr, err)
		}
		if err := verifyOne(msg, addr, sig); err != nil {
			return types.SignedTransaction{}, err
		}
		sigs = append(sigs, sig)
	}
	return types.SignedTransaction{Data: data, Intent: intent, Signatures: sigs}, nil
}

// SignMessage signs arbitrary bytes for addr under the personal message
// intent.
func SignMessage(ctx context.Context, ks ptb.Keystore, addr types.Address, message []byte) (types.Signature, error) {
	intent := types.PersonalMessageIntent()
	payload, err := types.Encode(personalMessage{Message: message})
	if err != nil {
		return types.Signature{}, ptb.NewSigningError(ptb.SigningEncoding, addr, err)
	}
	msg := IntentMessage(intent, payload)
	sig, err := ks.Sign(ctx, addr, msg, intent)
	if err != nil {
		return types.Signature{}, keystoreError(addr, err)
	}
	return sig, verifyOne(msg, addr, sig)
}

// keystoreError classifies a keystore failure. Cancellation and
// deadlines are returned as they are; anything untyped means the key
// could not be used.
func keystoreError(addr types.Address, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if se, ok := ptb.IsSigning(err); ok {
		return se
	}
	return ptb.NewSigningError(ptb.SigningKeyUnavailable, addr, err)
}

// VerifyMessage checks a SignMessage signature.
func VerifyMessage(addr types.Address, message []byte, sig types.Signature) error {
	payload, err := types.Encode(personalMessage{Message: message})
	if err != nil {
		return ptb.NewSigningError(ptb.SigningEncoding, addr, err)
	}
	return verifyOne(IntentMessage(types.PersonalMessageIntent(), payload), addr, sig)
}

type personalMessage struct {
	Message []byte `cramberry:"1"`
}

// Verify checks that tx carries exactly one valid signature from every
// required signer over its intent message.
func Verify(tx types.SignedTransaction) error {
	payload, err := types.Encode(tx.Data)
	if err != nil {
		return ptb.NewSigningError(ptb.SigningEncoding, tx.Data.Sender, err)
	}
	msg := IntentMessage(tx.Intent, payload)

	signers := Signers(tx.Data)
	if len(tx.Signatures) != len(signers) {
		return ptb.NewSigningError(ptb.SigningInvalidSignature, tx.Data.Sender,
			fmt.Errorf("%d signatures for %d signers", len(tx.Signatures), len(signers)))
	}
	for i, addr := range signers {
		if err := verifyOne(msg, addr, tx.Signatures[i]); err != nil {
			return err
		}
	}
	return nil
}

var errBadSignature = errors.New("signature does not verify")

func verifyOne(msg []byte, addr types.Address, sig types.Signature) error {
	if sig.Scheme != types.SchemeEd25519 {
		return ptb.NewSigningError(ptb.SigningInvalidSignature, addr, fmt.Errorf("unsupported scheme %s", sig.Scheme))
	}
	if len(sig.PublicKey) != ed25519.PublicKeySize {
		return ptb.NewSigningError(ptb.SigningInvalidSignature, addr, fmt.Errorf("public key has %d bytes", len(sig.PublicKey)))
	}
	if derived := DeriveAddress(sig.Scheme, sig.PublicKey); !bytes.Equal(derived[:], addr[:]) {
		return ptb.NewSigningError(ptb.SigningInvalidSignature, addr, fmt.Errorf("public key belongs to %s", derived))
	}
	digest := MessageDigest(msg)
	if !ed25519.Verify(sig.PublicKey, digest[:], sig.Signature) {
		return ptb.NewSigningError(ptb.SigningInvalidSignature, addr, errBadSignature)
	}
	return nil
}

// DeriveAddress computes the address controlled by a public key:
// blake2b-256 over the scheme flag and the key bytes.
func DeriveAddress(scheme types.SignatureScheme, pub []byte) types.Address {
	h, _ := blake2b.New256(nil) // only fails for an oversized key
	h.Write([]byte{byte(scheme)})
	h.Write(pub)
	var a types.Address
	copy(a[:], h.Sum(nil))
	return a
}
