// Package ptb builds, signs and submits programmable transactions:
// small atomic command graphs whose arguments reference either
// transaction inputs or the results of earlier commands.
//
// The pipeline is split across packages, leaves first:
//
//	resolver  -> reads object metadata and produces input references
//	builder   -> appends inputs and commands, freezes them into a plan
//	signing   -> wraps the plan with gas data and signs it under an intent
//	submit    -> sends the signed payload and interprets the outcome
//
// This package holds the narrow collaborator interfaces the pipeline
// depends on and the error taxonomy shared by every stage.
package ptb

import (
	"context"
	"errors"

	"github.com/blockberries/ptb/types"
)

// Keystore is the signing capability of a key-management collaborator.
// The pipeline never sees private keys.
type Keystore interface {
	// Addresses lists the addresses this keystore can sign for.
	Addresses() []types.Address

	// Sign signs msg on behalf of addr. The message already carries
	// the intent prefix; intent is passed so implementations can
	// refuse scopes they do not support.
	//
	// Returns a *SigningError with SigningKeyUnavailable if the key
	// for addr cannot be located.
	Sign(ctx context.Context, addr types.Address, msg []byte, intent types.Intent) (types.Signature, error)
}

// LedgerReader exposes point-in-time reads of ledger state.
//
// Implementations MUST be safe for concurrent use.
type LedgerReader interface {
	// GetObject returns the current metadata of an object. Returns an
	// error wrapping ErrObjectNotFound if it does not exist.
	GetObject(ctx context.Context, id types.ObjectID) (types.ObjectMetadata, error)

	// GetOwnedObjects lists the objects owned by addr.
	GetOwnedObjects(ctx context.Context, addr types.Address) ([]types.ObjectMetadata, error)

	// GetTransaction looks up an executed transaction by digest.
	// Returns an error wrapping ErrTransactionNotFound if the ledger
	// has no record of it.
	GetTransaction(ctx context.Context, digest types.Digest) (types.ExecutionResult, error)
}

// LedgerWriter accepts signed transactions for execution.
//
// Implementations MUST be safe for concurrent use.
type LedgerWriter interface {
	// SubmitTransaction sends a signed payload. A transaction the
	// ledger refuses to execute is reported as a *SubmissionError with
	// SubmissionRejected; a transaction that executed and failed is a
	// successful call whose effects record the failure.
	SubmitTransaction(ctx context.Context, tx types.SignedTransaction, mode types.RequestMode) (types.ExecutionResult, error)

	// GetReferencePrice returns the current reference gas price.
	GetReferencePrice(ctx context.Context) (uint64, error)
}

// Ledger is a connection to a ledger node. Both the gRPC client and the
// in-memory test ledger implement it.
type Ledger interface {
	LedgerReader
	LedgerWriter

	// Close terminates the connection.
	Close() error
}

var (
	// ErrObjectNotFound is returned by LedgerReader.GetObject for
	// unknown or deleted objects.
	ErrObjectNotFound = errors.New("object not found")

	// ErrTransactionNotFound is returned by LedgerReader.GetTransaction
	// for digests the ledger has no record of.
	ErrTransactionNotFound = errors.New("transaction not found")
)
