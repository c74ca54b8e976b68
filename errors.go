package ptb

import (
	"errors"
	"fmt"

	"github.com/blockberries/ptb/types"
)

// ResolutionKind classifies a ResolutionError.
type ResolutionKind uint8

const (
	// ResolutionNotFound: the object does not exist.
	ResolutionNotFound ResolutionKind = iota + 1
	// ResolutionUnreadable: the ledger could not be read.
	ResolutionUnreadable
	// ResolutionUnexpected: the object exists but cannot be used the
	// way the caller asked (e.g. a shared object requested as owned).
	ResolutionUnexpected
	// ResolutionInsufficientGas: no set of eligible coins covers the
	// requested budget.
	ResolutionInsufficientGas
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNotFound:
		return "not found"
	case ResolutionUnreadable:
		return "unreadable"
	case ResolutionUnexpected:
		return "unexpected"
	case ResolutionInsufficientGas:
		return "insufficient gas"
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// ResolutionError reports a failure to obtain object metadata. It is
// recoverable by retrying or aborting; the resolver never retries.
type ResolutionError struct {
	Kind     ResolutionKind
	ObjectID types.ObjectID
	Detail   string
	Err      error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve %s: %s", e.ObjectID, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NewResolutionError creates a new ResolutionError.
func NewResolutionError(kind ResolutionKind, id types.ObjectID, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, ObjectID: id, Err: err}
}

// IsResolution checks whether an error is a ResolutionError and returns it.
func IsResolution(err error) (*ResolutionError, bool) {
	var e *ResolutionError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// BuildKind classifies a BuildError.
type BuildKind uint8

const (
	// BuildInvalidArgumentReference: an argument names an input or
	// command that does not exist yet.
	BuildInvalidArgumentReference BuildKind = iota + 1
	// BuildInvalidIdentifier: a Move module or function name is invalid.
	BuildInvalidIdentifier
	// BuildEmptyVector: MakeMoveVec without elements or element type.
	BuildEmptyVector
	// BuildLimitExceeded: too many inputs or commands.
	BuildLimitExceeded
	// BuildFinished: the builder was already consumed by Finish.
	BuildFinished
	// BuildInvalidGas: missing gas payment or zero budget.
	BuildInvalidGas
	// BuildInvalidCommand: a command or input with zero or several
	// variants set.
	BuildInvalidCommand
	// BuildEncoding: a pure literal could not be encoded.
	BuildEncoding
)

func (k BuildKind) String() string {
	switch k {
	case BuildInvalidArgumentReference:
		return "invalid argument reference"
	case BuildInvalidIdentifier:
		return "invalid identifier"
	case BuildEmptyVector:
		return "empty vector"
	case BuildLimitExceeded:
		return "limit exceeded"
	case BuildFinished:
		return "builder finished"
	case BuildInvalidGas:
		return "invalid gas"
	case BuildInvalidCommand:
		return "invalid command"
	case BuildEncoding:
		return "encoding"
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// BuildError reports a structurally invalid transaction. It is always a
// caller bug and must never be retried.
type BuildError struct {
	Kind BuildKind
	// Command is the index the failing command would have had, or -1
	// when the error is not tied to a command.
	Command int
	Detail  string
}

func (e *BuildError) Error() string {
	if e.Command >= 0 {
		return fmt.Sprintf("build command %d: %s: %s", e.Command, e.Kind, e.Detail)
	}
	return fmt.Sprintf("build: %s: %s", e.Kind, e.Detail)
}

// NewBuildError creates a new BuildError for the command at index cmd,
// or -1 for errors not tied to a command.
func NewBuildError(kind BuildKind, cmd int, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Command: cmd, Detail: fmt.Sprintf(format, args...)}
}

// IsBuild checks whether an error is a BuildError and returns it.
func IsBuild(err error) (*BuildError, bool) {
	var e *BuildError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SigningKind classifies a SigningError.
type SigningKind uint8

const (
	// SigningKeyUnavailable: the keystore holds no key for the sender.
	SigningKeyUnavailable SigningKind = iota + 1
	// SigningInvalidSignature: a signature does not verify.
	SigningInvalidSignature
	// SigningEncoding: the payload could not be serialized.
	SigningEncoding
)

func (k SigningKind) String() string {
	switch k {
	case SigningKeyUnavailable:
		return "key unavailable"
	case SigningInvalidSignature:
		return "invalid signature"
	case SigningEncoding:
		return "encoding"
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// SigningError reports a failure to authorize a payload.
type SigningError struct {
	Kind    SigningKind
	Address types.Address
	Err     error
}

func (e *SigningError) Error() string {
	msg := fmt.Sprintf("sign for %s: %s", e.Address, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SigningError) Unwrap() error { return e.Err }

// NewSigningError creates a new SigningError.
func NewSigningError(kind SigningKind, addr types.Address, err error) *SigningError {
	return &SigningError{Kind: kind, Address: addr, Err: err}
}

// IsSigning checks whether an error is a SigningError and returns it.
func IsSigning(err error) (*SigningError, bool) {
	var e *SigningError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// RejectReason is the ledger's reason code for refusing a transaction.
type RejectReason uint8

const (
	ReasonUnknown RejectReason = iota
	// ReasonObjectVersionMismatch: an owned input is not at its latest
	// version.
	ReasonObjectVersionMismatch
	// ReasonInsufficientGas: the gas coins cannot cover the budget.
	ReasonInsufficientGas
	// ReasonSharedObjectConflict: a shared object could not be locked
	// or its initial version does not match.
	ReasonSharedObjectConflict
	// ReasonInvalidSignature: the signatures do not authorize the sender.
	ReasonInvalidSignature
	// ReasonObjectNotFound: an input object does not exist.
	ReasonObjectNotFound
	// ReasonInvalidTransaction: the payload is malformed.
	ReasonInvalidTransaction
)

func (r RejectReason) String() string {
	switch r {
	case ReasonObjectVersionMismatch:
		return "object version mismatch"
	case ReasonInsufficientGas:
		return "insufficient gas"
	case ReasonSharedObjectConflict:
		return "shared object conflict"
	case ReasonInvalidSignature:
		return "invalid signature"
	case ReasonObjectNotFound:
		return "object not found"
	case ReasonInvalidTransaction:
		return "invalid transaction"
	}
	return "unknown"
}

// VersionDependent reports whether a payload rejected for this reason
// may succeed once rebuilt from freshly resolved references.
func (r RejectReason) VersionDependent() bool {
	return r == ReasonObjectVersionMismatch || r == ReasonSharedObjectConflict
}

// SubmissionKind classifies a SubmissionError.
type SubmissionKind uint8

const (
	// SubmissionRejected: the ledger refused the payload. Terminal for
	// that payload.
	SubmissionRejected SubmissionKind = iota + 1
	// SubmissionTimeout: no answer in time. The outcome is unknown and
	// must be recovered by querying the digest, not by resubmitting.
	SubmissionTimeout
	// SubmissionDuplicate: the payload was already rejected or timed
	// out and may not be submitted again as-is.
	SubmissionDuplicate
	// SubmissionTransport: the request could not be delivered.
	SubmissionTransport
)

func (k SubmissionKind) String() string {
	switch k {
	case SubmissionRejected:
		return "rejected"
	case SubmissionTimeout:
		return "timeout"
	case SubmissionDuplicate:
		return "duplicate"
	case SubmissionTransport:
		return "transport"
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// SubmissionError reports a failed submission with enough structure for
// the caller to decide between rebuilding, querying and giving up.
type SubmissionError struct {
	Kind    SubmissionKind
	Reason  RejectReason
	Digest  types.Digest
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("submit %s: %s", e.Digest, e.Kind)
	if e.Kind == SubmissionRejected {
		msg += ": " + e.Reason.String()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Rejected creates a SubmissionError for a payload the ledger refused.
func Rejected(digest types.Digest, reason RejectReason, message string) *SubmissionError {
	return &SubmissionError{Kind: SubmissionRejected, Reason: reason, Digest: digest, Message: message}
}

// IsSubmission checks whether an error is a SubmissionError and returns it.
func IsSubmission(err error) (*SubmissionError, bool) {
	var e *SubmissionError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsIndeterminate reports whether err leaves the transaction's fate
// unknown, so that its digest must be queried before doing anything else.
func IsIndeterminate(err error) bool {
	e, ok := IsSubmission(err)
	return ok && e.Kind == SubmissionTimeout
}
