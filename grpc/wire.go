package ptbgrpc

import (
	"github.com/blockberries/ptb"
	"github.com/blockberries/ptb/types"
)

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.

// ObjectRequest is the request for GetObject.
type ObjectRequest struct {
	ID types.ObjectID `cramberry:"1"`
}

// OwnerRequest is the request for the GetOwnedObjects stream.
type OwnerRequest struct {
	Address types.Address `cramberry:"1"`
}

// DigestRequest is the request for GetTransaction.
type DigestRequest struct {
	Digest types.Digest `cramberry:"1"`
}

// PriceRequest is the (empty) request for GetReferencePrice.
type PriceRequest struct{}

// PriceResponse wraps the return value of GetReferencePrice.
type PriceResponse struct {
	Price uint64 `cramberry:"1"`
}

// SubmitRequest wraps the parameters for SubmitTransaction.
type SubmitRequest struct {
	Tx   types.SignedTransaction `cramberry:"1"`
	Mode types.RequestMode       `cramberry:"2"`
}

// SubmitResponse is a tagged union carrying either the execution result
// or the ledger's refusal. Rejections travel in the body so that the
// reason code survives the transport.
type SubmitResponse struct {
	Result    *types.ExecutionResult `cramberry:"1"`
	Rejection *Rejection             `cramberry:"2"`
}

// Rejection is the wire form of a SubmissionRejected error.
type Rejection struct {
	Digest  types.Digest     `cramberry:"1"`
	Reason  ptb.RejectReason `cramberry:"2"`
	Message string           `cramberry:"3"`
}

func (r *Rejection) err() *ptb.SubmissionError {
	return ptb.Rejected(r.Digest, r.Reason, r.Message)
}
