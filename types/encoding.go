package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Encode serializes v with cramberry. The same value always produces
// the same bytes.
func Encode(v any) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte, v any) error {
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// DecodeTransactionData decodes a payload produced by Encode.
func DecodeTransactionData(data []byte) (TransactionData, error) {
	var d TransactionData
	if err := Decode(data, &d); err != nil {
		return TransactionData{}, err
	}
	return d, nil
}
