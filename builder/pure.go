package builder

import (
	"encoding/binary"

	"github.com/blockberries/ptb/types"
)

// Encoders for pure literal inputs. Move functions read pure arguments
// in BCS layout: fixed-width integers little endian, vectors and
// strings prefixed with their ULEB128 length.

// PureU8 encodes a u8.
func PureU8(v uint8) []byte { return []byte{v} }

// PureU16 encodes a u16.
func PureU16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

// PureU32 encodes a u32.
func PureU32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

// PureU64 encodes a u64.
func PureU64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

// PureBool encodes a bool.
func PureBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// PureAddress encodes an address.
func PureAddress(a types.Address) []byte { return append([]byte(nil), a[:]...) }

// PureID encodes an object ID.
func PureID(id types.ObjectID) []byte { return append([]byte(nil), id[:]...) }

// PureBytes encodes a vector<u8>.
func PureBytes(b []byte) []byte {
	out := binary.AppendUvarint(make([]byte, 0, len(b)+binary.MaxVarintLen32), uint64(len(b)))
	return append(out, b...)
}

// PureString encodes a std::string::String. Move strings are UTF-8
// vectors, so the layout is the same as PureBytes.
func PureString(s string) []byte { return PureBytes([]byte(s)) }

// PureU64s encodes a vector<u64>.
func PureU64s(vs []uint64) []byte {
	out := binary.AppendUvarint(make([]byte, 0, len(vs)*8+binary.MaxVarintLen32), uint64(len(vs)))
	for _, v := range vs {
		out = binary.LittleEndian.AppendUint64(out, v)
	}
	return out
}
