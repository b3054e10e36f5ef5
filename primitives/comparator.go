package primitives

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Comparator totally orders two byte slices representing keys. A
// well-behaved Comparator is deterministic and consistent:
// cmp(a, b) < 0 iff cmp(b, a) > 0.
//
// Neither the session operator nor the sorted aggregator ever interprets
// key bytes beyond delegating to a Comparator.
type Comparator interface {
	Compare(a, b []byte) int
}

// ComparatorFunc adapts a plain function to Comparator.
type ComparatorFunc func(a, b []byte) int

// Compare implements Comparator.
func (f ComparatorFunc) Compare(a, b []byte) int { return f(a, b) }

// Bytewise orders keys by raw lexicographic byte order.
var Bytewise Comparator = ComparatorFunc(bytes.Compare)

// LengthPrefixedString orders keys by the string that follows a 4-byte
// big-endian length prefix (see EncodeLengthPrefixedString), comparing the
// decoded strings rather than their encoded bytes so that a short string
// padded with a longer length prefix still sorts correctly.
var LengthPrefixedString Comparator = ComparatorFunc(compareLengthPrefixedString)

func compareLengthPrefixedString(a, b []byte) int {
	return strings.Compare(decodeLengthPrefixedString(a), decodeLengthPrefixedString(b))
}

func decodeLengthPrefixedString(b []byte) string {
	if len(b) < 4 {
		return string(b)
	}
	n := binary.BigEndian.Uint32(b[:4])
	if int(n) > len(b)-4 {
		n = uint32(len(b) - 4)
	}
	return string(b[4 : 4+n])
}

// EncodeLengthPrefixedString encodes s with a 4-byte big-endian length
// prefix, for use as a key compared with LengthPrefixedString.
func EncodeLengthPrefixedString(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(s)))
	copy(buf[4:], s)
	return buf
}

// Reversed negates a comparator. Used uniformly when sortOrder is DESC;
// all other ordering logic (spill, merge, cursor) is unchanged by it.
func Reversed(c Comparator) Comparator {
	return ComparatorFunc(func(a, b []byte) int { return -c.Compare(a, b) })
}
