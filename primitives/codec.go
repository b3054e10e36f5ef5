package primitives

import "encoding/binary"

// Tuple is an opaque (keyBytes, valueBytes) pair. Neither the session
// operator nor the sorted aggregator interprets these bytes beyond
// delegating to a Comparator or Accumulator.
type Tuple struct {
	Key   []byte
	Value []byte
}

// ByteOrderFor selects the wire byte order for spill records and in-memory
// block records, fixed once at aggregator construction by useBigEndian.
func ByteOrderFor(useBigEndian bool) binary.ByteOrder {
	if useBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// lenPrefixSize is the size in bytes of one u32 length prefix.
const lenPrefixSize = 4

// EncodedSize returns the on-wire size of t: two u32 length prefixes plus
// the key and value bytes, matching the spill record format
// "u32 keyLen, keyLen bytes, u32 valueLen, valueLen bytes".
func EncodedSize(t Tuple) int {
	return 2*lenPrefixSize + len(t.Key) + len(t.Value)
}

// Encode writes t into buf, which must be at least EncodedSize(t) bytes,
// and returns the number of bytes written.
func Encode(order binary.ByteOrder, buf []byte, t Tuple) int {
	order.PutUint32(buf[0:lenPrefixSize], uint32(len(t.Key)))
	off := lenPrefixSize
	copy(buf[off:off+len(t.Key)], t.Key)
	off += len(t.Key)

	order.PutUint32(buf[off:off+lenPrefixSize], uint32(len(t.Value)))
	off += lenPrefixSize
	copy(buf[off:off+len(t.Value)], t.Value)
	off += len(t.Value)

	return off
}

// Decode reads one tuple from the front of buf. The returned Tuple's Key
// and Value alias buf; callers that need the bytes to outlive buf (e.g.
// block reuse) must copy them. ok is false if buf does not hold a
// complete record.
func Decode(order binary.ByteOrder, buf []byte) (t Tuple, n int, ok bool) {
	if len(buf) < lenPrefixSize {
		return Tuple{}, 0, false
	}
	klen := int(order.Uint32(buf[:lenPrefixSize]))
	off := lenPrefixSize
	if len(buf) < off+klen+lenPrefixSize {
		return Tuple{}, 0, false
	}
	key := buf[off : off+klen]
	off += klen

	vlen := int(order.Uint32(buf[off : off+lenPrefixSize]))
	off += lenPrefixSize
	if len(buf) < off+vlen {
		return Tuple{}, 0, false
	}
	val := buf[off : off+vlen]
	off += vlen

	return Tuple{Key: key, Value: val}, off, true
}

// CloneTuple returns a Tuple whose Key and Value own their backing
// arrays, safe to retain past the lifetime of the buffer t was decoded
// from.
func CloneTuple(t Tuple) Tuple {
	key := make([]byte, len(t.Key))
	copy(key, t.Key)
	val := make([]byte, len(t.Value))
	copy(val, t.Value)
	return Tuple{Key: key, Value: val}
}
