package primitives

// DefaultBlockSize is the block size a caller gets if it does not
// override it at aggregator construction.
const DefaultBlockSize = 128 * 1024

// Block is a fixed-size byte region drawn from a Pool and owned by
// exactly one partition at a time. It is append-only: tuples are packed
// in from offset 0 and never moved or overwritten in place.
type Block struct {
	buf []byte
	len int
}

// Bytes returns the written prefix of the block.
func (b *Block) Bytes() []byte { return b.buf[:b.len] }

// Cap returns the block's total capacity.
func (b *Block) Cap() int { return len(b.buf) }

// Free returns the number of bytes still available for appends.
func (b *Block) Free() int { return len(b.buf) - b.len }

// Append writes p to the block if there is room, returning the byte
// offset it was written at and true; returns ok=false, leaving the block
// unmodified, if p does not fit.
func (b *Block) Append(p []byte) (offset int, ok bool) {
	if len(p) > b.Free() {
		return 0, false
	}
	offset = b.len
	copy(b.buf[b.len:], p)
	b.len += len(p)
	return offset, true
}

// At returns the n bytes starting at offset, aliasing the block's
// backing array.
func (b *Block) At(offset, n int) []byte {
	return b.buf[offset : offset+n]
}

// From returns the written bytes starting at offset, aliasing the
// block's backing array.
func (b *Block) From(offset int) []byte {
	return b.buf[offset:b.len]
}

func (b *Block) reset() { b.len = 0 }
