package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireReleaseCycle(t *testing.T) {
	pool, err := NewPool(2, 64)
	require.NoError(t, err)

	b1, ok := pool.Acquire()
	require.True(t, ok)
	b2, ok := pool.Acquire()
	require.True(t, ok)

	_, ok = pool.Acquire()
	assert.False(t, ok, "pool of 2 blocks should be exhausted after 2 acquires")

	pool.Release(b1)
	b3, ok := pool.Acquire()
	assert.True(t, ok, "releasing a block should make it acquirable again")
	assert.Same(t, b1, b3)

	pool.Release(b2)
	pool.Release(b3)
	stats := pool.Stats()
	assert.Equal(t, 2, stats.TotalBlocks)
	assert.Equal(t, 2, stats.FreeBlocks)
}

func TestNewPoolRejectsInvalidSizes(t *testing.T) {
	_, err := NewPool(0, 64)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewPool(1, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBlockAppendRespectsCapacity(t *testing.T) {
	pool, err := NewPool(1, 8)
	require.NoError(t, err)
	b, ok := pool.Acquire()
	require.True(t, ok)

	off, ok := b.Append([]byte("1234"))
	require.True(t, ok)
	assert.Equal(t, 0, off)
	assert.Equal(t, 4, b.Free())

	_, ok = b.Append([]byte("12345"))
	assert.False(t, ok, "append exceeding remaining free space must fail")

	off2, ok := b.Append([]byte("5678"))
	require.True(t, ok)
	assert.Equal(t, 4, off2)
	assert.Equal(t, 0, b.Free())
	assert.Equal(t, []byte("12345678"), b.Bytes())
}

func TestPoolStatsString(t *testing.T) {
	pool, err := NewPool(4, 1024)
	require.NoError(t, err)
	b, _ := pool.Acquire()
	defer pool.Release(b)

	s := pool.Stats().String()
	assert.Contains(t, s, "1/4 blocks in use")
}
