package stream

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice_ReadByte(t *testing.T) {
	s := NewSlice([]byte{1, 2, 3})
	b, err := s.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), b)

	_, _ = s.ReadByte()
	_, _ = s.ReadByte()
	_, err = s.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSlice_ReadN_Truncates(t *testing.T) {
	s := NewSlice([]byte{1, 2, 3})
	out, err := s.ReadN(10)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
	assert.False(t, s.More())
}

func TestBounded_TruncatesToLength(t *testing.T) {
	s := NewSlice([]byte{1, 2, 3, 4, 5})
	b := NewBounded(s, 3)
	out, err := b.ReadN(10)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
	assert.False(t, b.More())

	// the underlying stream still has bytes left beyond the bound
	assert.True(t, s.More())
	next, _ := s.ReadByte()
	assert.Equal(t, byte(4), next)
}

func TestBounded_Unknown_DefersToInner(t *testing.T) {
	s := NewSlice([]byte{1, 2})
	b := NewBounded(s, -1)
	assert.True(t, b.More())
	_, _ = b.ReadByte()
	_, _ = b.ReadByte()
	assert.False(t, b.More())
}

func TestBounded_SkipToEnd(t *testing.T) {
	s := NewSlice([]byte{1, 2, 3, 4})
	b := NewBounded(s, 4)
	_, _ = b.ReadByte()
	n, err := b.SkipToEnd()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, b.More())
}

func TestMarkable_RestoreRewinds(t *testing.T) {
	m := NewMarkable(NewSlice([]byte{1, 2, 3, 4}))
	require.NoError(t, m.Mark())

	a, _ := m.ReadByte()
	bb, _ := m.ReadByte()
	assert.Equal(t, byte(1), a)
	assert.Equal(t, byte(2), bb)

	require.NoError(t, m.Restore())

	a2, _ := m.ReadByte()
	b2, _ := m.ReadByte()
	assert.Equal(t, byte(1), a2)
	assert.Equal(t, byte(2), b2)

	rest, err := m.ReadN(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, rest)
}

func TestMarkable_CommitDropsBuffer(t *testing.T) {
	m := NewMarkable(NewSlice([]byte{1, 2, 3}))
	require.NoError(t, m.Mark())
	_, _ = m.ReadByte()
	require.NoError(t, m.Commit())
	assert.ErrorIs(t, m.Restore(), ErrNotMarked)
}

func TestMarkable_DoubleMarkFails(t *testing.T) {
	m := NewMarkable(NewSlice([]byte{1}))
	require.NoError(t, m.Mark())
	assert.ErrorIs(t, m.Mark(), ErrAlreadyMarked)
}

func TestRecording_CapturesFullContentEvenIfUnderread(t *testing.T) {
	r := NewRecording(NewSlice([]byte{0xAA, 0xBB, 0xCC}))
	b := NewBounded(r, 3)

	// content parser only reads the first byte...
	first, err := b.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), first)

	// ...but the bound is drained afterward, as §4.A requires.
	_, err = b.SkipToEnd()
	require.NoError(t, err)

	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, r.Log())
}
