package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y  int32
	Label [8]byte
	Valid bool
}

func TestBinaryCodecRoundTrip(t *testing.T) {
	c, err := NewBinaryCodec[point]()
	require.NoError(t, err)
	require.Equal(t, 17, c.Size())

	items := []point{
		{},
		{X: -1, Y: 42, Valid: true},
		{X: 1 << 30, Y: -(1 << 30), Label: [8]byte{'l', 'a', 'b', 'e', 'l'}},
	}
	for _, item := range items {
		data, err := c.Encode(item)
		require.NoError(t, err)
		require.Len(t, data, c.Size())

		got, err := c.Decode(data)
		require.NoError(t, err)
		require.Equal(t, item, got)
	}
}

func TestBinaryCodecScalar(t *testing.T) {
	c := MustBinaryCodec[uint64]()

	data, err := c.Encode(0x0102030405060708)
	require.NoError(t, err)
	require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, data)

	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), got)
}

func TestBinaryCodecRejectsVariableSize(t *testing.T) {
	_, err := NewBinaryCodec[string]()
	require.ErrorIs(t, err, ErrVariableSize)

	type withSlice struct {
		Values []int32
	}
	_, err = NewBinaryCodec[withSlice]()
	require.ErrorIs(t, err, ErrVariableSize)

	require.Panics(t, func() { MustBinaryCodec[map[string]int]() })
}

func TestBinaryCodecRejectsWrongLength(t *testing.T) {
	c := MustBinaryCodec[point]()

	_, err := c.Decode(make([]byte, c.Size()-1))
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = c.Decode(make([]byte, c.Size()+1))
	require.ErrorIs(t, err, ErrSizeMismatch)
}
