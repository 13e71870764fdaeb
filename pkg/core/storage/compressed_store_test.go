package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompress(t *testing.T) {
	for _, v := range [][]byte{
		{},
		{0x80},
		[]byte("short value"),
		bytes.Repeat([]byte{0xa0, 0x01, 0x02}, 1000),
	} {
		c := compress(v)
		res, err := decompress(c)
		require.NoError(t, err)
		require.Equal(t, v, res)
	}
}

func TestCompressedStoreShrinks(t *testing.T) {
	var (
		ps    = NewMemoryStore()
		s     = NewCompressedStore(ps)
		value = bytes.Repeat([]byte("node"), 256)
	)
	require.NoError(t, s.Put([]byte("k"), value))
	raw, err := ps.Get([]byte("k"))
	require.NoError(t, err)
	require.Less(t, len(raw), len(value))

	res, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, value, res)
}

func TestCompressedStoreCorrupt(t *testing.T) {
	ps := NewMemoryStore()
	s := NewCompressedStore(ps)

	require.NoError(t, ps.Put([]byte("k"), []byte{0x07, 0x01}))
	_, err := s.Get([]byte("k"))
	require.ErrorIs(t, err, ErrCorruptValue)

	require.NoError(t, ps.Put([]byte("k"), []byte{lz4Value, 0x10, 0xff}))
	_, err = s.Get([]byte("k"))
	require.ErrorIs(t, err, ErrCorruptValue)

	var n int
	s.Seek(SeekRange{}, func(k, v []byte) bool {
		n++
		return true
	})
	require.Equal(t, 0, n)
}
