package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4"
)

const (
	// rawValue marks values stored as is (too small or incompressible).
	rawValue byte = 0
	// lz4Value marks LZ4 block compressed values prefixed with the
	// uvarint-encoded original length.
	lz4Value byte = 1
)

// maxDecompressedSize limits the declared length of compressed values.
const maxDecompressedSize = 64 << 20

// ErrCorruptValue is returned by CompressedStore when the stored value can't
// be decompressed.
var ErrCorruptValue = errors.New("corrupt compressed value")

// CompressedStore wraps another Store compressing all values with LZ4 on the
// way in and decompressing them on the way out. Keys are kept as is.
type CompressedStore struct {
	ps Store
}

// NewCompressedStore creates a new CompressedStore over the given one.
func NewCompressedStore(lower Store) *CompressedStore {
	return &CompressedStore{ps: lower}
}

// compress compresses bytes using lz4.
func compress(source []byte) []byte {
	dest := make([]byte, 1+binary.MaxVarintLen64+lz4.CompressBlockBound(len(source)))
	dest[0] = lz4Value
	n := 1 + binary.PutUvarint(dest[1:], uint64(len(source)))
	size, err := lz4.CompressBlock(source, dest[n:], nil)
	if err != nil || size == 0 || n+size >= 1+len(source) {
		res := make([]byte, 1+len(source))
		res[0] = rawValue
		copy(res[1:], source)
		return res
	}
	return dest[:n+size]
}

// decompress decompresses bytes using lz4.
func decompress(source []byte) ([]byte, error) {
	if len(source) == 0 {
		return nil, ErrCorruptValue
	}
	switch source[0] {
	case rawValue:
		res := make([]byte, len(source)-1)
		copy(res, source[1:])
		return res, nil
	case lz4Value:
		l, n := binary.Uvarint(source[1:])
		if n <= 0 || l > maxDecompressedSize {
			return nil, ErrCorruptValue
		}
		dest := make([]byte, l)
		size, err := lz4.UncompressBlock(source[1+n:], dest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptValue, err)
		}
		if uint64(size) != l {
			return nil, ErrCorruptValue
		}
		return dest, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrCorruptValue, source[0])
	}
}

// Get implements the Store interface.
func (s *CompressedStore) Get(key []byte) ([]byte, error) {
	v, err := s.ps.Get(key)
	if err != nil {
		return nil, err
	}
	return decompress(v)
}

// Put implements the Store interface.
func (s *CompressedStore) Put(key, value []byte) error {
	return s.ps.Put(key, compress(value))
}

// Delete implements the Store interface.
func (s *CompressedStore) Delete(key []byte) error {
	return s.ps.Delete(key)
}

// PutChangeSet implements the Store interface.
func (s *CompressedStore) PutChangeSet(puts map[string][]byte) error {
	cs := make(map[string][]byte, len(puts))
	for k, v := range puts {
		if v != nil {
			v = compress(v)
		}
		cs[k] = v
	}
	return s.ps.PutChangeSet(cs)
}

// Seek implements the Store interface. Items that can't be decompressed are
// skipped.
func (s *CompressedStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.ps.Seek(rng, func(k, v []byte) bool {
		dv, err := decompress(v)
		if err != nil {
			return true
		}
		return f(k, dv)
	})
}

// Close implements the Store interface.
func (s *CompressedStore) Close() error {
	return s.ps.Close()
}
