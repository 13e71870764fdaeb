package mpt

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/ethtrie/pkg/util"
)

var (
	// ErrNotFound is returned when requested trie item is missing.
	ErrNotFound = errors.New("item not found")
	// ErrCorruptNode is returned when bytes fetched from the storage (or
	// provided by the user) can't be decoded into a node.
	ErrCorruptNode = errors.New("corrupt node")
	// ErrEncoding is returned when an item violates trie size constraints.
	// Such items are rejected before any storage write.
	ErrEncoding = errors.New("encoding error")
)

// MissingNodeError is returned when a node referenced by hash can't be
// retrieved from the storage.
type MissingNodeError struct {
	Hash util.Uint256
	// Path is a nibble path from the root to the missing node.
	Path []byte
	// Err is the storage error.
	Err error

	// remaining is the number of key nibbles left to process at the
	// missing node, Path is derived from it by the public operation.
	remaining int
	// suffix is appended to the path when the missing node is not on
	// the key path (a sibling resolved during deletion).
	suffix []byte
}

// Error implements the error interface.
func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("missing trie node %s (path %x): %v", e.Hash.StringBE(), e.Path, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *MissingNodeError) Unwrap() error {
	return e.Err
}

// withPath fills MissingNodeError path (if err is one) using the full
// nibble path of the operation.
func withPath(err error, path []byte) error {
	var mErr *MissingNodeError
	if errors.As(err, &mErr) && mErr.Path == nil && mErr.remaining <= len(path) {
		mErr.Path = concat(path[:len(path)-mErr.remaining], mErr.suffix)
	}
	return err
}
