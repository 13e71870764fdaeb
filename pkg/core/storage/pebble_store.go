package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
)

// PebbleStore is a Store backed by CockroachDB's Pebble embedded KV engine.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens Pebble database at the given directory.
func NewPebbleStore(cfg dbconfig.PebbleOptions) (*PebbleStore, error) {
	return newPebbleStore(cfg.DataDirectoryPath, &pebble.Options{
		ReadOnly: cfg.ReadOnly,
	})
}

// NewPebbleMemStore creates Pebble database backed by an in-memory file
// system, it's mostly useful for tests.
func NewPebbleMemStore() (*PebbleStore, error) {
	return newPebbleStore("", &pebble.Options{FS: vfs.NewMem()})
}

func newPebbleStore(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Get implements the Store interface.
func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	res := make([]byte, len(val))
	copy(res, val)
	return res, closer.Close()
}

// Put implements the Store interface.
func (s *PebbleStore) Put(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

// Delete implements the Store interface.
func (s *PebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

// PutChangeSet implements the Store interface.
func (s *PebbleStore) PutChangeSet(puts map[string][]byte) error {
	b := s.db.NewBatch()
	defer b.Close()
	for k, v := range puts {
		var err error
		if v != nil {
			err = b.Set([]byte(k), v, nil)
		} else {
			err = b.Delete([]byte(k), nil)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Seek implements the Store interface.
func (s *PebbleStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	start, limit := seekBounds(rng)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: limit,
	})
	if err != nil {
		return
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if !f(iter.Key(), iter.Value()) {
			break
		}
	}
	_ = iter.Close()
}

// Close implements the Store interface.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}
