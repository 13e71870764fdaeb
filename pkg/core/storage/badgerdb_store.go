package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
)

// BadgerDBStore is a Store backed by BadgerDB.
type BadgerDBStore struct {
	db *badger.DB
}

// NewBadgerDBStore opens BadgerDB in the configured directory (or in memory).
func NewBadgerDBStore(cfg dbconfig.BadgerDBOptions) (*BadgerDBStore, error) {
	dir := cfg.Dir
	if cfg.InMemory {
		dir = ""
	}
	opts := badger.DefaultOptions(dir).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &BadgerDBStore{db: db}, nil
}

// Get implements the Store interface.
func (s *BadgerDBStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return val, err
}

// Put implements the Store interface.
func (s *BadgerDBStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete implements the Store interface.
func (s *BadgerDBStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// PutChangeSet implements the Store interface. The set is applied in a single
// transaction, so it's limited by Badger's transaction size.
func (s *BadgerDBStore) PutChangeSet(puts map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for k, v := range puts {
			var err error
			if v != nil {
				err = txn.Set([]byte(k), v)
			} else {
				err = txn.Delete([]byte(k))
			}
			if err != nil {
				return fmt.Errorf("writing %x: %w", k, err)
			}
		}
		return nil
	})
}

// Seek implements the Store interface.
func (s *BadgerDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	start, _ := seekBounds(rng)
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = rng.Prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(start); it.ValidForPrefix(rng.Prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !f(item.Key(), v) {
				break
			}
		}
		return nil
	})
}

// Close implements the Store interface.
func (s *BadgerDBStore) Close() error {
	return s.db.Close()
}
