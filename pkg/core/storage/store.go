package storage

//go:generate mockgen -source store.go -destination store_mock.go -package storage

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage/dbconfig"
)

// SeekRange represents options for Store.Seek operation.
type SeekRange struct {
	// Prefix denotes the Seek's lookup key.
	// Empty Prefix means seeking through all keys in the DB.
	Prefix []byte
	// Start denotes value appended to the Prefix to start Seek from.
	// Seeking starting from some key includes this key to the result;
	// if no matching key was found then next suitable key is picked up.
	// Start may be empty. Empty Start means seeking through all keys in
	// the DB with matching Prefix.
	Start []byte
}

// KeyValue represents key-value pair.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

// Store is the underlying KV backend for the trie nodes. Trie only ever
// stores hash -> encoded node pairs in it, durability guarantees are owned
// by the implementation.
type Store interface {
	// Get returns the value stored for the key or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// PutChangeSet allows to push prepared changeset to the Store. Nil
	// values denote deleted keys. Implementations apply it atomically if
	// the underlying DB allows to.
	PutChangeSet(puts map[string][]byte) error
	// Seek can guarantee that provided key (k) and value (v) are the only valid until the next call to f.
	// Seek continues iteration until false is returned from f.
	// Key and value slices should not be modified.
	// Seek can guarantee that key-value items are sorted by key in ascending way.
	Seek(rng SeekRange, f func(k, v []byte) bool)
	Close() error
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	case dbconfig.SQLiteDB:
		store, err = NewSQLiteStore(cfg.SQLiteOptions)
	case dbconfig.PebbleDB:
		store, err = NewPebbleStore(cfg.PebbleOptions)
	case dbconfig.BadgerDB:
		store, err = NewBadgerDBStore(cfg.BadgerDBOptions)
	case dbconfig.RedisDB:
		store, err = NewRedisStore(cfg.RedisOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Compress {
		store = NewCompressedStore(store)
	}
	return store, nil
}

// seekBounds returns the first key to start iteration from and the exclusive
// upper limit of the prefix range (nil if unbounded).
func seekBounds(rng SeekRange) (start []byte, limit []byte) {
	start = make([]byte, len(rng.Prefix)+len(rng.Start))
	copy(start, rng.Prefix)
	copy(start[len(rng.Prefix):], rng.Start)
	return start, prefixLimit(rng.Prefix)
}

// prefixLimit returns the smallest key that is greater than all keys with the
// given prefix, nil means there is no such key.
func prefixLimit(prefix []byte) []byte {
	limit := make([]byte, len(prefix))
	copy(limit, prefix)
	for i := len(limit) - 1; i >= 0; i-- {
		if limit[i] < 0xff {
			limit[i]++
			return limit[:i+1]
		}
	}
	return nil
}
