package storage

import (
	"bytes"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of a Store, mainly
// used for testing. Do not use MemoryStore in production.
type MemoryStore struct {
	mut sync.RWMutex
	mem map[string][]byte
}

// NewMemoryStore creates a new MemoryStore object.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mem: make(map[string][]byte),
	}
}

// Get implements the Store interface.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	if val, ok := s.mem[string(key)]; ok && val != nil {
		return val, nil
	}
	return nil, ErrKeyNotFound
}

// Put implements the Store interface. Never returns an error.
func (s *MemoryStore) Put(key, value []byte) error {
	s.mut.Lock()
	s.mem[string(key)] = slices.Clone(value)
	s.mut.Unlock()
	return nil
}

// Delete implements the Store interface. Never returns an error.
func (s *MemoryStore) Delete(key []byte) error {
	s.mut.Lock()
	delete(s.mem, string(key))
	s.mut.Unlock()
	return nil
}

// PutChangeSet implements the Store interface. Never returns an error.
func (s *MemoryStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k, v := range puts {
		if v != nil {
			s.mem[k] = v
		} else {
			delete(s.mem, k)
		}
	}
	s.mut.Unlock()
	return nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return len(s.mem)
}

// Seek implements the Store interface.
func (s *MemoryStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	kvs := s.collect(rng, false)
	s.mut.RUnlock()
	for _, kv := range kvs {
		if !f(kv.Key, kv.Value) {
			break
		}
	}
}

// collect returns sorted key-value pairs matching rng. It's supposed to be
// called with mutex locked. Deleted (nil) items are included if withDeleted
// is set.
func (s *MemoryStore) collect(rng SeekRange, withDeleted bool) []KeyValue {
	var (
		sPrefix = string(rng.Prefix)
		sStart  = sPrefix + string(rng.Start)
		kvs     []KeyValue
	)
	for k, v := range s.mem {
		if (v != nil || withDeleted) && strings.HasPrefix(k, sPrefix) && k >= sStart {
			kvs = append(kvs, KeyValue{Key: []byte(k), Value: v})
		}
	}
	slices.SortFunc(kvs, func(a, b KeyValue) int {
		return bytes.Compare(a.Key, b.Key)
	})
	return kvs
}

// Close implements Store interface and clears up memory. Never returns an
// error.
func (s *MemoryStore) Close() error {
	s.mut.Lock()
	s.mem = make(map[string][]byte)
	s.mut.Unlock()
	return nil
}
