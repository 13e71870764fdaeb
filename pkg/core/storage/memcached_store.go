package storage

import (
	"bytes"
	"slices"
)

// MemCachedStore is a wrapper around persistent store that caches all changes
// being made for them to be later flushed in one batch.
type MemCachedStore struct {
	MemoryStore

	// Persistent Store.
	ps Store
}

// NewMemCachedStore creates a new MemCachedStore object.
func NewMemCachedStore(lower Store) *MemCachedStore {
	return &MemCachedStore{
		MemoryStore: *NewMemoryStore(),
		ps:          lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	val, ok := s.mem[string(key)]
	s.mut.RUnlock()
	if ok {
		if val == nil {
			return nil, ErrKeyNotFound
		}
		return val, nil
	}
	return s.ps.Get(key)
}

// Delete drops KV pair from the store. Never returns an error.
func (s *MemCachedStore) Delete(key []byte) error {
	s.mut.Lock()
	s.mem[string(key)] = nil
	s.mut.Unlock()
	return nil
}

// PutChangeSet implements the Store interface. Never returns an error.
func (s *MemCachedStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k, v := range puts {
		s.mem[k] = v
	}
	s.mut.Unlock()
	return nil
}

// GetBatch returns currently accumulated changeset.
func (s *MemCachedStore) GetBatch() []KeyValue {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.MemoryStore.collect(SeekRange{}, true)
}

// Seek implements the Store interface. Items of the cached layer take
// precedence over the ones from the persistent store.
func (s *MemCachedStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	mem := s.MemoryStore.collect(rng, true)
	s.mut.RUnlock()

	var lower []KeyValue
	s.ps.Seek(rng, func(k, v []byte) bool {
		lower = append(lower, KeyValue{Key: slices.Clone(k), Value: slices.Clone(v)})
		return true
	})

	var i, j int
	for i < len(mem) || j < len(lower) {
		var kv KeyValue
		switch {
		case j == len(lower) || i < len(mem) && bytes.Compare(mem[i].Key, lower[j].Key) < 0:
			kv = mem[i]
			i++
		case i == len(mem) || bytes.Compare(mem[i].Key, lower[j].Key) > 0:
			kv = lower[j]
			j++
		default: // Same key, cached value wins.
			kv = mem[i]
			i++
			j++
		}
		if kv.Value == nil {
			continue
		}
		if !f(kv.Key, kv.Value) {
			return
		}
	}
}

// Persist flushes all the MemoryStore contents into the (supposedly) persistent
// store ps. It returns the number of flushed items.
func (s *MemCachedStore) Persist() (int, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	keys := len(s.mem)
	if keys == 0 {
		return 0, nil
	}
	err := s.ps.PutChangeSet(s.mem)
	if err != nil {
		return 0, err
	}
	s.mem = make(map[string][]byte)
	return keys, nil
}

// Close implements Store interface, clears up memory and closes the lower layer
// Store.
func (s *MemCachedStore) Close() error {
	// It's always successful.
	_ = s.MemoryStore.Close()
	return s.ps.Close()
}
