package mpt

import (
	"bytes"
	"slices"
	"sort"
)

// Batch is a batch of trie changes. It stores key-value pairs in a sorted
// state, nil (or empty) value means key removal.
type Batch struct {
	kv []keyValue
}

type keyValue struct {
	key   []byte
	value []byte
}

// MapToMPTBatch makes a Batch from an unordered set of changes.
func MapToMPTBatch(m map[string][]byte) Batch {
	var b Batch

	b.kv = make([]keyValue, 0, len(m))
	for k, v := range m {
		b.kv = append(b.kv, keyValue{toNibbles([]byte(k)), v})
	}
	slices.SortFunc(b.kv, func(a, b keyValue) int {
		return bytes.Compare(a.key, b.key)
	})
	return b
}

// Add adds a key-value pair to the batch. If there is an item with the same
// key, it's replaced.
func (b *Batch) Add(key []byte, value []byte) {
	path := toNibbles(key)
	i := sort.Search(len(b.kv), func(i int) bool {
		return bytes.Compare(path, b.kv[i].key) <= 0
	})
	if i == len(b.kv) {
		b.kv = append(b.kv, keyValue{path, value})
	} else if bytes.Equal(b.kv[i].key, path) {
		b.kv[i].value = value
	} else {
		b.kv = append(b.kv, keyValue{})
		copy(b.kv[i+1:], b.kv[i:])
		b.kv[i] = keyValue{path, value}
	}
}

// Len returns the number of items in the batch.
func (b *Batch) Len() int {
	return len(b.kv)
}

// PutBatch puts a batch to a trie. It's atomic: either all of the changes
// are applied or the trie is not changed at all. It returns the number of
// successfully processed elements, that is the batch length if there is no
// error.
func (t *Trie) PutBatch(b Batch) (int, error) {
	for i := range b.kv {
		if err := t.checkValue(b.kv[i].value); err != nil {
			return 0, err
		}
	}
	r := t.root
	for i, kv := range b.kv {
		var err error
		r, err = t.put(r, kv.key, kv.value)
		if err != nil {
			return i, withPath(err, kv.key)
		}
	}
	t.root = r
	return len(b.kv), nil
}
