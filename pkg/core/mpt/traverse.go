package mpt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage"
)

var errStop = errors.New("stop condition is met")

// Traverse calls f for every key-value pair of the trie in the ascending key
// order (which is the nibble order). It stops when f returns false. Key and
// value can be retained by f.
func (t *Trie) Traverse(f func(key, value []byte) bool) error {
	err := t.traverse(t.root, []byte{}, f)
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

// Find returns up to maxNum key-value pairs with keys having the given prefix
// in the ascending key order. Non-positive maxNum means no limit.
func (t *Trie) Find(prefix []byte, maxNum int) ([]storage.KeyValue, error) {
	path := toNibbles(prefix)
	start, consumed, err := t.getSubtrie(t.root, path, []byte{})
	if err != nil {
		return nil, withPath(err, path)
	}
	var res []storage.KeyValue
	err = t.traverse(start, consumed, func(k, v []byte) bool {
		res = append(res, storage.KeyValue{Key: k, Value: v})
		return maxNum <= 0 || len(res) < maxNum
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return res, nil
}

// getSubtrie returns the node whose subtrie contains all the keys with the
// given path prefix along with the full path to this node.
func (t *Trie) getSubtrie(curr Node, path []byte, consumed []byte) (Node, []byte, error) {
	if len(path) == 0 {
		return curr, consumed, nil
	}
	switch n := curr.(type) {
	case *LeafNode:
		if bytes.HasPrefix(n.key, path) {
			return n, consumed, nil
		}
	case *BranchNode:
		i, path := splitPath(path)
		return t.getSubtrie(n.Children[i], path, concat(consumed, []byte{i}))
	case *ExtensionNode:
		if bytes.HasPrefix(path, n.key) {
			return t.getSubtrie(n.next, path[len(n.key):], concat(consumed, n.key))
		}
		if bytes.HasPrefix(n.key, path) {
			return n, consumed, nil
		}
	case *HashNode:
		r, err := t.resolve(n, path)
		if err != nil {
			return nil, nil, err
		}
		return t.getSubtrie(r, path, consumed)
	}
	return EmptyNode{}, consumed, nil
}

func (t *Trie) traverse(curr Node, path []byte, f func(key, value []byte) bool) error {
	switch n := curr.(type) {
	case EmptyNode:
		return nil
	case *LeafNode:
		return emit(concat(path, n.key), n.value, f)
	case *BranchNode:
		if n.Value != nil {
			if err := emit(path, n.Value, f); err != nil {
				return err
			}
		}
		for i := range n.Children {
			if err := t.traverse(n.Children[i], concat(path, []byte{byte(i)}), f); err != nil {
				return err
			}
		}
		return nil
	case *ExtensionNode:
		return t.traverse(n.next, concat(path, n.key), f)
	case *HashNode:
		r, err := t.getFromStore(n.Hash())
		if err != nil {
			var mErr *MissingNodeError
			if errors.As(err, &mErr) {
				mErr.Path = path
			}
			return err
		}
		return t.traverse(r, path, f)
	default:
		panic("invalid MPT node type")
	}
}

func emit(path []byte, value []byte, f func(key, value []byte) bool) error {
	if len(path)%2 != 0 {
		return fmt.Errorf("%w: value at odd nibble path %x", ErrCorruptNode, path)
	}
	if !f(fromNibbles(path), bytes.Clone(value)) {
		return errStop
	}
	return nil
}
