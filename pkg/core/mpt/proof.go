package mpt

import (
	"bytes"

	"github.com/nspcc-dev/ethtrie/pkg/crypto/hash"
	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// GetProof returns a proof for the key in t. Proof consists of encoded nodes
// occurring on the path from the root to the key (or to the place where the
// path diverges if there is no such key). Only nodes referenced by hash are
// included, the smaller ones are embedded into their parents, the root is
// always the first element. Proof for the key missing in the trie proves its
// absence.
func (t *Trie) GetProof(key []byte) ([][]byte, error) {
	var proof [][]byte
	path := toNibbles(key)
	err := t.getProof(t.root, path, true, &proof)
	if err != nil {
		return nil, withPath(err, path)
	}
	return proof, nil
}

func (t *Trie) getProof(curr Node, path []byte, isRoot bool, proofs *[][]byte) error {
	if h, ok := curr.(*HashNode); ok {
		r, err := t.resolve(h, path)
		if err != nil {
			return err
		}
		curr = r
	}
	if isRoot || isReferenced(curr) {
		*proofs = append(*proofs, bytes.Clone(curr.Bytes()))
	}
	switch n := curr.(type) {
	case *BranchNode:
		if len(path) == 0 {
			return nil
		}
		i, path := splitPath(path)
		return t.getProof(n.Children[i], path, false, proofs)
	case *ExtensionNode:
		if bytes.HasPrefix(path, n.key) {
			return t.getProof(n.next, path[len(n.key):], false, proofs)
		}
	}
	return nil
}

// VerifyProof verifies that proof is valid for the key in the trie with the
// specified root hash. It returns the value for the key (nil if the proof
// shows that there is no such key) and true if the proof is valid. Every
// proof element must be used.
func VerifyProof(rh util.Uint256, key []byte, proof [][]byte) ([]byte, bool) {
	var (
		path     = toNibbles(key)
		expected = rh
	)
	for i := range proof {
		if hash.Keccak256(proof[i]) != expected {
			return nil, false
		}
		n, err := DecodeNode(proof[i])
		if err != nil {
			return nil, false
		}
		var (
			value []byte
			done  bool
		)
		value, path, expected, done = walkProofNode(n, path)
		if done {
			return value, i == len(proof)-1
		}
	}
	return nil, false
}

// walkProofNode follows the path through n and its embedded children. It
// either finishes the lookup (done is true, value is nil for a missing key)
// or returns the hash of the next node to be checked and the remaining path.
func walkProofNode(n Node, path []byte) ([]byte, []byte, util.Uint256, bool) {
	for {
		switch c := n.(type) {
		case EmptyNode:
			return nil, path, util.Uint256{}, true
		case *LeafNode:
			if bytes.Equal(path, c.key) {
				return c.value, path, util.Uint256{}, true
			}
			return nil, path, util.Uint256{}, true
		case *ExtensionNode:
			if !bytes.HasPrefix(path, c.key) {
				return nil, path, util.Uint256{}, true
			}
			path = path[len(c.key):]
			n = c.next
		case *BranchNode:
			if len(path) == 0 {
				return c.Value, path, util.Uint256{}, true
			}
			n = c.Children[path[0]]
			path = path[1:]
		case *HashNode:
			return nil, path, c.Hash(), false
		default:
			return nil, path, util.Uint256{}, true
		}
	}
}

// VerifyMembership checks that proof shows the key has the given value in the
// trie with the specified root hash. Nil (or empty) value claims the key is
// absent.
func VerifyMembership(rh util.Uint256, key []byte, value []byte, proof [][]byte) bool {
	v, ok := VerifyProof(rh, key, proof)
	if !ok {
		return false
	}
	if len(value) == 0 {
		return v == nil
	}
	return v != nil && bytes.Equal(v, value)
}
