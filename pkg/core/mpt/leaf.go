package mpt

import (
	"encoding/hex"
	"encoding/json"

	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// LeafNode represents MPT's leaf node.
type LeafNode struct {
	BaseNode
	key   []byte
	value []byte
}

var _ Node = (*LeafNode)(nil)

// NewLeafNode returns a leaf node with the specified remaining key (in
// nibbles) and value.
func NewLeafNode(key, value []byte) *LeafNode {
	return &LeafNode{key: key, value: value}
}

// Type implements Node interface.
func (n LeafNode) Type() NodeType { return LeafT }

// Hash implements BaseNode interface.
func (n *LeafNode) Hash() util.Uint256 {
	return n.getHash(n)
}

// Bytes implements BaseNode interface.
func (n *LeafNode) Bytes() []byte {
	return n.getBytes(n)
}

// Key returns remaining key nibbles of the leaf.
func (n *LeafNode) Key() []byte {
	return n.key
}

// Value returns leaf's value, it must not be modified.
func (n *LeafNode) Value() []byte {
	return n.value
}

// MarshalJSON implements json.Marshaler.
func (n *LeafNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"key":   hex.EncodeToString(compactEncode(n.key, true)),
		"value": hex.EncodeToString(n.value),
	})
}
