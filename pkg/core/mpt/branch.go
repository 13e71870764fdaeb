package mpt

import (
	"encoding/hex"
	"encoding/json"

	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// childrenCount is the number of children of a branch node, one per nibble.
const childrenCount = 16

// BranchNode represents an MPT's branch node.
type BranchNode struct {
	BaseNode
	Children [childrenCount]Node
	// Value is set for keys ending exactly at this node, nil otherwise.
	Value []byte
}

var _ Node = (*BranchNode)(nil)

// NewBranchNode returns a new branch node with all children being empty.
func NewBranchNode() *BranchNode {
	b := new(BranchNode)
	for i := range b.Children {
		b.Children[i] = EmptyNode{}
	}
	return b
}

// Type implements Node interface.
func (b *BranchNode) Type() NodeType { return BranchT }

// Hash implements BaseNode interface.
func (b *BranchNode) Hash() util.Uint256 {
	return b.getHash(b)
}

// Bytes implements BaseNode interface.
func (b *BranchNode) Bytes() []byte {
	return b.getBytes(b)
}

// clone returns a copy of b with invalidated cache, ready to be modified.
func (b *BranchNode) clone() *BranchNode {
	res := &BranchNode{
		Children: b.Children,
		Value:    b.Value,
	}
	return res
}

// MarshalJSON implements the json.Marshaler.
func (b *BranchNode) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"children": b.Children,
	}
	if b.Value != nil {
		m["value"] = hex.EncodeToString(b.Value)
	}
	return json.Marshal(m)
}
