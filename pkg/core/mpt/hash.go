package mpt

import (
	"encoding/json"

	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// HashNode represents MPT's hash node, a reference to a node that is
// committed to the storage.
type HashNode struct {
	BaseNode
}

var _ Node = (*HashNode)(nil)

// NewHashNode returns hash node with the specified hash.
func NewHashNode(h util.Uint256) *HashNode {
	return &HashNode{
		BaseNode: BaseNode{
			hash:       h,
			bytes:      append([]byte{0x80 + hashLen}, h[:]...),
			hashValid:  true,
			bytesValid: true,
			isFlushed:  true,
		},
	}
}

// Type implements Node interface.
func (h *HashNode) Type() NodeType { return HashT }

// Hash implements Node interface.
func (h *HashNode) Hash() util.Uint256 {
	return h.hash
}

// Bytes returns the reference form of the node (RLP string of the hash), a
// HashNode has no encoding of its own.
func (h *HashNode) Bytes() []byte {
	return h.bytes
}

// MarshalJSON implements json.Marshaler.
func (h *HashNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"hash": h.hash.StringBE()})
}
