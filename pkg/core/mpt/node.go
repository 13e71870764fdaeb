package mpt

import (
	"encoding/json"

	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// NodeType represents node type.
type NodeType byte

// Node types definitions.
const (
	BranchT    NodeType = 0x00
	ExtensionT NodeType = 0x01
	HashT      NodeType = 0x02
	LeafT      NodeType = 0x03
	EmptyT     NodeType = 0x04
)

// hashLen is the size of node reference, nodes with shorter encoding are
// embedded into their parents instead of being referenced by hash.
const hashLen = util.Uint256Size

// Node represents common interface of all MPT nodes. The set of
// implementations is closed: EmptyNode, *LeafNode, *ExtensionNode,
// *BranchNode and *HashNode.
type Node interface {
	json.Marshaler
	BaseNodeIface
}

// String implements fmt.Stringer.
func (t NodeType) String() string {
	switch t {
	case BranchT:
		return "branch"
	case ExtensionT:
		return "extension"
	case HashT:
		return "hash"
	case LeafT:
		return "leaf"
	case EmptyT:
		return "empty"
	default:
		return "unknown"
	}
}

// isEmpty checks whether n is an empty subtree.
func isEmpty(n Node) bool {
	_, ok := n.(EmptyNode)
	return n == nil || ok
}
