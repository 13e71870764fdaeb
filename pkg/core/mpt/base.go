package mpt

import (
	"github.com/nspcc-dev/ethtrie/pkg/crypto/hash"
	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// BaseNode memoizes the canonical RLP encoding of a node and its Keccak-256
// hash. Both are computed on first use and dropped when a node is copied for
// modification. It's embedded into every non-empty node type.
type BaseNode struct {
	hash       util.Uint256
	bytes      []byte
	hashValid  bool
	bytesValid bool

	// isFlushed is set for nodes that are known to be in the store (written
	// by Commit or decoded from it) and for nodes embedded into them.
	isFlushed bool
}

// BaseNodeIface abstracts away basic Node functions.
type BaseNodeIface interface {
	Hash() util.Uint256
	Type() NodeType
	Bytes() []byte
	IsFlushed() bool
	SetFlushed()
}

// setCache is used by the decoder, buf is the exact encoding of the node.
func (b *BaseNode) setCache(buf []byte, h util.Uint256) {
	b.bytes = buf
	b.hash = h
	b.bytesValid = true
	b.hashValid = true
	b.isFlushed = true
}

func (b *BaseNode) getHash(n Node) util.Uint256 {
	if !b.hashValid {
		b.updateHash(n)
	}
	return b.hash
}

func (b *BaseNode) getBytes(n Node) []byte {
	if !b.bytesValid {
		b.updateBytes(n)
	}
	return b.bytes
}

// updateHash hashes the full encoding, even for nodes that are embedded
// into their parent (the root is always referenced by hash).
func (b *BaseNode) updateHash(n Node) {
	if n.Type() == HashT {
		panic("can't update hash for hash node")
	}
	b.hash = hash.Keccak256(b.getBytes(n))
	b.hashValid = true
}

// updateBytes RLP-encodes n, children are either embedded or referenced by
// hash depending on their encoded size.
func (b *BaseNode) updateBytes(n Node) {
	b.bytes = encodeNode(n)
	b.bytesValid = true
}

func (b *BaseNode) invalidateCache() {
	b.bytesValid = false
	b.hashValid = false
	b.isFlushed = false
}

// IsFlushed tells whether the node doesn't need to be written by Commit.
func (b *BaseNode) IsFlushed() bool {
	return b.isFlushed
}

// SetFlushed marks the node as persisted.
func (b *BaseNode) SetFlushed() {
	b.isFlushed = true
}
