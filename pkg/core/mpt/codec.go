package mpt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/nspcc-dev/ethtrie/pkg/crypto/hash"
	"github.com/nspcc-dev/ethtrie/pkg/util"
)

type flushedNode interface {
	setCache([]byte, util.Uint256)
}

// encodeNode returns canonical RLP encoding of the node.
func encodeNode(n Node) []byte {
	if isEmpty(n) {
		return rlp.EmptyString
	}
	w := rlp.NewEncoderBuffer(nil)
	switch n := n.(type) {
	case *HashNode:
		w.WriteBytes(n.hash[:])
	case *LeafNode:
		l := w.List()
		w.WriteBytes(compactEncode(n.key, true))
		w.WriteBytes(n.value)
		w.ListEnd(l)
	case *ExtensionNode:
		l := w.List()
		w.WriteBytes(compactEncode(n.key, false))
		encodeRef(w, n.next)
		w.ListEnd(l)
	case *BranchNode:
		l := w.List()
		for i := range n.Children {
			encodeRef(w, n.Children[i])
		}
		w.WriteBytes(n.Value)
		w.ListEnd(l)
	default:
		panic("invalid MPT node type")
	}
	return w.ToBytes()
}

// encodeRef writes child reference: small nodes are embedded as is, others
// are referenced by hash.
func encodeRef(w rlp.EncoderBuffer, n Node) {
	switch n := n.(type) {
	case nil, EmptyNode:
		_, _ = w.Write(rlp.EmptyString)
	case *HashNode:
		w.WriteBytes(n.hash[:])
	default:
		if bs := n.Bytes(); len(bs) < hashLen {
			_, _ = w.Write(bs)
			return
		}
		h := n.Hash()
		w.WriteBytes(h[:])
	}
}

// isReferenced tells whether the node is referenced by hash from its parent
// (and thus needs to be stored separately).
func isReferenced(n Node) bool {
	return len(n.Bytes()) >= hashLen
}

// DecodeNode decodes node from its canonical encoding. Returned node and all
// of its embedded children are marked as flushed and have their hashes
// calculated, buf is not retained.
func DecodeNode(buf []byte) (Node, error) {
	if bytes.Equal(buf, rlp.EmptyString) {
		return EmptyNode{}, nil
	}
	n, err := decodeNode(bytes.Clone(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptNode, err)
	}
	return n, nil
}

func decodeNode(buf []byte) (Node, error) {
	elems, rest, err := rlp.SplitList(buf)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(rest))
	}
	var n Node
	switch c, _ := rlp.CountValues(elems); c {
	case 2:
		n, err = decodeShort(elems)
	case childrenCount + 1:
		n, err = decodeBranch(elems)
	default:
		return nil, fmt.Errorf("invalid number of list elements: %d", c)
	}
	if err != nil {
		return nil, err
	}
	n.(flushedNode).setCache(buf, hash.Keccak256(buf))
	return n, nil
}

func decodeShort(elems []byte) (Node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	key, terminal, err := compactDecode(kbuf)
	if err != nil {
		return nil, err
	}
	if terminal {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid value node: %w", err)
		}
		if len(val) == 0 {
			return nil, errors.New("empty leaf value")
		}
		return NewLeafNode(key, val), nil
	}
	if len(key) == 0 {
		return nil, errors.New("empty extension key")
	}
	next, _, err := decodeRef(rest)
	if err != nil {
		return nil, err
	}
	switch next.(type) {
	case *BranchNode, *HashNode:
	default:
		return nil, fmt.Errorf("invalid extension child: %s", next.Type())
	}
	return NewExtensionNode(key, next), nil
}

func decodeBranch(elems []byte) (Node, error) {
	b := new(BranchNode)
	for i := range b.Children {
		c, rest, err := decodeRef(elems)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		b.Children[i] = c
		elems = rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return nil, fmt.Errorf("invalid value node: %w", err)
	}
	if len(val) > 0 {
		b.Value = val
	}
	return b, nil
}

func decodeRef(buf []byte) (Node, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, buf, err
	}
	switch {
	case kind == rlp.List:
		size := len(buf) - len(rest)
		if size >= hashLen {
			return nil, buf, fmt.Errorf("oversized embedded node (size is %d bytes, want size < %d)", size, hashLen)
		}
		n, err := decodeNode(buf[:size])
		return n, rest, err
	case kind == rlp.String && len(val) == 0:
		return EmptyNode{}, rest, nil
	case kind == rlp.String && len(val) == hashLen:
		h, _ := util.Uint256DecodeBytesBE(val)
		return NewHashNode(h), rest, nil
	default:
		return nil, nil, fmt.Errorf("invalid RLP string size %d (want 0 or 32)", len(val))
	}
}
