package mpt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage"
	"github.com/nspcc-dev/ethtrie/pkg/util"
	"go.uber.org/zap"
)

// Config is a set of Trie parameters.
type Config struct {
	// Store keeps committed nodes, it's mandatory.
	Store storage.Store
	// Cache is a decoded node cache, an unbounded one is created if nil.
	// It can be shared between tries using the same Store.
	Cache *NodeCache
	// MaxValueLength limits the size of values, 0 means no limit.
	MaxValueLength int
	// Log is used for debug messages, nop logger is used if nil.
	Log *zap.Logger
}

// Trie is an MPT trie storing all key-value pairs. It's not safe for
// concurrent modification, but different tries can share the same Store and
// NodeCache.
type Trie struct {
	Store storage.Store

	root           Node
	cache          *NodeCache
	maxValueLength int
	log            *zap.Logger
}

// NewTrie returns a new MPT trie with the given root node. Nil root means
// an empty trie.
func NewTrie(root Node, cfg Config) *Trie {
	if root == nil {
		root = EmptyNode{}
	}
	if cfg.Cache == nil {
		cfg.Cache = NewNodeCache(0)
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	return &Trie{
		Store:          cfg.Store,
		root:           root,
		cache:          cfg.Cache,
		maxValueLength: cfg.MaxValueLength,
		log:            cfg.Log,
	}
}

// NewTrieAt returns a trie rooted at the previously committed root hash.
// Nodes are fetched lazily, so no check for root presence is performed here.
func NewTrieAt(root util.Uint256, cfg Config) *Trie {
	return NewTrie(rootNode(root), cfg)
}

// At returns a view of the trie state at the given (committed) root sharing
// the storage and node cache with t.
func (t *Trie) At(root util.Uint256) *Trie {
	return &Trie{
		Store:          t.Store,
		root:           rootNode(root),
		cache:          t.cache,
		maxValueLength: t.maxValueLength,
		log:            t.log,
	}
}

func rootNode(h util.Uint256) Node {
	if h == EmptyRoot {
		return EmptyNode{}
	}
	return NewHashNode(h)
}

// Get returns value for the provided key in t. ErrNotFound is returned if
// there is no such key.
func (t *Trie) Get(key []byte) ([]byte, error) {
	path := toNibbles(key)
	bs, err := t.getWithPath(t.root, path)
	if err != nil {
		return nil, withPath(err, path)
	}
	return bytes.Clone(bs), nil
}

// getWithPath returns value the provided path in a subtrie rooting in curr.
func (t *Trie) getWithPath(curr Node, path []byte) ([]byte, error) {
	switch n := curr.(type) {
	case EmptyNode:
	case *LeafNode:
		if bytes.Equal(path, n.key) {
			return n.value, nil
		}
	case *BranchNode:
		if len(path) == 0 {
			if n.Value != nil {
				return n.Value, nil
			}
			break
		}
		i, path := splitPath(path)
		return t.getWithPath(n.Children[i], path)
	case *HashNode:
		r, err := t.resolve(n, path)
		if err != nil {
			return nil, err
		}
		return t.getWithPath(r, path)
	case *ExtensionNode:
		if bytes.HasPrefix(path, n.key) {
			return t.getWithPath(n.next, path[len(n.key):])
		}
	default:
		panic("invalid MPT node type")
	}
	return nil, ErrNotFound
}

// Put puts key-value pair in t. Empty value removes the key.
func (t *Trie) Put(key, value []byte) error {
	if err := t.checkValue(value); err != nil {
		return err
	}
	path := toNibbles(key)
	r, err := t.put(t.root, path, value)
	if err != nil {
		return withPath(err, path)
	}
	t.root = r
	return nil
}

func (t *Trie) checkValue(value []byte) error {
	if t.maxValueLength > 0 && len(value) > t.maxValueLength {
		return fmt.Errorf("%w: value is too big (%d > %d)", ErrEncoding, len(value), t.maxValueLength)
	}
	return nil
}

// put puts (or removes if value is empty) value at path in the subtrie
// rooted at curr and returns a new subtrie root.
func (t *Trie) put(curr Node, path []byte, value []byte) (Node, error) {
	if len(value) == 0 {
		r, _, err := t.deleteFromNode(curr, path)
		return r, err
	}
	return t.putIntoNode(curr, path, value)
}

// putIntoLeaf puts val to trie if current node is a Leaf.
// It returns Node if curr needs to be replaced and error if any.
func (t *Trie) putIntoLeaf(curr *LeafNode, path []byte, val []byte) (Node, error) {
	if bytes.Equal(path, curr.key) {
		if bytes.Equal(val, curr.value) {
			return curr, nil
		}
		return NewLeafNode(curr.key, val), nil
	}

	lp := lcpLen(path, curr.key)
	b := NewBranchNode()
	if lp == len(curr.key) {
		b.Value = curr.value
	} else {
		b.Children[curr.key[lp]] = NewLeafNode(curr.key[lp+1:], curr.value)
	}
	if lp == len(path) {
		b.Value = val
	} else {
		b.Children[path[lp]] = NewLeafNode(path[lp+1:], val)
	}
	return newSubTrie(path[:lp], b), nil
}

// putIntoBranch puts val to trie if current node is a Branch.
// It returns Node if curr needs to be replaced and error if any.
func (t *Trie) putIntoBranch(curr *BranchNode, path []byte, val []byte) (Node, error) {
	if len(path) == 0 {
		if bytes.Equal(curr.Value, val) {
			return curr, nil
		}
		b := curr.clone()
		b.Value = val
		return b, nil
	}
	i, path := splitPath(path)
	r, err := t.putIntoNode(curr.Children[i], path, val)
	if err != nil {
		return nil, err
	}
	if r == curr.Children[i] {
		return curr, nil
	}
	b := curr.clone()
	b.Children[i] = r
	return b, nil
}

// putIntoExtension puts val to trie if current node is an Extension.
// It returns Node if curr needs to be replaced and error if any.
func (t *Trie) putIntoExtension(curr *ExtensionNode, path []byte, val []byte) (Node, error) {
	if bytes.HasPrefix(path, curr.key) {
		r, err := t.putIntoNode(curr.next, path[len(curr.key):], val)
		if err != nil {
			return nil, err
		}
		if r == curr.next {
			return curr, nil
		}
		return NewExtensionNode(curr.key, r), nil
	}

	lp := lcpLen(curr.key, path)
	keyTail := curr.key[lp:]
	pathTail := path[lp:]

	b := NewBranchNode()
	b.Children[keyTail[0]] = newSubTrie(keyTail[1:], curr.next)
	if len(pathTail) == 0 {
		b.Value = val
	} else {
		i, pathTail := splitPath(pathTail)
		b.Children[i] = NewLeafNode(pathTail, val)
	}
	return newSubTrie(curr.key[:lp], b), nil
}

// putIntoHash puts val to trie if current node is a HashNode.
// It returns Node if curr needs to be replaced and error if any.
func (t *Trie) putIntoHash(curr *HashNode, path []byte, val []byte) (Node, error) {
	result, err := t.resolve(curr, path)
	if err != nil {
		return nil, err
	}
	r, err := t.putIntoNode(result, path, val)
	if err != nil {
		return nil, err
	}
	if r == result {
		return curr, nil
	}
	return r, nil
}

// newSubTrie creates a new trie containing node at the provided path.
func newSubTrie(path []byte, val Node) Node {
	if len(path) == 0 {
		return val
	}
	return NewExtensionNode(path, val)
}

func (t *Trie) putIntoNode(curr Node, path []byte, val []byte) (Node, error) {
	switch n := curr.(type) {
	case EmptyNode:
		return NewLeafNode(path, val), nil
	case *LeafNode:
		return t.putIntoLeaf(n, path, val)
	case *BranchNode:
		return t.putIntoBranch(n, path, val)
	case *ExtensionNode:
		return t.putIntoExtension(n, path, val)
	case *HashNode:
		return t.putIntoHash(n, path, val)
	default:
		panic("invalid MPT node type")
	}
}

// Delete removes key from trie. It returns false and no error on missing
// key, the trie is not changed then.
func (t *Trie) Delete(key []byte) (bool, error) {
	path := toNibbles(key)
	r, found, err := t.deleteFromNode(t.root, path)
	if err != nil {
		return false, withPath(err, path)
	}
	t.root = r
	return found, nil
}

func (t *Trie) deleteFromBranch(b *BranchNode, path []byte) (Node, bool, error) {
	var nb *BranchNode
	if len(path) == 0 {
		if b.Value == nil {
			return b, false, nil
		}
		nb = b.clone()
		nb.Value = nil
	} else {
		i, rest := splitPath(path)
		r, found, err := t.deleteFromNode(b.Children[i], rest)
		if err != nil || !found {
			return b, false, err
		}
		nb = b.clone()
		nb.Children[i] = r
	}

	var count, index int
	for i := range nb.Children {
		if !isEmpty(nb.Children[i]) {
			index = i
			count++
		}
	}
	switch {
	case count > 1 || (count == 1 && nb.Value != nil):
		return nb, true, nil
	case count == 0:
		if nb.Value == nil {
			return EmptyNode{}, true, nil
		}
		return NewLeafNode([]byte{}, nb.Value), true, nil
	}

	// A single child and no value, the branch is merged into it.
	c := nb.Children[index]
	child := c
	prefix := []byte{byte(index)}
	if h, ok := c.(*HashNode); ok {
		var err error
		child, err = t.resolve(h, path)
		if err != nil {
			var mErr *MissingNodeError
			if errors.As(err, &mErr) {
				mErr.suffix = prefix
			}
			return nil, false, err
		}
	}
	switch n := child.(type) {
	case *LeafNode:
		return NewLeafNode(concat(prefix, n.key), n.value), true, nil
	case *ExtensionNode:
		return NewExtensionNode(concat(prefix, n.key), n.next), true, nil
	default:
		return NewExtensionNode(prefix, c), true, nil
	}
}

func (t *Trie) deleteFromExtension(n *ExtensionNode, path []byte) (Node, bool, error) {
	if !bytes.HasPrefix(path, n.key) {
		return n, false, nil
	}
	r, found, err := t.deleteFromNode(n.next, path[len(n.key):])
	if err != nil || !found {
		return n, false, err
	}
	switch nxt := r.(type) {
	case EmptyNode:
		return nxt, true, nil
	case *ExtensionNode:
		return NewExtensionNode(concat(n.key, nxt.key), nxt.next), true, nil
	case *LeafNode:
		return NewLeafNode(concat(n.key, nxt.key), nxt.value), true, nil
	default:
		return NewExtensionNode(n.key, r), true, nil
	}
}

func (t *Trie) deleteFromNode(curr Node, path []byte) (Node, bool, error) {
	switch n := curr.(type) {
	case EmptyNode:
		return n, false, nil
	case *LeafNode:
		if bytes.Equal(path, n.key) {
			return EmptyNode{}, true, nil
		}
		return n, false, nil
	case *BranchNode:
		return t.deleteFromBranch(n, path)
	case *ExtensionNode:
		return t.deleteFromExtension(n, path)
	case *HashNode:
		r, err := t.resolve(n, path)
		if err != nil {
			return nil, false, err
		}
		nr, found, err := t.deleteFromNode(r, path)
		if err != nil || !found {
			return n, false, err
		}
		return nr, true, nil
	default:
		panic("invalid MPT node type")
	}
}

// StateRoot returns root hash of t. It's EmptyRoot for an empty trie.
func (t *Trie) StateRoot() util.Uint256 {
	return t.root.Hash()
}

// Commit puts every new node of the trie to the storage in a single change
// set and returns the root hash. Nodes are embedded into their parents if
// their encoding is shorter than a hash, so only the root and bigger nodes
// are stored. If the storage fails, the trie is left as is and the error is
// returned without changes. After successful commit the in-memory trie is
// collapsed to the root hash node, its nodes are available via the node
// cache.
func (t *Trie) Commit() (util.Uint256, error) {
	root := t.StateRoot()
	if t.root.IsFlushed() {
		t.root = rootNode(root)
		return root, nil
	}

	var (
		nodes []Node
		puts  = make(map[string][]byte)
	)
	collectUnflushed(t.root, true, puts, &nodes)
	if err := t.Store.PutChangeSet(puts); err != nil {
		t.log.Debug("failed to commit trie",
			zap.Stringer("root", root),
			zap.Error(err))
		return util.Uint256{}, err
	}
	for _, n := range nodes {
		n.SetFlushed()
		if _, ok := puts[string(n.Hash().BytesBE())]; ok {
			t.cache.Add(n.Hash(), collapseChildren(n))
		}
	}
	t.root = rootNode(root)
	updateCommitMetrics(len(puts))
	t.log.Debug("trie committed",
		zap.Stringer("root", root),
		zap.Int("nodes", len(puts)))
	return root, nil
}

// collectUnflushed walks all unflushed nodes of the subtrie in post-order,
// appends them to nodes and adds the ones referenced by hash to puts.
func collectUnflushed(n Node, isRoot bool, puts map[string][]byte, nodes *[]Node) {
	if n.IsFlushed() {
		return
	}
	switch n := n.(type) {
	case *BranchNode:
		for i := range n.Children {
			collectUnflushed(n.Children[i], false, puts, nodes)
		}
	case *ExtensionNode:
		collectUnflushed(n.next, false, puts, nodes)
	}
	h := n.Hash()
	*nodes = append(*nodes, n)
	if isRoot || isReferenced(n) {
		puts[string(h.BytesBE())] = n.Bytes()
	}
}

// collapseChildren returns a copy of the flushed node n with every
// hash-referenced child replaced by a HashNode, so a cached node never holds
// the committed subtrie below it.
func collapseChildren(n Node) Node {
	switch n := n.(type) {
	case *BranchNode:
		res := &BranchNode{BaseNode: n.BaseNode, Children: n.Children, Value: n.Value}
		for i := range res.Children {
			res.Children[i] = toHashRef(res.Children[i])
		}
		return res
	case *ExtensionNode:
		return &ExtensionNode{BaseNode: n.BaseNode, key: n.key, next: toHashRef(n.next)}
	default:
		return n
	}
}

// toHashRef replaces a child that is not embedded into its parent with a
// reference to it.
func toHashRef(n Node) Node {
	if _, ok := n.(*HashNode); ok || !isReferenced(n) {
		return n
	}
	return NewHashNode(n.Hash())
}

// resolve returns the node referenced by h, the node cache is checked
// first. path is the remaining key part used for error reporting only.
func (t *Trie) resolve(h *HashNode, path []byte) (Node, error) {
	n, err := t.getFromStore(h.Hash())
	if err != nil {
		var mErr *MissingNodeError
		if errors.As(err, &mErr) {
			mErr.remaining = len(path)
		}
		return nil, err
	}
	return n, nil
}

func (t *Trie) getFromStore(h util.Uint256) (Node, error) {
	if n, ok := t.cache.Get(h); ok {
		return n, nil
	}
	data, err := t.Store.Get(h.BytesBE())
	if err != nil {
		return nil, &MissingNodeError{Hash: h, Err: err}
	}

	n, err := DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", h.StringBE(), err)
	}
	if n.Hash() != h {
		return nil, fmt.Errorf("%w: node %s has hash %s", ErrCorruptNode, h.StringBE(), n.Hash().StringBE())
	}
	t.cache.Add(h, n)
	return n, nil
}
