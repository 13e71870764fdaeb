package mpt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/nspcc-dev/ethtrie/pkg/core/storage"
	"github.com/stretchr/testify/require"
)

func TestBatchAdd(t *testing.T) {
	b := new(Batch)
	b.Add([]byte{1}, []byte{2})
	b.Add([]byte{2, 16}, []byte{3})
	b.Add([]byte{2, 0}, []byte{4})
	b.Add([]byte{0, 1}, []byte{5})
	b.Add([]byte{2, 0}, []byte{6})
	expected := []keyValue{
		{[]byte{0, 0, 0, 1}, []byte{5}},
		{[]byte{0, 1}, []byte{2}},
		{[]byte{0, 2, 0, 0}, []byte{6}},
		{[]byte{0, 2, 1, 0}, []byte{3}},
	}
	require.Equal(t, expected, b.kv)
	require.Equal(t, 4, b.Len())
}

func TestMapToMPTBatch(t *testing.T) {
	m := map[string][]byte{
		string([]byte{2, 16}): {3},
		string([]byte{1}):     {2},
		string([]byte{0, 1}):  nil,
	}
	b := MapToMPTBatch(m)
	expected := []keyValue{
		{[]byte{0, 0, 0, 1}, nil},
		{[]byte{0, 1}, []byte{2}},
		{[]byte{0, 2, 1, 0}, []byte{3}},
	}
	require.Equal(t, expected, b.kv)
}

type pairs = [][2][]byte

func testPut(t *testing.T, ps pairs, tr1, tr2 *Trie) {
	var b Batch
	for i, p := range ps {
		require.NoError(t, tr1.Put(p[0], p[1]), "item %d", i)
		b.Add(p[0], p[1])
	}

	num, err := tr2.PutBatch(b)
	require.NoError(t, err)
	require.Equal(t, b.Len(), num)
	require.Equal(t, tr1.StateRoot(), tr2.StateRoot())
	require.True(t, isValid(tr2.root))

	t.Run("test restore", func(t *testing.T) {
		// Commit a separate view, tr2 keeps its in-memory structure.
		root, err := NewTrie(tr2.root, Config{Store: tr2.Store}).Commit()
		require.NoError(t, err)
		require.Equal(t, tr1.StateRoot(), root)
		tr3 := NewTrieAt(root, Config{Store: storage.NewMemCachedStore(tr2.Store)})
		last := make(map[string][]byte)
		for _, p := range ps {
			last[string(p[0])] = p[1]
		}
		for k, v := range last {
			val, err := tr3.Get([]byte(k))
			if len(v) == 0 {
				require.ErrorIs(t, err, ErrNotFound)
				continue
			}
			require.NoError(t, err, "key: %s", hex.EncodeToString([]byte(k)))
			require.Equal(t, v, val)
		}
	})
}

// testIncompletePut checks that the batch fails at the n-th (in key order)
// item leaving the trie intact.
func testIncompletePut(t *testing.T, ps pairs, n int, tr *Trie) {
	var b Batch
	for _, p := range ps {
		b.Add(p[0], p[1])
	}
	old := tr.StateRoot()

	num, err := tr.PutBatch(b)
	require.Error(t, err)
	require.Equal(t, n, num)
	require.Equal(t, old, tr.StateRoot())
}

func newTriePair(t *testing.T, ps pairs) (*Trie, *Trie) {
	tr1 := newTestTrie(t)
	tr2 := newTestTrie(t)
	for _, p := range ps {
		require.NoError(t, tr1.Put(p[0], p[1]))
		require.NoError(t, tr2.Put(p[0], p[1]))
	}
	return tr1, tr2
}

func TestTrie_PutBatchLeaf(t *testing.T) {
	prepareLeaf := func(t *testing.T) (*Trie, *Trie) {
		return newTriePair(t, pairs{{[]byte{0}, []byte("value")}})
	}

	t.Run("remove", func(t *testing.T) {
		tr1, tr2 := prepareLeaf(t)
		var ps = pairs{{[]byte{0}, nil}}
		testPut(t, ps, tr1, tr2)
		require.Equal(t, EmptyRoot, tr2.StateRoot())
	})
	t.Run("empty value", func(t *testing.T) {
		tr1, tr2 := prepareLeaf(t)
		var ps = pairs{{[]byte{0}, []byte{}}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("replace", func(t *testing.T) {
		tr1, tr2 := prepareLeaf(t)
		var ps = pairs{{[]byte{0}, []byte("replace")}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("remove and replace", func(t *testing.T) {
		tr1, tr2 := prepareLeaf(t)
		var ps = pairs{
			{[]byte{0}, nil},
			{[]byte{0, 2}, []byte("replace2")},
		}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("empty value and replace", func(t *testing.T) {
		tr1, tr2 := prepareLeaf(t)
		var ps = pairs{
			{[]byte{0}, []byte{}},
			{[]byte{0, 2}, []byte("replace2")},
		}
		testPut(t, ps, tr1, tr2)
	})
}

func TestTrie_PutBatchExtension(t *testing.T) {
	prepareExtension := func(t *testing.T) (*Trie, *Trie) {
		return newTriePair(t, pairs{
			{[]byte{1, 2}, []byte("value1")},
			{[]byte{1, 3}, []byte("value0")},
		})
	}

	t.Run("split, key len > 1", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{{[]byte{2, 3}, []byte("value2")}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("split, key len = 1", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{{[]byte{1, 0x30}, []byte("value2")}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("add to next", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{{[]byte{1, 2, 3}, []byte("value2")}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("add to next with leaf", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{
			{[]byte{0}, []byte("value3")},
			{[]byte{1, 2, 3}, []byte("value2")},
		}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("remove value", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{{[]byte{1, 2}, nil}}
		testPut(t, ps, tr1, tr2)
		require.IsType(t, (*LeafNode)(nil), tr2.root)
	})
	t.Run("empty value", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{{[]byte{1, 2}, []byte{}}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("add to next, merge extension", func(t *testing.T) {
		tr1, tr2 := prepareExtension(t)
		var ps = pairs{
			{[]byte{1, 2}, nil},
			{[]byte{1, 3, 3}, []byte("value2")},
		}
		testPut(t, ps, tr1, tr2)
	})
}

func TestTrie_PutBatchBranch(t *testing.T) {
	prepareBranch := func(t *testing.T) (*Trie, *Trie) {
		return newTriePair(t, pairs{
			{[]byte{0x00, 2}, []byte("value1")},
			{[]byte{0x10, 3}, []byte("value2")},
		})
	}

	t.Run("simple add", func(t *testing.T) {
		tr1, tr2 := prepareBranch(t)
		var ps = pairs{{[]byte{0x20, 4}, []byte("value3")}}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("remove 1, transform to leaf", func(t *testing.T) {
		tr1, tr2 := prepareBranch(t)
		var ps = pairs{{[]byte{0x00, 2}, nil}}
		testPut(t, ps, tr1, tr2)
		require.IsType(t, (*LeafNode)(nil), tr2.root)

		t.Run("committed", func(t *testing.T) {
			tr1, tr2 := prepareBranch(t)
			_, err := tr1.Commit()
			require.NoError(t, err)
			_, err = tr2.Commit()
			require.NoError(t, err)

			var ps = pairs{{[]byte{0x00, 2}, nil}}
			testPut(t, ps, tr1, tr2)
			require.IsType(t, (*LeafNode)(nil), tr1.root)
			require.IsType(t, (*LeafNode)(nil), tr2.root)
		})
		t.Run("non-empty child is branch value", func(t *testing.T) {
			tr1, tr2 := newTriePair(t, pairs{
				{[]byte{0x00, 2}, []byte("value1")},
				{[]byte{0x00}, []byte("value2")},
			})
			_, err := tr1.Commit()
			require.NoError(t, err)
			_, err = tr2.Commit()
			require.NoError(t, err)

			var ps = pairs{{[]byte{0x00, 2}, nil}}
			testPut(t, ps, tr1, tr2)
		})
	})
	t.Run("remove 2, become empty", func(t *testing.T) {
		tr1, tr2 := prepareBranch(t)
		var ps = pairs{
			{[]byte{0x00, 2}, nil},
			{[]byte{0x10, 3}, nil},
		}
		testPut(t, ps, tr1, tr2)
		require.Equal(t, EmptyRoot, tr2.StateRoot())
	})
	t.Run("remove missing", func(t *testing.T) {
		tr1, tr2 := prepareBranch(t)
		var ps = pairs{
			{[]byte{0x20, 2}, nil},
			{[]byte{0x30, 3}, []byte("value3")},
		}
		testPut(t, ps, tr1, tr2)
	})
}

func TestTrie_PutBatchHash(t *testing.T) {
	prepareHash := func(t *testing.T) (*Trie, *Trie) {
		tr1, tr2 := newTriePair(t, pairs{
			{[]byte{0x10}, bytes.Repeat([]byte{1}, 40)},
			{[]byte{0x20}, bytes.Repeat([]byte{2}, 40)},
		})
		_, err := tr1.Commit()
		require.NoError(t, err)
		_, err = tr2.Commit()
		require.NoError(t, err)
		return tr1, tr2
	}

	t.Run("good", func(t *testing.T) {
		tr1, tr2 := prepareHash(t)
		var ps = pairs{
			{[]byte{0x10}, []byte("replace1")},
			{[]byte{2}, []byte("value2")},
		}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("incomplete, second hash not found", func(t *testing.T) {
		_, committed := prepareHash(t)
		l := NewLeafNode([]byte{0}, bytes.Repeat([]byte{2}, 40))
		require.NoError(t, committed.Store.Delete(l.Hash().BytesBE()))
		// Fresh node cache, committed one still has the leaf.
		tr := NewTrieAt(committed.StateRoot(), Config{Store: committed.Store})

		var ps = pairs{
			{[]byte{0x20}, []byte("replace2")},
			{[]byte{0x10}, []byte("replace1")},
		}
		testIncompletePut(t, ps, 1, tr)

		var b Batch
		b.Add([]byte{0x20}, nil)
		_, err := tr.PutBatch(b)
		var mErr *MissingNodeError
		require.ErrorAs(t, err, &mErr)
		require.Equal(t, []byte{2}, mErr.Path)
	})
}

func TestTrie_PutBatchEmpty(t *testing.T) {
	t.Run("good", func(t *testing.T) {
		tr1, tr2 := newTriePair(t, nil)
		var ps = pairs{
			{[]byte{0}, []byte("value0")},
			{[]byte{1}, []byte("value1")},
			{[]byte{3}, []byte("value3")},
		}
		testPut(t, ps, tr1, tr2)
	})
	t.Run("nothing to do", func(t *testing.T) {
		tr := newTestTrie(t)
		num, err := tr.PutBatch(Batch{})
		require.NoError(t, err)
		require.Equal(t, 0, num)
		require.Equal(t, EmptyRoot, tr.StateRoot())
	})
}

func TestTrie_PutBatchTooBig(t *testing.T) {
	tr := NewTrie(nil, Config{Store: newTestStore(), MaxValueLength: 8})
	var b Batch
	b.Add([]byte{1}, []byte("value1"))
	b.Add([]byte{2}, []byte("value is too big"))

	num, err := tr.PutBatch(b)
	require.ErrorIs(t, err, ErrEncoding)
	require.Equal(t, 0, num)
	require.Equal(t, EmptyRoot, tr.StateRoot())
}

// For the sake of coverage.
func TestTrie_InvalidNodeType(t *testing.T) {
	tr := newTestTrie(t)
	var b Batch
	b.Add([]byte{1}, []byte("value"))
	tr.root = Node(nil)
	require.Panics(t, func() { _, _ = tr.PutBatch(b) })
}

func TestTrie_PutBatch(t *testing.T) {
	tr1, tr2 := newTriePair(t, nil)
	var ps = pairs{
		{[]byte{1}, []byte{1}},
		{[]byte{2}, []byte{3}},
		{[]byte{4}, []byte{5}},
	}
	testPut(t, ps, tr1, tr2)

	ps = pairs{[2][]byte{{4}, {6}}}
	testPut(t, ps, tr1, tr2)

	ps = pairs{[2][]byte{{4}, nil}}
	testPut(t, ps, tr1, tr2)

	testPut(t, pairs{}, tr1, tr2)
}

var _ = printNode

// This function is unused, but is helpful for debugging
// as it provides more readable Trie representation compared to
// `spew.Dump()`.
func printNode(prefix string, n Node) {
	switch tn := n.(type) {
	case EmptyNode:
		fmt.Printf("%s empty\n", prefix)
		return
	case *HashNode:
		fmt.Printf("%s %s\n", prefix, tn.Hash().StringBE())
	case *BranchNode:
		if tn.Value != nil {
			fmt.Printf("%s value-> %s\n", prefix, hex.EncodeToString(tn.Value))
		}
		for i, c := range tn.Children {
			if isEmpty(c) {
				continue
			}
			fmt.Printf("%s [%2d] ->\n", prefix, i)
			printNode(prefix+" ", c)
		}
	case *ExtensionNode:
		fmt.Printf("%s extension-> %s\n", prefix, hex.EncodeToString(tn.key))
		printNode(prefix+" ", tn.next)
	case *LeafNode:
		fmt.Printf("%s leaf-> %s %s\n", prefix, hex.EncodeToString(tn.key), hex.EncodeToString(tn.value))
	}
}
