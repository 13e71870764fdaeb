/*
Package mpt implements Ethereum-compatible MPT (Merkle-Patricia Trie).

MPT stores key-value pairs and is a trie over a 16-symbol alphabet. Keys are
split into nibbles (4-bit halves of bytes) and the trie consists of 4 kinds
of nodes:

  - Leaf node contains the remaining key part (in nibbles) and a value.
  - Extension node contains a non-empty shared key part and the next node
    which is always a branch (or a reference to it).
  - Branch node contains 16 children (one for every nibble) and an optional
    value for the key that ends at this node.
  - Hash node is a reference to a node already stored in the storage.

There is also an empty node representing an empty subtree.

Nodes are encoded with RLP. Leaf and extension nodes are 2-element lists
with a hex-prefix encoded path as the first element, branch is a 17-element
list. Child nodes with encoding shorter than 32 bytes are embedded into the
parent, others are referenced by the Keccak-256 hash of their encoding. The
root hash is always the hash of the root encoding. This makes root hashes
(and proofs) identical to the ones of the Ethereum state trie for the same
set of key-value pairs. An empty trie has EmptyRoot hash.

Trie changes are copy-on-write, unchanged nodes (and committed subtries) can
be shared between tries. Commit persists new nodes into the storage (hash ->
encoding) and replaces the in-memory tree with the root hash node, nodes are
later loaded lazily via NodeCache.
*/
package mpt
