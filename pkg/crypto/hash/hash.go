/*
Package hash contains the hash function used for trie nodes.
*/
package hash

import (
	"github.com/nspcc-dev/ethtrie/pkg/util"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the incoming byte slice using the legacy Keccak-256
// algorithm (the one Ethereum uses, not the standardized SHA3-256).
func Keccak256(data ...[]byte) util.Uint256 {
	var hash util.Uint256
	hasher := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, _ = hasher.Write(b)
	}
	hasher.Sum(hash[:0])
	return hash
}
