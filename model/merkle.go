package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// BuildMerkleRoot folds the given leaves pairwise until one hash remains. On every level with an
// odd number of nodes the last node is paired with itself, a single leaf included. No leaves
// yield the hash of empty input.
func BuildMerkleRoot(leaves []chainhash.Hash) *chainhash.Hash {
	if len(leaves) == 0 {
		root := chainhash.HashH(nil)
		return &root
	}

	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)

	for {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]chainhash.Hash, 0, len(level)/2)

		var concat [chainhash.HashSize * 2]byte

		for i := 0; i < len(level); i += 2 {
			copy(concat[:chainhash.HashSize], level[i][:])
			copy(concat[chainhash.HashSize:], level[i+1][:])
			next = append(next, chainhash.HashH(concat[:]))
		}

		if len(next) == 1 {
			return &next[0]
		}

		level = next
	}
}
