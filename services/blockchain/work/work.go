// Package work computes proof-of-work totals used to choose between competing chains.
//
// A block mined at difficulty d is expected to take 2^d hash attempts, so its work is 2^d and the
// work of a chain is the sum over its blocks. The chain with the greater sum is preferred.
package work

import (
	"math/big"

	"github.com/bitcoin-sv/minichain/model"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// CalculateWork adds the work of one block at the given difficulty to prevWork. A nil prevWork
// counts as zero. prevWork is not modified.
func CalculateWork(prevWork *big.Int, difficulty uint32) *big.Int {
	newWork := new(big.Int).Lsh(big.NewInt(1), uint(difficulty))

	if prevWork != nil {
		newWork.Add(newWork, prevWork)
	}

	return newWork
}

// BlockWork returns the work of a single block.
func BlockWork(header *model.BlockHeader) *big.Int {
	return header.Work()
}

// ChainWork sums the work of the given blocks.
func ChainWork(blocks []*model.Block) *big.Int {
	total := new(big.Int)

	for _, block := range blocks {
		total = CalculateWork(total, block.Header.Difficulty)
	}

	return total
}

// ToHash encodes work as a little endian 256 bit value, the layout chainhash uses, so that its
// String form is the big endian hex of the number.
func ToHash(w *big.Int) *chainhash.Hash {
	hash := &chainhash.Hash{}

	b := w.Bytes()
	if len(b) > chainhash.HashSize {
		b = b[len(b)-chainhash.HashSize:]
	}

	copy(hash[:], bt.ReverseBytes(b))

	return hash
}

// FromHash decodes a value produced by ToHash.
func FromHash(hash *chainhash.Hash) *big.Int {
	return new(big.Int).SetBytes(bt.ReverseBytes(hash.CloneBytes()))
}
