package model

import (
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// BlockHeaderSize is the length of a serialized header.
const BlockHeaderSize = 4 + 32 + 32 + 8 + 4 + 8

// BlockHeader carries everything that is hashed to produce the block hash.
type BlockHeader struct {
	// Version of the block layout
	Version uint32

	// Hash of the previous block header, the zero hash for genesis
	HashPrevBlock *chainhash.Hash

	// Root of the Merkle tree over the transaction ids
	HashMerkleRoot *chainhash.Hash

	// Creation time in unix nanoseconds
	Timestamp int64

	// Number of leading zero hex digits the hash must carry
	Difficulty uint32

	Nonce uint64
}

// Bytes serializes the header: version, previous hash, merkle root, timestamp, difficulty and
// nonce, integers little endian.
func (bh *BlockHeader) Bytes() []byte {
	b := make([]byte, 0, BlockHeaderSize)

	b = binary.LittleEndian.AppendUint32(b, bh.Version)
	b = append(b, hashBytes(bh.HashPrevBlock)...)
	b = append(b, hashBytes(bh.HashMerkleRoot)...)
	b = binary.LittleEndian.AppendUint64(b, uint64(bh.Timestamp)) //nolint:gosec // bit pattern is what gets hashed
	b = binary.LittleEndian.AppendUint32(b, bh.Difficulty)
	b = binary.LittleEndian.AppendUint64(b, bh.Nonce)

	return b
}

// Hash returns the SHA-256 of the serialized header.
func (bh *BlockHeader) Hash() *chainhash.Hash {
	hash := chainhash.HashH(bh.Bytes())
	return &hash
}

// MeetsTarget reports whether hash starts with Difficulty zero hex digits.
func (bh *BlockHeader) MeetsTarget(hash *chainhash.Hash) bool {
	return HashMeetsDifficulty(hash, bh.Difficulty)
}

// Work is the expected number of hashes needed to mine at the header difficulty, 2^Difficulty.
func (bh *BlockHeader) Work() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(bh.Difficulty))
}

// HashMeetsDifficulty reports whether the displayed hex form of hash starts with difficulty '0'
// characters. A difficulty beyond the hash length can never be met.
func HashMeetsDifficulty(hash *chainhash.Hash, difficulty uint32) bool {
	if hash == nil {
		return false
	}

	s := hash.String()
	if int(difficulty) > len(s) {
		return false
	}

	return strings.Count(s[:difficulty], "0") == int(difficulty)
}

func hashBytes(h *chainhash.Hash) []byte {
	if h == nil {
		return make([]byte, chainhash.HashSize)
	}

	return h[:]
}
