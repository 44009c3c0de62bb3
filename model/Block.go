package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// mineCheckInterval is the number of nonces tried between context checks while mining.
const mineCheckInterval = 1 << 14

// Block is an ordered batch of transactions sealed by proof of work. The hash is stored alongside
// the header so that a block received from elsewhere can be checked against its content.
type Block struct {
	Index        uint32
	Header       *BlockHeader
	Transactions []*Transaction

	hash *chainhash.Hash
}

// NewBlock creates an unmined block stamped with the current time: the Merkle root is computed,
// the nonce is zero and the hash is set from the header.
func NewBlock(index uint32, txs []*Transaction, previousHash *chainhash.Hash, difficulty uint32, version uint32) *Block {
	return NewBlockWithTimestamp(index, txs, previousHash, difficulty, version, time.Now())
}

// NewBlockWithTimestamp is NewBlock with an explicit creation time.
func NewBlockWithTimestamp(index uint32, txs []*Transaction, previousHash *chainhash.Hash, difficulty uint32,
	version uint32, timestamp time.Time) *Block {
	if txs == nil {
		txs = []*Transaction{}
	}

	prev := chainhash.Hash{}
	if previousHash != nil {
		prev = *previousHash
	}

	block := &Block{
		Index:        index,
		Transactions: txs,
		Header: &BlockHeader{
			Version:       version,
			HashPrevBlock: &prev,
			Timestamp:     timestamp.UnixNano(),
			Difficulty:    difficulty,
		},
	}

	block.Header.HashMerkleRoot = block.CalculateMerkleRoot()
	block.hash = block.CalculateHash()

	return block
}

// Hash returns the stored block hash.
func (b *Block) Hash() *chainhash.Hash {
	return b.hash
}

// PreviousHash returns the hash of the parent block.
func (b *Block) PreviousHash() *chainhash.Hash {
	return b.Header.HashPrevBlock
}

func (b *Block) String() string {
	return fmt.Sprintf("block %d %s (%d txs)", b.Index, b.hash, len(b.Transactions))
}

// CalculateHash hashes the current header.
func (b *Block) CalculateHash() *chainhash.Hash {
	return b.Header.Hash()
}

// CalculateMerkleRoot builds the Merkle root over the stored transaction ids.
func (b *Block) CalculateMerkleRoot() *chainhash.Hash {
	leaves := make([]chainhash.Hash, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		if tx == nil {
			leaves = append(leaves, chainhash.Hash{})
			continue
		}

		leaves = append(leaves, tx.id)
	}

	return BuildMerkleRoot(leaves)
}

// HasMetTargetDifficulty reports whether the stored hash meets the header difficulty.
func (b *Block) HasMetTargetDifficulty() bool {
	return b.Header.MeetsTarget(b.hash)
}

// Work returns 2^difficulty.
func (b *Block) Work() *big.Int {
	return b.Header.Work()
}

// Mine searches for a nonce whose header hash meets the difficulty. A block whose initial hash
// already qualifies keeps nonce zero. The context is checked periodically and its error returned
// when it is done.
func (b *Block) Mine(ctx context.Context) error {
	b.hash = b.CalculateHash()

	for i := uint64(1); !b.HasMetTargetDifficulty(); i++ {
		if i%mineCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return errors.NewContextCanceledError("mining block %d cancelled after %d nonces", b.Index, i, ctx.Err())
			default:
			}
		}

		b.Header.Nonce++
		b.hash = b.CalculateHash()
	}

	return nil
}

// CheckMerkleRoot recomputes the Merkle root and compares it with the header.
func (b *Block) CheckMerkleRoot() error {
	calculated := b.CalculateMerkleRoot()
	if b.Header.HashMerkleRoot == nil || !calculated.IsEqual(b.Header.HashMerkleRoot) {
		return errors.NewBlockInvalidError("merkle root mismatch: header %s, calculated %s", b.Header.HashMerkleRoot, calculated)
	}

	return nil
}

// CheckTransactions returns a BLOCK_INVALID error when a transaction of the block, or one of its
// inputs or outputs, is nil.
func (b *Block) CheckTransactions() error {
	for i, tx := range b.Transactions {
		if tx == nil {
			return errors.NewBlockInvalidError("block %d transaction %d is nil", b.Index, i)
		}

		if err := tx.CheckEntries(); err != nil {
			return errors.NewBlockInvalidError("block %d transaction %d is malformed", b.Index, i, err)
		}
	}

	return nil
}

// CheckTransactionIDs verifies that no transaction changed after its id was computed.
func (b *Block) CheckTransactionIDs() error {
	for i, tx := range b.Transactions {
		if calculated := tx.CalculateTxID(); !calculated.IsEqual(&tx.id) {
			return errors.NewBlockInvalidError("transaction %d: id %s does not match content hash %s", i, tx.id, calculated)
		}
	}

	return nil
}

// Validate checks the block in isolation against the hash its parent is expected to have: no nil
// transactions, the link, the stored hash against the header, the proof of work, the transaction ids and the
// Merkle root. Transaction semantics are checked by the chain.
func (b *Block) Validate(expectedPreviousHash *chainhash.Hash) error {
	if b.Header == nil || b.hash == nil {
		return errors.NewBlockInvalidError("block %d is missing its header or hash", b.Index)
	}

	if err := b.CheckTransactions(); err != nil {
		return err
	}

	if expectedPreviousHash == nil || b.Header.HashPrevBlock == nil || !b.Header.HashPrevBlock.IsEqual(expectedPreviousHash) {
		return errors.NewBlockInvalidError("block %d previous hash %s does not match expected %s", b.Index, b.Header.HashPrevBlock, expectedPreviousHash)
	}

	if calculated := b.CalculateHash(); !calculated.IsEqual(b.hash) {
		return errors.NewBlockInvalidError("block %d hash %s does not match header hash %s", b.Index, b.hash, calculated)
	}

	if !b.HasMetTargetDifficulty() {
		return errors.NewBlockInvalidError("block %d hash %s does not meet difficulty %d", b.Index, b.hash, b.Header.Difficulty)
	}

	if err := b.CheckTransactionIDs(); err != nil {
		return err
	}

	return b.CheckMerkleRoot()
}

// Valid is Validate reduced to a boolean.
func (b *Block) Valid(expectedPreviousHash *chainhash.Hash) bool {
	return b.Validate(expectedPreviousHash) == nil
}

type blockJSON struct {
	Index        uint32         `json:"index"`
	Hash         string         `json:"hash"`
	Version      uint32         `json:"version"`
	PreviousHash string         `json:"previousHash"`
	MerkleRoot   string         `json:"merkleRoot"`
	Timestamp    int64          `json:"timestamp"`
	Difficulty   uint32         `json:"difficulty"`
	Nonce        uint64         `json:"nonce"`
	Transactions []*Transaction `json:"transactions"`
}

func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockJSON{
		Index:        b.Index,
		Hash:         b.hash.String(),
		Version:      b.Header.Version,
		PreviousHash: b.Header.HashPrevBlock.String(),
		MerkleRoot:   b.Header.HashMerkleRoot.String(),
		Timestamp:    b.Header.Timestamp,
		Difficulty:   b.Header.Difficulty,
		Nonce:        b.Header.Nonce,
		Transactions: b.Transactions,
	})
}

// UnmarshalJSON decodes a block keeping the hash as supplied, so Validate can detect a block
// whose content does not match it.
func (b *Block) UnmarshalJSON(data []byte) error {
	var in blockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.NewInvalidArgumentError("invalid block json", err)
	}

	hash, err := chainhash.NewHashFromStr(in.Hash)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid block hash %q", in.Hash, err)
	}

	prev, err := chainhash.NewHashFromStr(in.PreviousHash)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid previous hash %q", in.PreviousHash, err)
	}

	merkleRoot, err := chainhash.NewHashFromStr(in.MerkleRoot)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid merkle root %q", in.MerkleRoot, err)
	}

	if in.Transactions == nil {
		in.Transactions = []*Transaction{}
	}

	for i, tx := range in.Transactions {
		if tx == nil {
			return errors.NewInvalidArgumentError("block %d transaction %d is null", in.Index, i)
		}
	}

	*b = Block{
		Index: in.Index,
		Header: &BlockHeader{
			Version:        in.Version,
			HashPrevBlock:  prev,
			HashMerkleRoot: merkleRoot,
			Timestamp:      in.Timestamp,
			Difficulty:     in.Difficulty,
			Nonce:          in.Nonce,
		},
		Transactions: in.Transactions,
		hash:         hash,
	}

	return nil
}
