package blockchain

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bitcoin-sv/minichain/chaincfg"
	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)

	genesis := bestBlock(t, b)
	assert.Equal(t, uint32(0), genesis.Index)
	assert.Equal(t, chainhash.Hash{}, *genesis.PreviousHash())
	assert.Empty(t, genesis.Transactions)
	assert.True(t, genesis.HasMetTargetDifficulty())
	assert.Equal(t, chaincfg.RegressionNetParams.GenesisTimestamp.UnixNano(), genesis.Header.Timestamp)
	assert.Equal(t, 1, canonicalLength(t, b))

	work, err := b.GetChainWork(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), work.Int64())

	state, err := b.GetFSMCurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, FSMStateSTOPPED, state)

	t.Run("genesis is deterministic", func(t *testing.T) {
		other := newTestBlockchain(t)
		assert.Equal(t, genesis.Hash(), bestBlock(t, other).Hash())
	})

	t.Run("missing settings", func(t *testing.T) {
		_, err := New(ctx, ulogger.TestLogger{}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})

	t.Run("custom genesis", func(t *testing.T) {
		custom := model.NewBlock(0, nil, nil, 1, 1)
		require.NoError(t, custom.Mine(ctx))

		b := newTestBlockchain(t, WithGenesisBlock(custom))
		assert.Equal(t, custom.Hash(), bestBlock(t, b).Hash())
	})

	t.Run("invalid custom genesis", func(t *testing.T) {
		custom := model.NewBlock(0, nil, nil, 64, 1)

		_, err := New(ctx, ulogger.TestLogger{}, testSettings(), WithGenesisBlock(custom))
		require.Error(t, err)
	})
}

func TestAddBlock_ExtendsTip(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)

	b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
	require.NoError(t, b.AddBlock(ctx, b1))
	assert.Equal(t, uint64(50), balance(t, b, "alice"))

	tx := spendTx(cb1, 0, out("bob", 30), out("alice", 15))
	b2, _ := mineWithCoinbase(t, b1, "miner", tx)
	require.NoError(t, b.AddBlock(ctx, b2))

	assert.Equal(t, 3, canonicalLength(t, b))
	assert.Equal(t, b2.Hash(), bestBlock(t, b).Hash())
	assert.Equal(t, uint64(15), balance(t, b, "alice"))
	assert.Equal(t, uint64(30), balance(t, b, "bob"))
	assert.Equal(t, uint64(50), balance(t, b, "miner"))
	assert.Equal(t, uint64(0), balance(t, b, "nobody"))

	utxos, err := b.GetUtxos(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, *tx.TxID(), utxos[0].TxID)
	assert.Equal(t, uint32(1), utxos[0].Index)

	block, err := b.GetBlock(ctx, b1.Hash())
	require.NoError(t, err)
	assert.Equal(t, b1, block)

	_, err = b.GetBlock(ctx, &chainhash.Hash{})
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))

	work, err := b.GetChainWork(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), work.Int64())

	err = b.AddBlock(ctx, b2)
	assert.True(t, errors.Is(err, errors.ErrBlockExists))
}

func TestAddBlock_Rejections(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Blockchain, *model.Block, *model.Transaction) {
		b := newTestBlockchain(t)

		b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
		require.NoError(t, b.AddBlock(ctx, b1))

		return b, b1, cb1
	}

	assertNoEffect := func(t *testing.T, b *Blockchain, tip *model.Block) {
		assert.Equal(t, tip.Hash(), bestBlock(t, b).Hash())
		assert.Equal(t, 2, canonicalLength(t, b))
		assert.Equal(t, uint64(50), balance(t, b, "alice"))

		forks, err := b.GetForks(ctx)
		require.NoError(t, err)
		assert.Empty(t, forks)
	}

	tests := []struct {
		name     string
		block    func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block
		expected *errors.Error
	}{
		{
			name: "tampered nonce",
			block: func(t *testing.T, b1 *model.Block, _ *model.Transaction) *model.Block {
				block, _ := mineWithCoinbase(t, b1, "miner")
				block.Header.Nonce++

				return block
			},
			expected: errors.ErrBlockInvalid,
		},
		{
			name: "permuted transactions",
			block: func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block {
				block, _ := mineWithCoinbase(t, b1, "miner", spendTx(cb1, 0, out("bob", 10)))
				block.Transactions[0], block.Transactions[1] = block.Transactions[1], block.Transactions[0]

				return block
			},
			expected: errors.ErrBlockInvalid,
		},
		{
			name: "wrong index",
			block: func(t *testing.T, b1 *model.Block, _ *model.Transaction) *model.Block {
				block := model.NewBlock(b1.Index+5, []*model.Transaction{coinbaseTx("miner", 50)}, b1.Hash(), 1, 1)
				require.NoError(t, block.Mine(ctx))

				return block
			},
			expected: errors.ErrBlockInvalid,
		},
		{
			name: "wrong difficulty",
			block: func(t *testing.T, b1 *model.Block, _ *model.Transaction) *model.Block {
				block := model.NewBlock(b1.Index+1, []*model.Transaction{coinbaseTx("miner", 50)}, b1.Hash(), 0, 1)
				require.NoError(t, block.Mine(ctx))

				return block
			},
			expected: errors.ErrBlockInvalid,
		},
		{
			name: "unknown parent",
			block: func(t *testing.T, _ *model.Block, _ *model.Transaction) *model.Block {
				parent := model.NewBlock(7, nil, nil, 1, 1)
				require.NoError(t, parent.Mine(ctx))

				block, _ := mineWithCoinbase(t, parent, "miner")

				return block
			},
			expected: errors.ErrBlockOrphan,
		},
		{
			name: "coinbase with two outputs",
			block: func(t *testing.T, b1 *model.Block, _ *model.Transaction) *model.Block {
				coinbase := model.NewTransactionWithTimestamp(nil, []*model.TxOutput{out("miner", 25), out("miner", 25)}, txTimestamp.Add(1))
				return mineOn(t, b1, coinbase)
			},
			expected: errors.ErrCoinbaseMalformed,
		},
		{
			name: "coinbase with wrong reward",
			block: func(t *testing.T, b1 *model.Block, _ *model.Transaction) *model.Block {
				return mineOn(t, b1, coinbaseTx("miner", 51))
			},
			expected: errors.ErrCoinbaseMalformed,
		},
		{
			name: "coinbase not first",
			block: func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block {
				return mineOn(t, b1, spendTx(cb1, 0, out("bob", 10)), coinbaseTx("miner", 50))
			},
			expected: errors.ErrCoinbaseMalformed,
		},
		{
			name: "two coinbases",
			block: func(t *testing.T, b1 *model.Block, _ *model.Transaction) *model.Block {
				return mineOn(t, b1, coinbaseTx("miner", 50), coinbaseTx("miner", 50))
			},
			expected: errors.ErrCoinbaseMalformed,
		},
		{
			name: "duplicate transaction",
			block: func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block {
				tx := spendTx(cb1, 0, out("bob", 10))
				return mineOn(t, b1, coinbaseTx("miner", 50), tx, tx)
			},
			expected: errors.ErrTxDuplicate,
		},
		{
			name: "double spend across transactions",
			block: func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block {
				return mineOn(t, b1, coinbaseTx("miner", 50), spendTx(cb1, 0, out("bob", 10)), spendTx(cb1, 0, out("carol", 10)))
			},
			expected: errors.ErrTxInvalidDoubleSpend,
		},
		{
			name: "missing output",
			block: func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block {
				return mineOn(t, b1, coinbaseTx("miner", 50), spendTx(cb1, 3, out("bob", 10)))
			},
			expected: errors.ErrTxInvalidDoubleSpend,
		},
		{
			name: "insufficient input",
			block: func(t *testing.T, b1 *model.Block, cb1 *model.Transaction) *model.Block {
				return mineOn(t, b1, coinbaseTx("miner", 50), spendTx(cb1, 0, out("bob", 51)))
			},
			expected: errors.ErrTxInsufficientInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, b1, cb1 := setup(t)

			err := b.AddBlock(ctx, tt.block(t, b1, cb1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "expected %v, got %v", tt.expected, err)

			assertNoEffect(t, b, b1)
		})
	}

	t.Run("spending an output created earlier in the same block", func(t *testing.T) {
		b, b1, cb1 := setup(t)

		tx1 := spendTx(cb1, 0, out("bob", 50))
		tx2 := spendTx(tx1, 0, out("carol", 50))
		block, _ := mineWithCoinbase(t, b1, "miner", tx1, tx2)

		require.NoError(t, b.AddBlock(ctx, block))
		assert.Equal(t, uint64(0), balance(t, b, "bob"))
		assert.Equal(t, uint64(50), balance(t, b, "carol"))
	})

	t.Run("structurally invalid block is remembered", func(t *testing.T) {
		b, b1, _ := setup(t)

		block, _ := mineWithCoinbase(t, b1, "miner")
		genuineNonce := block.Header.Nonce
		block.Header.Nonce++

		err := b.AddBlock(ctx, block)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "rejected recently")

		err = b.AddBlock(ctx, block)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejected recently")

		// the genuine block sharing the claimed hash is still accepted
		block.Header.Nonce = genuineNonce
		require.NoError(t, b.AddBlock(ctx, block))
	})

	t.Run("nil block", func(t *testing.T) {
		b := newTestBlockchain(t)

		err := b.AddBlock(ctx, nil)
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
	})

	t.Run("nil transaction", func(t *testing.T) {
		b, b1, _ := setup(t)
		coinbase := coinbaseTx("miner", chaincfg.RegressionNetParams.BlockReward)
		block := mineOn(t, b1, coinbase, nil)

		var err error

		require.NotPanics(t, func() { err = b.AddBlock(ctx, block) })
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
		assertNoEffect(t, b, b1)
	})

	t.Run("nil output", func(t *testing.T) {
		b, b1, _ := setup(t)
		coinbase := model.NewTransaction(nil, []*model.TxOutput{out("miner", chaincfg.RegressionNetParams.BlockReward), nil})
		block := mineOn(t, b1, coinbase)

		var err error

		require.NotPanics(t, func() { err = b.AddBlock(ctx, block) })
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
		assertNoEffect(t, b, b1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		b, b1, _ := setup(t)
		block, _ := mineWithCoinbase(t, b1, "miner")

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := b.AddBlock(cancelled, block)
		assert.True(t, errors.Is(err, errors.ErrContextCanceled))
		assertNoEffect(t, b, b1)
	})
}

func TestAddBlock_Reorg(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)
	genesis := bestBlock(t, b)

	b1, _ := mineWithCoinbase(t, genesis, "alice")
	require.NoError(t, b.AddBlock(ctx, b1))

	b2, _ := mineWithCoinbase(t, b1, "bob")
	require.NoError(t, b.AddBlock(ctx, b2))

	assert.Equal(t, 3, canonicalLength(t, b))
	assert.Equal(t, uint64(50), balance(t, b, "bob"))

	canonicalWork, err := b.GetChainWork(ctx)
	require.NoError(t, err)

	// a fork from b1 with the same work does not switch
	f2, _ := mineWithCoinbase(t, b1, "carol")
	require.NoError(t, b.AddBlock(ctx, f2))

	assert.Equal(t, b2.Hash(), bestBlock(t, b).Hash())
	assert.Equal(t, uint64(0), balance(t, b, "carol"))

	forks, err := b.GetForks(ctx)
	require.NoError(t, err)
	require.Len(t, forks, 1)
	require.Len(t, forks[0], 3)
	assert.Equal(t, genesis.Hash(), forks[0][0].Hash())
	assert.Equal(t, f2.Hash(), forks[0][2].Hash())

	// extending the fork gives it more work
	f3, _ := mineWithCoinbase(t, f2, "dave")
	require.NoError(t, b.AddBlock(ctx, f3))

	assert.Equal(t, 4, canonicalLength(t, b))
	assert.Equal(t, f3.Hash(), bestBlock(t, b).Hash())

	assert.Equal(t, uint64(0), balance(t, b, "bob"))
	assert.Equal(t, uint64(50), balance(t, b, "alice"))
	assert.Equal(t, uint64(50), balance(t, b, "carol"))
	assert.Equal(t, uint64(50), balance(t, b, "dave"))

	work, err := b.GetChainWork(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, work.Cmp(canonicalWork))

	forks, err = b.GetForks(ctx)
	require.NoError(t, err)
	assert.Empty(t, forks)

	chain, err := b.GetCanonicalChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*chainhash.Hash{genesis.Hash(), b1.Hash(), f2.Hash(), f3.Hash()},
		[]*chainhash.Hash{chain[0].Hash(), chain[1].Hash(), chain[2].Hash(), chain[3].Hash()})

	// the abandoned block is gone
	_, err = b.GetBlock(ctx, b2.Hash())
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))

	b3, _ := mineWithCoinbase(t, b2, "eve")
	err = b.AddBlock(ctx, b3)
	assert.True(t, errors.Is(err, errors.ErrBlockOrphan))

	valid, err := b.IsChainValid(ctx)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestAddBlock_ForkInteriorParentIsOrphan(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)
	genesis := bestBlock(t, b)

	b1, _ := mineWithCoinbase(t, genesis, "alice")
	require.NoError(t, b.AddBlock(ctx, b1))
	b2, _ := mineWithCoinbase(t, b1, "alice")
	require.NoError(t, b.AddBlock(ctx, b2))
	b3, _ := mineWithCoinbase(t, b2, "alice")
	require.NoError(t, b.AddBlock(ctx, b3))

	f1, _ := mineWithCoinbase(t, genesis, "bob")
	require.NoError(t, b.AddBlock(ctx, f1))
	f2, _ := mineWithCoinbase(t, f1, "bob")
	require.NoError(t, b.AddBlock(ctx, f2))

	// f1 is no longer a fork tip
	other, _ := mineWithCoinbase(t, f1, "carol")
	err := b.AddBlock(ctx, other)
	assert.True(t, errors.Is(err, errors.ErrBlockOrphan))

	forks, err := b.GetForks(ctx)
	require.NoError(t, err)
	require.Len(t, forks, 1)
	assert.Equal(t, f2.Hash(), forks[0][len(forks[0])-1].Hash())
}

func TestAddBlock_ForkValidatedAgainstParentState(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)

	b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
	require.NoError(t, b.AddBlock(ctx, b1))

	b2, cb2 := mineWithCoinbase(t, b1, "bob", spendTx(cb1, 0, out("bob", 50)))
	require.NoError(t, b.AddBlock(ctx, b2))

	t.Run("output spent on the canonical chain is unspent at the fork parent", func(t *testing.T) {
		f2, _ := mineWithCoinbase(t, b1, "carol", spendTx(cb1, 0, out("carol", 50)))
		require.NoError(t, b.AddBlock(ctx, f2))
		assert.Equal(t, b2.Hash(), bestBlock(t, b).Hash())
	})

	t.Run("output created on the canonical chain does not exist at the fork parent", func(t *testing.T) {
		f2, _ := mineWithCoinbase(t, b1, "dave", spendTx(cb2, 0, out("dave", 50)))

		err := b.AddBlock(ctx, f2)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTxInvalidDoubleSpend))
	})

	assert.Equal(t, uint64(100), balance(t, b, "bob"))
}

func TestSubmitTransaction(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)

	b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
	require.NoError(t, b.AddBlock(ctx, b1))

	tx1 := spendTx(cb1, 0, out("bob", 30), out("alice", 20))
	require.NoError(t, b.SubmitTransaction(ctx, tx1))

	t.Run("second spend of a pending outpoint fails", func(t *testing.T) {
		err := b.SubmitTransaction(ctx, spendTx(cb1, 0, out("carol", 50)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTxInvalidDoubleSpend))
	})

	t.Run("same transaction twice", func(t *testing.T) {
		err := b.SubmitTransaction(ctx, tx1)
		assert.True(t, errors.Is(err, errors.ErrTxAlreadyExists))
	})

	t.Run("coinbase", func(t *testing.T) {
		err := b.SubmitTransaction(ctx, coinbaseTx("mallory", 50))
		assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	})

	t.Run("nil output", func(t *testing.T) {
		err := b.SubmitTransaction(ctx, spendTx(tx1, 0, out("carol", 1), nil))
		assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	})

	t.Run("self double spend", func(t *testing.T) {
		input := &model.TxInput{PreviousTxID: *tx1.TxID(), OutputIndex: 0}
		tx := model.NewTransaction([]*model.TxInput{input, input}, []*model.TxOutput{out("bob", 1)})

		err := b.SubmitTransaction(ctx, tx)
		assert.True(t, errors.Is(err, errors.ErrTxInvalidDoubleSpend))
	})

	t.Run("insufficient input", func(t *testing.T) {
		err := b.SubmitTransaction(ctx, spendTx(tx1, 0, out("carol", 31)))
		assert.True(t, errors.Is(err, errors.ErrTxInsufficientInput))
	})

	t.Run("modified after construction", func(t *testing.T) {
		tx := spendTx(tx1, 1, out("carol", 20))
		tx.Outputs[0].Value = 10

		err := b.SubmitTransaction(ctx, tx)
		assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	})

	t.Run("nil", func(t *testing.T) {
		err := b.SubmitTransaction(ctx, nil)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	})

	// spending an output of a pending transaction is allowed
	tx2 := spendTx(tx1, 0, out("carol", 30))
	require.NoError(t, b.SubmitTransaction(ctx, tx2))

	pending, err := b.GetPendingTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, tx1.TxID(), pending[0].TxID())
	assert.Equal(t, tx2.TxID(), pending[1].TxID())

	// pending transactions do not change balances
	assert.Equal(t, uint64(50), balance(t, b, "alice"))

	block, err := b.MineBlock(ctx, "miner")
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Len(t, block.Transactions, 3)

	assert.Equal(t, uint64(20), balance(t, b, "alice"))
	assert.Equal(t, uint64(0), balance(t, b, "bob"))
	assert.Equal(t, uint64(30), balance(t, b, "carol"))
	assert.Equal(t, uint64(50), balance(t, b, "miner"))

	pending, err = b.GetPendingTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingEvictedByConflictingBlock(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t)

	b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
	require.NoError(t, b.AddBlock(ctx, b1))

	pendingTx := spendTx(cb1, 0, out("bob", 50))
	require.NoError(t, b.SubmitTransaction(ctx, pendingTx))

	b2, _ := mineWithCoinbase(t, b1, "miner", spendTx(cb1, 0, out("carol", 50)))
	require.NoError(t, b.AddBlock(ctx, b2))

	pending, err := b.GetPendingTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, uint64(50), balance(t, b, "carol"))

	// the outpoint is free in the pool again for a valid spend
	require.NoError(t, b.SubmitTransaction(ctx, spendTx(b2.Transactions[1], 0, out("dave", 50))))
}

func TestMineBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing pending", func(t *testing.T) {
		b := newTestBlockchain(t)

		block, err := b.MineBlock(ctx, "miner")
		require.NoError(t, err)
		assert.Nil(t, block)
		assert.Equal(t, 1, canonicalLength(t, b))
	})

	t.Run("miner address required", func(t *testing.T) {
		b := newTestBlockchain(t)

		_, err := b.MineBlock(ctx, "")
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	})

	t.Run("mines pending with coinbase", func(t *testing.T) {
		b := newTestBlockchain(t)

		b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
		require.NoError(t, b.AddBlock(ctx, b1))
		require.NoError(t, b.Run(ctx))

		tx := spendTx(cb1, 0, out("bob", 45))
		require.NoError(t, b.SubmitTransaction(ctx, tx))

		block, err := b.MineBlock(ctx, "miner")
		require.NoError(t, err)
		require.NotNil(t, block)

		assert.Equal(t, uint32(2), block.Index)
		assert.Equal(t, b1.Hash(), block.PreviousHash())
		require.Len(t, block.Transactions, 2)
		assert.True(t, block.Transactions[0].IsCoinbase())
		assert.Equal(t, uint64(50), block.Transactions[0].Outputs[0].Value)
		assert.Equal(t, tx.TxID(), block.Transactions[1].TxID())
		assert.True(t, block.HasMetTargetDifficulty())

		assert.Equal(t, block.Hash(), bestBlock(t, b).Hash())
		assert.Equal(t, uint64(50), balance(t, b, "miner"))
		assert.Equal(t, uint64(45), balance(t, b, "bob"))

		state, err := b.GetFSMCurrentState(ctx)
		require.NoError(t, err)
		assert.Equal(t, FSMStateRUNNING, state)
	})

	t.Run("cancelled", func(t *testing.T) {
		// genesis pays alice so that there is something to spend at an unreachable difficulty
		cb := coinbaseTx("alice", 50)
		genesis := model.NewBlock(0, []*model.Transaction{cb}, nil, 1, 1)
		require.NoError(t, genesis.Mine(ctx))

		tSettings := testSettings()
		tSettings.BlockChain.Difficulty = 64

		b, err := New(ctx, ulogger.TestLogger{}, tSettings, WithGenesisBlock(genesis))
		require.NoError(t, err)
		assert.Equal(t, uint64(50), balance(t, b, "alice"))

		require.NoError(t, b.SubmitTransaction(ctx, spendTx(cb, 0, out("bob", 50))))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		block, err := b.MineBlock(cancelled, "miner")
		require.Error(t, err)
		assert.Nil(t, block)
		assert.True(t, errors.Is(err, errors.ErrContextCanceled))

		pending, err := b.GetPendingTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
		assert.Equal(t, 1, canonicalLength(t, b))
	})
}

func TestReorgRequeue(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, opts ...Option) (*Blockchain, *model.Transaction) {
		b := newTestBlockchain(t, opts...)

		b1, cb1 := mineWithCoinbase(t, bestBlock(t, b), "alice")
		require.NoError(t, b.AddBlock(ctx, b1))

		tx := spendTx(cb1, 0, out("bob", 50))
		require.NoError(t, b.SubmitTransaction(ctx, tx))

		b2, err := b.MineBlock(ctx, "miner")
		require.NoError(t, err)
		require.NotNil(t, b2)
		assert.Equal(t, uint64(50), balance(t, b, "bob"))

		f2, _ := mineWithCoinbase(t, b1, "carol")
		require.NoError(t, b.AddBlock(ctx, f2))
		f3, _ := mineWithCoinbase(t, f2, "carol")
		require.NoError(t, b.AddBlock(ctx, f3))

		assert.Equal(t, f3.Hash(), bestBlock(t, b).Hash())
		assert.Equal(t, uint64(0), balance(t, b, "bob"))
		assert.Equal(t, uint64(50), balance(t, b, "alice"))

		return b, tx
	}

	t.Run("abandoned transactions are dropped by default", func(t *testing.T) {
		b, _ := run(t)

		pending, err := b.GetPendingTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("abandoned transactions are requeued when enabled", func(t *testing.T) {
		b, tx := run(t, WithRequeueReorgTransactions(true))

		pending, err := b.GetPendingTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, tx.TxID(), pending[0].TxID())

		block, err := b.MineBlock(ctx, "miner")
		require.NoError(t, err)
		require.NotNil(t, block)
		assert.Equal(t, uint64(50), balance(t, b, "bob"))
	})
}

func TestIsChainValid(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T) (*Blockchain, []*model.Block) {
		b := newTestBlockchain(t)

		parent := bestBlock(t, b)
		blocks := []*model.Block{parent}

		for i := 0; i < 4; i++ {
			block, _ := mineWithCoinbase(t, parent, "miner")
			require.NoError(t, b.AddBlock(ctx, block))

			blocks = append(blocks, block)
			parent = block
		}

		return b, blocks
	}

	t.Run("valid", func(t *testing.T) {
		b, _ := build(t)

		valid, err := b.IsChainValid(ctx)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	mutations := []struct {
		name   string
		mutate func(block *model.Block)
	}{
		{"nonce", func(block *model.Block) { block.Header.Nonce++ }},
		{"timestamp", func(block *model.Block) { block.Header.Timestamp++ }},
		{"difficulty", func(block *model.Block) { block.Header.Difficulty = 0 }},
		{"version", func(block *model.Block) { block.Header.Version++ }},
		{"index", func(block *model.Block) { block.Index++ }},
		{"merkle root", func(block *model.Block) {
			root := chainhash.HashH([]byte("other"))
			block.Header.HashMerkleRoot = &root
		}},
		{"previous hash", func(block *model.Block) {
			prev := chainhash.HashH([]byte("other"))
			block.Header.HashPrevBlock = &prev
		}},
		{"transaction output", func(block *model.Block) { block.Transactions[0].Outputs[0].Value++ }},
		{"transaction list", func(block *model.Block) {
			block.Transactions = append(block.Transactions, coinbaseTx("x", 1))
		}},
	}

	for _, m := range mutations {
		t.Run("mutated "+m.name, func(t *testing.T) {
			b, blocks := build(t)

			m.mutate(blocks[2])

			valid, err := b.IsChainValid(ctx)
			require.NoError(t, err)
			assert.False(t, valid)
		})
	}

	t.Run("cancelled", func(t *testing.T) {
		b, _ := build(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		valid, err := b.IsChainValid(cancelled)
		require.Error(t, err)
		assert.False(t, valid)
	})
}

func TestLifecycle(t *testing.T) {
	b := newTestBlockchain(t)
	require.NoError(t, b.Init(context.Background()))

	status, _, err := b.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, _, err = b.Health(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readyCh := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- b.Start(ctx, readyCh)
	}()

	select {
	case <-readyCh:
	case <-time.After(5 * time.Second):
		t.Fatal("service did not become ready")
	}

	status, message, err := b.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, message, "RUNNING")

	notifications, err := b.Subscribe(ctx, "test")
	require.NoError(t, err)

	block, _ := mineWithCoinbase(t, bestBlock(t, b), "alice")
	require.NoError(t, b.AddBlock(ctx, block))

	select {
	case notification := <-notifications:
		assert.Equal(t, model.NotificationTypeBlock, notification.Type)
		assert.Equal(t, block.Hash(), notification.Hash)
		assert.Equal(t, uint32(1), notification.Height)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}

	cancel()
	require.NoError(t, <-done)

	require.NoError(t, b.Stop(context.Background()))

	state, err := b.GetFSMCurrentState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FSMStateSTOPPED, state)

	// stopping twice is harmless
	require.NoError(t, b.Stop(context.Background()))
}
