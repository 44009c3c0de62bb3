package blockchain

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitcoin-sv/minichain/chaincfg"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/stretchr/testify/require"
)

var txTimestamp atomic.Int64

func testSettings() *settings.Settings {
	params := chaincfg.RegressionNetParams

	return &settings.Settings{
		ChainCfgParams: &params,
		BlockChain: settings.BlockChainSettings{
			RejectedBlockTTL:    time.Minute,
			ValidateConcurrency: 4,
		},
	}
}

func newTestBlockchain(t *testing.T, opts ...Option) *Blockchain {
	t.Helper()

	b, err := New(context.Background(), ulogger.TestLogger{}, testSettings(), opts...)
	require.NoError(t, err)

	return b
}

func coinbaseTx(recipient string, value uint64) *model.Transaction {
	return model.NewTransactionWithTimestamp(nil, []*model.TxOutput{{Value: value, Recipient: recipient}}, txTimestamp.Add(1))
}

func spendTx(prev *model.Transaction, index uint32, outputs ...*model.TxOutput) *model.Transaction {
	input := &model.TxInput{
		PreviousTxID: *prev.TxID(),
		OutputIndex:  index,
		PublicKey:    []byte("public-key"),
		Signature:    []byte("signature"),
	}

	return model.NewTransactionWithTimestamp([]*model.TxInput{input}, outputs, txTimestamp.Add(1))
}

func out(recipient string, value uint64) *model.TxOutput {
	return &model.TxOutput{Value: value, Recipient: recipient}
}

// mineOn mines a block with exactly txs on top of parent at the regtest difficulty.
func mineOn(t *testing.T, parent *model.Block, txs ...*model.Transaction) *model.Block {
	t.Helper()

	block := model.NewBlock(parent.Index+1, txs, parent.Hash(), chaincfg.RegressionNetParams.Difficulty, 1)
	require.NoError(t, block.Mine(context.Background()))

	return block
}

// mineWithCoinbase mines a block paying the block reward to miner followed by txs.
func mineWithCoinbase(t *testing.T, parent *model.Block, miner string, txs ...*model.Transaction) (*model.Block, *model.Transaction) {
	t.Helper()

	coinbase := coinbaseTx(miner, chaincfg.RegressionNetParams.BlockReward)

	return mineOn(t, parent, append([]*model.Transaction{coinbase}, txs...)...), coinbase
}

func bestBlock(t *testing.T, b *Blockchain) *model.Block {
	t.Helper()

	best, err := b.GetBestBlock(context.Background())
	require.NoError(t, err)

	return best
}

func balance(t *testing.T, b *Blockchain, address string) uint64 {
	t.Helper()

	value, err := b.GetBalance(context.Background(), address)
	require.NoError(t, err)

	return value
}

func canonicalLength(t *testing.T, b *Blockchain) int {
	t.Helper()

	chain, err := b.GetCanonicalChain(context.Background())
	require.NoError(t, err)

	return len(chain)
}
