package blockchain

import (
	"context"
	"math/big"

	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/stores/utxo"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// ClientI is the view of the chain manager used by the miner and the HTTP API.
type ClientI interface {
	// Health returns an HTTP status code, a status message and an error.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// AddBlock returns nil when the block was accepted, otherwise an *errors.Error describing why
	// it was rejected.
	AddBlock(ctx context.Context, block *model.Block) error
	SubmitTransaction(ctx context.Context, tx *model.Transaction) error

	// MineBlock returns a nil block and a nil error when no transaction is pending.
	MineBlock(ctx context.Context, minerAddress string) (*model.Block, error)

	GetBalance(ctx context.Context, address string) (uint64, error)
	GetUtxos(ctx context.Context, address string) ([]*utxo.UTXO, error)
	GetCanonicalChain(ctx context.Context) ([]*model.Block, error)
	GetBestBlock(ctx context.Context) (*model.Block, error)
	GetBlock(ctx context.Context, hash *chainhash.Hash) (*model.Block, error)
	GetPendingTransactions(ctx context.Context) ([]*model.Transaction, error)
	GetForks(ctx context.Context) ([][]*model.Block, error)
	GetChainWork(ctx context.Context) (*big.Int, error)
	IsChainValid(ctx context.Context) (bool, error)

	Subscribe(ctx context.Context, source string) (<-chan *model.Notification, error)
	GetFSMCurrentState(ctx context.Context) (FSMStateType, error)
}

var _ ClientI = (*Blockchain)(nil)
