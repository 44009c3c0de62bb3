package blockchain

import (
	"context"
	"math/big"

	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/stores/utxo"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/mock"
)

// Mock implements the blockchain.ClientI interface for testing purposes
type Mock struct {
	mock.Mock
}

var _ ClientI = (*Mock)(nil)

func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)

	return args.Int(0), args.String(1), args.Error(2)
}

func (m *Mock) AddBlock(ctx context.Context, block *model.Block) error {
	args := m.Called(ctx, block)

	return args.Error(0)
}

func (m *Mock) SubmitTransaction(ctx context.Context, tx *model.Transaction) error {
	args := m.Called(ctx, tx)

	return args.Error(0)
}

func (m *Mock) MineBlock(ctx context.Context, minerAddress string) (*model.Block, error) {
	args := m.Called(ctx, minerAddress)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	block, _ := args.Get(0).(*model.Block)

	return block, nil
}

func (m *Mock) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)

	if args.Error(1) != nil {
		return 0, args.Error(1)
	}

	return args.Get(0).(uint64), nil
}

func (m *Mock) GetUtxos(ctx context.Context, address string) ([]*utxo.UTXO, error) {
	args := m.Called(ctx, address)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*utxo.UTXO), nil
}

func (m *Mock) GetCanonicalChain(ctx context.Context) ([]*model.Block, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.Block), nil
}

func (m *Mock) GetBestBlock(ctx context.Context) (*model.Block, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.Block), nil
}

func (m *Mock) GetBlock(ctx context.Context, hash *chainhash.Hash) (*model.Block, error) {
	args := m.Called(ctx, hash)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.Block), nil
}

func (m *Mock) GetPendingTransactions(ctx context.Context) ([]*model.Transaction, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.Transaction), nil
}

func (m *Mock) GetForks(ctx context.Context) ([][]*model.Block, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([][]*model.Block), nil
}

func (m *Mock) GetChainWork(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*big.Int), nil
}

func (m *Mock) IsChainValid(ctx context.Context) (bool, error) {
	args := m.Called(ctx)

	return args.Bool(0), args.Error(1)
}

func (m *Mock) Subscribe(ctx context.Context, source string) (<-chan *model.Notification, error) {
	args := m.Called(ctx, source)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(<-chan *model.Notification), nil
}

func (m *Mock) GetFSMCurrentState(ctx context.Context) (FSMStateType, error) {
	args := m.Called(ctx)

	return args.Get(0).(FSMStateType), args.Error(1)
}
