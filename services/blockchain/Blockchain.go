// Package blockchain is the chain manager of the ledger. It owns the tree of known blocks, the
// canonical chain, the tracked forks, the UTXO set of the canonical chain and the pool of pending
// transactions, and it is the single place where any of them changes.
//
// Every read and mutation is serialized by one RWMutex. Block acceptance validates against
// snapshots and only touches live state once a block has fully passed. Proof-of-work search for a
// locally mined block runs without the lock and the result goes through AddBlock like any other
// block.
package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/stores/utxo"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bitcoin-sv/minichain/util/health"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/jellydator/ttlcache/v3"
	"github.com/looplab/fsm"
	"github.com/ordishs/gocore"
)

type Blockchain struct {
	mu       sync.RWMutex
	miningMu sync.Mutex

	logger   ulogger.Logger
	settings *settings.Settings
	stats    *gocore.Stat

	difficulty   uint32
	blockReward  uint64
	blockVersion uint32

	authorizer               model.Authorizer
	requeueReorgTransactions bool
	genesis                  *model.Block

	nodes     *swiss.Map[chainhash.Hash, *blockNode]
	canonical []*blockNode
	forkTips  []*blockNode
	utxos     *utxo.Set

	pending     []*model.Transaction
	pendingIDs  map[chainhash.Hash]struct{}
	pendingView *utxo.Set

	rejectedBlocks        *ttlcache.Cache[chainhash.Hash, string]
	rejectedBlocksRunning atomic.Bool
	finiteStateMachine    *fsm.FSM

	notifications chan *model.Notification
	subscribersMu sync.RWMutex
	subscribers   map[chan *model.Notification]subscriber
}

// New creates the chain manager with a genesis block: index 0, the zero previous hash, no
// transactions, the genesis timestamp of the configured network, mined at the network difficulty.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, opts ...Option) (*Blockchain, error) {
	initPrometheusMetrics()

	if tSettings == nil || tSettings.ChainCfgParams == nil {
		return nil, errors.NewConfigurationError("blockchain requires settings with chain parameters")
	}

	b := &Blockchain{
		logger:                   logger,
		settings:                 tSettings,
		stats:                    gocore.NewStat("blockchain"),
		difficulty:               tSettings.Difficulty(),
		blockReward:              tSettings.BlockReward(),
		blockVersion:             tSettings.ChainCfgParams.BlockVersion,
		authorizer:               model.AlwaysAuthorize,
		requeueReorgTransactions: tSettings.BlockChain.RequeueReorgTransactions,
		nodes:                    swiss.NewMap[chainhash.Hash, *blockNode](1024),
		pendingIDs:               make(map[chainhash.Hash]struct{}),
		notifications:            make(chan *model.Notification, 100),
		subscribers:              make(map[chan *model.Notification]subscriber),
		rejectedBlocks: ttlcache.New[chainhash.Hash, string](
			ttlcache.WithTTL[chainhash.Hash, string](tSettings.BlockChain.RejectedBlockTTL),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, string](),
		),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.finiteStateMachine = b.NewFiniteStateMachine()

	genesis := b.genesis
	if genesis == nil {
		params := tSettings.ChainCfgParams
		genesisPrev := params.GenesisPreviousHash

		genesis = model.NewBlockWithTimestamp(0, nil, &genesisPrev, b.difficulty, b.blockVersion, params.GenesisTimestamp)

		if err := genesis.Mine(ctx); err != nil {
			return nil, errors.NewProcessingError("failed to mine genesis block", err)
		}
	}

	if genesis.Index != 0 {
		return nil, errors.NewConfigurationError("genesis block must have index 0, got %d", genesis.Index)
	}

	if err := genesis.Validate(genesis.PreviousHash()); err != nil {
		return nil, errors.NewConfigurationError("invalid genesis block", err)
	}

	utxos := b.newUtxoSet()
	if err := utxos.ApplyBlock(genesis); err != nil {
		return nil, errors.NewProcessingError("failed to apply genesis block", err)
	}

	node := newBlockNode(genesis, nil)
	b.nodes.Put(*genesis.Hash(), node)
	b.canonical = []*blockNode{node}
	b.utxos = utxos
	b.pendingView = utxos.Clone()

	b.updateGauges()

	logger.Infof("[Blockchain] genesis %s on %s, difficulty %d, reward %d", genesis.Hash(), tSettings.ChainCfgParams.Name, b.difficulty, b.blockReward)

	return b, nil
}

func (b *Blockchain) newUtxoSet() *utxo.Set {
	return utxo.New(utxo.WithAuthorizer(b.authorizer))
}

// Init starts the expiry of remembered rejected blocks.
func (b *Blockchain) Init(_ context.Context) error {
	if b.rejectedBlocksRunning.CompareAndSwap(false, true) {
		go b.rejectedBlocks.Start()
	}

	return nil
}

// Start moves the service to RUNNING, delivers notifications to subscribers and blocks until ctx
// is done.
func (b *Blockchain) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if err := b.Run(ctx); err != nil {
		return err
	}

	go b.sendNotifications(ctx)

	if readyCh != nil {
		close(readyCh)
	}

	<-ctx.Done()

	return nil
}

// Stop moves the service to STOPPED.
func (b *Blockchain) Stop(ctx context.Context) error {
	if b.rejectedBlocksRunning.CompareAndSwap(true, false) {
		b.rejectedBlocks.Stop()
	}

	return b.sendFSMEvent(ctx, FSMEventSTOP)
}

// Health reports liveness as long as the service exists. Readiness also requires the service to
// be out of STOPPED.
func (b *Blockchain) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "FSM", Check: CheckFSM(b)},
		{Name: "Chain", Check: func(ctx context.Context, _ bool) (int, string, error) {
			best, err := b.GetBestBlock(ctx)
			if err != nil {
				return http.StatusServiceUnavailable, "no best block", err
			}

			return http.StatusOK, fmt.Sprintf("best block %d %s", best.Index, best.Hash()), nil
		}},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

// Blocks returned by the getters below are shared with the chain and must be treated as read
// only.

func (b *Blockchain) GetBestBlock(_ context.Context) (*model.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.tip().block, nil
}

// GetCanonicalChain returns the canonical blocks from genesis to the best block.
func (b *Blockchain) GetCanonicalChain(_ context.Context) ([]*model.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return blocksOf(b.canonical), nil
}

// GetBlock returns any block of the tree, canonical or not.
func (b *Blockchain) GetBlock(_ context.Context, hash *chainhash.Hash) (*model.Block, error) {
	if hash == nil {
		return nil, errors.NewInvalidArgumentError("block hash is required")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	node, ok := b.nodes.Get(*hash)
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", hash)
	}

	return node.block, nil
}

// GetForks returns every tracked fork as the full sequence of blocks from genesis to its tip.
func (b *Blockchain) GetForks(_ context.Context) ([][]*model.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	forks := make([][]*model.Block, 0, len(b.forkTips))
	for _, tip := range b.forkTips {
		forks = append(forks, blocksOf(tip.path()))
	}

	return forks, nil
}

// GetChainWork returns the cumulative work of the canonical chain.
func (b *Blockchain) GetChainWork(_ context.Context) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return new(big.Int).Set(b.tip().chainWork), nil
}

func (b *Blockchain) GetPendingTransactions(_ context.Context) ([]*model.Transaction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txs := make([]*model.Transaction, len(b.pending))
	copy(txs, b.pending)

	return txs, nil
}

// GetBalance sums the unspent canonical outputs paying address.
func (b *Blockchain) GetBalance(_ context.Context, address string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.utxos.GetBalance(address), nil
}

// GetUtxos lists the unspent canonical outputs paying address.
func (b *Blockchain) GetUtxos(_ context.Context, address string) ([]*utxo.UTXO, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.utxos.GetUtxosForAddress(address), nil
}

// BlockReward is the value a coinbase must pay.
func (b *Blockchain) BlockReward() uint64 {
	return b.blockReward
}

// Difficulty is the difficulty of blocks mined by this node.
func (b *Blockchain) Difficulty() uint32 {
	return b.difficulty
}

func (b *Blockchain) tip() *blockNode {
	return b.canonical[len(b.canonical)-1]
}

func (b *Blockchain) isCanonical(node *blockNode) bool {
	h := int(node.height())

	return h < len(b.canonical) && b.canonical[h] == node
}

func (b *Blockchain) forkTipIndex(node *blockNode) int {
	for i, tip := range b.forkTips {
		if tip == node {
			return i
		}
	}

	return -1
}

func (b *Blockchain) updateGauges() {
	prometheusBlockchainHeight.Set(float64(b.tip().height()))
	prometheusBlockchainForks.Set(float64(len(b.forkTips)))
	prometheusBlockchainUtxos.Set(float64(b.utxos.Len()))
	prometheusBlockchainPendingTxs.Set(float64(len(b.pending)))
}
