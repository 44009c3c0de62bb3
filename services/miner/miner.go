package miner

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/services/blockchain"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bitcoin-sv/minichain/util/health"
	"github.com/bitcoin-sv/minichain/util/retry"
)

// Miner periodically turns the pending pool into a block paid to the configured address.
type Miner struct {
	logger           ulogger.Logger
	settings         *settings.Settings
	blockchainClient blockchain.ClientI
	address          string
	interval         time.Duration
	retryBackoff     time.Duration
	candidateTimer   *time.Timer
	mineNow          chan struct{}
	isMining         atomic.Bool
}

func New(logger ulogger.Logger, tSettings *settings.Settings, blockchainClient blockchain.ClientI) *Miner {
	initPrometheusMetrics()

	return &Miner{
		logger:           logger,
		settings:         tSettings,
		blockchainClient: blockchainClient,
		address:          tSettings.Miner.Address,
		interval:         tSettings.Miner.Interval,
		retryBackoff:     time.Second,
		mineNow:          make(chan struct{}, 1),
	}
}

func (m *Miner) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := make([]health.Check, 0, 2)

	if m.blockchainClient != nil {
		checks = append(checks, health.Check{Name: "BlockchainClient", Check: m.blockchainClient.Health})
		checks = append(checks, health.Check{Name: "FSM", Check: blockchain.CheckFSM(m.blockchainClient)})
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (m *Miner) Init(_ context.Context) error {
	if m.address == "" {
		return errors.NewConfigurationError("[Miner] no miner_address specified")
	}

	if m.interval <= 0 {
		return errors.NewConfigurationError("[Miner] miner_interval must be positive, got %s", m.interval)
	}

	return nil
}

// Start mines on every tick of the interval while transactions are pending. A block connected by
// someone else cancels the attempt in progress, which is restarted on the new tip.
func (m *Miner) Start(ctx context.Context, readyCh chan<- struct{}) error {
	notifications, err := m.blockchainClient.Subscribe(ctx, "miner")
	if err != nil {
		return errors.NewServiceError("[Miner] failed to subscribe to blockchain notifications", err)
	}

	m.candidateTimer = time.NewTimer(m.interval)
	defer m.candidateTimer.Stop()

	m.logger.Infof("[Miner] Starting miner paying %s every %s", m.address, m.interval)

	close(readyCh)

	var cancel context.CancelFunc

	defer func() {
		if cancel != nil {
			cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Infof("[Miner] Stopping miner as ctx is done")
			return nil

		case notification, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}

			if notification.Type == model.NotificationTypeFork || !m.isMining.Load() {
				continue
			}

			// the tip moved under the candidate
			if cancel != nil {
				cancel()
				cancel = nil
			}

			m.trigger()

		case <-m.mineNow:
			cancel = m.startMining(ctx, cancel)

		case <-m.candidateTimer.C:
			m.candidateTimer.Reset(m.interval)

			cancel = m.startMining(ctx, cancel)
		}
	}
}

func (m *Miner) Stop(_ context.Context) error {
	m.logger.Infof("[Miner] Stopping miner")

	return nil
}

func (m *Miner) trigger() {
	select {
	case m.mineNow <- struct{}{}:
	default:
	}
}

func (m *Miner) startMining(ctx context.Context, cancel context.CancelFunc) context.CancelFunc {
	if !m.isMining.CompareAndSwap(false, true) {
		return cancel
	}

	if cancel != nil {
		cancel()
	}

	miningCtx, miningCancel := context.WithCancel(ctx)

	go func() {
		block, err := m.Mine(miningCtx)

		m.isMining.Store(false)

		switch {
		case errors.IsContextError(err):
			m.logger.Infof("[Miner] stopped mining stale candidate (will start over)")
			m.trigger()
		case err != nil:
			m.logger.Warnf("[Miner] %v", err)
		case block != nil:
			// more transactions may have arrived while mining
			m.trigger()
		}
	}()

	return miningCancel
}

// Mine mines one block from the pending pool and submits it to the chain manager. It returns a
// nil block when nothing is pending.
func (m *Miner) Mine(ctx context.Context) (*model.Block, error) {
	timeStart := time.Now()

	block, err := retry.Retry(ctx, m.logger, func() (*model.Block, error) {
		block, err := m.blockchainClient.MineBlock(ctx, m.address)
		if err != nil && errors.IsContextError(err) {
			return nil, retry.Permanent(err)
		}

		return block, err
	}, retry.WithRetryCount(3),
		retry.WithBackoffDurationType(m.retryBackoff),
		retry.WithMessage("[Miner] mining block"))
	if err != nil {
		if errors.IsContextError(err) {
			return nil, err
		}

		prometheusMinerErrors.Inc()

		return nil, errors.NewProcessingError("[Miner] error mining block to %s", m.address, err)
	}

	if block == nil {
		m.logger.Debugf("[Miner] no pending transactions to mine")
		return nil, nil
	}

	prometheusBlockMined.Observe(float64(time.Since(timeStart).Microseconds()) / 1_000)
	prometheusBlockTransactions.Observe(float64(len(block.Transactions)))

	m.logger.Infof("[Miner] mined block %d %s with %d transactions", block.Index, block.Hash(), len(block.Transactions))

	return block, nil
}
