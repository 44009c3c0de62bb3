package blockchain

import (
	"context"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/ordishs/gocore"
)

// MineBlock builds a block from a coinbase paying minerAddress followed by every pending
// transaction, searches its proof of work and submits it through AddBlock. It returns a nil block
// and a nil error when nothing is pending. Only one block is mined at a time.
func (b *Blockchain) MineBlock(ctx context.Context, minerAddress string) (*model.Block, error) {
	if minerAddress == "" {
		return nil, errors.NewInvalidArgumentError("miner address is required")
	}

	b.miningMu.Lock()
	defer b.miningMu.Unlock()

	b.mu.RLock()
	if len(b.pending) == 0 {
		b.mu.RUnlock()
		return nil, nil
	}

	tip := b.tip().block
	txs := make([]*model.Transaction, 0, len(b.pending)+1)
	txs = append(txs, model.NewCoinbaseTransaction(minerAddress, b.blockReward))
	txs = append(txs, b.pending...)
	b.mu.RUnlock()

	block := model.NewBlock(tip.Index+1, txs, tip.Hash(), b.difficulty, b.blockVersion)

	if b.finiteStateMachine.Can(FSMEventMINE.String()) {
		if err := b.sendFSMEvent(ctx, FSMEventMINE); err == nil {
			defer func() {
				if b.finiteStateMachine.Current() == FSMStateMINING.String() {
					_ = b.sendFSMEvent(context.Background(), FSMEventRUN)
				}
			}()
		}
	}

	start := gocore.CurrentTime()

	if err := block.Mine(ctx); err != nil {
		return nil, err
	}

	b.stats.NewStat("MineBlock").AddTime(start)
	prometheusBlockchainMineBlock.Observe(gocore.CurrentTime().Sub(start).Seconds())

	b.logger.Infof("[Blockchain] mined block %d %s with nonce %d in %s", block.Index, block.Hash(), block.Header.Nonce, gocore.CurrentTime().Sub(start))

	if err := b.AddBlock(ctx, block); err != nil {
		return nil, err
	}

	return block, nil
}
