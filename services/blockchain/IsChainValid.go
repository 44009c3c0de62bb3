package blockchain

import (
	"context"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/ordishs/gocore"
	"golang.org/x/sync/errgroup"
)

// IsChainValid re-verifies every canonical block: its hash against its header, its proof of
// work, its transaction ids, its Merkle root, its index and its link to the previous block. Blocks are
// checked concurrently. The error is only set when ctx is done before the check completes.
func (b *Blockchain) IsChainValid(ctx context.Context) (bool, error) {
	start := gocore.CurrentTime()
	defer func() {
		b.stats.NewStat("IsChainValid").AddTime(start)
		prometheusBlockchainIsChainValid.Observe(gocore.CurrentTime().Sub(start).Seconds())
	}()

	b.mu.RLock()
	chain := blocksOf(b.canonical)
	b.mu.RUnlock()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.settings.BlockChain.ValidateConcurrency))

	for i, block := range chain {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return errors.NewContextCanceledError("chain validation cancelled", err)
			}

			if int(block.Index) != i {
				return errors.NewBlockInvalidError("block %s at height %d has index %d", block.Hash(), i, block.Index)
			}

			// genesis is checked against its own previous hash
			expectedPrev := block.PreviousHash()
			if i > 0 {
				expectedPrev = chain[i-1].Hash()
			}

			return block.Validate(expectedPrev)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.IsContextError(err) {
			return false, err
		}

		b.logger.Warnf("[Blockchain] chain is invalid: %v", err)

		return false, nil
	}

	return true, nil
}
