package blockchain

import (
	"context"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/stores/utxo"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"
)

// SubmitTransaction adds tx to the pending pool. It is validated against the canonical UTXO set
// with the effects of the already pending transactions applied, so of two pending transactions
// spending the same output only the first is accepted. A nil error means the transaction is
// pending.
func (b *Blockchain) SubmitTransaction(ctx context.Context, tx *model.Transaction) (err error) {
	start := gocore.CurrentTime()
	defer func() {
		b.stats.NewStat("SubmitTransaction").AddTime(start)

		result := "accepted"
		if err != nil {
			result = errors.CodeOf(err).String()
		}

		prometheusBlockchainSubmitTransaction.WithLabelValues(result).Inc()
	}()

	if tx == nil {
		return errors.NewInvalidArgumentError("transaction is required")
	}

	if err = tx.CheckEntries(); err != nil {
		return err
	}

	if err = ctx.Err(); err != nil {
		return errors.NewContextCanceledError("submit transaction %s", tx, err)
	}

	if tx.IsCoinbase() {
		return errors.NewTxInvalidError("coinbase transaction %s cannot be submitted, it is created by the miner", tx)
	}

	if calculated := tx.CalculateTxID(); !calculated.IsEqual(tx.TxID()) {
		return errors.NewTxInvalidError("transaction %s does not match its content hash %s", tx, calculated)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pendingIDs[*tx.TxID()]; ok {
		return errors.NewTxAlreadyExistsError("transaction %s is already pending", tx)
	}

	if _, err = b.pendingView.ValidateTransaction(tx); err != nil {
		b.logger.Debugf("[Blockchain] rejected transaction %s: %v", tx, err)
		return err
	}

	if err = b.pendingView.ApplyTransaction(tx); err != nil {
		// the view may be partially applied, rebuild it from the pool
		b.revalidatePending(nil)
		return err
	}

	b.pending = append(b.pending, tx)
	b.pendingIDs[*tx.TxID()] = struct{}{}

	prometheusBlockchainPendingTxs.Set(float64(len(b.pending)))

	b.logger.Debugf("[Blockchain] transaction %s pending (%d in pool)", tx, len(b.pending))

	return nil
}

// removeConfirmedFromPending drops transactions included in the connected blocks from the pool,
// appends requeue and revalidates the pool against the current UTXO set, evicting transactions
// that are no longer valid.
func (b *Blockchain) removeConfirmedFromPending(connected []*blockNode, requeue ...*model.Transaction) {
	confirmed := make(map[chainhash.Hash]struct{})

	for _, node := range connected {
		for _, tx := range node.block.Transactions {
			confirmed[*tx.TxID()] = struct{}{}
		}
	}

	candidates := make([]*model.Transaction, 0, len(requeue)+len(b.pending))
	candidates = append(candidates, requeue...)

	for _, tx := range b.pending {
		if _, ok := confirmed[*tx.TxID()]; !ok {
			candidates = append(candidates, tx)
		}
	}

	b.revalidatePending(candidates)
}

// revalidatePending rebuilds the pool and its view from candidates, or from the current pool when
// candidates is nil, keeping only transactions still valid in order.
func (b *Blockchain) revalidatePending(candidates []*model.Transaction) {
	if candidates == nil {
		candidates = b.pending
	}

	view := b.utxos.Clone()
	pending := make([]*model.Transaction, 0, len(candidates))
	pendingIDs := make(map[chainhash.Hash]struct{}, len(candidates))

	for _, tx := range candidates {
		if _, ok := pendingIDs[*tx.TxID()]; ok {
			continue
		}

		if _, err := view.ValidateTransaction(tx); err != nil {
			b.logger.Infof("[Blockchain] evicting pending transaction %s: %v", tx, err)
			continue
		}

		if err := view.ApplyTransaction(tx); err != nil {
			b.logger.Errorf("[Blockchain] evicting pending transaction %s: %v", tx, err)
			view = b.rebuildView(pending)

			continue
		}

		pending = append(pending, tx)
		pendingIDs[*tx.TxID()] = struct{}{}
	}

	b.pending = pending
	b.pendingIDs = pendingIDs
	b.pendingView = view

	prometheusBlockchainPendingTxs.Set(float64(len(b.pending)))
}

func (b *Blockchain) rebuildView(txs []*model.Transaction) *utxo.Set {
	view := b.utxos.Clone()

	for _, tx := range txs {
		// already applied successfully once against the same base
		_ = view.ApplyTransaction(tx)
	}

	return view
}
