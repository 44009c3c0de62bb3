package blockchain

import (
	"context"
	"encoding/binary"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/stores/utxo"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/ordishs/gocore"
)

// AddBlock accepts a block that extends the canonical tip, extends a tracked fork or starts a new
// fork from a canonical block. A nil error means the block was accepted. A rejected block leaves
// no trace apart from the remembered content of a structurally invalid block.
//
// A fork whose cumulative work becomes strictly greater than the canonical chain's replaces it:
// the UTXO set is rebuilt along the new chain and the abandoned canonical blocks are dropped.
func (b *Blockchain) AddBlock(ctx context.Context, block *model.Block) (err error) {
	start := gocore.CurrentTime()
	defer func() {
		b.stats.NewStat("AddBlock").AddTime(start)
		prometheusBlockchainAddBlock.Observe(float64(gocore.CurrentTime().Sub(start).Microseconds()) / 1_000_000)

		if err != nil {
			prometheusBlockchainBlocksRejected.WithLabelValues(errors.CodeOf(err).String()).Inc()
		}
	}()

	if block == nil || block.Header == nil || block.Hash() == nil || block.PreviousHash() == nil {
		return errors.NewBlockInvalidError("block is missing its header or hash")
	}

	if err = block.CheckTransactions(); err != nil {
		return err
	}

	if err = ctx.Err(); err != nil {
		return errors.NewContextCanceledError("add block %s", block.Hash(), err)
	}

	key := rejectionKey(block)

	b.mu.Lock()
	defer b.mu.Unlock()

	if item := b.rejectedBlocks.Get(key); item != nil {
		return errors.NewBlockInvalidError("block %s was rejected recently: %s", block.Hash(), item.Value())
	}

	if b.nodes.Has(*block.Hash()) {
		return errors.NewBlockExistsError("block %s already known", block.Hash())
	}

	tip := b.tip()

	if block.PreviousHash().IsEqual(tip.block.Hash()) {
		return b.extendTip(block, tip, key)
	}

	return b.addForkBlock(block, key)
}

func (b *Blockchain) extendTip(block *model.Block, tip *blockNode, key chainhash.Hash) error {
	if err := b.checkStructure(block, tip, key); err != nil {
		return err
	}

	// the live set is never touched until every transaction passed
	snapshot := b.utxos.Clone()

	fees, err := b.validateBlockTransactions(block, snapshot)
	if err != nil {
		b.logger.Warnf("[Blockchain] rejected block %s: %v", block.Hash(), err)
		return err
	}

	node := newBlockNode(block, tip)
	b.nodes.Put(*block.Hash(), node)
	b.canonical = append(b.canonical, node)
	b.utxos = snapshot

	b.removeConfirmedFromPending([]*blockNode{node})

	prometheusBlockchainBlocksAccepted.WithLabelValues("tip").Inc()
	b.updateGauges()
	b.notify(model.NotificationTypeBlock, node)

	b.logger.Infof("[Blockchain] block %d %s extends the canonical chain (%d txs, fees %d)", block.Index, block.Hash(), len(block.Transactions), fees)

	return nil
}

func (b *Blockchain) addForkBlock(block *model.Block, key chainhash.Hash) error {
	parent, ok := b.nodes.Get(*block.PreviousHash())
	if !ok {
		return errors.NewBlockOrphanError("block %s has unknown parent %s", block.Hash(), block.PreviousHash())
	}

	forkIndex := b.forkTipIndex(parent)
	if forkIndex < 0 && !b.isCanonical(parent) {
		return errors.NewBlockOrphanError("block %s parent %s is neither canonical nor a fork tip", block.Hash(), block.PreviousHash())
	}

	if err := b.checkStructure(block, parent, key); err != nil {
		return err
	}

	// validated against the state at its own parent, not the canonical tip
	state, err := b.utxoSetAt(parent)
	if err != nil {
		return err
	}

	fees, err := b.validateBlockTransactions(block, state)
	if err != nil {
		b.logger.Warnf("[Blockchain] rejected fork block %s: %v", block.Hash(), err)
		return err
	}

	node := newBlockNode(block, parent)
	b.nodes.Put(*block.Hash(), node)

	if forkIndex >= 0 {
		b.forkTips[forkIndex] = node
		prometheusBlockchainBlocksAccepted.WithLabelValues("fork_extend").Inc()
	} else {
		b.forkTips = append(b.forkTips, node)
		prometheusBlockchainBlocksAccepted.WithLabelValues("fork_new").Inc()
	}

	b.logger.Infof("[Blockchain] block %d %s accepted on a fork (%d txs, fees %d, work %s vs %s)",
		block.Index, block.Hash(), len(block.Transactions), fees, node.chainWork, b.tip().chainWork)

	if node.chainWork.Cmp(b.tip().chainWork) > 0 {
		b.reorg(node, state)
		b.notify(model.NotificationTypeReorg, node)
	} else {
		b.notify(model.NotificationTypeFork, node)
	}

	b.updateGauges()

	return nil
}

// checkStructure validates the block on its own against the given parent and remembers its
// content when it fails.
func (b *Blockchain) checkStructure(block *model.Block, parent *blockNode, key chainhash.Hash) error {
	err := block.Validate(parent.block.Hash())

	switch {
	case err != nil:
	case block.Index != parent.height()+1:
		err = errors.NewBlockInvalidError("block %s has index %d, parent %s has index %d", block.Hash(), block.Index, parent.block.Hash(), parent.height())
	case block.Header.Difficulty != b.difficulty:
		err = errors.NewBlockInvalidError("block %s has difficulty %d, the chain requires %d", block.Hash(), block.Header.Difficulty, b.difficulty)
	}

	if err != nil {
		b.rejectedBlocks.Set(key, err.Error(), b.settings.BlockChain.RejectedBlockTTL)
		b.logger.Warnf("[Blockchain] rejected invalid block %s: %v", block.Hash(), err)

		return err
	}

	return nil
}

// rejectionKey digests the claimed hash together with the full content of a block: header,
// index and the recomputed id of every transaction. A tampered copy of a block never shares the
// key of the genuine one.
func rejectionKey(block *model.Block) chainhash.Hash {
	buf := make([]byte, 0, chainhash.HashSize+model.BlockHeaderSize+4+len(block.Transactions)*chainhash.HashSize)
	buf = append(buf, block.Hash()[:]...)
	buf = append(buf, block.Header.Bytes()...)
	buf = binary.LittleEndian.AppendUint32(buf, block.Index)

	for _, tx := range block.Transactions {
		txID := tx.CalculateTxID()
		buf = append(buf, txID[:]...)
	}

	return chainhash.HashH(buf)
}

// validateBlockTransactions validates and applies the block's transactions in order to state and
// returns the total fee. state is left partially applied on error.
func (b *Blockchain) validateBlockTransactions(block *model.Block, state *utxo.Set) (uint64, error) {
	seen := swiss.NewMap[chainhash.Hash, struct{}](uint32(len(block.Transactions))) //nolint:gosec

	var fees uint64

	for i, tx := range block.Transactions {
		txID := *tx.TxID()

		if seen.Has(txID) {
			return 0, errors.NewTxDuplicateError("transaction %s appears more than once in block %s", tx, block.Hash())
		}

		seen.Put(txID, struct{}{})

		if tx.IsCoinbase() {
			if i != 0 {
				return 0, errors.NewCoinbaseMalformedError("coinbase %s at position %d in block %s", tx, i, block.Hash())
			}

			if len(tx.Outputs) != 1 || tx.Outputs[0].Value != b.blockReward {
				return 0, errors.NewCoinbaseMalformedError("coinbase %s in block %s must have exactly one output of %d", tx, block.Hash(), b.blockReward)
			}
		} else {
			totalIn, err := state.ValidateTransaction(tx)
			if err != nil {
				return 0, errors.NewTxInvalidError("transaction %s in block %s", tx, block.Hash(), err)
			}

			fees += totalIn - tx.TotalOutputValue()
		}

		if err := state.ApplyTransaction(tx); err != nil {
			return 0, err
		}
	}

	return fees, nil
}

// utxoSetAt returns an independent UTXO set as it is after node.
func (b *Blockchain) utxoSetAt(node *blockNode) (*utxo.Set, error) {
	if node == b.tip() {
		return b.utxos.Clone(), nil
	}

	state := b.newUtxoSet()

	for _, n := range node.path() {
		if err := state.ApplyBlock(n.block); err != nil {
			return nil, errors.NewProcessingError("failed to rebuild utxo set at block %s", node.block.Hash(), err)
		}
	}

	return state, nil
}

// reorg makes newTip the canonical tip. state is the UTXO set after newTip.
func (b *Blockchain) reorg(newTip *blockNode, state *utxo.Set) {
	oldTip := b.tip()
	oldCanonical := b.canonical
	newCanonical := newTip.path()

	forkPoint := 0
	for forkPoint < len(oldCanonical) && forkPoint < len(newCanonical) && oldCanonical[forkPoint] == newCanonical[forkPoint] {
		forkPoint++
	}

	abandoned := oldCanonical[forkPoint:]
	connected := newCanonical[forkPoint:]

	b.canonical = newCanonical
	b.utxos = state

	if i := b.forkTipIndex(newTip); i >= 0 {
		b.forkTips = append(b.forkTips[:i], b.forkTips[i+1:]...)
	}

	b.pruneAbandoned(oldTip)

	var requeue []*model.Transaction
	if b.requeueReorgTransactions {
		requeue = abandonedTransactions(abandoned, connected)
	}

	b.removeConfirmedFromPending(connected, requeue...)

	prometheusBlockchainReorgs.Inc()
	prometheusBlockchainReorgDepth.Observe(float64(len(abandoned)))

	b.logger.Warnf("[Blockchain] reorg to %s at height %d: %d blocks abandoned, %d connected, work %s, %d transactions requeued",
		newTip.block.Hash(), newTip.height(), len(abandoned), len(connected), newTip.chainWork, len(requeue))
}

// pruneAbandoned drops the blocks of the abandoned canonical branch from the tree, stopping at
// the first block still needed by the canonical chain or by another fork.
func (b *Blockchain) pruneAbandoned(oldTip *blockNode) {
	for node := oldTip; node != nil && !b.isCanonical(node) && len(node.children) == 0 && b.forkTipIndex(node) < 0; {
		parent := node.parent

		b.nodes.Delete(*node.block.Hash())

		if parent != nil {
			parent.removeChild(node)
		}

		node = parent
	}
}

// abandonedTransactions returns the non-coinbase transactions of the abandoned blocks that the
// connected blocks do not include, in chain order.
func abandonedTransactions(abandoned, connected []*blockNode) []*model.Transaction {
	included := make(map[chainhash.Hash]struct{})

	for _, node := range connected {
		for _, tx := range node.block.Transactions {
			included[*tx.TxID()] = struct{}{}
		}
	}

	txs := make([]*model.Transaction, 0)

	for _, node := range abandoned {
		for _, tx := range node.block.Transactions {
			if tx.IsCoinbase() {
				continue
			}

			if _, ok := included[*tx.TxID()]; !ok {
				txs = append(txs, tx)
			}
		}
	}

	return txs
}
