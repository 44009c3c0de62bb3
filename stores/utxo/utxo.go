// Package utxo holds the set of unspent transaction outputs produced along the active chain.
//
// A Set is not safe for concurrent mutation; callers serialize access.
package utxo

import (
	"bytes"
	"math"
	"sort"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/dolthub/swiss"
)

// Outpoint identifies one output of one transaction.
type Outpoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// UTXO is an unspent output together with its outpoint.
type UTXO struct {
	Outpoint
	Output model.TxOutput
}

type Set struct {
	m          *swiss.Map[Outpoint, model.TxOutput]
	authorizer model.Authorizer
	options    *Options
}

func New(opts ...Option) *Set {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Set{
		m:          swiss.NewMap[Outpoint, model.TxOutput](options.initialCapacity),
		authorizer: options.authorizer,
		options:    options,
	}
}

// Add stores output under (txID, index), replacing any existing entry.
func (s *Set) Add(txID chainhash.Hash, index uint32, output model.TxOutput) {
	s.m.Put(Outpoint{TxID: txID, Index: index}, output)
}

// Remove deletes the entry for (txID, index). Removing an absent entry is a no-op.
func (s *Set) Remove(txID chainhash.Hash, index uint32) {
	s.m.Delete(Outpoint{TxID: txID, Index: index})
}

func (s *Set) Get(txID chainhash.Hash, index uint32) (model.TxOutput, bool) {
	return s.m.Get(Outpoint{TxID: txID, Index: index})
}

func (s *Set) Has(txID chainhash.Hash, index uint32) bool {
	return s.m.Has(Outpoint{TxID: txID, Index: index})
}

func (s *Set) Len() int {
	return s.m.Count()
}

// ForEach calls fn for every entry in unspecified order until fn returns false.
func (s *Set) ForEach(fn func(outpoint Outpoint, output model.TxOutput) bool) {
	s.m.Iter(func(k Outpoint, v model.TxOutput) bool {
		return !fn(k, v)
	})
}

// GetBalance sums the values of the entries whose recipient is address.
func (s *Set) GetBalance(address string) uint64 {
	var balance uint64

	s.m.Iter(func(_ Outpoint, v model.TxOutput) bool {
		if v.Recipient == address {
			balance += v.Value
		}

		return false
	})

	return balance
}

// GetUtxosForAddress returns the entries whose recipient is address, ordered by outpoint.
func (s *Set) GetUtxosForAddress(address string) []*UTXO {
	utxos := make([]*UTXO, 0)

	s.m.Iter(func(k Outpoint, v model.TxOutput) bool {
		if v.Recipient == address {
			utxos = append(utxos, &UTXO{Outpoint: k, Output: v})
		}

		return false
	})

	sort.Slice(utxos, func(i, j int) bool {
		if c := bytes.Compare(utxos[i].TxID[:], utxos[j].TxID[:]); c != 0 {
			return c < 0
		}

		return utxos[i].Index < utxos[j].Index
	})

	return utxos
}

// ValidateTransaction checks that tx can be applied to the set and returns the total value of the
// outputs it consumes. A coinbase is valid with an input value of zero; block level coinbase rules
// are enforced by the chain.
func (s *Set) ValidateTransaction(tx *model.Transaction) (uint64, error) {
	if err := tx.CheckEntries(); err != nil {
		return 0, err
	}

	if tx.IsCoinbase() {
		return 0, nil
	}

	seen := make(map[Outpoint]struct{}, len(tx.Inputs))

	var totalIn uint64

	for i, input := range tx.Inputs {
		outpoint := Outpoint{TxID: input.PreviousTxID, Index: input.OutputIndex}

		if _, ok := seen[outpoint]; ok {
			return 0, errors.NewDoubleSpendErr(input.PreviousTxID.String(), input.OutputIndex, "outpoint spent twice in transaction "+tx.String())
		}

		seen[outpoint] = struct{}{}

		output, ok := s.m.Get(outpoint)
		if !ok {
			return 0, errors.NewDoubleSpendErr(input.PreviousTxID.String(), input.OutputIndex, "outpoint is not unspent")
		}

		if !s.authorizer.Authorize(input.PublicKey, input.Signature) {
			return 0, errors.NewTxInvalidError("transaction %s input %d is not authorized to spend %s:%d", tx, i, input.PreviousTxID, input.OutputIndex)
		}

		if output.Value > math.MaxUint64-totalIn {
			return 0, errors.NewTxInvalidError("transaction %s input value overflows", tx)
		}

		totalIn += output.Value
	}

	var totalOut uint64

	for _, output := range tx.Outputs {
		if output.Value > math.MaxUint64-totalOut {
			return 0, errors.NewTxInvalidError("transaction %s output value overflows", tx)
		}

		totalOut += output.Value
	}

	if totalIn < totalOut {
		return 0, errors.NewTxInsufficientInputError("transaction %s spends %d but consumes only %d", tx, totalOut, totalIn)
	}

	return totalIn, nil
}

// Validate is ValidateTransaction reduced to a boolean and the total input value.
func (s *Set) Validate(tx *model.Transaction) (bool, uint64) {
	totalIn, err := s.ValidateTransaction(tx)
	if err != nil {
		return false, 0
	}

	return true, totalIn
}

// ApplyTransaction removes the outputs tx consumes and adds the outputs it creates. It does not
// validate; callers validate first. A transaction with nil entries is refused before any change.
func (s *Set) ApplyTransaction(tx *model.Transaction) error {
	if err := tx.CheckEntries(); err != nil {
		return err
	}

	txID := *tx.TxID()

	for _, input := range tx.Inputs {
		s.Remove(input.PreviousTxID, input.OutputIndex)
	}

	for i, output := range tx.Outputs {
		index, err := safeconversion.IntToUint32(i)
		if err != nil {
			return errors.NewProcessingError("transaction %s has too many outputs", tx, err)
		}

		s.Add(txID, index, *output)
	}

	return nil
}

// ApplyBlock applies the block's transactions in order.
func (s *Set) ApplyBlock(block *model.Block) error {
	for _, tx := range block.Transactions {
		if err := s.ApplyTransaction(tx); err != nil {
			return err
		}
	}

	return nil
}

// Clone returns a fully independent copy sharing only the authorizer.
func (s *Set) Clone() *Set {
	capacity := s.options.initialCapacity
	if count, err := safeconversion.IntToUint32(s.m.Count()); err == nil && count > capacity {
		capacity = count
	}

	clone := &Set{
		m:          swiss.NewMap[Outpoint, model.TxOutput](capacity),
		authorizer: s.authorizer,
		options:    s.options,
	}

	s.m.Iter(func(k Outpoint, v model.TxOutput) bool {
		clone.m.Put(k, v)
		return false
	})

	return clone
}
