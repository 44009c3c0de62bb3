// Package errors provides utilities for categorizing and handling errors in the ledger.
package errors

import (
	"context"
	"errors"
)

// IsRejection reports whether err is one of the expected, locally recoverable rejection
// outcomes of block acceptance or transaction submission. Rejections leave no partial
// effect on chain or UTXO state; the caller decides whether to retry, fetch a missing
// ancestor or discard.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}

	switch CodeOf(err) {
	case ERR_BLOCK_INVALID,
		ERR_BLOCK_ORPHAN,
		ERR_BLOCK_EXISTS,
		ERR_COINBASE_MALFORMED,
		ERR_TX_INVALID,
		ERR_TX_INVALID_DOUBLE_SPEND,
		ERR_TX_INSUFFICIENT_INPUT,
		ERR_TX_DUPLICATE,
		ERR_TX_ALREADY_EXISTS:
		return true
	}

	return false
}

// IsMissingAncestor reports whether the block was rejected because its parent is unknown.
// Fetching the ancestor and resubmitting may succeed.
func IsMissingAncestor(err error) bool {
	return Is(err, ErrBlockOrphan)
}

// IsContextError determines if the error was caused by a cancelled or expired context.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return CodeOf(err) == ERR_CONTEXT_CANCELED
}
