package blockchain

import (
	"github.com/bitcoin-sv/minichain/model"
)

type Option func(*Blockchain)

// WithAuthorizer replaces the default authorization check applied to transaction inputs.
func WithAuthorizer(authorizer model.Authorizer) Option {
	return func(b *Blockchain) {
		if authorizer != nil {
			b.authorizer = authorizer
		}
	}
}

// WithRequeueReorgTransactions overrides blockchain_requeueReorgTransactions.
func WithRequeueReorgTransactions(requeue bool) Option {
	return func(b *Blockchain) {
		b.requeueReorgTransactions = requeue
	}
}

// WithGenesisBlock starts the chain from the given block instead of mining one from the chain
// parameters. The block must already be mined.
func WithGenesisBlock(block *model.Block) Option {
	return func(b *Blockchain) {
		b.genesis = block
	}
}
