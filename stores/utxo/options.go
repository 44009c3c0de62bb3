package utxo

import (
	"github.com/bitcoin-sv/minichain/model"
)

type Options struct {
	authorizer      model.Authorizer
	initialCapacity uint32
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		authorizer:      model.AlwaysAuthorize,
		initialCapacity: 1024,
	}
}

// WithAuthorizer sets the check applied to every non-coinbase input.
func WithAuthorizer(authorizer model.Authorizer) Option {
	return func(o *Options) {
		if authorizer != nil {
			o.authorizer = authorizer
		}
	}
}

// WithInitialCapacity sizes the backing map.
func WithInitialCapacity(capacity uint32) Option {
	return func(o *Options) {
		o.initialCapacity = capacity
	}
}
