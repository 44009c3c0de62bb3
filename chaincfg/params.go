// Package chaincfg defines the parameters of the networks the ledger can run.
package chaincfg

import (
	"strings"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Params defines a ledger network by its consensus constants.
type Params struct {
	// Name is the human-readable identifier of the network.
	Name string

	// Difficulty is the number of leading zero hex digits a block hash must have.
	// It is fixed for the lifetime of a network; there is no retargeting.
	Difficulty uint32

	// BlockReward is the exact value of the single coinbase output of every block.
	BlockReward uint64

	// BlockVersion is written into every block header.
	BlockVersion uint32

	// GenesisTimestamp is the header timestamp of block 0.
	GenesisTimestamp time.Time

	// GenesisPreviousHash is the previous hash recorded in block 0.
	GenesisPreviousHash chainhash.Hash
}

var (
	// MainNetParams mirrors the reference ledger: difficulty 2, reward 50.
	MainNetParams = Params{
		Name:             "mainnet",
		Difficulty:       2,
		BlockReward:      50,
		BlockVersion:     1,
		GenesisTimestamp: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	// TestNetParams uses a higher difficulty for exercising slower block production.
	TestNetParams = Params{
		Name:             "testnet",
		Difficulty:       3,
		BlockReward:      50,
		BlockVersion:     1,
		GenesisTimestamp: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	// RegressionNetParams is meant for tests: a single zero digit is found almost immediately.
	RegressionNetParams = Params{
		Name:             "regtest",
		Difficulty:       1,
		BlockReward:      50,
		BlockVersion:     1,
		GenesisTimestamp: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
)

// GetChainParams returns the parameters of the named network.
func GetChainParams(network string) (*Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main":
		params := MainNetParams
		return &params, nil
	case "testnet", "test":
		params := TestNetParams
		return &params, nil
	case "regtest", "regression":
		params := RegressionNetParams
		return &params, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %s", network)
	}
}
