package settings

import (
	"time"

	"github.com/bitcoin-sv/minichain/chaincfg"
	"github.com/bitcoin-sv/minichain/errors"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// NewSettings reads every setting through gocore.Config(), falling back to defaults.
func NewSettings() *Settings {
	s, err := newSettings()
	if err != nil {
		panic(err)
	}

	return s
}

func newSettings() (*Settings, error) {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		return nil, errors.NewConfigurationError("invalid network", err)
	}

	difficulty, err := safeconversion.IntToUint32(getInt("blockchain_difficulty", 0))
	if err != nil {
		return nil, errors.NewConfigurationError("invalid blockchain_difficulty", err)
	}

	blockReward, err := safeconversion.IntToUint64(getInt("blockchain_blockReward", 0))
	if err != nil {
		return nil, errors.NewConfigurationError("invalid blockchain_blockReward", err)
	}

	return &Settings{
		ClientName:         getString("clientName", "minichain"),
		LogLevel:           getString("logLevel", "INFO"),
		PrettyLogs:         getBool("PRETTY_LOGS", true),
		PrometheusEndpoint: getString("prometheusEndpoint", "/metrics"),
		HealthCheckPort:    getInt("health_check_port", 8000),
		ProfilerAddr:       getString("profilerAddr", ""),
		ChainCfgParams:     params,
		BlockChain: BlockChainSettings{
			Difficulty:               difficulty,
			BlockReward:              blockReward,
			RequeueReorgTransactions: getBool("blockchain_requeueReorgTransactions", false),
			RejectedBlockTTL:         getDuration("blockchain_rejectedBlockTTL", 10*time.Minute),
			ValidateConcurrency:      getInt("blockchain_validateConcurrency", 8),
		},
		Miner: MinerSettings{
			Address:  getString("miner_address", "miner_address"),
			Interval: getDuration("miner_interval", 10*time.Second),
		},
		Asset: AssetSettings{
			HTTPListenAddress: getString("asset_httpListenAddress", ":8090"),
			APIPrefix:         getString("asset_apiPrefix", "/api/v1"),
			EchoDebug:         getBool("ECHO_DEBUG", false),
			StatsPrefix:       getString("stats_prefix", "/stats/"),
			RateLimit:         getInt("asset_rateLimit", 0),
		},
		CLI: CLISettings{
			URL:     getString("ledgercli_url", "http://localhost:8090/api/v1"),
			Timeout: getDuration("ledgercli_timeout", 30*time.Second),
		},
	}, nil
}

// Difficulty returns the difficulty blocks are mined at.
func (s *Settings) Difficulty() uint32 {
	if s.BlockChain.Difficulty > 0 {
		return s.BlockChain.Difficulty
	}

	return s.ChainCfgParams.Difficulty
}

// BlockReward returns the required coinbase value.
func (s *Settings) BlockReward() uint64 {
	if s.BlockChain.BlockReward > 0 {
		return s.BlockChain.BlockReward
	}

	return s.ChainCfgParams.BlockReward
}
