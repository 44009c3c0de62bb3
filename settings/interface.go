package settings

import (
	"time"

	"github.com/bitcoin-sv/minichain/chaincfg"
)

type Settings struct {
	ClientName         string
	LogLevel           string
	PrettyLogs         bool
	PrometheusEndpoint string
	HealthCheckPort    int
	ProfilerAddr       string
	ChainCfgParams     *chaincfg.Params
	BlockChain         BlockChainSettings
	Miner              MinerSettings
	Asset              AssetSettings
	CLI                CLISettings
}

type BlockChainSettings struct {
	// Difficulty overrides ChainCfgParams.Difficulty for blocks mined by this node when > 0.
	Difficulty uint32
	// BlockReward overrides ChainCfgParams.BlockReward when > 0.
	BlockReward uint64
	// RequeueReorgTransactions returns transactions of abandoned blocks to the pending pool.
	RequeueReorgTransactions bool
	// RejectedBlockTTL is how long hashes of structurally invalid blocks are remembered.
	RejectedBlockTTL time.Duration
	// ValidateConcurrency bounds the goroutines used by IsChainValid.
	ValidateConcurrency int
}

type MinerSettings struct {
	Address  string
	Interval time.Duration
}

type AssetSettings struct {
	HTTPListenAddress string
	APIPrefix         string
	// EchoDebug logs every HTTP request.
	EchoDebug   bool
	StatsPrefix string
	// RateLimit is the number of requests per second accepted from one client, 0 disables it.
	RateLimit int
}

type CLISettings struct {
	URL     string
	Timeout time.Duration
}
