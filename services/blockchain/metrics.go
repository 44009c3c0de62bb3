package blockchain

import (
	"sync"

	"github.com/bitcoin-sv/minichain/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockchainAddBlock          prometheus.Histogram
	prometheusBlockchainBlocksAccepted    *prometheus.CounterVec
	prometheusBlockchainBlocksRejected    *prometheus.CounterVec
	prometheusBlockchainReorgs            prometheus.Counter
	prometheusBlockchainReorgDepth        prometheus.Histogram
	prometheusBlockchainSubmitTransaction *prometheus.CounterVec
	prometheusBlockchainPendingTxs        prometheus.Gauge
	prometheusBlockchainHeight            prometheus.Gauge
	prometheusBlockchainForks             prometheus.Gauge
	prometheusBlockchainUtxos             prometheus.Gauge
	prometheusBlockchainMineBlock         prometheus.Histogram
	prometheusBlockchainIsChainValid      prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockchainAddBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "add_block",
			Help:      "Histogram of block acceptance",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusBlockchainBlocksAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "blocks_accepted",
			Help:      "Number of accepted blocks by how they attached",
		},
		[]string{"type"},
	)

	prometheusBlockchainBlocksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "blocks_rejected",
			Help:      "Number of rejected blocks by error code",
		},
		[]string{"code"},
	)

	prometheusBlockchainReorgs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "reorgs",
			Help:      "Number of chain reorganizations",
		},
	)

	prometheusBlockchainReorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "reorg_depth",
			Help:      "Number of canonical blocks abandoned per reorganization",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)

	prometheusBlockchainSubmitTransaction = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "submit_transaction",
			Help:      "Number of submitted transactions by result",
		},
		[]string{"result"},
	)

	prometheusBlockchainPendingTxs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "pending_transactions",
			Help:      "Number of transactions in the pending pool",
		},
	)

	prometheusBlockchainHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "height",
			Help:      "Index of the canonical tip",
		},
	)

	prometheusBlockchainForks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "forks",
			Help:      "Number of tracked fork tips",
		},
	)

	prometheusBlockchainUtxos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "utxos",
			Help:      "Number of entries in the UTXO set",
		},
	)

	prometheusBlockchainMineBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "mine_block",
			Help:      "Histogram of proof-of-work search duration",
			Buckets:   util.MetricsBucketsMilliLongSeconds,
		},
	)

	prometheusBlockchainIsChainValid = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "blockchain",
			Name:      "is_chain_valid",
			Help:      "Histogram of full chain validation",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)
}
