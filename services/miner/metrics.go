package miner

import (
	"sync"

	"github.com/bitcoin-sv/minichain/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockMined        prometheus.Histogram
	prometheusBlockTransactions prometheus.Histogram
	prometheusMinerErrors       prometheus.Counter
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockMined = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "miner",
			Name:      "block_mined",
			Help:      "Histogram of block mining in milliseconds",
			Buckets:   util.MetricsBucketsMilliLongSeconds,
		},
	)

	prometheusBlockTransactions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "miner",
			Name:      "block_transactions",
			Help:      "Number of transactions in mined blocks, coinbase included",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)

	prometheusMinerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minichain",
			Subsystem: "miner",
			Name:      "errors",
			Help:      "Number of failed mining attempts",
		},
	)
}
