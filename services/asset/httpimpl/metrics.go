package httpimpl

import (
	"sync"

	"github.com/bitcoin-sv/minichain/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Every counter carries "function" and "operation" labels. Operation is "ok" or the error code.
var (
	prometheusAssetHTTPGetChain          *prometheus.CounterVec
	prometheusAssetHTTPGetBlock          *prometheus.CounterVec
	prometheusAssetHTTPGetUtxos          *prometheus.CounterVec
	prometheusAssetHTTPSubmitTransaction *prometheus.CounterVec
	prometheusAssetHTTPSubmitBlock       *prometheus.CounterVec
	prometheusAssetHTTPMine              *prometheus.CounterVec
	prometheusAssetHTTPDuration          *prometheus.HistogramVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func newCounterVec(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minichain",
			Subsystem: "asset",
			Name:      name,
			Help:      help,
		},
		[]string{
			"function",  // function tracking the operation
			"operation", // type of operation achieved
		},
	)
}

func _initPrometheusMetrics() {
	prometheusAssetHTTPGetChain = newCounterVec("http_get_chain", "Number of chain, fork and validity requests")
	prometheusAssetHTTPGetBlock = newCounterVec("http_get_block", "Number of block requests")
	prometheusAssetHTTPGetUtxos = newCounterVec("http_get_utxos", "Number of balance, utxo and pending pool requests")
	prometheusAssetHTTPSubmitTransaction = newCounterVec("http_submit_transaction", "Number of submitted transactions")
	prometheusAssetHTTPSubmitBlock = newCounterVec("http_submit_block", "Number of submitted blocks")
	prometheusAssetHTTPMine = newCounterVec("http_mine", "Number of mine requests")

	prometheusAssetHTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "minichain",
			Subsystem: "asset",
			Name:      "http_duration_millis",
			Help:      "Duration of API calls in milliseconds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
		[]string{"function"},
	)
}
