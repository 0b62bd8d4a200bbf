package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "grant_settlement"

var (
	// Registry 应用自身的指标，和 go-zero 默认注册表隔离
	Registry = prometheus.NewRegistry()

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	settlementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "End-to-end settlement latency including confirmation.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms ~ 2min
		},
		[]string{"outcome"},
	)

	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Solana RPC calls by method and result.",
		},
		[]string{"method", "result"},
	)

	eventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mq",
			Name:      "publish_failures_total",
			Help:      "Settlement events that could not be published.",
		},
	)

	lockLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "lost_total",
			Help:      "Source-account locks that expired while a transfer was running.",
		},
	)

	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "in_flight",
			Help:      "Settlements submitted but not yet finalized by reconciliation.",
		},
	)
)

func init() {
	Registry.MustRegister(
		settlements,
		settlementDuration,
		rpcCalls,
		eventPublishFailures,
		lockLost,
		inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveSettlement outcome 取错误码（ok / insufficient_balance / network_error ...）
func ObserveSettlement(outcome string, elapsed time.Duration) {
	settlements.WithLabelValues(outcome).Inc()
	settlementDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveRPC(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	rpcCalls.WithLabelValues(method, result).Inc()
}

func IncPublishFailure() {
	eventPublishFailures.Inc()
}

func IncLockLost() {
	lockLost.Inc()
}

func SetInFlight(n int) {
	inFlight.Set(float64(n))
}
