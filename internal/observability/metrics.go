// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Subscription metrics
	LogEventsReceived      *prometheus.CounterVec
	SubscriptionDrops      *prometheus.CounterVec
	SubscriptionReconnects *prometheus.CounterVec
	QueueDepth             prometheus.Gauge

	// Fetch and decode metrics
	TransactionsFetched *prometheus.CounterVec
	CandidatesDecoded   *prometheus.CounterVec
	DecodeFailures      *prometheus.CounterVec

	// Risk metrics
	RiskVerdicts *prometheus.CounterVec
	RiskErrors   *prometheus.CounterVec

	// Execution metrics
	TradesAttempted prometheus.Counter
	TradeOutcomes   *prometheus.CounterVec
	TradeFailures   *prometheus.CounterVec
	TradeDuration   prometheus.Histogram
	RetryAttempts   *prometheus.CounterVec

	// Latency metrics
	EventProcessingLatency prometheus.Histogram
	RPCCallLatency         *prometheus.HistogramVec

	// Notification metrics
	AlertsSent   *prometheus.CounterVec
	AlertsFailed *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastEventProcessed prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pool_sniper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Subscription metrics
		LogEventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "log_events_received_total",
			Help:      "Total number of log notifications received by program kind",
		}, []string{"kind"}),
		SubscriptionDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "drops_total",
			Help:      "Total number of subscription sessions that ended with an error",
		}, []string{"kind"}),
		SubscriptionReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		}, []string{"kind"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "queue_depth",
			Help:      "Number of log events waiting for the coordinator",
		}),

		// Fetch and decode metrics
		TransactionsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transaction fetches by result",
		}, []string{"result"}),
		CandidatesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_decoded_total",
			Help:      "Total number of pool candidates decoded",
		}, []string{"kind"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decode_failures_total",
			Help:      "Total number of matching instructions that failed to decode",
		}, []string{"kind", "reason"}),

		// Risk metrics
		RiskVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "verdicts_total",
			Help:      "Total number of risk verdicts by deciding check",
		}, []string{"check", "safe"}),
		RiskErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "errors_total",
			Help:      "Total number of risk checks that failed to run",
		}, []string{"check"}),

		// Execution metrics
		TradesAttempted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_attempted_total",
			Help:      "Total number of trade attempts",
		}),
		TradeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trade_outcomes_total",
			Help:      "Total number of landed trades by on-chain result",
		}, []string{"succeeded"}),
		TradeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trade_failures_total",
			Help:      "Total number of trade attempts that failed by stage",
		}, []string{"stage"}),
		TradeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trade_duration_seconds",
			Help:      "Time from quote request to confirmation",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "retries_total",
			Help:      "Total number of retried calls by operation",
		}, []string{"operation"}),

		// Latency metrics
		EventProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "latency",
			Name:      "event_processing_seconds",
			Help:      "Time to process one log event end to end",
			Buckets:   prometheus.DefBuckets,
		}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "latency",
			Name:      "rpc_call_seconds",
			Help:      "Outbound call latency by method",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),

		// Notification metrics
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_sent_total",
			Help:      "Total number of alerts delivered by channel",
		}, []string{"channel"}),
		AlertsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_failed_total",
			Help:      "Total number of alerts that failed to deliver by channel",
		}, []string{"channel"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastEventProcessed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_processed_timestamp",
			Help:      "Unix timestamp of the last processed log event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordLogEvent increments the received notifications counter.
func RecordLogEvent(kind string) {
	DefaultMetrics.LogEventsReceived.WithLabelValues(kind).Inc()
}

// RecordSubscriptionDrop records a subscription session ending with an error.
func RecordSubscriptionDrop(kind string) {
	DefaultMetrics.SubscriptionDrops.WithLabelValues(kind).Inc()
}

// RecordReconnect records a reconnect attempt.
func RecordReconnect(kind string) {
	DefaultMetrics.SubscriptionReconnects.WithLabelValues(kind).Inc()
}

// UpdateQueueDepth updates the queue depth gauge.
func UpdateQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordFetch records a transaction fetch result ("ok", "failed_onchain", "error").
func RecordFetch(result string) {
	DefaultMetrics.TransactionsFetched.WithLabelValues(result).Inc()
}

// RecordCandidate increments the decoded candidates counter.
func RecordCandidate(kind string) {
	DefaultMetrics.CandidatesDecoded.WithLabelValues(kind).Inc()
}

// RecordDecodeFailure records an instruction that matched but failed to decode.
func RecordDecodeFailure(kind, reason string) {
	DefaultMetrics.DecodeFailures.WithLabelValues(kind, reason).Inc()
}

// RecordRiskVerdict records which check decided an assessment.
func RecordRiskVerdict(check string, safe bool) {
	label := "false"
	if safe {
		label = "true"
	}
	DefaultMetrics.RiskVerdicts.WithLabelValues(check, label).Inc()
}

// RecordRiskError records a risk dependency failure.
func RecordRiskError(check string) {
	DefaultMetrics.RiskErrors.WithLabelValues(check).Inc()
}

// RecordTradeAttempt increments the trade attempts counter.
func RecordTradeAttempt() {
	DefaultMetrics.TradesAttempted.Inc()
}

// RecordTradeOutcome records a landed trade and its duration.
func RecordTradeOutcome(succeeded bool, seconds float64) {
	label := "false"
	if succeeded {
		label = "true"
	}
	DefaultMetrics.TradeOutcomes.WithLabelValues(label).Inc()
	DefaultMetrics.TradeDuration.Observe(seconds)
}

// RecordTradeFailure records a trade attempt that failed at stage.
func RecordTradeFailure(stage string) {
	DefaultMetrics.TradeFailures.WithLabelValues(stage).Inc()
}

// RecordRetry records a retried call.
func RecordRetry(operation string) {
	DefaultMetrics.RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordEventProcessed records end-to-end latency of one log event.
func RecordEventProcessed(seconds float64, unixTime int64) {
	DefaultMetrics.EventProcessingLatency.Observe(seconds)
	DefaultMetrics.LastEventProcessed.Set(float64(unixTime))
}

// RecordRPCLatency records outbound call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordAlert records an alert delivery attempt.
func RecordAlert(channel string, err error) {
	if err != nil {
		DefaultMetrics.AlertsFailed.WithLabelValues(channel).Inc()
		return
	}
	DefaultMetrics.AlertsSent.WithLabelValues(channel).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
