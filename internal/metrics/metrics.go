// Package metrics provides Prometheus metrics for the messenger client.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "solana_messenger"
)

// Metrics contains all Prometheus metrics for the messenger client.
type Metrics struct {
	// Send path
	SendsTotal        *prometheus.CounterVec
	ChunksSubmitted   prometheus.Counter
	ChunkSendErrors   prometheus.Counter
	ConfirmLatency    prometheus.Histogram
	ConfirmTimeouts   prometheus.Counter

	// Receive path
	DecryptAttempts prometheus.Counter
	DecryptFailures prometheus.Counter
	EventsParsed    prometheus.Counter
	MessagesRead    prometheus.Counter
	MessagesLive    prometheus.Counter

	// Reassembly
	ReassemblyOccupancy prometheus.Gauge
	ReassemblyDropped   prometheus.Counter
	ReassemblyEvicted   prometheus.Counter

	// Registry
	RegistryWrites   *prometheus.CounterVec
	RegistryLookups  prometheus.Counter
	RegistryMisses   prometheus.Counter

	// RPC gateway
	RPCRequests  *prometheus.CounterVec
	RPCErrors    *prometheus.CounterVec
	RPCLatency   *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide metrics instance, registered once
// against prometheus.DefaultRegisterer. Messengers constructed without
// an explicit registry share it, so repeated constructions never
// double-register.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered against
// prometheus.DefaultRegisterer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance registered against
// reg. Tests should pass a fresh prometheus.NewRegistry() to avoid
// duplicate-registration panics across test cases.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Total send() calls, labeled by outcome (ok, partial_failure, error)",
		}, []string{"outcome"}),
		ChunksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_submitted_total",
			Help:      "Total send_message instructions submitted, one per chunk",
		}),
		ChunkSendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_send_errors_total",
			Help:      "Total chunk submissions that failed to land or confirm",
		}),
		ConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirm_latency_seconds",
			Help:      "Time from submission to confirmation for a single transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		ConfirmTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirm_timeouts_total",
			Help:      "Total submissions that never reached confirmed/finalized within the poll budget",
		}),

		DecryptAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_attempts_total",
			Help:      "Total decrypt attempts against events addressed to this identity",
		}),
		DecryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_failures_total",
			Help:      "Total decrypt attempts that failed authentication",
		}),
		EventsParsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_parsed_total",
			Help:      "Total MessageSent events parsed out of transaction logs",
		}),
		MessagesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_read_total",
			Help:      "Total logical messages returned by read()",
		}),
		MessagesLive: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_live_total",
			Help:      "Total logical messages delivered via listen()",
		}),

		ReassemblyOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reassembly_buffers_open",
			Help:      "Number of in-flight (sender, message_id) reassembly buffers",
		}),
		ReassemblyDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reassembly_dropped_total",
			Help:      "Total logical messages dropped due to conflicting total_chunks",
		}),
		ReassemblyEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reassembly_evicted_total",
			Help:      "Total incomplete reassembly buffers evicted by TTL or capacity bound",
		}),

		RegistryWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_writes_total",
			Help:      "Total registry on-chain writes, labeled by kind (register, update, deregister)",
		}, []string{"kind"}),
		RegistryLookups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_lookups_total",
			Help:      "Total lookup_encryption_key calls",
		}),
		RegistryMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_misses_total",
			Help:      "Total lookup_encryption_key calls that found no registry entry",
		}),

		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total JSON-RPC calls, labeled by method",
		}, []string{"method"}),
		RPCErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Total JSON-RPC calls that returned a transport or RPC error, labeled by method",
		}, []string{"method"}),
		RPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "JSON-RPC call latency, labeled by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}
