package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "visitor_ingest"

// IngestMetrics holds all Prometheus metrics for the ingest service.
type IngestMetrics struct {
	EventsTotal         *prometheus.CounterVec
	BytesTotal          prometheus.Counter
	RateLimitRejections *prometheus.CounterVec
	StoreWriteErrors    *prometheus.CounterVec
	StoreRecords        *prometheus.GaugeVec
	LeadsPublished      *prometheus.CounterVec
	RedisActive         prometheus.Gauge
	APIKeyCacheHits     prometheus.Counter
	APIKeyCacheMisses   prometheus.Counter
}

// NewIngestMetrics initializes and registers the Prometheus metrics.
func NewIngestMetrics() *IngestMetrics {
	return NewIngestMetricsWith(prometheus.DefaultRegisterer)
}

// NewIngestMetricsWith registers the ingest metrics on reg.
func NewIngestMetricsWith(reg prometheus.Registerer) *IngestMetrics {
	factory := promauto.With(reg)
	return &IngestMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of ingestion requests by endpoint and status.",
		}, []string{"endpoint", "status"}), // status: accepted, rate_limited, error_parse, error_size, error_store
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of request body bytes accepted.",
		}),
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected by the admission window.",
		}, []string{"endpoint"}),
		StoreWriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_errors_total",
			Help:      "Total number of failed log store appends by category.",
		}, []string{"category"}),
		StoreRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records",
			Help:      "Number of records retained per category after the last append.",
		}, []string{"category"}),
		LeadsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leads",
			Name:      "published_total",
			Help:      "Total number of lead stream publish attempts by status.",
		}, []string{"status"}), // status: published, error
		RedisActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leads",
			Name:      "redis_active_gauge",
			Help:      "Indicates if the lead stream is reachable (1 for active, 0 for inactive).",
		}),
		APIKeyCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}

// RelayMetrics holds the Prometheus metrics of the lead relay.
type RelayMetrics struct {
	BatchesTotal     *prometheus.CounterVec
	ProfilesUpserted prometheus.Counter
	DeadLettered     prometheus.Counter
	Reclaimed        prometheus.Counter
}

// NewRelayMetrics registers the relay metrics on reg.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "batches_total",
			Help:      "Total number of lead batches processed by outcome.",
		}, []string{"outcome"}), // outcome: sunk, dead_lettered, failed
		ProfilesUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "profiles_upserted_total",
			Help:      "Total number of merged visitor profiles written to Postgres.",
		}),
		DeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "dead_lettered_total",
			Help:      "Total number of lead messages moved to the dead-letter stream.",
		}),
		Reclaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "reclaimed_total",
			Help:      "Total number of stale pending lead messages taken over by this relay.",
		}),
	}
}

// CollectorMetrics counts terminal delivery outcomes of the client collector.
type CollectorMetrics struct {
	Deliveries *prometheus.CounterVec
}

// NewCollectorMetrics registers the collector metrics on reg.
func NewCollectorMetrics(reg prometheus.Registerer) *CollectorMetrics {
	return &CollectorMetrics{
		Deliveries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "deliveries_total",
			Help:      "Total number of collector saves by terminal outcome.",
		}, []string{"outcome"}), // outcome: delivered, cached_locally, dropped
	}
}
