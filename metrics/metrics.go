// Package metrics exposes the Prometheus gauges/counters that track the
// job-orchestration domain (spec §5): admission, queue depth, stage timing,
// and the non-fatal persistence/protocol error paths spec §7 describes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics tracks one outbound HTTP client's retry/failure/latency
// behavior; fetchclient and the upload worker each get their own instance.
type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer, prefix, help string) ClientMetrics {
	factory := promauto.With(reg)
	return ClientMetrics{
		RetryCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_retry_count",
			Help: "The number of retried " + help + " requests",
		}, []string{"host"}),
		FailureCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_failure_count",
			Help: "The total number of failed " + help + " requests",
		}, []string{"host", "status_code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_request_duration_seconds",
			Help:    "Time taken to complete " + help + " requests",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"host"}),
	}
}

// Metrics is the process-wide metrics set for coordinatord. Each instance
// carries its own prometheus.Registry rather than registering against the
// global default, so tests that build more than one Metrics in the same
// process don't collide on metric names.
type Metrics struct {
	Version  string
	Registry *prometheus.Registry

	JobsInFlight             prometheus.Gauge
	JobsAcceptedTotal        prometheus.Counter
	JobsDeclinedTotal        prometheus.Counter
	StageDurationSec         *prometheus.HistogramVec
	PersistenceErrorsTotal   *prometheus.CounterVec
	ProtocolParseErrorsTotal prometheus.Counter

	FetchClient  ClientMetrics
	UploadClient ClientMetrics
}

func New(version string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Version:  version,
		Registry: reg,

		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "Number of non-terminal jobs currently owned by the coordinator",
		}),
		JobsAcceptedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobs_accepted_total",
			Help: "Total number of job commands admitted to the queue",
		}),
		JobsDeclinedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobs_declined_total",
			Help: "Total number of job commands declined for exceeding the admission cap",
		}),
		StageDurationSec: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Time a job spent in each stage before transitioning out of it",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}, []string{"stage"}),
		PersistenceErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "persistence_errors_total",
			Help: "Total number of persistence operations that returned an error",
		}, []string{"op"}),
		ProtocolParseErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "protocol_parse_errors_total",
			Help: "Total number of subordinate stdout lines skipped for failing to parse",
		}),

		FetchClient:  newClientMetrics(reg, "fetch_client", "subtitle fetch"),
		UploadClient: newClientMetrics(reg, "upload_client", "cloud upload"),
	}
}
