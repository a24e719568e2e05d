package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eligibleads_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// pipeline runs by ad type and the tier that produced ads ("none" when empty)
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_pipeline_runs_total",
			Help: "Eligibility pipeline runs by resolving tier",
		},
		[]string{"ad_type", "tier"},
	)

	PipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eligibleads_pipeline_duration_seconds",
			Help:    "Duration of eligibility pipeline runs",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"ad_type"},
	)

	// candidates rejected per exclusion rule
	ExclusionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_exclusions_total",
			Help: "Candidates rejected by exclusion rules",
		},
		[]string{"ad_type", "rule"},
	)

	ServedCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_served_total",
			Help: "Ads served",
		},
		[]string{"ad_type"},
	)

	NoFillCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_nofill_total",
			Help: "Serve requests with no eligible ad",
		},
		[]string{"ad_type"},
	)

	// number of ad events recorded, labelled by confirmation type
	EventCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_events_total",
			Help: "Total ad events recorded",
		},
		[]string{"type"},
	)

	ResourceLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibleads_resource_loads_total",
			Help: "Resource load attempts by outcome",
		},
		[]string{"resource", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		PipelineRuns,
		PipelineLatency,
		ExclusionCount,
		ServedCount,
		NoFillCount,
		EventCount,
		ResourceLoads,
	)
}
