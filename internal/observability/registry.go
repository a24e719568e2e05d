package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components receive metrics by injection instead of touching globals.
type MetricsRegistry interface {
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Eligibility pipeline
	IncrementPipelineRuns(adType, tier string)
	RecordPipelineLatency(adType string, duration time.Duration)
	IncrementExclusions(adType, rule string)

	// Serving
	IncrementServed(adType string)
	IncrementNoFill(adType string)
	IncrementEvent(eventType string)

	IncrementResourceLoads(resource, outcome string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementPipelineRuns(adType, tier string) {
	PipelineRuns.WithLabelValues(adType, tier).Inc()
}

func (r *PrometheusRegistry) RecordPipelineLatency(adType string, duration time.Duration) {
	PipelineLatency.WithLabelValues(adType).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementExclusions(adType, rule string) {
	ExclusionCount.WithLabelValues(adType, rule).Inc()
}

func (r *PrometheusRegistry) IncrementServed(adType string) {
	ServedCount.WithLabelValues(adType).Inc()
}

func (r *PrometheusRegistry) IncrementNoFill(adType string) {
	NoFillCount.WithLabelValues(adType).Inc()
}

func (r *PrometheusRegistry) IncrementEvent(eventType string) {
	EventCount.WithLabelValues(eventType).Inc()
}

func (r *PrometheusRegistry) IncrementResourceLoads(resource, outcome string) {
	ResourceLoads.WithLabelValues(resource, outcome).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementPipelineRuns(adType, tier string)                            {}
func (r *NoOpRegistry) RecordPipelineLatency(adType string, duration time.Duration)          {}
func (r *NoOpRegistry) IncrementExclusions(adType, rule string)                              {}
func (r *NoOpRegistry) IncrementServed(adType string)                                        {}
func (r *NoOpRegistry) IncrementNoFill(adType string)                                        {}
func (r *NoOpRegistry) IncrementEvent(eventType string)                                      {}
func (r *NoOpRegistry) IncrementResourceLoads(resource, outcome string)                      {}
