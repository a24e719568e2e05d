package observability

import (
	"strings"
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments keyed by metric name and
// labels, e.g. "served|notification_ad".
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetricsRegistry returns an empty recorder.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[strings.Join(parts, "|")]++
}

// Count returns the number of increments recorded for the key.
func (m *MockMetricsRegistry) Count(parts ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[strings.Join(parts, "|")]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests", endpoint, method, status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementPipelineRuns(adType, tier string) {
	m.inc("pipeline", adType, tier)
}
func (m *MockMetricsRegistry) RecordPipelineLatency(adType string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementExclusions(adType, rule string) {
	m.inc("exclusion", adType, rule)
}
func (m *MockMetricsRegistry) IncrementServed(adType string) { m.inc("served", adType) }
func (m *MockMetricsRegistry) IncrementNoFill(adType string) { m.inc("nofill", adType) }
func (m *MockMetricsRegistry) IncrementEvent(eventType string) {
	m.inc("event", eventType)
}
func (m *MockMetricsRegistry) IncrementResourceLoads(resource, outcome string) {
	m.inc("resource", resource, outcome)
}
