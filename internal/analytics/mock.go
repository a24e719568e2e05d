package analytics

import (
	"context"
	"sync"

	"github.com/patrickwarner/eligibleads/internal/models"
)

var _ AnalyticsService = (*MockAnalytics)(nil)

// RecordedEvent is one call captured by MockAnalytics.
type RecordedEvent struct {
	Event    models.AdEvent
	Segments models.SegmentList
}

// MockAnalytics records calls in memory for tests.
type MockAnalytics struct {
	mu     sync.Mutex
	events []RecordedEvent
	// Err, when set, is returned from every call.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordAdEvent captures the call.
func (m *MockAnalytics) RecordAdEvent(_ context.Context, ev models.AdEvent, segments models.SegmentList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, RecordedEvent{Event: ev, Segments: segments})
	return nil
}

// Events returns a copy of the recorded calls.
func (m *MockAnalytics) Events() []RecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedEvent, len(m.events))
	copy(out, m.events)
	return out
}
