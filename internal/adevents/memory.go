package adevents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// InMemoryLog keeps events in process memory.
type InMemoryLog struct {
	mu     sync.RWMutex
	events map[models.AdType][]models.AdEvent
}

// NewInMemoryLog returns an empty log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{events: make(map[models.AdType][]models.AdEvent)}
}

// GetAdEvents returns a copy of the events for adType.
func (l *InMemoryLog) GetAdEvents(ctx context.Context, adType models.AdType) ([]models.AdEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.events[adType]
	out := make([]models.AdEvent, len(src))
	copy(out, src)
	return out, nil
}

// RecordAdEvent appends ev keeping timestamp order.
func (l *InMemoryLog) RecordAdEvent(ctx context.Context, ev models.AdEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("record ad event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.events[ev.AdType], ev)
	if n := len(list); n > 1 && list[n-1].Timestamp.Before(list[n-2].Timestamp) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	}
	l.events[ev.AdType] = list
	return nil
}

// PurgeExpired removes events with a timestamp before the cutoff.
func (l *InMemoryLog) PurgeExpired(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for adType, list := range l.events {
		i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(before) })
		if i == 0 {
			continue
		}
		kept := make([]models.AdEvent, len(list)-i)
		copy(kept, list[i:])
		l.events[adType] = kept
	}
	return nil
}
