// Package history supplies the user's recent browsing history to the
// anti-targeting rule.
package history

import (
	"context"
	"time"
)

// Provider returns up to maxCount visited URLs from the last maxDays days,
// most recent first.
type Provider interface {
	GetBrowsingHistory(ctx context.Context, maxCount, maxDays int) ([]string, error)
}

// Visit is one history entry.
type Visit struct {
	URL       string    `json:"url"`
	VisitedAt time.Time `json:"visited_at,omitempty"`
}

// StaticProvider serves a fixed list, ignoring the day window.
type StaticProvider struct {
	URLs []string
}

// GetBrowsingHistory returns at most maxCount entries of the fixed list.
func (p StaticProvider) GetBrowsingHistory(ctx context.Context, maxCount, _ int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	urls := p.URLs
	if maxCount > 0 && len(urls) > maxCount {
		urls = urls[:maxCount]
	}
	out := make([]string, len(urls))
	copy(out, urls)
	return out, nil
}
