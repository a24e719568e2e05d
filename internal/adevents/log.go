// Package adevents stores the per-user history of served, viewed, clicked,
// dismissed and converted ads that frequency caps are evaluated against.
package adevents

import (
	"context"
	"time"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// Log is an append-only record of ad events. Readers always observe a
// consistent slice; a concurrent RecordAdEvent is either fully visible or not
// visible at all.
type Log interface {
	// GetAdEvents returns all retained events for adType, oldest first.
	GetAdEvents(ctx context.Context, adType models.AdType) ([]models.AdEvent, error)
	RecordAdEvent(ctx context.Context, ev models.AdEvent) error
	// PurgeExpired drops events older than before.
	PurgeExpired(ctx context.Context, before time.Time) error
}
