package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/eligibleads/internal/models"
)

func TestNilAnalyticsIsUnavailable(t *testing.T) {
	var a *Analytics
	err := a.RecordAdEvent(context.Background(), models.AdEvent{}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = (&Analytics{}).GetEventsByPlacementID(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
	a.Close()
}

func TestMockAnalytics(t *testing.T) {
	m := NewMockAnalytics()
	ev := models.AdEvent{PlacementID: "p1", ConfirmationType: models.ConfirmationServed, Timestamp: time.Now()}
	require.NoError(t, m.RecordAdEvent(context.Background(), ev, models.SegmentList{"sports"}))

	got := m.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].Event.PlacementID)
	assert.Equal(t, models.SegmentList{"sports"}, got[0].Segments)

	m.Err = errors.New("down")
	assert.Error(t, m.RecordAdEvent(context.Background(), ev, nil))
	assert.Len(t, m.Events(), 1)
}
