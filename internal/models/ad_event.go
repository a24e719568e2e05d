package models

import (
	"errors"
	"time"
)

// ConfirmationType is the lifecycle stage an AdEvent records.
type ConfirmationType string

const (
	ConfirmationServed     ConfirmationType = "served"
	ConfirmationViewed     ConfirmationType = "viewed"
	ConfirmationClicked    ConfirmationType = "clicked"
	ConfirmationDismissed  ConfirmationType = "dismissed"
	ConfirmationConversion ConfirmationType = "conversion"
)

// ParseConfirmationType returns the ConfirmationType for s and whether it is known.
func ParseConfirmationType(s string) (ConfirmationType, bool) {
	switch c := ConfirmationType(s); c {
	case ConfirmationServed, ConfirmationViewed, ConfirmationClicked, ConfirmationDismissed, ConfirmationConversion:
		return c, true
	}
	return "", false
}

// ErrInvalidAdEvent is returned when an event lacks the identifiers needed to
// attribute it to a creative.
var ErrInvalidAdEvent = errors.New("invalid ad event")

// AdEvent is one entry of the append-only ad event history.
type AdEvent struct {
	PlacementID        string           `json:"placement_id"`
	CreativeInstanceID string           `json:"creative_instance_id"`
	CreativeSetID      string           `json:"creative_set_id"`
	CampaignID         string           `json:"campaign_id"`
	AdvertiserID       string           `json:"advertiser_id"`
	AdType             AdType           `json:"ad_type"`
	ConfirmationType   ConfirmationType `json:"confirmation_type"`
	Timestamp          time.Time        `json:"timestamp"`
}

// Validate checks that the event can be attributed and counted.
func (e AdEvent) Validate() error {
	if e.CreativeInstanceID == "" || e.CreativeSetID == "" || e.AdType == "" || e.ConfirmationType == "" {
		return ErrInvalidAdEvent
	}
	if e.Timestamp.IsZero() {
		return ErrInvalidAdEvent
	}
	return nil
}

// NewAdEvent builds an event for the given creative and confirmation type.
func NewAdEvent(ad CreativeAd, placementID string, confirmation ConfirmationType, at time.Time) AdEvent {
	return AdEvent{
		PlacementID:        placementID,
		CreativeInstanceID: ad.CreativeInstanceID,
		CreativeSetID:      ad.CreativeSetID,
		CampaignID:         ad.CampaignID,
		AdvertiserID:       ad.AdvertiserID,
		AdType:             ad.AdType,
		ConfirmationType:   confirmation,
		Timestamp:          at,
	}
}
