package exclusion

import (
	"fmt"
	"time"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// FlightRule excludes ads outside their start/end dates. Zero bounds are open.
type FlightRule struct {
	now time.Time
}

func NewFlightRule(ctx *Context) *FlightRule {
	return &FlightRule{now: ctx.Now}
}

func (r *FlightRule) Name() string { return "flight" }

func (r *FlightRule) UUID(ad models.CreativeAd) string { return ad.CreativeInstanceID }

func (r *FlightRule) ShouldInclude(ad models.CreativeAd) error {
	if !ad.StartAt.IsZero() && r.now.Before(ad.StartAt) {
		return exclude(r, ad, fmt.Sprintf("creativeInstanceId %s has not started", ad.CreativeInstanceID))
	}
	if !ad.EndAt.IsZero() && r.now.After(ad.EndAt) {
		return exclude(r, ad, fmt.Sprintf("creativeInstanceId %s has ended", ad.CreativeInstanceID))
	}
	return nil
}
