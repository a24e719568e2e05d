package models

import (
	"strings"
	"time"
)

// AdType identifies the placement family a creative is built for. Catalog
// queries, event history and last-served state are all scoped per ad type.
type AdType string

const (
	AdTypeInlineContent   AdType = "inline_content_ad"
	AdTypeNotification    AdType = "notification_ad"
	AdTypeNewTabPage      AdType = "new_tab_page_ad"
	AdTypePromotedContent AdType = "promoted_content_ad"
)

// AdTypes lists every ad type the engine serves.
var AdTypes = []AdType{AdTypeInlineContent, AdTypeNotification, AdTypeNewTabPage, AdTypePromotedContent}

// ParseAdType returns the AdType for s and whether it is known.
func ParseAdType(s string) (AdType, bool) {
	t := AdType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AdTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// RequiresDimensions reports whether candidates of this type must match the
// requested creative dimensions exactly.
func (t AdType) RequiresDimensions() bool {
	return t == AdTypeInlineContent
}

// Daypart is a weekly time window during which a creative may serve.
// DaysOfWeek holds the allowed weekdays as digits, Sunday being '0'.
// StartMinute and EndMinute are minutes since local midnight, both inclusive.
type Daypart struct {
	DaysOfWeek  string `json:"days_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// CreativeAd is a single creative as published in the catalog. It is
// read-only once loaded; every field needed by the exclusion rules lives here
// so rules never have to reach back into the catalog.
type CreativeAd struct {
	// CreativeInstanceID is unique across the catalog.
	CreativeInstanceID string `json:"creative_instance_id"`
	// CreativeSetID groups variants of one creative. Frequency caps and
	// anti-targeting are keyed on it rather than on the instance.
	CreativeSetID string `json:"creative_set_id"`
	CampaignID    string `json:"campaign_id"`
	AdvertiserID  string `json:"advertiser_id"`
	AdType        AdType `json:"ad_type"`
	// Segment is the targeting category, possibly hierarchical ("parent-child").
	// The reserved value "untargeted" makes the ad eligible for everyone.
	Segment    string    `json:"segment"`
	GeoTargets []string  `json:"geo_targets,omitempty"`
	Dayparts   []Daypart `json:"dayparts,omitempty"`

	StartAt time.Time `json:"start_at,omitempty"`
	EndAt   time.Time `json:"end_at,omitempty"`

	Priority int `json:"priority"`
	// PassThroughRate (ptr) is the probability in (0, 1] that the ad survives pacing.
	PassThroughRate float64 `json:"ptr"`
	PerDay          int     `json:"per_day"`
	PerWeek         int     `json:"per_week"`
	PerMonth        int     `json:"per_month"`
	TotalMax        int     `json:"total_max"`
	DailyCap        int     `json:"daily_cap"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Dimensions  string `json:"dimensions,omitempty"`
	TargetURL   string `json:"target_url,omitempty"`
	CTAText     string `json:"cta_text,omitempty"`
}
