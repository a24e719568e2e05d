package exclusion

import (
	"fmt"
	"time"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// Cap windows. All windows slide back from Context.Now.
const (
	HourWindow  = time.Hour
	DayWindow   = 24 * time.Hour
	WeekWindow  = 7 * 24 * time.Hour
	MonthWindow = 28 * 24 * time.Hour
)

// capKey selects the entity a cap counts served events for.
type capKey int

const (
	byInstance capKey = iota
	bySet
	byCampaign
)

// FrequencyCapRule rejects an ad once the served count for its instance,
// creative set or campaign reaches a limit within a window. A limit of zero
// means uncapped.
type FrequencyCapRule struct {
	name   string
	ctx    *Context
	key    capKey
	window time.Duration
	limit  func(models.CreativeAd) int
}

// NewPerHourRule allows a creative instance at most once per hour.
func NewPerHourRule(ctx *Context) *FrequencyCapRule {
	return &FrequencyCapRule{name: "per_hour", ctx: ctx, key: byInstance, window: HourWindow,
		limit: func(models.CreativeAd) int { return 1 }}
}

// NewPerDayRule enforces CreativeAd.PerDay on the creative set.
func NewPerDayRule(ctx *Context) *FrequencyCapRule {
	return &FrequencyCapRule{name: "per_day", ctx: ctx, key: bySet, window: DayWindow,
		limit: func(ad models.CreativeAd) int { return ad.PerDay }}
}

// NewPerWeekRule enforces CreativeAd.PerWeek on the creative set.
func NewPerWeekRule(ctx *Context) *FrequencyCapRule {
	return &FrequencyCapRule{name: "per_week", ctx: ctx, key: bySet, window: WeekWindow,
		limit: func(ad models.CreativeAd) int { return ad.PerWeek }}
}

// NewPerMonthRule enforces CreativeAd.PerMonth on the creative set.
func NewPerMonthRule(ctx *Context) *FrequencyCapRule {
	return &FrequencyCapRule{name: "per_month", ctx: ctx, key: bySet, window: MonthWindow,
		limit: func(ad models.CreativeAd) int { return ad.PerMonth }}
}

// NewTotalMaxRule enforces CreativeAd.TotalMax on the creative set over all retained events.
func NewTotalMaxRule(ctx *Context) *FrequencyCapRule {
	return &FrequencyCapRule{name: "total_max", ctx: ctx, key: bySet, window: 0,
		limit: func(ad models.CreativeAd) int { return ad.TotalMax }}
}

// NewDailyCapRule enforces CreativeAd.DailyCap on the campaign.
func NewDailyCapRule(ctx *Context) *FrequencyCapRule {
	return &FrequencyCapRule{name: "daily_cap", ctx: ctx, key: byCampaign, window: DayWindow,
		limit: func(ad models.CreativeAd) int { return ad.DailyCap }}
}

func (r *FrequencyCapRule) Name() string { return r.name }

func (r *FrequencyCapRule) UUID(ad models.CreativeAd) string {
	switch r.key {
	case byInstance:
		return ad.CreativeInstanceID
	case byCampaign:
		return ad.CampaignID
	default:
		return ad.CreativeSetID
	}
}

func (r *FrequencyCapRule) served(ad models.CreativeAd) []time.Time {
	switch r.key {
	case byInstance:
		return r.ctx.served.byInstance[ad.CreativeInstanceID]
	case byCampaign:
		return r.ctx.served.byCampaign[ad.CampaignID]
	default:
		return r.ctx.served.bySet[ad.CreativeSetID]
	}
}

func (r *FrequencyCapRule) ShouldInclude(ad models.CreativeAd) error {
	limit := r.limit(ad)
	if limit <= 0 {
		return nil
	}
	count := r.ctx.countWithin(r.served(ad), r.window)
	if count < limit {
		return nil
	}
	return exclude(r, ad, fmt.Sprintf("%s %s has exceeded the %s frequency cap", r.keyLabel(), r.UUID(ad), r.name))
}

func (r *FrequencyCapRule) keyLabel() string {
	switch r.key {
	case byInstance:
		return "creativeInstanceId"
	case byCampaign:
		return "campaignId"
	default:
		return "creativeSetId"
	}
}
