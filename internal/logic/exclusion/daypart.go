package exclusion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// DaypartRule admits an ad only inside one of its scheduled windows,
// evaluated in the location of Context.Now. The engine passes time.Now, so
// windows follow the serving host's TZ. Ads without dayparts always pass.
type DaypartRule struct {
	day    string
	minute int
}

func NewDaypartRule(ctx *Context) *DaypartRule {
	now := ctx.Now
	return &DaypartRule{
		day:    strconv.Itoa(int(now.Weekday())),
		minute: now.Hour()*60 + now.Minute(),
	}
}

func (r *DaypartRule) Name() string { return "daypart" }

func (r *DaypartRule) UUID(ad models.CreativeAd) string { return ad.CreativeSetID }

func (r *DaypartRule) ShouldInclude(ad models.CreativeAd) error {
	if len(ad.Dayparts) == 0 {
		return nil
	}
	for _, dp := range ad.Dayparts {
		if !strings.Contains(dp.DaysOfWeek, r.day) {
			continue
		}
		if r.minute >= dp.StartMinute && r.minute <= dp.EndMinute {
			return nil
		}
	}
	return exclude(r, ad, fmt.Sprintf("creativeSetId %s excluded as not within a scheduled time slot", ad.CreativeSetID))
}
