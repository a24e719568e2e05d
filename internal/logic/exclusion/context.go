package exclusion

import (
	"time"

	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/models"
)

// Context is the immutable input every rule evaluates against. It is built
// once per pipeline run from prefetched data.
type Context struct {
	Now             time.Time
	AdEvents        []models.AdEvent
	BrowsingHistory []string
	AntiTargeting   antitargeting.SiteLookup
	UserModel       models.UserModel

	served    servedIndex
	converted map[string]struct{}
}

// servedIndex holds served timestamps grouped by the keys caps are counted on.
type servedIndex struct {
	byInstance map[string][]time.Time
	bySet      map[string][]time.Time
	byCampaign map[string][]time.Time
}

// NewContext indexes events so each cap check is a map lookup plus a scan of
// that entity's own timestamps. sites may be nil.
func NewContext(now time.Time, events []models.AdEvent, history []string, sites antitargeting.SiteLookup, user models.UserModel) *Context {
	c := &Context{
		Now:             now,
		AdEvents:        events,
		BrowsingHistory: history,
		AntiTargeting:   sites,
		UserModel:       user,
		served: servedIndex{
			byInstance: make(map[string][]time.Time),
			bySet:      make(map[string][]time.Time),
			byCampaign: make(map[string][]time.Time),
		},
		converted: make(map[string]struct{}),
	}
	for _, ev := range events {
		switch ev.ConfirmationType {
		case models.ConfirmationServed:
			c.served.byInstance[ev.CreativeInstanceID] = append(c.served.byInstance[ev.CreativeInstanceID], ev.Timestamp)
			c.served.bySet[ev.CreativeSetID] = append(c.served.bySet[ev.CreativeSetID], ev.Timestamp)
			c.served.byCampaign[ev.CampaignID] = append(c.served.byCampaign[ev.CampaignID], ev.Timestamp)
		case models.ConfirmationConversion:
			c.converted[ev.CreativeSetID] = struct{}{}
		}
	}
	return c
}

// countWithin counts timestamps inside the sliding window ending at now.
// A zero window counts everything.
func (c *Context) countWithin(ts []time.Time, window time.Duration) int {
	if window == 0 {
		return len(ts)
	}
	since := c.Now.Add(-window)
	n := 0
	for _, t := range ts {
		if t.After(since) {
			n++
		}
	}
	return n
}
