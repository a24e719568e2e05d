package exclusion

import (
	"fmt"

	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/models"
)

// AntiTargetingRule rejects a creative set when the user recently visited one
// of the sites its advertiser asked to avoid.
type AntiTargetingRule struct {
	history []string
	sites   antitargeting.SiteLookup
}

// NewAntiTargetingRule builds the rule from normalized browsing history.
// sites may be nil, in which case every ad passes.
func NewAntiTargetingRule(history []string, sites antitargeting.SiteLookup) *AntiTargetingRule {
	return &AntiTargetingRule{history: history, sites: sites}
}

func (r *AntiTargetingRule) Name() string { return "anti_targeting" }

func (r *AntiTargetingRule) UUID(ad models.CreativeAd) string { return ad.CreativeSetID }

func (r *AntiTargetingRule) ShouldInclude(ad models.CreativeAd) error {
	if len(r.history) == 0 || r.sites == nil {
		return nil
	}
	sites := r.sites.GetSites(ad.CreativeSetID)
	if len(sites) == 0 {
		return nil
	}
	if antitargeting.HasVisitedAntiTargetedSites(r.history, sites) {
		return exclude(r, ad, fmt.Sprintf("creativeSetId %s excluded due to visiting an anti-targeted site", ad.CreativeSetID))
	}
	return nil
}
