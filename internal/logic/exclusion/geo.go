package exclusion

import (
	"fmt"
	"strings"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// SubdivisionTargetingRule matches CreativeAd.GeoTargets against the user's
// location. A target is either a country ("US") or a country-subdivision
// pair ("US-CA"). Ads without targets pass; geo-targeted ads are excluded
// when the user's location is unknown.
type SubdivisionTargetingRule struct {
	country     string
	subdivision string
}

func NewSubdivisionTargetingRule(ctx *Context) *SubdivisionTargetingRule {
	country := strings.ToUpper(strings.TrimSpace(ctx.UserModel.Country))
	region := strings.ToUpper(strings.TrimSpace(ctx.UserModel.Region))
	r := &SubdivisionTargetingRule{country: country}
	if country != "" && region != "" {
		r.subdivision = country + "-" + region
	}
	return r
}

func (r *SubdivisionTargetingRule) Name() string { return "subdivision_targeting" }

func (r *SubdivisionTargetingRule) UUID(ad models.CreativeAd) string { return ad.CreativeSetID }

func (r *SubdivisionTargetingRule) ShouldInclude(ad models.CreativeAd) error {
	if len(ad.GeoTargets) == 0 {
		return nil
	}
	for _, target := range ad.GeoTargets {
		t := strings.ToUpper(strings.TrimSpace(target))
		if t == "" {
			continue
		}
		if strings.Contains(t, "-") {
			if r.subdivision != "" && t == r.subdivision {
				return nil
			}
			continue
		}
		if r.country != "" && t == r.country {
			return nil
		}
	}
	return exclude(r, ad, fmt.Sprintf("creativeSetId %s excluded as not targeting the user's location", ad.CreativeSetID))
}
