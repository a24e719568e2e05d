// Package exclusion holds the predicates that remove ineligible creative ads
// from a candidate list: frequency caps, scheduling, geo and anti-targeting.
package exclusion

import (
	"github.com/patrickwarner/eligibleads/internal/models"
)

// Rule admits or rejects a single candidate. Rules are pure functions of the
// candidate and the Context they were built from, so one rule value can be
// evaluated from several goroutines.
type Rule interface {
	Name() string
	// UUID returns the entity key the rule caps on, e.g. the creative set id.
	UUID(ad models.CreativeAd) string
	// ShouldInclude returns nil to admit ad or an *ExclusionError to reject it.
	ShouldInclude(ad models.CreativeAd) error
}

// ExclusionError describes why a candidate was rejected.
type ExclusionError struct {
	CreativeInstanceID string `json:"creative_instance_id"`
	Rule               string `json:"rule"`
	UUID               string `json:"uuid"`
	Reason             string `json:"reason"`
}

func (e *ExclusionError) Error() string {
	return e.Reason
}

func exclude(r Rule, ad models.CreativeAd, reason string) *ExclusionError {
	return &ExclusionError{
		CreativeInstanceID: ad.CreativeInstanceID,
		Rule:               r.Name(),
		UUID:               r.UUID(ad),
		Reason:             reason,
	}
}
