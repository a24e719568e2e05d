package exclusion

import (
	"errors"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// RuleSet evaluates rules in order; the first rejecting rule is reported and
// the remaining rules are skipped for that candidate.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet returns a RuleSet evaluating rules in the given order.
func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// DefaultRules builds the standard chain. Cheap, data-local rules run before
// counting and anti-targeting.
func DefaultRules(ctx *Context) *RuleSet {
	return NewRuleSet(
		NewFlightRule(ctx),
		NewConversionRule(ctx),
		NewDaypartRule(ctx),
		NewSubdivisionTargetingRule(ctx),
		NewPerHourRule(ctx),
		NewPerDayRule(ctx),
		NewPerWeekRule(ctx),
		NewPerMonthRule(ctx),
		NewTotalMaxRule(ctx),
		NewDailyCapRule(ctx),
		NewAntiTargetingRule(ctx.BrowsingHistory, ctx.AntiTargeting),
	)
}

// Rules returns the rule names in evaluation order.
func (s *RuleSet) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name()
	}
	return names
}

// Check runs the chain for a single ad.
func (s *RuleSet) Check(ad models.CreativeAd) *ExclusionError {
	for _, r := range s.rules {
		err := r.ShouldInclude(ad)
		if err == nil {
			continue
		}
		var ex *ExclusionError
		if errors.As(err, &ex) {
			return ex
		}
		// any other error is a rule failure and does not exclude
	}
	return nil
}

// Apply splits ads into eligible ones, in input order, and the exclusions.
func (s *RuleSet) Apply(ads []models.CreativeAd) ([]models.CreativeAd, []ExclusionError) {
	var eligible []models.CreativeAd
	var excluded []ExclusionError
	for _, ad := range ads {
		if ex := s.Check(ad); ex != nil {
			excluded = append(excluded, *ex)
			continue
		}
		eligible = append(eligible, ad)
	}
	return eligible, excluded
}
