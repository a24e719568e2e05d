package logic

import "github.com/patrickwarner/eligibleads/internal/models"

// TraceStep records the surviving candidates after one pipeline stage.
type TraceStep struct {
	Tier                string            `json:"tier,omitempty"`
	Stage               string            `json:"stage"`
	CreativeInstanceIDs []string          `json:"creative_instance_ids"`
	CreativeSetIDs      []string          `json:"creative_set_ids"`
	Details             map[string]string `json:"details,omitempty"`
}

// SelectionTrace captures the ordered list of stages an eligibility run went through.
type SelectionTrace struct {
	Steps []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage using the supplied ads.
// Duplicate creative set IDs are removed.
func (t *SelectionTrace) AddStep(tier, stage string, ads []models.CreativeAd) {
	t.AddStepWithDetails(tier, stage, ads, nil)
}

// AddStepWithDetails appends a trace entry with additional details about filtering.
func (t *SelectionTrace) AddStepWithDetails(tier, stage string, ads []models.CreativeAd, details map[string]string) {
	if t == nil {
		return
	}
	step := TraceStep{Tier: tier, Stage: stage, Details: details}
	seen := make(map[string]struct{})
	for _, ad := range ads {
		step.CreativeInstanceIDs = append(step.CreativeInstanceIDs, ad.CreativeInstanceID)
		if _, ok := seen[ad.CreativeSetID]; !ok {
			seen[ad.CreativeSetID] = struct{}{}
			step.CreativeSetIDs = append(step.CreativeSetIDs, ad.CreativeSetID)
		}
	}
	t.Steps = append(t.Steps, step)
}
