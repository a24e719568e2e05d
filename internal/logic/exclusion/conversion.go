package exclusion

import (
	"fmt"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// ConversionRule stops showing a creative set once the user has converted on it.
type ConversionRule struct {
	ctx *Context
}

func NewConversionRule(ctx *Context) *ConversionRule {
	return &ConversionRule{ctx: ctx}
}

func (r *ConversionRule) Name() string { return "conversion" }

func (r *ConversionRule) UUID(ad models.CreativeAd) string { return ad.CreativeSetID }

func (r *ConversionRule) ShouldInclude(ad models.CreativeAd) error {
	if _, ok := r.ctx.converted[ad.CreativeSetID]; ok {
		return exclude(r, ad, fmt.Sprintf("creativeSetId %s excluded due to ad conversion", ad.CreativeSetID))
	}
	return nil
}
