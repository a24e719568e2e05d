package exclusion

import (
	"math/rand"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// RandFloat draws the pacing roll. Tests replace it for determinism.
var RandFloat = rand.Float64

// PaceAds keeps each ad with probability equal to its pass-through rate.
// A rate of 1 or more always passes.
func PaceAds(ads []models.CreativeAd) []models.CreativeAd {
	var out []models.CreativeAd
	for _, ad := range ads {
		if ad.PassThroughRate >= 1 || RandFloat() < ad.PassThroughRate {
			out = append(out, ad)
		}
	}
	return out
}
