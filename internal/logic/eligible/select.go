package eligible

import (
	"math/rand"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// SelectFn returns a uniform index in [0, n). Tests may replace it for
// deterministic behavior.
var SelectFn = rand.Intn

// Select draws one ad uniformly at random. Priority and pass-through rate do
// not weight the draw; pacing has already been applied as a filter.
func Select(ads []models.CreativeAd) (models.CreativeAd, bool) {
	if len(ads) == 0 {
		return models.CreativeAd{}, false
	}
	return ads[SelectFn(len(ads))], true
}
