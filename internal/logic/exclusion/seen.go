package exclusion

import (
	"github.com/patrickwarner/eligibleads/internal/models"
)

// FilterSeenAds drops creative instances the user has already seen. When
// every candidate has been seen the round is over: all candidates are
// returned and reset reports that the caller should clear its seen set.
func FilterSeenAds(ads []models.CreativeAd, seen map[string]bool) (out []models.CreativeAd, reset bool) {
	return filterSeen(ads, seen, func(ad models.CreativeAd) string { return ad.CreativeInstanceID })
}

// FilterSeenAdvertisers is FilterSeenAds keyed on advertiser.
func FilterSeenAdvertisers(ads []models.CreativeAd, seen map[string]bool) (out []models.CreativeAd, reset bool) {
	return filterSeen(ads, seen, func(ad models.CreativeAd) string { return ad.AdvertiserID })
}

func filterSeen(ads []models.CreativeAd, seen map[string]bool, key func(models.CreativeAd) string) ([]models.CreativeAd, bool) {
	if len(ads) == 0 || len(seen) == 0 {
		return ads, false
	}
	var out []models.CreativeAd
	for _, ad := range ads {
		if !seen[key(ad)] {
			out = append(out, ad)
		}
	}
	if len(out) == 0 {
		return ads, true
	}
	return out, false
}

// ExcludeLastServed removes the previously served instance so the same ad is
// not shown twice in a row. It only applies when another candidate remains.
func ExcludeLastServed(ads []models.CreativeAd, last *models.CreativeAd) []models.CreativeAd {
	if last == nil || len(ads) < 2 {
		return ads
	}
	out := make([]models.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if ad.CreativeInstanceID != last.CreativeInstanceID {
			out = append(out, ad)
		}
	}
	if len(out) == 0 {
		return ads
	}
	return out
}
