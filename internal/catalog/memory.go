package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// snapshot is an immutable view of the catalog. It is replaced wholesale on
// reload and never mutated after being stored.
type snapshot struct {
	bySegment map[models.AdType]map[string][]models.CreativeAd
	count     int
}

// InMemoryCatalog implements Catalog with atomic snapshot updates.
type InMemoryCatalog struct {
	data atomic.Pointer[snapshot]
}

// NewInMemoryCatalog returns an empty catalog.
func NewInMemoryCatalog() *InMemoryCatalog {
	c := &InMemoryCatalog{}
	c.data.Store(&snapshot{bySegment: make(map[models.AdType]map[string][]models.CreativeAd)})
	return c
}

// SetCreativeAds validates ads and swaps them in as the new catalog. On error
// the previous snapshot stays in place.
func (c *InMemoryCatalog) SetCreativeAds(ads []models.CreativeAd) error {
	next := &snapshot{bySegment: make(map[models.AdType]map[string][]models.CreativeAd)}
	seen := make(map[string]struct{}, len(ads))

	for _, ad := range ads {
		if ad.CreativeInstanceID == "" || ad.CreativeSetID == "" || ad.CampaignID == "" || ad.AdvertiserID == "" {
			return fmt.Errorf("%w: instance=%q", ErrMissingIdentifier, ad.CreativeInstanceID)
		}
		if _, dup := seen[ad.CreativeInstanceID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCreativeInstance, ad.CreativeInstanceID)
		}
		seen[ad.CreativeInstanceID] = struct{}{}

		segment := models.NormalizeSegment(ad.Segment)
		if segment == "" {
			return fmt.Errorf("%w: %s", ErrEmptySegment, ad.CreativeInstanceID)
		}
		ad.Segment = segment
		if ad.PassThroughRate <= 0 {
			ad.PassThroughRate = 1.0
		}

		byType := next.bySegment[ad.AdType]
		if byType == nil {
			byType = make(map[string][]models.CreativeAd)
			next.bySegment[ad.AdType] = byType
		}
		byType[segment] = append(byType[segment], ad)
		next.count++
	}

	c.data.Store(next)
	return nil
}

// Reload fetches ads from loader and installs them.
func (c *InMemoryCatalog) Reload(ctx context.Context, loader Loader) error {
	ads, err := loader.LoadCreativeAds(ctx)
	if err != nil {
		return fmt.Errorf("load creative ads: %w", err)
	}
	return c.SetCreativeAds(ads)
}

// Len returns the number of ads in the current snapshot.
func (c *InMemoryCatalog) Len() int {
	return c.data.Load().count
}

// GetCreativeAdsForSegments returns ads of adType whose segment is one of
// segments. Matching is exact after normalization, so a parent segment does
// not match its children. Results follow the order of segments.
func (c *InMemoryCatalog) GetCreativeAdsForSegments(ctx context.Context, segments models.SegmentList, adType models.AdType) ([]models.CreativeAd, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byType := c.data.Load().bySegment[adType]
	if len(byType) == 0 {
		return nil, nil
	}

	var out []models.CreativeAd
	visited := make(map[string]struct{}, len(segments))
	for _, s := range segments {
		key := strings.ToLower(s)
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		out = append(out, byType[key]...)
	}
	return out, nil
}

// GetCreativeAdsForSegment is the single-segment form of GetCreativeAdsForSegments.
func (c *InMemoryCatalog) GetCreativeAdsForSegment(ctx context.Context, segment string, adType models.AdType) ([]models.CreativeAd, error) {
	return c.GetCreativeAdsForSegments(ctx, models.SegmentList{segment}, adType)
}
