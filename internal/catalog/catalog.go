// Package catalog holds the published creative ads and answers segment
// lookups for the eligibility pipeline.
package catalog

import (
	"context"
	"errors"

	"github.com/patrickwarner/eligibleads/internal/models"
)

var (
	// ErrDuplicateCreativeInstance is returned when two ads share a creative instance id.
	ErrDuplicateCreativeInstance = errors.New("duplicate creative instance id")
	// ErrEmptySegment is returned when an ad has no segment.
	ErrEmptySegment = errors.New("creative ad has empty segment")
	// ErrMissingIdentifier is returned when an ad lacks instance, set, campaign or advertiser id.
	ErrMissingIdentifier = errors.New("creative ad missing identifier")
)

// Catalog answers "which creative ads of this type target these segments".
// Implementations must return ads in a stable order for a given snapshot and
// must be safe for concurrent use.
type Catalog interface {
	GetCreativeAdsForSegments(ctx context.Context, segments models.SegmentList, adType models.AdType) ([]models.CreativeAd, error)
	GetCreativeAdsForSegment(ctx context.Context, segment string, adType models.AdType) ([]models.CreativeAd, error)
}

// Loader fetches the full creative ad set from a backing store.
type Loader interface {
	LoadCreativeAds(ctx context.Context) ([]models.CreativeAd, error)
}
