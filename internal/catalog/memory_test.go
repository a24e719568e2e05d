package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/eligibleads/internal/models"
)

func testAd(id, segment string) models.CreativeAd {
	return models.CreativeAd{
		CreativeInstanceID: id,
		CreativeSetID:      "set-" + id,
		CampaignID:         "camp-" + id,
		AdvertiserID:       "adv-" + id,
		AdType:             models.AdTypeNotification,
		Segment:            segment,
	}
}

func TestInMemoryCatalogSegmentLookup(t *testing.T) {
	c := NewInMemoryCatalog()
	require.NoError(t, c.SetCreativeAds([]models.CreativeAd{
		testAd("1", "Sports-Golf"),
		testAd("2", "sports"),
		testAd("3", "untargeted"),
	}))
	ctx := context.Background()

	ads, err := c.GetCreativeAdsForSegment(ctx, "sports-golf", models.AdTypeNotification)
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, "1", ads[0].CreativeInstanceID)
	assert.Equal(t, 1.0, ads[0].PassThroughRate)

	ads, err = c.GetCreativeAdsForSegments(ctx, models.SegmentList{"sports", "untargeted", "sports"}, models.AdTypeNotification)
	require.NoError(t, err)
	require.Len(t, ads, 2)
	assert.Equal(t, "2", ads[0].CreativeInstanceID)
	assert.Equal(t, "3", ads[1].CreativeInstanceID)

	ads, err = c.GetCreativeAdsForSegment(ctx, "sports", models.AdTypeNewTabPage)
	require.NoError(t, err)
	assert.Empty(t, ads)
	assert.Equal(t, 3, c.Len())
}

func TestInMemoryCatalogRejectsInvalidSnapshot(t *testing.T) {
	c := NewInMemoryCatalog()
	require.NoError(t, c.SetCreativeAds([]models.CreativeAd{testAd("1", "sports")}))

	err := c.SetCreativeAds([]models.CreativeAd{testAd("1", "sports"), testAd("1", "travel")})
	assert.ErrorIs(t, err, ErrDuplicateCreativeInstance)

	err = c.SetCreativeAds([]models.CreativeAd{testAd("2", "  ")})
	assert.ErrorIs(t, err, ErrEmptySegment)

	bad := testAd("3", "sports")
	bad.CampaignID = ""
	assert.ErrorIs(t, c.SetCreativeAds([]models.CreativeAd{bad}), ErrMissingIdentifier)

	// previous snapshot survives
	assert.Equal(t, 1, c.Len())
}

type stubLoader struct {
	ads []models.CreativeAd
	err error
}

func (s stubLoader) LoadCreativeAds(context.Context) ([]models.CreativeAd, error) {
	return s.ads, s.err
}

func TestInMemoryCatalogReload(t *testing.T) {
	c := NewInMemoryCatalog()
	require.NoError(t, c.Reload(context.Background(), stubLoader{ads: []models.CreativeAd{testAd("1", "a"), testAd("2", "b")}}))
	assert.Equal(t, 2, c.Len())

	err := c.Reload(context.Background(), stubLoader{err: errors.New("boom")})
	assert.Error(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestInMemoryCatalogCanceledContext(t *testing.T) {
	c := NewInMemoryCatalog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetCreativeAdsForSegment(ctx, "a", models.AdTypeNotification)
	assert.ErrorIs(t, err, context.Canceled)
}
