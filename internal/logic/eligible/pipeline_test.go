package eligible

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/eligibleads/internal/adevents"
	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/logic/exclusion"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

var testNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	nowFn = func() time.Time { return testNow }
	m.Run()
}

func newAd(id, segment string, adType models.AdType) models.CreativeAd {
	return models.CreativeAd{
		CreativeInstanceID: "ci-" + id,
		CreativeSetID:      "cs-" + id,
		CampaignID:         "camp-" + id,
		AdvertiserID:       "adv-" + id,
		AdType:             adType,
		Segment:            segment,
		PassThroughRate:    1,
	}
}

func newCatalog(t *testing.T, ads ...models.CreativeAd) *catalog.InMemoryCatalog {
	t.Helper()
	c := catalog.NewInMemoryCatalog()
	require.NoError(t, c.SetCreativeAds(ads))
	return c
}

func newPipeline(cat catalog.Catalog, strategy Strategy) *Pipeline {
	return NewPipeline(models.AdTypeNotification, strategy, cat, adevents.NewInMemoryLog(), history.StaticProvider{}, nil)
}

func ids(ads []models.CreativeAd) []string {
	out := make([]string, len(ads))
	for i, ad := range ads {
		out[i] = ad.CreativeInstanceID
	}
	return out
}

func TestPipelineChildTier(t *testing.T) {
	child := newAd("child", "technology & computing-software", models.AdTypeNotification)
	parent := newAd("parent", "technology & computing", models.AdTypeNotification)
	untargeted := newAd("u", models.UntargetedSegment, models.AdTypeNotification)
	p := newPipeline(newCatalog(t, child, parent, untargeted), StrategyTiered)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"technology & computing-software"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, TierChild, res.Tier)
	assert.Equal(t, []string{"ci-child"}, ids(res.Ads))
}

func TestPipelineParentTier(t *testing.T) {
	parent := newAd("parent", "technology & computing", models.AdTypeNotification)
	untargeted := newAd("u", models.UntargetedSegment, models.AdTypeNotification)
	p := newPipeline(newCatalog(t, parent, untargeted), StrategyTiered)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"technology & computing-software"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, TierParent, res.Tier)
	assert.Equal(t, []string{"ci-parent"}, ids(res.Ads))
	assert.Equal(t, models.SegmentList{"technology & computing"}, res.Segments)

	// a parent-only segment list resolves the parent-tagged ad directly
	res, err = p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"technology & computing"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-parent"}, ids(res.Ads))
	assert.NotEqual(t, TierUntargeted, res.Tier)
}

func TestPipelineUntargetedTier(t *testing.T) {
	parent := newAd("parent", "technology & computing", models.AdTypeNotification)
	untargeted := newAd("u", models.UntargetedSegment, models.AdTypeNotification)
	p := newPipeline(newCatalog(t, parent, untargeted), StrategyTiered)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"finance-banking"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, TierUntargeted, res.Tier)
	assert.Equal(t, []string{"ci-u"}, ids(res.Ads))

	// no segments at all goes straight to untargeted
	res, err = p.GetForUserModel(context.Background(), models.UserModel{}, Params{})
	require.NoError(t, err)
	assert.Equal(t, TierUntargeted, res.Tier)
}

func TestPipelineUnmatchedSegmentIsEmptyNotError(t *testing.T) {
	parent := newAd("parent", "technology & computing", models.AdTypeNotification)
	p := newPipeline(newCatalog(t, parent), StrategyTiered)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"UNMATCHED"}}, Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Ads)
	assert.Equal(t, TierNone, res.Tier)
}

func TestPipelineDimensionsExactMatch(t *testing.T) {
	ad := newAd("inline", models.UntargetedSegment, models.AdTypeInlineContent)
	ad.Dimensions = "200x100"
	cat := newCatalog(t, ad)
	p := NewPipeline(models.AdTypeInlineContent, StrategyTiered, cat, adevents.NewInMemoryLog(), nil, nil)

	for _, dims := range []string{"?x?", "200X100", "200x100 ", "", "*"} {
		res, err := p.GetForUserModel(context.Background(), models.UserModel{}, Params{Dimensions: dims})
		require.NoError(t, err)
		assert.Empty(t, res.Ads, dims)
	}

	res, err := p.GetForUserModel(context.Background(), models.UserModel{}, Params{Dimensions: "200x100"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-inline"}, ids(res.Ads))
}

func TestPipelineFallsThroughWhenTierFullyExcluded(t *testing.T) {
	child := newAd("child", "sports-golf", models.AdTypeNotification)
	child.TotalMax = 1
	untargeted := newAd("u", models.UntargetedSegment, models.AdTypeNotification)

	log := adevents.NewInMemoryLog()
	require.NoError(t, log.RecordAdEvent(context.Background(),
		models.NewAdEvent(child, "p1", models.ConfirmationServed, testNow.Add(-48*time.Hour))))

	metrics := observability.NewMockMetricsRegistry()
	p := NewPipeline(models.AdTypeNotification, StrategyTiered, newCatalog(t, child, untargeted), log, nil, nil)
	p.SetMetrics(metrics)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"sports-golf"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, TierUntargeted, res.Tier)
	assert.Equal(t, []string{"ci-u"}, ids(res.Ads))
	require.NotEmpty(t, res.Exclusions)
	assert.Equal(t, "total_max", res.Exclusions[0].Rule)
	assert.Equal(t, 1, metrics.Count("pipeline", string(models.AdTypeNotification), "untargeted"))
	assert.GreaterOrEqual(t, metrics.Count("exclusion", string(models.AdTypeNotification), "total_max"), 1)
}

func TestPipelineAntiTargeting(t *testing.T) {
	ad := newAd("a", models.UntargetedSegment, models.AdTypeNotification)

	reader := staticReader(`{"version":1,"sites":{"cs-a":["HTTPS://WWW.FOO.COM"]}}`)
	res := antitargeting.NewResource("anti-targeting", reader)
	require.NoError(t, res.Load(context.Background(), "1"))

	hist := history.StaticProvider{URLs: []string{"https://www.foo.com/article", "https://www.bar.com"}}
	p := NewPipeline(models.AdTypeNotification, StrategyTiered, newCatalog(t, ad), adevents.NewInMemoryLog(), hist, res)

	out, err := p.GetForUserModel(context.Background(), models.UserModel{}, Params{})
	require.NoError(t, err)
	assert.Empty(t, out.Ads)
	require.Len(t, out.Exclusions, 1)
	assert.Equal(t, "creativeSetId cs-a excluded due to visiting an anti-targeted site", out.Exclusions[0].Reason)

	// once unloaded the rule is permissive again
	res.Unload()
	out, err = p.GetForUserModel(context.Background(), models.UserModel{}, Params{})
	require.NoError(t, err)
	assert.Len(t, out.Ads, 1)
}

type staticReader string

func (s staticReader) ReadComponent(context.Context, string, string) ([]byte, error) {
	return []byte(s), nil
}

func TestPipelineFlatStrategy(t *testing.T) {
	parent := newAd("parent", "technology & computing", models.AdTypeNotification)
	child := newAd("child", "sports-golf", models.AdTypeNotification)
	untargeted := newAd("u", models.UntargetedSegment, models.AdTypeNotification)
	p := newPipeline(newCatalog(t, parent, child, untargeted), StrategyFlat)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"technology & computing-software", "sports-golf"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, TierFlat, res.Tier)
	// no parent fallback: the parent-tagged ad is not considered
	assert.ElementsMatch(t, []string{"ci-child", "ci-u"}, ids(res.Ads))
}

func TestPipelineTopSegments(t *testing.T) {
	a := newAd("a", "a", models.AdTypeNotification)
	d := newAd("d", "d", models.AdTypeNotification)
	p := newPipeline(newCatalog(t, a, d), StrategyTiered)
	p.SetTopSegments(1)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"a", "b", "c", "d"}}, Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-a"}, ids(res.Ads))
}

func TestPipelineRoundRobinAndLastServed(t *testing.T) {
	a := newAd("a", models.UntargetedSegment, models.AdTypeNotification)
	b := newAd("b", models.UntargetedSegment, models.AdTypeNotification)
	p := newPipeline(newCatalog(t, a, b), StrategyTiered)
	ctx := context.Background()

	res, err := p.GetForUserModel(ctx, models.UserModel{}, Params{LastServed: &a})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-b"}, ids(res.Ads))

	res, err = p.GetForUserModel(ctx, models.UserModel{}, Params{SeenAds: map[string]bool{"ci-b": true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-a"}, ids(res.Ads))
	assert.False(t, res.SeenAdsReset)

	res, err = p.GetForUserModel(ctx, models.UserModel{}, Params{SeenAds: map[string]bool{"ci-a": true, "ci-b": true}})
	require.NoError(t, err)
	assert.Len(t, res.Ads, 2)
	assert.True(t, res.SeenAdsReset)

	res, err = p.GetForUserModel(ctx, models.UserModel{}, Params{SeenAdvertisers: map[string]bool{"adv-a": true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci-b"}, ids(res.Ads))
}

func TestPipelinePacing(t *testing.T) {
	orig := exclusion.RandFloat
	defer func() { exclusion.RandFloat = orig }()
	exclusion.RandFloat = func() float64 { return 0.99 }

	paced := newAd("p", models.UntargetedSegment, models.AdTypeNotification)
	paced.PassThroughRate = 0.5
	p := newPipeline(newCatalog(t, paced), StrategyTiered)

	res, err := p.GetForUserModel(context.Background(), models.UserModel{}, Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Ads)
}

func TestPipelineSeenResetOnlyFromAnsweringTier(t *testing.T) {
	orig := exclusion.RandFloat
	defer func() { exclusion.RandFloat = orig }()
	exclusion.RandFloat = func() float64 { return 0.99 }

	child := newAd("golf", "sports-golf", models.AdTypeNotification)
	child.PassThroughRate = 0.5
	fallback := newAd("u", models.UntargetedSegment, models.AdTypeNotification)
	p := newPipeline(newCatalog(t, child, fallback), StrategyTiered)

	res, err := p.GetForUserModel(context.Background(),
		models.UserModel{Segments: models.SegmentList{"sports-golf"}},
		Params{SeenAds: map[string]bool{"ci-golf": true}, SeenAdvertisers: map[string]bool{"adv-golf": true}})
	require.NoError(t, err)
	assert.Equal(t, TierUntargeted, res.Tier)
	assert.Equal(t, []string{"ci-u"}, ids(res.Ads))
	assert.False(t, res.SeenAdsReset)
	assert.False(t, res.SeenAdvertisersReset)
}

type failingLog struct{ adevents.Log }

func (failingLog) GetAdEvents(context.Context, models.AdType) ([]models.AdEvent, error) {
	return nil, errors.New("storage unavailable")
}

type failingHistory struct{}

func (failingHistory) GetBrowsingHistory(context.Context, int, int) ([]string, error) {
	return nil, errors.New("history unavailable")
}

func TestPipelineFetchFailurePropagates(t *testing.T) {
	cat := newCatalog(t, newAd("u", models.UntargetedSegment, models.AdTypeNotification))

	p := NewPipeline(models.AdTypeNotification, StrategyTiered, cat, failingLog{}, nil, nil)
	_, err := p.GetForUserModel(context.Background(), models.UserModel{}, Params{})
	assert.ErrorContains(t, err, "get ad events")

	p = NewPipeline(models.AdTypeNotification, StrategyTiered, cat, adevents.NewInMemoryLog(), failingHistory{}, nil)
	_, err = p.GetForUserModel(context.Background(), models.UserModel{}, Params{})
	assert.ErrorContains(t, err, "get browsing history")
}

func TestPipelineAsync(t *testing.T) {
	p := newPipeline(newCatalog(t, newAd("u", models.UntargetedSegment, models.AdTypeNotification)), StrategyTiered)

	ch := p.GetForUserModelAsync(context.Background(), models.UserModel{}, Params{})
	out, ok := <-ch
	require.True(t, ok)
	require.NoError(t, out.Err)
	assert.Len(t, out.Result.Ads, 1)

	_, ok = <-ch
	assert.False(t, ok, "channel yields exactly one outcome")
}

func TestPipelineTrace(t *testing.T) {
	p := newPipeline(newCatalog(t, newAd("u", models.UntargetedSegment, models.AdTypeNotification)), StrategyTiered)
	res, err := p.GetForUserModel(context.Background(), models.UserModel{Segments: models.SegmentList{"x"}}, Params{})
	require.NoError(t, err)
	require.NotNil(t, res.Trace)

	var stages []string
	for _, s := range res.Trace.Steps {
		stages = append(stages, s.Tier+":"+s.Stage)
	}
	assert.Equal(t, []string{
		"child:catalog", "parent:catalog",
		"untargeted:catalog", "untargeted:exclusion_rules", "untargeted:seen", "untargeted:last_served", "untargeted:pacing",
	}, stages)
}

func TestSelect(t *testing.T) {
	orig := SelectFn
	defer func() { SelectFn = orig }()
	SelectFn = func(n int) int { return n - 1 }

	a := newAd("a", "x", models.AdTypeNotification)
	b := newAd("b", "x", models.AdTypeNotification)
	got, ok := Select([]models.CreativeAd{a, b})
	require.True(t, ok)
	assert.Equal(t, "ci-b", got.CreativeInstanceID)

	_, ok = Select(nil)
	assert.False(t, ok)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("V2")
	require.NoError(t, err)
	assert.Equal(t, StrategyFlat, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyTiered, s)
	_, err = ParseStrategy("v3")
	assert.Error(t, err)
}
