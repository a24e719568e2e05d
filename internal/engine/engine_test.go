package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/eligibleads/internal/adevents"
	"github.com/patrickwarner/eligibleads/internal/analytics"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/logic/eligible"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

var testNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	nowFn = func() time.Time { return testNow }
	m.Run()
}

func newAd(id, segment string) models.CreativeAd {
	return models.CreativeAd{
		CreativeInstanceID: "ci-" + id,
		CreativeSetID:      "cs-" + id,
		CampaignID:         "camp-" + id,
		AdvertiserID:       "adv-" + id,
		AdType:             models.AdTypeNotification,
		Segment:            segment,
		PassThroughRate:    1,
	}
}

type fixture struct {
	engine    *Engine
	events    *adevents.InMemoryLog
	analytics *analytics.MockAnalytics
	metrics   *observability.MockMetricsRegistry
}

func newFixture(t *testing.T, opts Options, ads ...models.CreativeAd) fixture {
	t.Helper()
	cat := catalog.NewInMemoryCatalog()
	require.NoError(t, cat.SetCreativeAds(ads))
	f := fixture{
		events:    adevents.NewInMemoryLog(),
		analytics: &analytics.MockAnalytics{},
		metrics:   observability.NewMockMetricsRegistry(),
	}
	e, err := New(Dependencies{
		Catalog:   cat,
		Events:    f.events,
		History:   history.StaticProvider{},
		Analytics: f.analytics,
		Metrics:   f.metrics,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	f.engine = e
	return f
}

func notificationRequest(segments ...string) ServeRequest {
	return ServeRequest{AdType: models.AdTypeNotification, UserModel: models.UserModel{Segments: segments}}
}

func TestNewRequiresCatalogAndEvents(t *testing.T) {
	_, err := New(Dependencies{}, Options{})
	assert.Error(t, err)
}

func TestServeAdRecordsServedEvent(t *testing.T) {
	f := newFixture(t, Options{}, newAd("golf", "sports-golf"))

	served, err := f.engine.ServeAd(context.Background(), notificationRequest("sports-golf"))
	require.NoError(t, err)
	require.NotNil(t, served)
	assert.Equal(t, "ci-golf", served.Ad.CreativeInstanceID)
	assert.Equal(t, eligible.TierChild, served.Tier)
	assert.NotEmpty(t, served.PlacementID)

	events, err := f.events.GetAdEvents(context.Background(), models.AdTypeNotification)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ConfirmationServed, events[0].ConfirmationType)
	assert.Equal(t, served.PlacementID, events[0].PlacementID)
	assert.Equal(t, testNow, events[0].Timestamp)

	recorded := f.analytics.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.SegmentList{"sports-golf"}, recorded[0].Segments)
	assert.Equal(t, 1, f.metrics.Count("served", string(models.AdTypeNotification)))
}

func TestServeAdNoFill(t *testing.T) {
	f := newFixture(t, Options{}, newAd("golf", "sports-golf"))

	served, err := f.engine.ServeAd(context.Background(), notificationRequest("finance-banking"))
	require.NoError(t, err)
	assert.Nil(t, served)
	assert.Equal(t, 1, f.metrics.Count("nofill", string(models.AdTypeNotification)))

	events, err := f.events.GetAdEvents(context.Background(), models.AdTypeNotification)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestServeAdUnknownAdType(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.engine.ServeAd(context.Background(), ServeRequest{AdType: "banner"})
	assert.ErrorIs(t, err, ErrUnknownAdType)
}

func TestServeAdAvoidsLastServed(t *testing.T) {
	f := newFixture(t, Options{}, newAd("a", models.UntargetedSegment), newAd("b", models.UntargetedSegment))

	orig := eligible.SelectFn
	eligible.SelectFn = func(int) int { return 0 }
	t.Cleanup(func() { eligible.SelectFn = orig })

	first, err := f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	second, err := f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Ad.CreativeInstanceID, second.Ad.CreativeInstanceID)
}

func TestServeAdHonorsFrequencyCap(t *testing.T) {
	ad := newAd("capped", models.UntargetedSegment)
	ad.TotalMax = 1
	f := newFixture(t, Options{}, ad)

	served, err := f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	require.NotNil(t, served)

	served, err = f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	assert.Nil(t, served)
}

func TestEligibleHasNoSideEffects(t *testing.T) {
	f := newFixture(t, Options{}, newAd("a", models.UntargetedSegment))

	res, err := f.engine.Eligible(context.Background(), notificationRequest())
	require.NoError(t, err)
	assert.Len(t, res.Ads, 1)

	events, err := f.events.GetAdEvents(context.Background(), models.AdTypeNotification)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, f.analytics.Events())
}

func TestRecordEventViewedRotatesAds(t *testing.T) {
	a := newAd("a", models.UntargetedSegment)
	b := newAd("b", models.UntargetedSegment)
	f := newFixture(t, Options{}, a, b)

	require.NoError(t, f.engine.RecordEvent(context.Background(),
		models.NewAdEvent(a, "p1", models.ConfirmationViewed, testNow)))
	assert.Equal(t, 1, f.metrics.Count("event", string(models.ConfirmationViewed)))

	res, err := f.engine.Eligible(context.Background(), notificationRequest())
	require.NoError(t, err)
	require.Len(t, res.Ads, 1)
	assert.Equal(t, "ci-b", res.Ads[0].CreativeInstanceID)
}

func TestRecordEventSeenResetsWhenAllSeen(t *testing.T) {
	a := newAd("a", models.UntargetedSegment)
	f := newFixture(t, Options{}, a)

	require.NoError(t, f.engine.RecordEvent(context.Background(),
		models.NewAdEvent(a, "p1", models.ConfirmationViewed, testNow)))

	served, err := f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	require.NotNil(t, served)
	assert.Equal(t, "ci-a", served.Ad.CreativeInstanceID)
}

func TestRecordEventConversionExcludesSet(t *testing.T) {
	a := newAd("a", models.UntargetedSegment)
	f := newFixture(t, Options{}, a)

	ev := models.NewAdEvent(a, "p1", models.ConfirmationConversion, time.Time{})
	require.NoError(t, f.engine.RecordEvent(context.Background(), ev))

	served, err := f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	assert.Nil(t, served)
}

func TestRecordEventRejectsInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.engine.RecordEvent(context.Background(), models.AdEvent{
		AdType:           models.AdTypeNotification,
		ConfirmationType: models.ConfirmationClicked,
	})
	assert.ErrorIs(t, err, models.ErrInvalidAdEvent)
}

func TestAnalyticsFailureDoesNotFailServe(t *testing.T) {
	f := newFixture(t, Options{}, newAd("a", models.UntargetedSegment))
	f.analytics.Err = errors.New("clickhouse down")

	served, err := f.engine.ServeAd(context.Background(), notificationRequest())
	require.NoError(t, err)
	assert.NotNil(t, served)
}

func TestPurgeExpired(t *testing.T) {
	a := newAd("a", models.UntargetedSegment)
	f := newFixture(t, Options{EventRetention: 24 * time.Hour}, a)

	ctx := context.Background()
	require.NoError(t, f.events.RecordAdEvent(ctx, models.NewAdEvent(a, "old", models.ConfirmationServed, testNow.Add(-48*time.Hour))))
	require.NoError(t, f.events.RecordAdEvent(ctx, models.NewAdEvent(a, "new", models.ConfirmationServed, testNow.Add(-time.Hour))))

	f.engine.PurgeExpired(ctx)

	events, err := f.events.GetAdEvents(ctx, models.AdTypeNotification)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].PlacementID)
}

func TestConcurrentServesAreSerialized(t *testing.T) {
	ad := newAd("capped", models.UntargetedSegment)
	ad.TotalMax = 3
	f := newFixture(t, Options{}, ad)

	var wg sync.WaitGroup
	var mu sync.Mutex
	servedCount := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			served, err := f.engine.ServeAd(context.Background(), notificationRequest())
			assert.NoError(t, err)
			if served != nil {
				mu.Lock()
				servedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, servedCount)
}

func TestClosedEngineRejectsWork(t *testing.T) {
	f := newFixture(t, Options{}, newAd("a", models.UntargetedSegment))
	f.engine.Close()
	f.engine.Close()

	_, err := f.engine.ServeAd(context.Background(), notificationRequest())
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t, Options{}, newAd("a", models.UntargetedSegment))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.ServeAd(ctx, notificationRequest())
	assert.Error(t, err)
}

// cancelOnFetch cancels the request context while the pipeline is running.
type cancelOnFetch struct {
	catalog.Catalog
	cancel context.CancelFunc
}

func (c cancelOnFetch) GetCreativeAdsForSegments(ctx context.Context, segments models.SegmentList, adType models.AdType) ([]models.CreativeAd, error) {
	c.cancel()
	return c.Catalog.GetCreativeAdsForSegments(ctx, segments, adType)
}

func TestCancelDuringServeLeavesNoSideEffects(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	require.NoError(t, cat.SetCreativeAds([]models.CreativeAd{newAd("a", models.UntargetedSegment)}))
	ctx, cancel := context.WithCancel(context.Background())
	events := adevents.NewInMemoryLog()
	mock := &analytics.MockAnalytics{}

	e, err := New(Dependencies{
		Catalog:   cancelOnFetch{Catalog: cat, cancel: cancel},
		Events:    events,
		History:   history.StaticProvider{},
		Analytics: mock,
	}, Options{})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	served, err := e.ServeAd(ctx, notificationRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, served)

	recorded, err := events.GetAdEvents(context.Background(), models.AdTypeNotification)
	require.NoError(t, err)
	assert.Empty(t, recorded)
	assert.Empty(t, mock.Events())
	assert.Nil(t, e.queues[models.AdTypeNotification].state.lastServed)

	res, err := e.Eligible(context.Background(), notificationRequest())
	require.NoError(t, err)
	assert.Len(t, res.Ads, 1)
}
