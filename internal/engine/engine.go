// Package engine serves ads: it owns one eligibility pipeline and one serving
// queue per ad type and performs the side effects of a successful selection.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/adevents"
	"github.com/patrickwarner/eligibleads/internal/analytics"
	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/logic/eligible"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

var (
	// ErrEngineClosed is returned for work submitted after Close.
	ErrEngineClosed = errors.New("ads engine closed")
	// ErrUnknownAdType is returned for ad types the engine does not serve.
	ErrUnknownAdType = errors.New("unknown ad type")
)

// nowFn stamps recorded events. Tests may override it.
var nowFn = time.Now

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	Strategy        eligible.Strategy
	TopSegments     int
	HistoryMaxCount int
	HistoryMaxDays  int
	// EventRetention bounds how long ad events are kept; zero disables purging.
	EventRetention time.Duration
	PurgeInterval  time.Duration
}

// Dependencies are the collaborators the engine is built from. Analytics and
// AntiTargeting may be nil.
type Dependencies struct {
	Catalog       catalog.Catalog
	Events        adevents.Log
	History       history.Provider
	AntiTargeting antitargeting.SiteLookup
	Analytics     analytics.AnalyticsService
	Logger        *zap.Logger
	Metrics       observability.MetricsRegistry
}

// ServeRequest asks for one ad of a given type.
type ServeRequest struct {
	AdType     models.AdType    `json:"ad_type"`
	UserModel  models.UserModel `json:"user_model"`
	Dimensions string           `json:"dimensions,omitempty"`
}

// ServedAd is the result of a successful serve.
type ServedAd struct {
	Ad          models.CreativeAd  `json:"ad"`
	PlacementID string             `json:"placement_id"`
	Tier        eligible.Tier      `json:"tier"`
	Segments    models.SegmentList `json:"segments,omitempty"`
}

// Engine is safe for concurrent use. Work for one ad type is serialized on
// that type's queue so last-served and round-robin state stay consistent.
type Engine struct {
	pipelines map[models.AdType]*eligible.Pipeline
	queues    map[models.AdType]*queue

	events    adevents.Log
	analytics analytics.AnalyticsService
	logger    *zap.Logger
	metrics   observability.MetricsRegistry
	opts      Options

	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds an engine and starts its queues and the event purge loop.
func New(deps Dependencies, opts Options) (*Engine, error) {
	if deps.Catalog == nil || deps.Events == nil {
		return nil, fmt.Errorf("engine requires a catalog and an event log")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNoOpRegistry()
	}
	if opts.Strategy == "" {
		opts.Strategy = eligible.StrategyTiered
	}
	if opts.PurgeInterval <= 0 {
		opts.PurgeInterval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		pipelines: make(map[models.AdType]*eligible.Pipeline, len(models.AdTypes)),
		queues:    make(map[models.AdType]*queue, len(models.AdTypes)),
		events:    deps.Events,
		analytics: deps.Analytics,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		opts:      opts,
		closed:    make(chan struct{}),
		cancel:    cancel,
	}

	for _, adType := range models.AdTypes {
		p := eligible.NewPipeline(adType, opts.Strategy, deps.Catalog, deps.Events, deps.History, deps.AntiTargeting)
		p.SetLogger(deps.Logger.With(zap.String("ad_type", string(adType))))
		p.SetMetrics(deps.Metrics)
		p.SetTopSegments(opts.TopSegments)
		if opts.HistoryMaxCount > 0 || opts.HistoryMaxDays > 0 {
			p.SetHistoryWindow(opts.HistoryMaxCount, opts.HistoryMaxDays)
		}
		e.pipelines[adType] = p

		q := newQueue(e.closed)
		e.queues[adType] = q
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			q.run()
		}()
	}

	if opts.EventRetention > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.purgeLoop(ctx)
		}()
	}
	return e, nil
}

func (e *Engine) queueFor(adType models.AdType) (*queue, *eligible.Pipeline, error) {
	q, ok := e.queues[adType]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAdType, adType)
	}
	return q, e.pipelines[adType], nil
}

// Eligible lists the ads that would be considered for req without serving
// one. No state changes.
func (e *Engine) Eligible(ctx context.Context, req ServeRequest) (eligible.Result, error) {
	q, p, err := e.queueFor(req.AdType)
	if err != nil {
		return eligible.Result{}, err
	}
	var res eligible.Result
	var runErr error
	err = q.submit(ctx, func(st *servingState) {
		res, runErr = p.GetForUserModel(ctx, req.UserModel, st.params(req.Dimensions))
	})
	if err != nil {
		return eligible.Result{}, err
	}
	return res, runErr
}

// ServeAd selects one eligible ad and records it as served. It returns
// (nil, nil) when nothing is eligible. Fetch, filter, select and the served
// side effects run in that order on the ad type's queue.
func (e *Engine) ServeAd(ctx context.Context, req ServeRequest) (*ServedAd, error) {
	q, p, err := e.queueFor(req.AdType)
	if err != nil {
		return nil, err
	}

	var served *ServedAd
	var runErr error
	err = q.submit(ctx, func(st *servingState) {
		served, runErr = e.serve(ctx, p, st, req)
	})
	if err != nil {
		return nil, err
	}
	return served, runErr
}

func (e *Engine) serve(ctx context.Context, p *eligible.Pipeline, st *servingState, req ServeRequest) (*ServedAd, error) {
	res, err := p.GetForUserModel(ctx, req.UserModel, st.params(req.Dimensions))
	if err != nil {
		return nil, err
	}
	if res.SeenAdsReset {
		st.seenAds = make(map[string]bool)
	}
	if res.SeenAdvertisersReset {
		st.seenAdvertisers = make(map[string]bool)
	}

	ad, ok := eligible.Select(res.Ads)
	if !ok {
		e.metrics.IncrementNoFill(string(req.AdType))
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := models.NewAdEvent(ad, uuid.NewString(), models.ConfirmationServed, nowFn())
	if err := e.events.RecordAdEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("record served event: %w", err)
	}
	st.lastServed = &ad

	e.metrics.IncrementServed(string(req.AdType))
	e.metrics.IncrementEvent(string(models.ConfirmationServed))
	e.archive(ctx, ev, res.Segments)

	e.logger.Debug("ad served",
		zap.String("ad_type", string(req.AdType)),
		zap.String("creative_instance_id", ad.CreativeInstanceID),
		zap.String("placement_id", ev.PlacementID),
		zap.String("tier", res.Tier.String()))

	return &ServedAd{Ad: ad, PlacementID: ev.PlacementID, Tier: res.Tier, Segments: res.Segments}, nil
}

// RecordEvent appends a user interaction. Viewed ads and their advertisers
// are marked as seen for round-robin rotation.
func (e *Engine) RecordEvent(ctx context.Context, ev models.AdEvent) error {
	q, _, err := e.queueFor(ev.AdType)
	if err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = nowFn()
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	var recErr error
	err = q.submit(ctx, func(st *servingState) {
		if recErr = e.events.RecordAdEvent(ctx, ev); recErr != nil {
			return
		}
		if ev.ConfirmationType == models.ConfirmationViewed {
			st.seenAds[ev.CreativeInstanceID] = true
			st.seenAdvertisers[ev.AdvertiserID] = true
		}
	})
	if err != nil {
		return err
	}
	if recErr != nil {
		return fmt.Errorf("record %s event: %w", ev.ConfirmationType, recErr)
	}
	e.metrics.IncrementEvent(string(ev.ConfirmationType))
	e.archive(ctx, ev, nil)
	return nil
}

// archive forwards ev to analytics. Failures are logged only.
func (e *Engine) archive(ctx context.Context, ev models.AdEvent, segments models.SegmentList) {
	if e.analytics == nil {
		return
	}
	if err := e.analytics.RecordAdEvent(ctx, ev, segments); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
		e.logger.Warn("analytics record failed",
			zap.String("placement_id", ev.PlacementID),
			zap.String("confirmation_type", string(ev.ConfirmationType)),
			zap.Error(err))
	}
}

func (e *Engine) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.PurgeExpired(ctx)
		}
	}
}

// PurgeExpired drops events older than the retention window.
func (e *Engine) PurgeExpired(ctx context.Context) {
	if e.opts.EventRetention <= 0 {
		return
	}
	cutoff := nowFn().Add(-e.opts.EventRetention)
	if err := e.events.PurgeExpired(ctx, cutoff); err != nil {
		e.logger.Warn("ad event purge failed", zap.Error(err))
	}
}

// Strategy returns the configured eligibility strategy.
func (e *Engine) Strategy() eligible.Strategy { return e.opts.Strategy }

// Close stops accepting work, lets in-flight jobs finish and stops the purge loop.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.cancel()
	})
	e.wg.Wait()
}
