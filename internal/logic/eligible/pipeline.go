// Package eligible narrows the catalog to the creative ads a user may be
// shown right now, falling back from child to parent to untargeted segments.
package eligible

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/eligibleads/internal/adevents"
	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/logic"
	"github.com/patrickwarner/eligibleads/internal/logic/exclusion"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

const (
	DefaultTopSegments     = 3
	DefaultHistoryMaxCount = 5000
	DefaultHistoryMaxDays  = 30
)

// nowFn is the clock used for rule evaluation. Tests may override it.
var nowFn = time.Now

// Params carries per-request serving state owned by the caller.
type Params struct {
	// Dimensions is matched exactly for ad types that require it.
	Dimensions string
	// LastServed is the ad most recently served for this ad type, if any.
	LastServed *models.CreativeAd
	// SeenAds and SeenAdvertisers implement round-robin rotation.
	SeenAds         map[string]bool
	SeenAdvertisers map[string]bool
}

// Result is the outcome of a successful run. An empty Ads slice is a normal
// outcome, not an error.
type Result struct {
	Tier Tier                `json:"tier"`
	Ads  []models.CreativeAd `json:"ads"`
	// Segments are the segments queried at the resolving tier.
	Segments             models.SegmentList         `json:"segments,omitempty"`
	Exclusions           []exclusion.ExclusionError `json:"exclusions,omitempty"`
	Trace                *logic.SelectionTrace      `json:"trace,omitempty"`
	SeenAdsReset         bool                       `json:"seen_ads_reset,omitempty"`
	SeenAdvertisersReset bool                       `json:"seen_advertisers_reset,omitempty"`
}

// Outcome pairs a Result with the error of an asynchronous run.
type Outcome struct {
	Result Result
	Err    error
}

// Pipeline computes eligible ads for one ad type.
type Pipeline struct {
	adType   models.AdType
	strategy Strategy
	catalog  catalog.Catalog
	events   adevents.Log
	history  history.Provider
	sites    antitargeting.SiteLookup

	topSegments     int
	historyMaxCount int
	historyMaxDays  int

	logger  *zap.Logger
	metrics observability.MetricsRegistry
	tracer  trace.Tracer
}

// NewPipeline wires a pipeline. sites may be nil when no anti-targeting
// resource is available.
func NewPipeline(adType models.AdType, strategy Strategy, cat catalog.Catalog, events adevents.Log, hist history.Provider, sites antitargeting.SiteLookup) *Pipeline {
	return &Pipeline{
		adType:          adType,
		strategy:        strategy,
		catalog:         cat,
		events:          events,
		history:         hist,
		sites:           sites,
		topSegments:     DefaultTopSegments,
		historyMaxCount: DefaultHistoryMaxCount,
		historyMaxDays:  DefaultHistoryMaxDays,
		logger:          zap.NewNop(),
		metrics:         observability.NewNoOpRegistry(),
		tracer:          observability.Tracer("eligible"),
	}
}

// SetLogger configures logging for this pipeline.
func (p *Pipeline) SetLogger(logger *zap.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// SetMetrics configures the metrics registry.
func (p *Pipeline) SetMetrics(m observability.MetricsRegistry) {
	if m != nil {
		p.metrics = m
	}
}

// SetTopSegments limits how many of the user's ranked segments are queried.
func (p *Pipeline) SetTopSegments(n int) {
	if n > 0 {
		p.topSegments = n
	}
}

// SetHistoryWindow bounds the browsing history fed to anti-targeting.
func (p *Pipeline) SetHistoryWindow(maxCount, maxDays int) {
	p.historyMaxCount = maxCount
	p.historyMaxDays = maxDays
}

// AdType returns the ad type this pipeline serves.
func (p *Pipeline) AdType() models.AdType { return p.adType }

// Strategy returns the configured strategy.
func (p *Pipeline) Strategy() Strategy { return p.strategy }

type tierQuery struct {
	tier     Tier
	segments models.SegmentList
}

func (p *Pipeline) tiers(segments models.SegmentList) []tierQuery {
	top := segments.Top(p.topSegments)
	untargeted := models.SegmentList{models.UntargetedSegment}

	if p.strategy == StrategyFlat {
		union := append(append(models.SegmentList{}, top...), models.UntargetedSegment)
		return []tierQuery{{tier: TierFlat, segments: union}}
	}

	var out []tierQuery
	if len(top) > 0 {
		out = append(out,
			tierQuery{tier: TierChild, segments: top},
			tierQuery{tier: TierParent, segments: top.Parents()},
		)
	}
	return append(out, tierQuery{tier: TierUntargeted, segments: untargeted})
}

// GetForUserModel runs the pipeline. It returns an error only when a
// prerequisite fetch fails; every candidate being excluded yields a Result
// with no ads.
func (p *Pipeline) GetForUserModel(ctx context.Context, user models.UserModel, params Params) (Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "eligible.GetForUserModel",
		trace.WithAttributes(
			attribute.String("ad_type", string(p.adType)),
			attribute.String("strategy", string(p.strategy)),
		))
	defer span.End()

	events, visits, err := p.prefetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prefetch failed")
		return Result{}, err
	}

	sites := p.pinSites()
	ectx := exclusion.NewContext(nowFn(), events, history.Normalize(visits), sites, user)
	rules := exclusion.DefaultRules(ectx)

	res := Result{Trace: &logic.SelectionTrace{}}
	for _, q := range p.tiers(user.Segments.Normalized()) {
		ads, reset, err := p.runTier(ctx, q, rules, params, &res)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "catalog fetch failed")
			return Result{}, err
		}
		if len(ads) > 0 {
			res.Tier = q.tier
			res.Ads = ads
			res.Segments = q.segments
			res.SeenAdsReset = reset.ads
			res.SeenAdvertisersReset = reset.advertisers
			break
		}
	}

	span.SetAttributes(
		attribute.String("tier", res.Tier.String()),
		attribute.Int("eligible_count", len(res.Ads)),
		attribute.Int("excluded_count", len(res.Exclusions)),
	)
	p.metrics.IncrementPipelineRuns(string(p.adType), res.Tier.String())
	p.metrics.RecordPipelineLatency(string(p.adType), time.Since(start))
	if len(res.Ads) == 0 {
		p.logger.Debug("no eligible ads",
			zap.String("ad_type", string(p.adType)),
			zap.Int("excluded", len(res.Exclusions)))
	}
	return res, nil
}

// GetForUserModelAsync runs GetForUserModel on its own goroutine. The
// returned channel yields exactly one Outcome and is then closed.
func (p *Pipeline) GetForUserModelAsync(ctx context.Context, user models.UserModel, params Params) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := p.GetForUserModel(ctx, user, params)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// prefetch loads ad events and browsing history concurrently.
func (p *Pipeline) prefetch(ctx context.Context) ([]models.AdEvent, []string, error) {
	var events []models.AdEvent
	var visits []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = p.events.GetAdEvents(gctx, p.adType)
		if err != nil {
			return fmt.Errorf("get ad events: %w", err)
		}
		return nil
	})
	if p.history != nil {
		g.Go(func() error {
			var err error
			visits, err = p.history.GetBrowsingHistory(gctx, p.historyMaxCount, p.historyMaxDays)
			if err != nil {
				return fmt.Errorf("get browsing history: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return events, visits, nil
}

// pinSites takes one snapshot of a reloadable resource so every candidate in
// the run is evaluated against the same version.
func (p *Pipeline) pinSites() antitargeting.SiteLookup {
	if r, ok := p.sites.(interface {
		Snapshot() *antitargeting.Snapshot
	}); ok {
		if snap := r.Snapshot(); snap != nil {
			return snap
		}
		return nil
	}
	return p.sites
}

// seenReset reports which round-robin filters a tier had to reset.
type seenReset struct {
	ads         bool
	advertisers bool
}

func (p *Pipeline) runTier(ctx context.Context, q tierQuery, rules *exclusion.RuleSet, params Params, res *Result) ([]models.CreativeAd, seenReset, error) {
	ctx, span := p.tracer.Start(ctx, "eligible.tier."+string(q.tier))
	defer span.End()
	tier := string(q.tier)

	ads, err := p.catalog.GetCreativeAdsForSegments(ctx, q.segments, p.adType)
	if err != nil {
		return nil, seenReset{}, fmt.Errorf("get creative ads for %s tier: %w", q.tier, err)
	}
	res.Trace.AddStep(tier, "catalog", ads)
	if len(ads) == 0 {
		return nil, seenReset{}, nil
	}

	if p.adType.RequiresDimensions() {
		ads = filterByDimensions(ads, params.Dimensions)
		res.Trace.AddStepWithDetails(tier, "dimensions", ads, map[string]string{"dimensions": params.Dimensions})
	}

	ads, excluded := rules.Apply(ads)
	res.Exclusions = append(res.Exclusions, excluded...)
	for _, ex := range excluded {
		p.metrics.IncrementExclusions(string(p.adType), ex.Rule)
		if observability.ShouldSample(observability.GetSamplingRate()) {
			p.logger.Debug("ad excluded",
				zap.String("creative_instance_id", ex.CreativeInstanceID),
				zap.String("rule", ex.Rule),
				zap.String("reason", ex.Reason))
		}
	}
	res.Trace.AddStep(tier, "exclusion_rules", ads)

	var reset seenReset
	ads, reset.advertisers = exclusion.FilterSeenAdvertisers(ads, params.SeenAdvertisers)
	ads, reset.ads = exclusion.FilterSeenAds(ads, params.SeenAds)
	res.Trace.AddStep(tier, "seen", ads)

	ads = exclusion.ExcludeLastServed(ads, params.LastServed)
	res.Trace.AddStep(tier, "last_served", ads)

	ads = exclusion.PaceAds(ads)
	res.Trace.AddStep(tier, "pacing", ads)

	span.SetAttributes(attribute.Int("eligible_count", len(ads)))
	return ads, reset, nil
}

// filterByDimensions keeps ads whose dimensions equal want exactly.
func filterByDimensions(ads []models.CreativeAd, want string) []models.CreativeAd {
	var out []models.CreativeAd
	for _, ad := range ads {
		if ad.Dimensions == want {
			out = append(out, ad)
		}
	}
	return out
}
