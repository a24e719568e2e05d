package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/adevents"
	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/catalog"
	"github.com/patrickwarner/eligibleads/internal/config"
	"github.com/patrickwarner/eligibleads/internal/db"
	"github.com/patrickwarner/eligibleads/internal/engine"
	"github.com/patrickwarner/eligibleads/internal/history"
	"github.com/patrickwarner/eligibleads/internal/logic/eligible"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

type GetEligibleAdsInput struct {
	AdType     string   `json:"ad_type"`
	Segments   []string `json:"segments,omitempty"`
	Country    string   `json:"country,omitempty"`
	Region     string   `json:"region,omitempty"`
	Dimensions string   `json:"dimensions,omitempty"`
}

// EligibleAd is the summary of a candidate returned to the model.
type EligibleAd struct {
	CreativeInstanceID string `json:"creative_instance_id"`
	CreativeSetID      string `json:"creative_set_id"`
	CampaignID         string `json:"campaign_id"`
	AdvertiserID       string `json:"advertiser_id"`
	Segment            string `json:"segment"`
	Title              string `json:"title,omitempty"`
}

type Exclusion struct {
	CreativeInstanceID string `json:"creative_instance_id"`
	Rule               string `json:"rule"`
	Reason             string `json:"reason"`
}

type GetEligibleAdsOutput struct {
	Strategy   string       `json:"strategy"`
	Tier       string       `json:"tier"`
	Segments   []string     `json:"segments"`
	Ads        []EligibleAd `json:"ads"`
	Exclusions []Exclusion  `json:"exclusions"`
}

type AntiTargetingStatusInput struct{}

type AntiTargetingStatusOutput struct {
	ID              string `json:"id"`
	State           string `json:"state"`
	ManifestVersion string `json:"manifest_version,omitempty"`
	CreativeSets    int    `json:"creative_sets"`
}

// EligibilityServer exposes read-only eligibility tooling over MCP.
type EligibilityServer struct {
	engine   *engine.Engine
	resource *antitargeting.Resource
	logger   *zap.Logger
}

// GetEligibleAds lists the ads that would be considered for a user without
// serving one.
func (s *EligibilityServer) GetEligibleAds(ctx context.Context, req *mcp.CallToolRequest, input GetEligibleAdsInput) (*mcp.CallToolResult, GetEligibleAdsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	adType, ok := models.ParseAdType(input.AdType)
	if !ok {
		return nil, GetEligibleAdsOutput{}, fmt.Errorf("unknown ad_type %q", input.AdType)
	}

	res, err := s.engine.Eligible(ctx, engine.ServeRequest{
		AdType: adType,
		UserModel: models.UserModel{
			Segments: input.Segments,
			Country:  input.Country,
			Region:   input.Region,
		},
		Dimensions: input.Dimensions,
	})
	if err != nil {
		s.logger.Error("eligible ads", zap.String("ad_type", string(adType)), zap.Error(err))
		return nil, GetEligibleAdsOutput{}, fmt.Errorf("eligible ads: %w", err)
	}

	out := GetEligibleAdsOutput{
		Strategy:   string(s.engine.Strategy()),
		Tier:       res.Tier.String(),
		Segments:   []string(res.Segments),
		Ads:        make([]EligibleAd, 0, len(res.Ads)),
		Exclusions: make([]Exclusion, 0, len(res.Exclusions)),
	}
	if out.Segments == nil {
		out.Segments = []string{}
	}
	for _, ad := range res.Ads {
		out.Ads = append(out.Ads, EligibleAd{
			CreativeInstanceID: ad.CreativeInstanceID,
			CreativeSetID:      ad.CreativeSetID,
			CampaignID:         ad.CampaignID,
			AdvertiserID:       ad.AdvertiserID,
			Segment:            ad.Segment,
			Title:              ad.Title,
		})
	}
	for _, ex := range res.Exclusions {
		out.Exclusions = append(out.Exclusions, Exclusion{
			CreativeInstanceID: ex.CreativeInstanceID,
			Rule:               ex.Rule,
			Reason:             ex.Reason,
		})
	}
	s.logger.Info("eligible ads listed",
		zap.String("ad_type", string(adType)),
		zap.String("tier", out.Tier),
		zap.Int("ads", len(out.Ads)))
	return nil, out, nil
}

// AntiTargetingStatus reports the lifecycle state of the anti-targeting resource.
func (s *EligibilityServer) AntiTargetingStatus(ctx context.Context, req *mcp.CallToolRequest, _ AntiTargetingStatusInput) (*mcp.CallToolResult, AntiTargetingStatusOutput, error) {
	out := AntiTargetingStatusOutput{ID: s.resource.ID(), State: s.resource.State().String()}
	if v, ok := s.resource.ManifestVersion(); ok {
		out.ManifestVersion = v
	}
	if snap := s.resource.Snapshot(); snap != nil {
		out.CreativeSets = len(snap.CreativeSets)
	}
	return nil, out, nil
}

func newMCPServer(s *EligibilityServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "eligibleads",
		Version: "1.0.0",
	}, nil)

	adTypes := make([]string, 0, len(models.AdTypes))
	for _, t := range models.AdTypes {
		adTypes = append(adTypes, string(t))
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_eligible_ads",
		Description: "List the ads eligible for a user model without serving one",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ad_type": map[string]interface{}{
					"type":        "string",
					"enum":        adTypes,
					"description": "Ad type to evaluate",
				},
				"segments": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Interest segments, most relevant first (e.g. technology & computing-software)",
				},
				"country": map[string]interface{}{
					"type":        "string",
					"description": "ISO 3166-1 country code (optional)",
				},
				"region": map[string]interface{}{
					"type":        "string",
					"description": "ISO 3166-2 subdivision code without country prefix (optional)",
				},
				"dimensions": map[string]interface{}{
					"type":        "string",
					"description": "Creative dimensions, required for inline content ads (e.g. 200x100)",
				},
			},
			"required": []string{"ad_type"},
		},
	}, s.GetEligibleAds)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "anti_targeting_status",
		Description: "Report the state and manifest version of the anti-targeting resource",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, s.AntiTargetingStatus)

	return server
}

func main() {
	// production zap config writes to stderr, keeping stdout for the protocol
	logger, err := observability.InitLoggerWithService("eligibleads-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, config.Load()); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strategy, err := eligible.ParseStrategy(cfg.EligibilityStrategy)
	if err != nil {
		return err
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, 10, 5, 30*time.Minute, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	cat := catalog.NewInMemoryCatalog()
	if err := cat.Reload(ctx, pg); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer store.Close()

	events, err := adevents.NewRedisLog(store)
	if err != nil {
		return err
	}
	hist, err := history.NewRedisProvider(store, cfg.ProfileID)
	if err != nil {
		return err
	}

	resource := antitargeting.NewResource(cfg.AntiTargetingResourceID, antitargeting.FileComponentReader{Dir: cfg.ComponentsDir})
	resource.SetLogger(logger)
	watcher := antitargeting.NewWatcher(resource, store, cfg.ReloadInterval, cfg.AntiTargetingManifestVersion, logger)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start anti-targeting watcher: %w", err)
	}

	eng, err := engine.New(engine.Dependencies{
		Catalog:       cat,
		Events:        events,
		History:       hist,
		AntiTargeting: resource,
		Logger:        logger,
	}, engine.Options{
		Strategy:        strategy,
		TopSegments:     cfg.TopSegments,
		HistoryMaxCount: cfg.HistoryMaxCount,
		HistoryMaxDays:  cfg.HistoryMaxDays,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	server := newMCPServer(&EligibilityServer{engine: eng, resource: resource, logger: logger})

	logger.Info("MCP server running via stdio",
		zap.Int("creative_ads", cat.Len()),
		zap.String("strategy", string(strategy)))
	return server.Run(ctx, &mcp.StdioTransport{})
}
