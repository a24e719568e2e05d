package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/antitargeting"
	"github.com/patrickwarner/eligibleads/internal/config"
	"github.com/patrickwarner/eligibleads/internal/db"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

var (
	campaigns    = flag.Int("campaigns", 20, "campaigns to create")
	setsPer      = flag.Int("sets", 2, "creative sets per campaign")
	creativesPer = flag.Int("creatives", 2, "creative instances per set")
	antiTargeted = flag.Float64("anti-targeted", 0.2, "fraction of creative sets given anti-targeted sites")
	manifest     = flag.String("manifest-version", "1", "anti-targeting manifest version to write")
	seed         = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	skipReload   = flag.Bool("skip-reload", false, "skip automatic reload after data insertion")
)

var segments = []string{
	"technology & computing",
	"technology & computing-software",
	"technology & computing-consumer electronics",
	"sports",
	"sports-golf",
	"sports-soccer",
	"personal finance",
	"personal finance-banking",
	"travel",
	"travel-air travel",
	"food & drink",
	models.UntargetedSegment,
}

var sites = []string{
	"https://www.competitor-one.com",
	"https://news.competitor-two.co.uk",
	"https://shop.example.org",
	"https://forum.example.net",
}

var geoTargets = [][]string{nil, nil, nil, {"US"}, {"US-CA", "US-NY"}, {"GB"}, {"DE", "FR"}}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	r := rand.New(rand.NewSource(*seed))
	ctx := context.Background()
	blocked := make(map[string][]string)
	inserted := 0

	for c := 0; c < *campaigns; c++ {
		campaignID := fmt.Sprintf("campaign-%04d", c+1)
		advertiserID := fmt.Sprintf("advertiser-%03d", r.Intn(*campaigns/2+1)+1)
		adType := models.AdTypes[r.Intn(len(models.AdTypes))]
		dailyCap := 0
		if r.Float64() < 0.3 {
			dailyCap = 5 + r.Intn(20)
		}

		for s := 0; s < *setsPer; s++ {
			setID := fmt.Sprintf("%s-set-%d", campaignID, s+1)
			if r.Float64() < *antiTargeted {
				blocked[setID] = pickSites(r)
			}
			segment := segments[r.Intn(len(segments))]
			for i := 0; i < *creativesPer; i++ {
				ad := randomCreativeAd(r, adType, segment)
				ad.CreativeInstanceID = fmt.Sprintf("%s-ci-%d", setID, i+1)
				ad.CreativeSetID = setID
				ad.CampaignID = campaignID
				ad.AdvertiserID = advertiserID
				ad.DailyCap = dailyCap
				if err := pg.UpsertCreativeAd(ctx, ad); err != nil {
					logger.Fatal("insert creative ad", zap.Error(err))
				}
				inserted++
			}
		}
	}
	fmt.Printf("inserted %d creative ads\n", inserted)

	path, err := writeManifest(cfg, blocked)
	if err != nil {
		logger.Fatal("write anti-targeting manifest", zap.Error(err))
	}
	fmt.Printf("anti-targeting manifest written to %s (%d creative sets)\n", path, len(blocked))

	if !*skipReload {
		if err := callReloadEndpoint(&cfg); err != nil {
			logger.Error("reload endpoint failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Warning: failed to reload server data: %v\n", err)
		} else {
			fmt.Println("server data reloaded")
		}
	}
}

func randomCreativeAd(r *rand.Rand, adType models.AdType, segment string) models.CreativeAd {
	ad := models.CreativeAd{
		AdType:          adType,
		Segment:         segment,
		GeoTargets:      geoTargets[r.Intn(len(geoTargets))],
		Priority:        r.Intn(3),
		PassThroughRate: []float64{1, 1, 1, 0.5, 0.25}[r.Intn(5)],
		PerDay:          r.Intn(4),
		PerWeek:         r.Intn(10),
		TotalMax:        []int{0, 0, 20, 50}[r.Intn(4)],
		Title:           fakeTitle(r, segment),
		Description:     "Limited time offer",
		ImageURL:        fmt.Sprintf("https://cdn.example.com/creative/%d.png", r.Intn(1000)),
		TargetURL:       fmt.Sprintf("https://brand%d.example.com/landing", r.Intn(100)),
		CTAText:         []string{"Learn more", "Shop now", "Sign up"}[r.Intn(3)],
	}
	if adType.RequiresDimensions() {
		ad.Dimensions = []string{"200x100", "300x250", "728x90"}[r.Intn(3)]
	}
	if r.Float64() < 0.2 {
		// weekdays during business hours
		ad.Dayparts = []models.Daypart{{DaysOfWeek: "12345", StartMinute: 9 * 60, EndMinute: 17*60 - 1}}
	}
	if r.Float64() < 0.1 {
		ad.EndAt = time.Now().Add(time.Duration(r.Intn(14)+1) * 24 * time.Hour)
	}
	return ad
}

func pickSites(r *rand.Rand) []string {
	n := 1 + r.Intn(2)
	out := make([]string, 0, n)
	for _, i := range r.Perm(len(sites))[:n] {
		out = append(out, sites[i])
	}
	return out
}

func fakeTitle(r *rand.Rand, segment string) string {
	topic := segment
	if idx := strings.LastIndex(segment, models.SegmentDelimiter); idx > 0 {
		topic = segment[idx+1:]
	}
	if segment == models.UntargetedSegment {
		topic = "everyone"
	}
	prefix := []string{"Discover", "Save on", "The best of", "New in"}[r.Intn(4)]
	return fmt.Sprintf("%s %s", prefix, topic)
}

// writeManifest stores the anti-targeting component under
// <components>/<version>/<resource>.json.
func writeManifest(cfg config.Config, blocked map[string][]string) (string, error) {
	body := map[string]any{"version": antitargeting.ResourceVersion, "sites": blocked}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "", err
	}
	dir := filepath.Join(cfg.ComponentsDir, *manifest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, cfg.AntiTargetingResourceID+".json")
	return path, os.WriteFile(path, data, 0o644)
}

func callReloadEndpoint(cfg *config.Config) error {
	reloadURL := fmt.Sprintf("http://localhost:%s/reload", cfg.Port)
	payload, err := json.Marshal(map[string]string{
		"action":           antitargeting.ActionRegistered,
		"manifest_version": *manifest,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, reloadURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
