package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/eligibleads/internal/config"
	"github.com/patrickwarner/eligibleads/internal/db"
	"github.com/patrickwarner/eligibleads/internal/engine"
	"github.com/patrickwarner/eligibleads/internal/models"
	"github.com/patrickwarner/eligibleads/internal/observability"
)

var (
	server    string
	totalReq  int
	conc      int
	duration  time.Duration
	rate      float64
	viewRate  float64
	clickRate float64
	adTypeCSV string
	stats     bool
	flush     bool
	redisAddr string
	debug     bool
	label     string
)

var logger *zap.Logger

var httpClient *http.Client

var (
	segmentPool = []string{
		"technology & computing-software",
		"technology & computing",
		"sports-golf",
		"sports-soccer",
		"personal finance-banking",
		"travel-air travel",
		"food & drink",
	}
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:111.0) Gecko/20100101 Firefox/111.0",
	}
	userIPs = []string{
		"192.0.2.1",
		"198.51.100.1",
		"203.0.113.1",
	}
)

const statsInterval = 5 * time.Second

var (
	countSent   uint64
	countServed uint64
	countNoFill uint64
	countErrors uint64
	countViews  uint64
	countClicks uint64
)

// lockedRand guards a shared rand.Rand across request goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "eligibility server base URL")
	flag.IntVar(&totalReq, "requests", 1000, "total serve requests to send")
	flag.IntVar(&conc, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.Float64Var(&viewRate, "view-rate", 0.8, "probability a served ad is viewed")
	flag.Float64Var(&clickRate, "click-rate", 0.05, "probability of a click per view")
	flag.StringVar(&adTypeCSV, "ad-types", string(models.AdTypeNotification)+","+string(models.AdTypeNewTabPage), "comma-separated ad types")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "flush ad events from redis before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	if flush {
		flushEvents()
	}

	var adTypes []models.AdType
	for _, s := range strings.Split(adTypeCSV, ",") {
		t, ok := models.ParseAdType(s)
		if !ok {
			logger.Fatal("unknown ad type", zap.String("ad_type", s))
		}
		if t.RequiresDimensions() {
			logger.Warn("ad type requires dimensions, requests use 300x250", zap.String("ad_type", string(t)))
		}
		adTypes = append(adTypes, t)
	}

	r := &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	done := make(chan struct{})
	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					return
				}
			}
		}()
	}

	var interval time.Duration
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(conc)
	start := time.Now()
	next := start
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if interval > 0 {
			if now := time.Now(); now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(interval)
		}
		adType := adTypes[r.Intn(len(adTypes))]
		g.Go(func() error {
			simulate(ctx, r, adType)
			return nil
		})
	}
	_ = g.Wait()
	close(done)
	printStats()
}

func simulate(ctx context.Context, r *lockedRand, adType models.AdType) {
	atomic.AddUint64(&countSent, 1)

	n := 1 + r.Intn(3)
	segments := make(models.SegmentList, 0, n)
	for j := 0; j < n; j++ {
		segments = append(segments, segmentPool[r.Intn(len(segmentPool))])
	}
	req := engine.ServeRequest{AdType: adType, UserModel: models.UserModel{Segments: segments}}
	if adType.RequiresDimensions() {
		req.Dimensions = "300x250"
	}
	headers := map[string]string{
		"User-Agent":      userAgents[r.Intn(len(userAgents))],
		"X-Forwarded-For": userIPs[r.Intn(len(userIPs))],
	}

	status, body, err := post(ctx, "/serve", req, headers)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("serve request error", zap.Error(err))
		return
	}
	switch status {
	case http.StatusNoContent:
		atomic.AddUint64(&countNoFill, 1)
		return
	case http.StatusOK:
	default:
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.Int("status", status), zap.String("body", strings.TrimSpace(string(body))))
		return
	}

	var served engine.ServedAd
	if err := json.Unmarshal(body, &served); err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("decode error", zap.Error(err))
		return
	}
	atomic.AddUint64(&countServed, 1)
	logger.Debug("served",
		zap.String("ad_type", string(adType)),
		zap.String("creative_instance_id", served.Ad.CreativeInstanceID),
		zap.String("tier", served.Tier.String()))

	if r.Float64() >= viewRate {
		return
	}
	if sendEvent(ctx, served, models.ConfirmationViewed) {
		atomic.AddUint64(&countViews, 1)
	}
	if r.Float64() < clickRate && sendEvent(ctx, served, models.ConfirmationClicked) {
		atomic.AddUint64(&countClicks, 1)
	}
}

func sendEvent(ctx context.Context, served engine.ServedAd, confirmation models.ConfirmationType) bool {
	ev := models.NewAdEvent(served.Ad, served.PlacementID, confirmation, time.Now())
	status, body, err := post(ctx, "/events", ev, nil)
	if err != nil || status != http.StatusNoContent {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("event request failed",
			zap.String("confirmation_type", string(confirmation)),
			zap.Int("status", status),
			zap.String("body", strings.TrimSpace(string(body))),
			zap.Error(err))
		return false
	}
	return true
}

func post(ctx context.Context, path string, payload any, headers map[string]string) (int, []byte, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+path, bytes.NewReader(blob))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

// flushEvents removes ad event history so frequency caps start fresh.
// Catalog data and browsing history are preserved.
func flushEvents() {
	cfg := config.Load()
	addr := redisAddr
	if addr == "" {
		addr = cfg.RedisAddr
	}
	store, err := db.InitRedis(addr)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer store.Close()

	keys, err := store.Client.Keys(store.Ctx, "adevents:*").Result()
	if err != nil {
		logger.Fatal("list ad event keys", zap.Error(err))
	}
	if len(keys) > 0 {
		if err := store.Client.Del(store.Ctx, keys...).Err(); err != nil {
			logger.Fatal("delete ad event keys", zap.Error(err))
		}
	}
	logger.Info("redis ad events flushed", zap.String("addr", addr), zap.Int("keys_deleted", len(keys)))
}

func printStats() {
	sent := atomic.LoadUint64(&countSent)
	served := atomic.LoadUint64(&countServed)
	views := atomic.LoadUint64(&countViews)
	clicks := atomic.LoadUint64(&countClicks)
	var fill, ctr float64
	if sent > 0 {
		fill = float64(served) / float64(sent)
	}
	if views > 0 {
		ctr = float64(clicks) / float64(views)
	}
	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sent", sent),
		zap.Uint64("served", served),
		zap.Uint64("no_fill", atomic.LoadUint64(&countNoFill)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)),
		zap.Uint64("views", views),
		zap.Uint64("clicks", clicks),
		zap.Float64("fill_rate", fill),
		zap.Float64("ctr", ctr))
}
