package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patrickwarner/eligibleads/internal/db"
)

// RedisProvider reads visits from the sorted set history:<profile>, members
// being URLs and scores the unix-millisecond visit time. Revisiting a URL
// moves it to the newer score.
type RedisProvider struct {
	store *db.RedisStore
	key   string
	nowFn func() time.Time
}

// NewRedisProvider returns a provider for the given profile.
func NewRedisProvider(store *db.RedisStore, profile string) (*RedisProvider, error) {
	if store == nil || store.Client == nil {
		return nil, db.ErrNilRedisStore
	}
	return &RedisProvider{store: store, key: "history:" + profile, nowFn: time.Now}, nil
}

// GetBrowsingHistory returns URLs visited within maxDays, newest first.
func (p *RedisProvider) GetBrowsingHistory(ctx context.Context, maxCount, maxDays int) ([]string, error) {
	lower := "-inf"
	if maxDays > 0 {
		since := p.nowFn().AddDate(0, 0, -maxDays)
		lower = strconv.FormatInt(since.UnixMilli(), 10)
	}
	opt := &redis.ZRangeBy{Min: lower, Max: "+inf"}
	if maxCount > 0 {
		opt.Count = int64(maxCount)
	}
	urls, err := p.store.Client.ZRevRangeByScore(ctx, p.key, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("read browsing history: %w", err)
	}
	return urls, nil
}

// RecordVisit adds or refreshes a visited URL.
func (p *RedisProvider) RecordVisit(ctx context.Context, v Visit) error {
	if v.URL == "" {
		return fmt.Errorf("record visit: empty url")
	}
	at := v.VisitedAt
	if at.IsZero() {
		at = p.nowFn()
	}
	if err := p.store.Client.ZAdd(ctx, p.key, redis.Z{Score: float64(at.UnixMilli()), Member: v.URL}).Err(); err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// Clear removes the stored history.
func (p *RedisProvider) Clear(ctx context.Context) error {
	return p.store.Client.Del(ctx, p.key).Err()
}
