package adevents

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patrickwarner/eligibleads/internal/db"
	"github.com/patrickwarner/eligibleads/internal/models"
)

const keyPrefix = "adevents:"

func eventsKey(adType models.AdType) string {
	return keyPrefix + string(adType)
}

// RedisLog stores events in one sorted set per ad type, scored by unix
// milliseconds. Members are the JSON-encoded event; the placement id keeps
// otherwise identical events distinct.
type RedisLog struct {
	store *db.RedisStore
}

// NewRedisLog returns a Log backed by store.
func NewRedisLog(store *db.RedisStore) (*RedisLog, error) {
	if store == nil || store.Client == nil {
		return nil, db.ErrNilRedisStore
	}
	return &RedisLog{store: store}, nil
}

// GetAdEvents returns the events for adType ordered by timestamp.
func (l *RedisLog) GetAdEvents(ctx context.Context, adType models.AdType) ([]models.AdEvent, error) {
	members, err := l.store.Client.ZRange(ctx, eventsKey(adType), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ad events %s: %w", adType, err)
	}
	out := make([]models.AdEvent, 0, len(members))
	for _, m := range members {
		var ev models.AdEvent
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			return nil, fmt.Errorf("decode ad event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// RecordAdEvent adds ev to the sorted set for its ad type.
func (l *RedisLog) RecordAdEvent(ctx context.Context, ev models.AdEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("record ad event: %w", err)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode ad event: %w", err)
	}
	z := redis.Z{Score: float64(ev.Timestamp.UnixMilli()), Member: string(payload)}
	if err := l.store.Client.ZAdd(ctx, eventsKey(ev.AdType), z).Err(); err != nil {
		return fmt.Errorf("write ad event: %w", err)
	}
	return nil
}

// PurgeExpired trims every ad type's set in a single pipeline.
func (l *RedisLog) PurgeExpired(ctx context.Context, before time.Time) error {
	cutoff := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	pipe := l.store.Client.Pipeline()
	for _, adType := range models.AdTypes {
		pipe.ZRemRangeByScore(ctx, eventsKey(adType), "-inf", cutoff)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("purge ad events: %w", err)
	}
	return nil
}
