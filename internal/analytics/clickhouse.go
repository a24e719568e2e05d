package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// AnalyticsService archives ad events for offline reporting. Serving never
// depends on it; callers log failures and move on.
type AnalyticsService interface {
	// RecordAdEvent archives ev. segments are the targeting segments that
	// produced the opportunity and are only set for served events.
	RecordAdEvent(ctx context.Context, ev models.AdEvent, segments models.SegmentList) error
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// EventRecord mirrors a row in the ad_events table.
type EventRecord struct {
	Timestamp          string   `json:"timestamp"`
	PlacementID        string   `json:"placement_id"`
	CreativeInstanceID string   `json:"creative_instance_id"`
	CreativeSetID      string   `json:"creative_set_id"`
	CampaignID         string   `json:"campaign_id"`
	AdvertiserID       string   `json:"advertiser_id"`
	AdType             string   `json:"ad_type"`
	ConfirmationType   string   `json:"confirmation_type"`
	Segments           []string `json:"segments"`
}

const createEventsTable = `CREATE TABLE IF NOT EXISTS ad_events (
       timestamp            DateTime64(3),
       placement_id         String,
       creative_instance_id String,
       creative_set_id      String,
       campaign_id          String,
       advertiser_id        String,
       ad_type              LowCardinality(String),
       confirmation_type    LowCardinality(String),
       segments             Array(String)
   ) ENGINE=MergeTree() ORDER BY (ad_type, confirmation_type, timestamp)`

// InitClickHouse connects to ClickHouse and ensures the ad_events table exists.
func InitClickHouse(dsn string) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), createEventsTable); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db}, nil
}

// RecordAdEvent inserts a single row into ad_events.
func (a *Analytics) RecordAdEvent(ctx context.Context, ev models.AdEvent, segments models.SegmentList) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if segments == nil {
		segments = models.SegmentList{}
	}
	stmt := `INSERT INTO ad_events (timestamp, placement_id, creative_instance_id, creative_set_id, campaign_id, advertiser_id, ad_type, confirmation_type, segments) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ev.Timestamp, ev.PlacementID, ev.CreativeInstanceID, ev.CreativeSetID,
		ev.CampaignID, ev.AdvertiserID, string(ev.AdType), string(ev.ConfirmationType), []string(segments)); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("confirmation_type", string(ev.ConfirmationType)))
		return fmt.Errorf("insert %s event: %w", ev.ConfirmationType, err)
	}
	return nil
}

// GetEventsByPlacementID returns all events for a placement ordered by timestamp.
func (a *Analytics) GetEventsByPlacementID(ctx context.Context, id string) ([]EventRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT toString(timestamp), placement_id, creative_instance_id, creative_set_id, campaign_id, advertiser_id, ad_type, confirmation_type, segments FROM ad_events WHERE placement_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.Timestamp, &ev.PlacementID, &ev.CreativeInstanceID, &ev.CreativeSetID, &ev.CampaignID,
			&ev.AdvertiserID, &ev.AdType, &ev.ConfirmationType, &ev.Segments); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
