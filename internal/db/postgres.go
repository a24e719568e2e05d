package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/eligibleads/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the catalog tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS creative_ads (
    creative_instance_id TEXT PRIMARY KEY,
    creative_set_id TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    advertiser_id TEXT NOT NULL,
    ad_type TEXT NOT NULL,
    segment TEXT NOT NULL,
    geo_targets TEXT[],
    dayparts JSONB,
    start_at TIMESTAMPTZ NULL,
    end_at TIMESTAMPTZ NULL,
    priority INT NOT NULL DEFAULT 0,
    ptr DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    per_day INT NOT NULL DEFAULT 0,
    per_week INT NOT NULL DEFAULT 0,
    per_month INT NOT NULL DEFAULT 0,
    total_max INT NOT NULL DEFAULT 0,
    daily_cap INT NOT NULL DEFAULT 0,
    title TEXT,
    description TEXT,
    image_url TEXT,
    dimensions TEXT,
    target_url TEXT,
    cta_text TEXT,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_creative_ads_type_segment ON creative_ads (ad_type, segment) WHERE active = true;
CREATE INDEX IF NOT EXISTS idx_creative_ads_campaign_id ON creative_ads (campaign_id);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// Ping checks connectivity; used by the health endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const loadCreativeAdsSQL = `SELECT creative_instance_id, creative_set_id, campaign_id, advertiser_id, ad_type, segment,
    geo_targets, dayparts, start_at, end_at, priority, ptr, per_day, per_week, per_month, total_max, daily_cap,
    title, description, image_url, dimensions, target_url, cta_text
FROM creative_ads
WHERE active AND (end_at IS NULL OR end_at >= NOW())
ORDER BY ad_type, segment, creative_instance_id`

// LoadCreativeAds retrieves the active catalog. Ads that have not started yet
// are included; the flight rule excludes them at serve time.
func (p *Postgres) LoadCreativeAds(ctx context.Context) ([]models.CreativeAd, error) {
	rows, err := p.DB.QueryContext(ctx, loadCreativeAdsSQL)
	if err != nil {
		return nil, fmt.Errorf("query creative ads: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ads []models.CreativeAd
	for rows.Next() {
		var ad models.CreativeAd
		var adType string
		var geo []string
		var dayparts []byte
		var start, end sql.NullTime
		var title, desc, image, dims, target, cta sql.NullString
		if err := rows.Scan(&ad.CreativeInstanceID, &ad.CreativeSetID, &ad.CampaignID, &ad.AdvertiserID, &adType, &ad.Segment,
			pq.Array(&geo), &dayparts, &start, &end, &ad.Priority, &ad.PassThroughRate, &ad.PerDay, &ad.PerWeek, &ad.PerMonth,
			&ad.TotalMax, &ad.DailyCap, &title, &desc, &image, &dims, &target, &cta); err != nil {
			return nil, fmt.Errorf("scan creative ad: %w", err)
		}
		ad.AdType = models.AdType(adType)
		ad.GeoTargets = geo
		if len(dayparts) > 0 {
			if err := json.Unmarshal(dayparts, &ad.Dayparts); err != nil {
				return nil, fmt.Errorf("creative ad %s dayparts: %w", ad.CreativeInstanceID, err)
			}
		}
		if start.Valid {
			ad.StartAt = start.Time
		}
		if end.Valid {
			ad.EndAt = end.Time
		}
		ad.Title = title.String
		ad.Description = desc.String
		ad.ImageURL = image.String
		ad.Dimensions = dims.String
		ad.TargetURL = target.String
		ad.CTAText = cta.String
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creative ads: %w", err)
	}
	return ads, nil
}

// UpsertCreativeAd inserts or replaces a catalog entry. Used by seeding tools
// and the operator API.
func (p *Postgres) UpsertCreativeAd(ctx context.Context, ad models.CreativeAd) error {
	dayparts, err := json.Marshal(ad.Dayparts)
	if err != nil {
		return fmt.Errorf("marshal dayparts: %w", err)
	}
	var start, end sql.NullTime
	if !ad.StartAt.IsZero() {
		start = sql.NullTime{Time: ad.StartAt, Valid: true}
	}
	if !ad.EndAt.IsZero() {
		end = sql.NullTime{Time: ad.EndAt, Valid: true}
	}
	_, err = p.DB.ExecContext(ctx, `INSERT INTO creative_ads (creative_instance_id, creative_set_id, campaign_id, advertiser_id, ad_type, segment,
    geo_targets, dayparts, start_at, end_at, priority, ptr, per_day, per_week, per_month, total_max, daily_cap,
    title, description, image_url, dimensions, target_url, cta_text)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
ON CONFLICT (creative_instance_id) DO UPDATE SET
    creative_set_id = EXCLUDED.creative_set_id, campaign_id = EXCLUDED.campaign_id, advertiser_id = EXCLUDED.advertiser_id,
    ad_type = EXCLUDED.ad_type, segment = EXCLUDED.segment, geo_targets = EXCLUDED.geo_targets, dayparts = EXCLUDED.dayparts,
    start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at, priority = EXCLUDED.priority, ptr = EXCLUDED.ptr,
    per_day = EXCLUDED.per_day, per_week = EXCLUDED.per_week, per_month = EXCLUDED.per_month,
    total_max = EXCLUDED.total_max, daily_cap = EXCLUDED.daily_cap, title = EXCLUDED.title,
    description = EXCLUDED.description, image_url = EXCLUDED.image_url, dimensions = EXCLUDED.dimensions,
    target_url = EXCLUDED.target_url, cta_text = EXCLUDED.cta_text, active = TRUE`,
		ad.CreativeInstanceID, ad.CreativeSetID, ad.CampaignID, ad.AdvertiserID, string(ad.AdType), ad.Segment,
		pq.Array(ad.GeoTargets), dayparts, start, end, ad.Priority, ad.PassThroughRate, ad.PerDay, ad.PerWeek, ad.PerMonth,
		ad.TotalMax, ad.DailyCap, ad.Title, ad.Description, ad.ImageURL, ad.Dimensions, ad.TargetURL, ad.CTAText)
	if err != nil {
		return fmt.Errorf("upsert creative ad %s: %w", ad.CreativeInstanceID, err)
	}
	return nil
}
