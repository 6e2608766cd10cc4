package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type bucketDB struct {
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

func toBuckets(recs []bucketDB) []entity.Bucket {
	buckets := make([]entity.Bucket, 0, len(recs))
	for _, rec := range recs {
		buckets = append(buckets, entity.Bucket{Key: rec.Key, Count: rec.Count})
	}
	return buckets
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// breakdown is one GROUP BY dimension of the click_events table.
type breakdown struct {
	name    string
	expr    string
	orderBy string
	target  func(*entity.ClickStats) *[]entity.Bucket
}

var breakdowns = []breakdown{
	{
		name:    "day",
		expr:    `to_char(clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')`,
		orderBy: "key",
		target:  func(s *entity.ClickStats) *[]entity.Bucket { return &s.Daily },
	},
	{
		name:    "country",
		expr:    `COALESCE(NULLIF(country, ''), '` + entity.Unknown + `')`,
		orderBy: "count DESC, key",
		target:  func(s *entity.ClickStats) *[]entity.Bucket { return &s.Countries },
	},
	{
		name:    "device",
		expr:    "device_type",
		orderBy: "count DESC, key",
		target:  func(s *entity.ClickStats) *[]entity.Bucket { return &s.Devices },
	},
	{
		name:    "browser",
		expr:    "browser",
		orderBy: "count DESC, key",
		target:  func(s *entity.ClickStats) *[]entity.Bucket { return &s.Browsers },
	},
	{
		name:    "os",
		expr:    "os",
		orderBy: "count DESC, key",
		target:  func(s *entity.ClickStats) *[]entity.Bucket { return &s.OSes },
	},
	{
		name:    "referrer",
		expr:    `COALESCE(NULLIF(referrer, ''), '` + entity.DirectTraffic + `')`,
		orderBy: "count DESC, key",
		target:  func(s *entity.ClickStats) *[]entity.Bucket { return &s.Referrers },
	},
}

// ClickRepository stores click events in the click_events table.
type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

func (r *ClickRepository) SaveClick(ctx context.Context, click *entity.ClickEvent) error {
	const op = "adapter.repository.postgres.ClickRepository.SaveClick"
	const query = `INSERT INTO click_events(id, link_id, short_code, clicked_at, ip_address, user_agent,
		referrer, country, city, device_type, browser, os)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		click.ID,
		click.LinkID,
		click.ShortCode,
		click.ClickedAt,
		click.IPAddress,
		click.UserAgent,
		click.Referrer,
		nullString(click.Country),
		nullString(click.City),
		click.DeviceType,
		click.Browser,
		click.OS,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to insert into click_events table: %w", op, err)
	}

	return nil
}

// Stats aggregates the clicks of a link recorded in [from, to).
func (r *ClickRepository) Stats(ctx context.Context, linkID int64, from, to time.Time) (*entity.ClickStats, error) {
	const op = "adapter.repository.postgres.ClickRepository.Stats"
	const totalsQuery = `SELECT COUNT(*) AS total, COUNT(DISTINCT ip_address) AS uniq
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2 AND clicked_at < $3`

	var totals struct {
		Total  int64 `db:"total"`
		Unique int64 `db:"uniq"`
	}

	if err := r.db.GetContext(ctx, &totals, totalsQuery, linkID, from, to); err != nil {
		return nil, fmt.Errorf("%s: failed to count click_events rows: %w", op, err)
	}

	stats := &entity.ClickStats{
		TotalClicks:    totals.Total,
		UniqueVisitors: totals.Unique,
		From:           from,
		To:             to,
	}

	for _, b := range breakdowns {
		query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count
			FROM click_events
			WHERE link_id = $1 AND clicked_at >= $2 AND clicked_at < $3
			GROUP BY key
			ORDER BY %s`, b.expr, b.orderBy)

		var recs []bucketDB
		if err := r.db.SelectContext(ctx, &recs, query, linkID, from, to); err != nil {
			return nil, fmt.Errorf("%s: failed to group click_events by %s: %w", op, b.name, err)
		}

		*b.target(stats) = toBuckets(recs)
	}

	return stats, nil
}
