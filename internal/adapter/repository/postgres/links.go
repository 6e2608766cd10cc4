package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const linkColumns = `id, short_code, original_url, owner_id, title, expires_at, max_clicks,
	password_hash, is_active, click_count, created_at, updated_at`

type linkDB struct {
	ID           int64         `db:"id"`
	ShortCode    string        `db:"short_code"`
	OriginalURL  string        `db:"original_url"`
	OwnerID      string        `db:"owner_id"`
	Title        string        `db:"title"`
	ExpiresAt    sql.NullTime  `db:"expires_at"`
	MaxClicks    sql.NullInt64 `db:"max_clicks"`
	PasswordHash string        `db:"password_hash"`
	IsActive     bool          `db:"is_active"`
	ClickCount   int64         `db:"click_count"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

func (l *linkDB) toEntity() *entity.Link {
	link := &entity.Link{
		ID:           l.ID,
		ShortCode:    l.ShortCode,
		OriginalURL:  l.OriginalURL,
		OwnerID:      l.OwnerID,
		Title:        l.Title,
		PasswordHash: l.PasswordHash,
		IsActive:     l.IsActive,
		ClickCount:   l.ClickCount,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if l.ExpiresAt.Valid {
		t := l.ExpiresAt.Time
		link.ExpiresAt = &t
	}
	if l.MaxClicks.Valid {
		n := l.MaxClicks.Int64
		link.MaxClicks = &n
	}
	return link
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// LinkRepository stores links in the links table.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Save(ctx context.Context, link *entity.Link) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO links(short_code, original_url, owner_id, title, expires_at, max_clicks,
		password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + linkColumns

	var rec linkDB

	err := r.db.GetContext(ctx, &rec, query,
		link.ShortCode,
		link.OriginalURL,
		link.OwnerID,
		link.Title,
		nullTime(link.ExpiresAt),
		nullInt64(link.MaxClicks),
		link.PasswordHash,
		link.IsActive,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into links table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *LinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.FindByShortCode"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	var rec linkDB

	if err := r.db.GetContext(ctx, &rec, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from links table: %w", op, err)
	}

	return rec.toEntity(), nil
}

// IncrementClicks counts one click in a single guarded statement. The row is
// only touched while it is active, unexpired and under its cap, and the click
// that reaches the cap switches the link off.
func (r *LinkRepository) IncrementClicks(ctx context.Context, shortCode string, now time.Time) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.IncrementClicks"
	const query = `UPDATE links
		SET click_count = click_count + 1,
			is_active = (max_clicks IS NULL OR click_count + 1 < max_clicks),
			updated_at = $2
		WHERE short_code = $1
			AND is_active
			AND (expires_at IS NULL OR expires_at > $2)
			AND (max_clicks IS NULL OR click_count < max_clicks)
		RETURNING ` + linkColumns

	var rec linkDB

	if err := r.db.GetContext(ctx, &rec, query, shortCode, now); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: failed to update links table row: %w", op, err)
		}

		exists, err := linkExists(ctx, r.db, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, entity.ErrClickRejected)
	}

	return rec.toEntity(), nil
}

// Deactivate switches the link off. It reports whether this call changed the flag.
func (r *LinkRepository) Deactivate(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.postgres.LinkRepository.Deactivate"
	const query = `UPDATE links SET is_active = FALSE, updated_at = now() WHERE short_code = $1 AND is_active`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return false, fmt.Errorf("%s: failed to update links table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected == 1 {
		return true, nil
	}

	exists, err := linkExists(ctx, r.db, shortCode)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return false, nil
}

// Update applies owner edits without touching the click counter.
func (r *LinkRepository) Update(ctx context.Context, shortCode string, upd entity.LinkUpdate) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.Update"
	const query = `UPDATE links
		SET original_url = COALESCE($2::text, original_url),
			title = COALESCE($3::text, title),
			expires_at = CASE WHEN $4::boolean THEN NULL ELSE COALESCE($5::timestamptz, expires_at) END,
			max_clicks = CASE WHEN $6::boolean THEN NULL ELSE COALESCE($7::bigint, max_clicks) END,
			password_hash = CASE WHEN $8::boolean THEN '' ELSE COALESCE($9::text, password_hash) END,
			is_active = COALESCE($10::boolean, is_active),
			updated_at = $11
		WHERE short_code = $1
		RETURNING ` + linkColumns

	var rec linkDB

	err := r.db.GetContext(ctx, &rec, query,
		shortCode,
		upd.OriginalURL,
		upd.Title,
		upd.ClearExpiresAt,
		nullTime(upd.ExpiresAt),
		upd.ClearMaxClicks,
		nullInt64(upd.MaxClicks),
		upd.ClearPassword,
		upd.PasswordHash,
		upd.IsActive,
		upd.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update links table row: %w", op, err)
	}

	return rec.toEntity(), nil
}

// DeactivateExpired switches off every active link whose expiration passed.
func (r *LinkRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.DeactivateExpired"
	const query = `UPDATE links SET is_active = FALSE, updated_at = $1
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to update links table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected, nil
}

const ownerFilter = `owner_id = $1
	AND ($2::text = ''
		OR ($2::text = 'active' AND is_active)
		OR ($2::text = 'inactive' AND NOT is_active)
		OR ($2::text = 'expired' AND expires_at IS NOT NULL AND expires_at <= $3))
	AND ($4::text = ''
		OR short_code ILIKE '%' || $4::text || '%'
		OR original_url ILIKE '%' || $4::text || '%'
		OR title ILIKE '%' || $4::text || '%')`

// likeEscaper keeps user search terms from acting as LIKE wildcards.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListByOwner returns one page of the owner's links, newest first, and the
// number of links matching the filter.
func (r *LinkRepository) ListByOwner(ctx context.Context, filter entity.LinkFilter) ([]*entity.Link, int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.ListByOwner"
	const countQuery = `SELECT COUNT(*) FROM links WHERE ` + ownerFilter
	const listQuery = `SELECT ` + linkColumns + ` FROM links WHERE ` + ownerFilter + `
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6`

	args := []any{filter.OwnerID, string(filter.Status), filter.Now, likeEscaper.Replace(filter.Search)}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to count rows in links table: %w", op, err)
	}

	var recs []linkDB
	if err := r.db.SelectContext(ctx, &recs, listQuery, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to select rows from links table: %w", op, err)
	}

	links := make([]*entity.Link, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].toEntity())
	}

	return links, total, nil
}

type summaryDB struct {
	TotalLinks  int64 `db:"total_links"`
	ActiveLinks int64 `db:"active_links"`
	TotalClicks int64 `db:"total_clicks"`
}

// Summary totals all links of the owner.
func (r *LinkRepository) Summary(ctx context.Context, ownerID string) (entity.LinkSummary, error) {
	const op = "adapter.repository.postgres.LinkRepository.Summary"
	const query = `SELECT COUNT(*) AS total_links,
			COUNT(*) FILTER (WHERE is_active) AS active_links,
			COALESCE(SUM(click_count), 0) AS total_clicks
		FROM links WHERE owner_id = $1`

	var rec summaryDB

	if err := r.db.GetContext(ctx, &rec, query, ownerID); err != nil {
		return entity.LinkSummary{}, fmt.Errorf("%s: failed to aggregate links table: %w", op, err)
	}

	return entity.LinkSummary{
		TotalLinks:  rec.TotalLinks,
		ActiveLinks: rec.ActiveLinks,
		TotalClicks: rec.TotalClicks,
	}, nil
}
