package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/policy"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

const (
	maxGenerateAttempts  = 5
	maxDestinationLength = 2048
	defaultStatsWindow   = 30 * 24 * time.Hour
	defaultPageSize      = 20
	maxPageSize          = 100
)

type linkRepository interface {
	Save(ctx context.Context, link *entity.Link) (*entity.Link, error)
	FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	IncrementClicks(ctx context.Context, shortCode string, now time.Time) (*entity.Link, error)
	Deactivate(ctx context.Context, shortCode string) (bool, error)
	Update(ctx context.Context, shortCode string, upd entity.LinkUpdate) (*entity.Link, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	ListByOwner(ctx context.Context, filter entity.LinkFilter) ([]*entity.Link, int64, error)
	Summary(ctx context.Context, ownerID string) (entity.LinkSummary, error)
}

type clickRepository interface {
	Stats(ctx context.Context, linkID int64, from, to time.Time) (*entity.ClickStats, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

// CreateLinkInput describes a new link. Empty CustomCode requests a generated one.
type CreateLinkInput struct {
	OriginalURL string
	CustomCode  string
	Title       string
	Password    string
	ExpiresAt   *time.Time
	MaxClicks   *int64
	OwnerID     string
}

// UpdateLinkInput describes owner edits. Nil fields are left unchanged.
type UpdateLinkInput struct {
	OriginalURL    *string
	Title          *string
	Password       *string
	ClearPassword  bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	MaxClicks      *int64
	ClearMaxClicks bool
	IsActive       *bool
}

// ListLinksInput selects a page of an owner's links. Page counts from 1.
type ListLinksInput struct {
	Status   entity.LinkStatus
	Search   string
	Page     int
	PageSize int
}

type LinkUseCase struct {
	baseURL   string
	gen       codeGenerator
	linkRepo  linkRepository
	clickRepo clickRepository
	nowFunc   func() time.Time
}

func NewLinkUseCase(baseURL string, gen codeGenerator, linkRepo linkRepository, clickRepo clickRepository) *LinkUseCase {
	return &LinkUseCase{
		baseURL:   strings.TrimRight(baseURL, "/"),
		gen:       gen,
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		nowFunc:   time.Now,
	}
}

func (uc *LinkUseCase) Create(ctx context.Context, in CreateLinkInput) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.Create"

	if err := validateDestination(in.OriginalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := uc.nowFunc()

	if err := validatePolicy(now, in.ExpiresAt, in.MaxClicks); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var passwordHash string
	if in.Password != "" {
		hash, err := policy.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		passwordHash = hash
	}

	link := &entity.Link{
		OriginalURL:  in.OriginalURL,
		OwnerID:      in.OwnerID,
		Title:        in.Title,
		ExpiresAt:    in.ExpiresAt,
		MaxClicks:    in.MaxClicks,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.CustomCode != "" {
		if err := shortcode.Validate(in.CustomCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		link.ShortCode = in.CustomCode

		saved, err := uc.linkRepo.Save(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		return saved, nil
	}

	for range maxGenerateAttempts {
		code, err := uc.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		link.ShortCode = code

		saved, err := uc.linkRepo.Save(ctx, link)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		return saved, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrCodeSpaceExhausted)
}

// Get returns a link owned by owner. Links of other owners are reported as
// not found.
func (uc *LinkUseCase) Get(ctx context.Context, owner, shortCode string) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.Get"

	link, err := uc.linkRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if owner == "" || link.OwnerID != owner {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return link, nil
}

func (uc *LinkUseCase) UpdatePolicy(ctx context.Context, owner, shortCode string, in UpdateLinkInput) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.UpdatePolicy"

	if _, err := uc.Get(ctx, owner, shortCode); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if in.OriginalURL != nil {
		if err := validateDestination(*in.OriginalURL); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	now := uc.nowFunc()

	var (
		expiresAt *time.Time
		maxClicks *int64
	)
	if !in.ClearExpiresAt {
		expiresAt = in.ExpiresAt
	}
	if !in.ClearMaxClicks {
		maxClicks = in.MaxClicks
	}

	if err := validatePolicy(now, expiresAt, maxClicks); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	upd := entity.LinkUpdate{
		OriginalURL:    in.OriginalURL,
		Title:          in.Title,
		ExpiresAt:      expiresAt,
		ClearExpiresAt: in.ClearExpiresAt,
		MaxClicks:      maxClicks,
		ClearMaxClicks: in.ClearMaxClicks,
		ClearPassword:  in.ClearPassword,
		IsActive:       in.IsActive,
		UpdatedAt:      now,
	}

	if in.Password != nil && !in.ClearPassword {
		hash, err := policy.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upd.PasswordHash = &hash
	}

	link, err := uc.linkRepo.Update(ctx, shortCode, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update link: %w", op, err)
	}

	return link, nil
}

// Stats aggregates clicks of an owned link in [from, to). A zero to means
// now and a zero from means thirty days before to.
func (uc *LinkUseCase) Stats(ctx context.Context, owner, shortCode string, from, to time.Time) (*entity.ClickStats, error) {
	const op = "usecase.LinkUseCase.Stats"

	link, err := uc.Get(ctx, owner, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if to.IsZero() {
		to = uc.nowFunc()
	}
	if from.IsZero() {
		from = to.Add(-defaultStatsWindow)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidTimeRange)
	}

	stats, err := uc.clickRepo.Stats(ctx, link.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get click stats: %w", op, err)
	}

	stats.ShortCode = link.ShortCode

	return stats, nil
}

// List returns a page of the owner's links, newest first, together with
// totals over all of the owner's links.
func (uc *LinkUseCase) List(ctx context.Context, owner string, in ListLinksInput) (*entity.LinkPage, error) {
	const op = "usecase.LinkUseCase.List"

	if !in.Status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidLinkStatus)
	}
	if owner == "" {
		return &entity.LinkPage{Links: []*entity.Link{}}, nil
	}

	page := max(in.Page, 1)
	size := in.PageSize
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}

	links, total, err := uc.linkRepo.ListByOwner(ctx, entity.LinkFilter{
		OwnerID: owner,
		Status:  in.Status,
		Search:  strings.TrimSpace(in.Search),
		Now:     uc.nowFunc(),
		Limit:   size,
		Offset:  (page - 1) * size,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	summary, err := uc.linkRepo.Summary(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to summarize links: %w", op, err)
	}

	return &entity.LinkPage{Links: links, Total: total, Summary: summary}, nil
}

// ShortURL returns the public URL of a short code, the payload handed to QR
// renderers.
func (uc *LinkUseCase) ShortURL(shortCode string) string {
	return uc.baseURL + "/" + shortCode
}

// LookupShortURL returns the public URL of an existing short code.
func (uc *LinkUseCase) LookupShortURL(ctx context.Context, shortCode string) (string, error) {
	const op = "usecase.LinkUseCase.LookupShortURL"

	link, err := uc.linkRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	return uc.ShortURL(link.ShortCode), nil
}

// DeactivateExpired switches off links whose expiration passed.
func (uc *LinkUseCase) DeactivateExpired(ctx context.Context) (int64, error) {
	const op = "usecase.LinkUseCase.DeactivateExpired"

	n, err := uc.linkRepo.DeactivateExpired(ctx, uc.nowFunc())
	if err != nil {
		return 0, fmt.Errorf("%s: failed to deactivate expired links: %w", op, err)
	}

	return n, nil
}

func validateDestination(raw string) error {
	if raw == "" || len(raw) > maxDestinationLength {
		return entity.ErrInvalidDestination
	}

	u, err := url.Parse(raw)
	if err != nil {
		return entity.ErrInvalidDestination
	}

	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return entity.ErrInvalidDestination
	}

	return nil
}

func validatePolicy(now time.Time, expiresAt *time.Time, maxClicks *int64) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return entity.ErrInvalidPolicy
	}
	if maxClicks != nil && *maxClicks <= 0 {
		return entity.ErrInvalidPolicy
	}
	return nil
}
