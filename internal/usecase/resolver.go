package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/policy"
)

// maxResolveAttempts bounds re-evaluation after losing an increment race.
const maxResolveAttempts = 3

type policyEvaluator interface {
	Evaluate(link *entity.Link, password string) policy.Verdict
}

type clickRecorder interface {
	Record(link *entity.Link, rc entity.RequestContext)
}

// Resolution is the outcome of resolving a short code. Exactly one of
// Destination and Reason is set.
type Resolution struct {
	Destination string
	Reason      entity.DenyReason
}

// Allowed reports whether the resolution permits a redirect.
func (r *Resolution) Allowed() bool {
	return r.Reason == ""
}

// Resolver turns short codes into destinations, enforcing access policies
// and counting every permitted resolution exactly once.
type Resolver struct {
	linkRepo linkRepository
	policy   policyEvaluator
	recorder clickRecorder
	logger   *slog.Logger
	nowFunc  func() time.Time
}

func NewResolver(linkRepo linkRepository, engine policyEvaluator, recorder clickRecorder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		linkRepo: linkRepo,
		policy:   engine,
		recorder: recorder,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

func (r *Resolver) Resolve(ctx context.Context, shortCode, password string, rc entity.RequestContext) (*Resolution, error) {
	const op = "usecase.Resolver.Resolve"

	for range maxResolveAttempts {
		link, err := r.linkRepo.FindByShortCode(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to find link: %w", op, err)
		}

		verdict := r.policy.Evaluate(link, password)
		if !verdict.Allowed {
			if verdict.Deactivate {
				r.deactivate(ctx, shortCode, verdict.Reason)
			}
			return &Resolution{Reason: verdict.Reason}, nil
		}

		now := r.nowFunc()

		updated, err := r.linkRepo.IncrementClicks(ctx, shortCode, now)
		if err != nil {
			if errors.Is(err, entity.ErrClickRejected) {
				continue
			}
			return nil, fmt.Errorf("%s: failed to count click: %w", op, err)
		}

		if rc.Time.IsZero() {
			rc.Time = now
		}
		r.recorder.Record(updated, rc)

		return &Resolution{Destination: updated.OriginalURL}, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrClickRejected)
}

func (r *Resolver) deactivate(ctx context.Context, shortCode string, reason entity.DenyReason) {
	changed, err := r.linkRepo.Deactivate(ctx, shortCode)
	if err != nil {
		r.logger.Warn("failed to deactivate link",
			slog.String("short_code", shortCode),
			slog.Any("err", err),
		)
		return
	}

	if changed {
		r.logger.Info("link deactivated",
			slog.String("short_code", shortCode),
			slog.String("reason", string(reason)),
		)
	}
}
