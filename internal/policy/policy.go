// Package policy decides whether a resolution attempt of a link is allowed.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest password bcrypt accepts.
const MaxPasswordLength = 72

// Verdict is the outcome of a single access attempt.
type Verdict struct {
	Allowed bool
	Reason  entity.DenyReason
	// Deactivate is set when the link crossed its expiration or click cap
	// but is still flagged active.
	Deactivate bool
}

// Allow is the verdict of a permitted attempt.
var Allow = Verdict{Allowed: true}

// Deny returns a verdict refusing the attempt for reason.
func Deny(reason entity.DenyReason) Verdict {
	return Verdict{Reason: reason}
}

// Engine evaluates access policies of links.
type Engine struct {
	nowFunc func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{nowFunc: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the verdict for resolving link with the supplied password.
//
// Exhaustion (expiration, click cap) is reported before the active flag, so a
// link switched off by its own policy keeps explaining why. The password is
// checked last: a wrong password on a dead link reports the dead link.
func (e *Engine) Evaluate(link *entity.Link, password string) Verdict {
	var reason entity.DenyReason

	switch {
	case link.IsExpired(e.nowFunc()):
		reason = entity.DenyExpired
	case link.IsExhausted():
		reason = entity.DenyClickLimitReached
	case !link.IsActive:
		return Deny(entity.DenyInactive)
	case link.HasPassword() && password == "":
		return Deny(entity.DenyPasswordRequired)
	case link.HasPassword() && !CheckPassword(link.PasswordHash, password):
		return Deny(entity.DenyPasswordIncorrect)
	default:
		return Allow
	}

	return Verdict{Reason: reason, Deactivate: link.IsActive}
}

// HashPassword hashes a link password with bcrypt.
func HashPassword(password string) (string, error) {
	const op = "policy.HashPassword"

	if password == "" || len(password) > MaxPasswordLength {
		return "", fmt.Errorf("%s: %w", op, entity.ErrInvalidPolicy)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%s: %w", op, entity.ErrInvalidPolicy)
		}
		return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
