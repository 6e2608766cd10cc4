// Package entity defines the entities and errors used in the application.
// It includes the Link struct, which binds a short code to a destination and
// its access policy, the ClickEvent recorded for every successful resolution
// and the deny reasons reported when a resolution is refused.
package entity

import "time"

// Link represents a shortened URL together with its access policy.
type Link struct {
	ID           int64      // ID is the unique identifier of the link in the database.
	ShortCode    string     // ShortCode is unique and never changes once assigned.
	OriginalURL  string     // OriginalURL is the destination the short code resolves to.
	OwnerID      string     // OwnerID is the owning user, empty for anonymous links.
	Title        string     // Title is an optional human readable label.
	ExpiresAt    *time.Time // ExpiresAt is the optional instant after which the link stops resolving.
	MaxClicks    *int64     // MaxClicks is the optional number of allowed resolutions.
	PasswordHash string     // PasswordHash is the bcrypt hash of the link password, empty when unprotected.
	IsActive     bool       // IsActive is false once the link was deactivated.
	ClickCount   int64      // ClickCount is the number of successful resolutions.
	CreatedAt    time.Time  // CreatedAt is the timestamp when the link was created.
	UpdatedAt    time.Time  // UpdatedAt is the timestamp when the link was last updated.
}

// HasPassword reports whether the link is password protected.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != ""
}

// IsExpired reports whether the link expiration is at or before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// IsExhausted reports whether the link reached its click cap.
func (l *Link) IsExhausted() bool {
	return l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks
}

// LinkUpdate carries owner-initiated edits. Nil fields are left unchanged,
// the Clear flags remove an optional policy field.
type LinkUpdate struct {
	OriginalURL    *string
	Title          *string
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	MaxClicks      *int64
	ClearMaxClicks bool
	PasswordHash   *string
	ClearPassword  bool
	IsActive       *bool
	UpdatedAt      time.Time
}

// Apply returns a copy of link with the update applied.
func (u LinkUpdate) Apply(link Link) Link {
	if u.OriginalURL != nil {
		link.OriginalURL = *u.OriginalURL
	}
	if u.Title != nil {
		link.Title = *u.Title
	}
	if u.ClearExpiresAt {
		link.ExpiresAt = nil
	} else if u.ExpiresAt != nil {
		t := *u.ExpiresAt
		link.ExpiresAt = &t
	}
	if u.ClearMaxClicks {
		link.MaxClicks = nil
	} else if u.MaxClicks != nil {
		n := *u.MaxClicks
		link.MaxClicks = &n
	}
	if u.ClearPassword {
		link.PasswordHash = ""
	} else if u.PasswordHash != nil {
		link.PasswordHash = *u.PasswordHash
	}
	if u.IsActive != nil {
		link.IsActive = *u.IsActive
	}
	link.UpdatedAt = u.UpdatedAt
	return link
}

// DenyReason explains why a resolution attempt was refused.
type DenyReason string

const (
	DenyInactive          DenyReason = "inactive"
	DenyExpired           DenyReason = "expired"
	DenyClickLimitReached DenyReason = "click_limit_reached"
	DenyPasswordRequired  DenyReason = "password_required"
	DenyPasswordIncorrect DenyReason = "password_incorrect"
)

// RequestContext describes the client behind a resolution attempt.
type RequestContext struct {
	IP        string
	UserAgent string
	Referrer  string
	Time      time.Time
}
