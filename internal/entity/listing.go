package entity

import (
	"strings"
	"time"
)

// LinkStatus narrows an owner listing.
type LinkStatus string

const (
	LinkStatusAll      LinkStatus = ""
	LinkStatusActive   LinkStatus = "active"
	LinkStatusInactive LinkStatus = "inactive"
	LinkStatusExpired  LinkStatus = "expired"
)

// Valid reports whether s is a known status.
func (s LinkStatus) Valid() bool {
	switch s {
	case LinkStatusAll, LinkStatusActive, LinkStatusInactive, LinkStatusExpired:
		return true
	}
	return false
}

// LinkFilter selects a page of one owner's links, newest first.
type LinkFilter struct {
	OwnerID string
	Status  LinkStatus
	Search  string // Search matches short code, destination or title, case-insensitively.
	Now     time.Time
	Limit   int
	Offset  int
}

// Matches reports whether link passes the status and search parts of f.
func (f LinkFilter) Matches(link *Link) bool {
	if link.OwnerID != f.OwnerID {
		return false
	}

	switch f.Status {
	case LinkStatusActive:
		if !link.IsActive {
			return false
		}
	case LinkStatusInactive:
		if link.IsActive {
			return false
		}
	case LinkStatusExpired:
		if !link.IsExpired(f.Now) {
			return false
		}
	}

	if f.Search == "" {
		return true
	}

	return containsFold(link.ShortCode, f.Search) ||
		containsFold(link.OriginalURL, f.Search) ||
		containsFold(link.Title, f.Search)
}

// LinkSummary totals every link of an owner, regardless of any filter.
type LinkSummary struct {
	TotalLinks  int64
	ActiveLinks int64
	TotalClicks int64
}

// LinkPage is one page of an owner listing.
type LinkPage struct {
	Links   []*Link
	Total   int64 // Total counts the links matching the filter across all pages.
	Summary LinkSummary
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
