package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinkFilter_Matches(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	active := &Link{OwnerID: "alice", ShortCode: "promo1", OriginalURL: "https://example.com/Sale", IsActive: true, ExpiresAt: &future}
	inactive := &Link{OwnerID: "alice", ShortCode: "old123", OriginalURL: "https://example.com", Title: "Old Launch"}
	expired := &Link{OwnerID: "alice", ShortCode: "gone12", OriginalURL: "https://example.com", ExpiresAt: &past}
	foreign := &Link{OwnerID: "bob", ShortCode: "promo2", OriginalURL: "https://example.com", IsActive: true}

	tests := []struct {
		name   string
		filter LinkFilter
		link   *Link
		want   bool
	}{
		{name: "all", filter: LinkFilter{OwnerID: "alice"}, link: inactive, want: true},
		{name: "other owner", filter: LinkFilter{OwnerID: "alice"}, link: foreign, want: false},
		{name: "active matches active", filter: LinkFilter{OwnerID: "alice", Status: LinkStatusActive}, link: active, want: true},
		{name: "active skips inactive", filter: LinkFilter{OwnerID: "alice", Status: LinkStatusActive}, link: inactive, want: false},
		{name: "inactive matches inactive", filter: LinkFilter{OwnerID: "alice", Status: LinkStatusInactive}, link: inactive, want: true},
		{name: "expired matches expired", filter: LinkFilter{OwnerID: "alice", Status: LinkStatusExpired, Now: now}, link: expired, want: true},
		{name: "expired skips future", filter: LinkFilter{OwnerID: "alice", Status: LinkStatusExpired, Now: now}, link: active, want: false},
		{name: "expired skips no expiration", filter: LinkFilter{OwnerID: "alice", Status: LinkStatusExpired, Now: now}, link: inactive, want: false},
		{name: "search destination", filter: LinkFilter{OwnerID: "alice", Search: "sale"}, link: active, want: true},
		{name: "search title", filter: LinkFilter{OwnerID: "alice", Search: "LAUNCH"}, link: inactive, want: true},
		{name: "search code", filter: LinkFilter{OwnerID: "alice", Search: "gone"}, link: expired, want: true},
		{name: "search miss", filter: LinkFilter{OwnerID: "alice", Search: "nothing"}, link: active, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.link))
		})
	}
}

func TestLinkStatus_Valid(t *testing.T) {
	for _, s := range []LinkStatus{LinkStatusAll, LinkStatusActive, LinkStatusInactive, LinkStatusExpired} {
		assert.True(t, s.Valid())
	}
	assert.False(t, LinkStatus("archived").Valid())
}
