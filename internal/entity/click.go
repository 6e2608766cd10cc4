package entity

import "time"

const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
	DeviceBot     = "Bot"
	Unknown       = "Unknown"
	LocalNetwork  = "Local"
	DirectTraffic = "direct"
)

// ClickEvent is the immutable record of one successful resolution.
type ClickEvent struct {
	ID         string
	LinkID     int64
	ShortCode  string
	ClickedAt  time.Time
	IPAddress  string
	UserAgent  string
	Referrer   string
	Country    *string // nil when the location is unknown
	City       *string
	DeviceType string
	Browser    string
	OS         string
}

// Location is a best-effort geographic position of a client.
type Location struct {
	Country string
	City    string
}

// Device is the classification of a user agent string.
type Device struct {
	Type    string
	Browser string
	OS      string
}

// ClickStats holds aggregated click analytics of a single link.
type ClickStats struct {
	ShortCode      string
	TotalClicks    int64
	UniqueVisitors int64
	From           time.Time
	To             time.Time
	Daily          []Bucket
	Countries      []Bucket
	Devices        []Bucket
	Browsers       []Bucket
	OSes           []Bucket
	Referrers      []Bucket
}

// Bucket is a single group of a click breakdown.
type Bucket struct {
	Key   string
	Count int64
}
