// Package useragent classifies clients by their User-Agent header.
package useragent

import (
	"strings"
	"unicode/utf8"

	"github.com/mssola/useragent"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// MaxFieldLength is the longest browser or OS name reported. Longer tokens
// come from malformed agents and are reported as Unknown.
const MaxFieldLength = 100

var tabletMarkers = []string{"ipad", "tablet", "kindle", "silk/", "playbook"}

// Parse extracts device type, browser and OS from a User-Agent string.
// Anything the parser cannot tell is reported as Unknown.
func Parse(s string) entity.Device {
	s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
	if s == "" {
		return entity.Device{Type: entity.Unknown, Browser: entity.Unknown, OS: entity.Unknown}
	}

	ua := useragent.New(s)

	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if os == "" {
		os = ua.OS()
	}

	return entity.Device{
		Type:    deviceType(ua, strings.ToLower(s)),
		Browser: orUnknown(browser),
		OS:      orUnknown(os),
	}
}

func deviceType(ua *useragent.UserAgent, lower string) string {
	if ua.Bot() {
		return entity.DeviceBot
	}

	for _, m := range tabletMarkers {
		if strings.Contains(lower, m) {
			return entity.DeviceTablet
		}
	}
	if strings.Contains(lower, "android") && !strings.Contains(lower, "mobile") {
		return entity.DeviceTablet
	}

	if ua.Mobile() {
		return entity.DeviceMobile
	}

	return entity.DeviceDesktop
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" || utf8.RuneCountInString(s) > MaxFieldLength {
		return entity.Unknown
	}
	return s
}
