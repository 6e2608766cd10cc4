package entity

import "errors"

var (
	// ErrInvalidDestination is returned when the destination is not an absolute http(s) URL.
	ErrInvalidDestination = errors.New("invalid destination url")
	// ErrInvalidShortCode is returned when a custom short code has a bad length or characters.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrReservedShortCode is returned when a custom short code collides with a reserved path segment.
	ErrReservedShortCode = errors.New("reserved short code")
	// ErrInvalidPolicy is returned when the access policy of a link cannot be applied.
	ErrInvalidPolicy = errors.New("invalid link policy")
	// ErrShortCodeExists is returned when attempting to save a link with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrCodeSpaceExhausted is returned when no free short code was found within the retry budget.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
	// ErrLinkNotFound is returned when a link with the specified short code cannot be found.
	ErrLinkNotFound = errors.New("link not found")
	// ErrInvalidTimeRange is returned when an analytics window ends before it starts.
	ErrInvalidTimeRange = errors.New("invalid time range")
	// ErrClickRejected is returned by a guarded increment that lost the race against
	// deactivation, expiration or the click cap.
	ErrClickRejected = errors.New("click rejected")
	// ErrGeoLookupFailed is returned by geo locators; recorders swallow it.
	ErrGeoLookupFailed = errors.New("geo lookup failed")
	// ErrRecorderPersistFailed wraps click persistence failures; it is only logged.
	ErrRecorderPersistFailed = errors.New("click persist failed")
)

// ErrInvalidLinkStatus is returned when a listing asks for an unknown status.
var ErrInvalidLinkStatus = errors.New("invalid link status")
