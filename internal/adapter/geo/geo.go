// Package geo resolves client IP addresses to approximate locations.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	defaultPrimaryURL  = "https://ipapi.co"
	defaultFallbackURL = "http://ip-api.com"
)

// Locator resolves an IP address to a location.
type Locator interface {
	Locate(ctx context.Context, ip string) (entity.Location, error)
}

// provider is a single lookup endpoint and the way its answer is decoded.
type provider struct {
	name   string
	url    func(ip string) string
	decode func(r io.Reader) (entity.Location, error)
}

// HTTPLocator queries ipapi.co and falls back to ip-api.com.
// Loopback and private addresses resolve to the Local location without a request.
type HTTPLocator struct {
	client    *http.Client
	providers []provider
}

type HTTPOption func(*httpConfig)

type httpConfig struct {
	primaryURL  string
	fallbackURL string
}

// WithPrimaryURL overrides the ipapi.co base URL.
func WithPrimaryURL(url string) HTTPOption {
	return func(c *httpConfig) {
		c.primaryURL = strings.TrimRight(url, "/")
	}
}

// WithFallbackURL overrides the ip-api.com base URL.
func WithFallbackURL(url string) HTTPOption {
	return func(c *httpConfig) {
		c.fallbackURL = strings.TrimRight(url, "/")
	}
}

func NewHTTPLocator(client *http.Client, opts ...HTTPOption) *HTTPLocator {
	cfg := httpConfig{
		primaryURL:  defaultPrimaryURL,
		fallbackURL: defaultFallbackURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPLocator{
		client: client,
		providers: []provider{
			{
				name:   "ipapi.co",
				url:    func(ip string) string { return cfg.primaryURL + "/" + ip + "/json/" },
				decode: decodeIPAPI,
			},
			{
				name:   "ip-api.com",
				url:    func(ip string) string { return cfg.fallbackURL + "/json/" + ip },
				decode: decodeIPAPICom,
			},
		},
	}
}

func (l *HTTPLocator) Locate(ctx context.Context, ip string) (entity.Location, error) {
	const op = "adapter.geo.HTTPLocator.Locate"

	addr := net.ParseIP(ip)
	if addr == nil {
		return entity.Location{}, fmt.Errorf("%s: invalid ip %q: %w", op, ip, entity.ErrGeoLookupFailed)
	}

	if isLocal(addr) {
		return entity.Location{Country: entity.LocalNetwork, City: entity.LocalNetwork}, nil
	}

	var errs []string
	for _, p := range l.providers {
		loc, err := l.query(ctx, p, addr.String())
		if err == nil {
			return loc, nil
		}
		if ctx.Err() != nil {
			return entity.Location{}, fmt.Errorf("%s: %w: %w", op, entity.ErrGeoLookupFailed, ctx.Err())
		}
		errs = append(errs, fmt.Sprintf("%s: %v", p.name, err))
	}

	return entity.Location{}, fmt.Errorf("%s: %w: %s", op, entity.ErrGeoLookupFailed, strings.Join(errs, "; "))
}

func (l *HTTPLocator) query(ctx context.Context, p provider, ip string) (entity.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(ip), nil)
	if err != nil {
		return entity.Location{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return entity.Location{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entity.Location{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return p.decode(resp.Body)
}

func decodeIPAPI(r io.Reader) (entity.Location, error) {
	var body struct {
		Error       bool   `json:"error"`
		Reason      string `json:"reason"`
		CountryName string `json:"country_name"`
		City        string `json:"city"`
	}

	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return entity.Location{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Error {
		return entity.Location{}, fmt.Errorf("provider error: %s", body.Reason)
	}

	return location(body.CountryName, body.City), nil
}

func decodeIPAPICom(r io.Reader) (entity.Location, error) {
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Country string `json:"country"`
		City    string `json:"city"`
	}

	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return entity.Location{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Status != "success" {
		return entity.Location{}, fmt.Errorf("provider error: %s", body.Message)
	}

	return location(body.Country, body.City), nil
}

func location(country, city string) entity.Location {
	if country == "" {
		country = entity.Unknown
	}
	if city == "" {
		city = entity.Unknown
	}
	return entity.Location{Country: country, City: city}
}

func isLocal(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
