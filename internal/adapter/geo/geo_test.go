package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func TestHTTPLocator_Locate(t *testing.T) {
	t.Run("local addresses skip providers", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer srv.Close()

		l := NewHTTPLocator(srv.Client(), WithPrimaryURL(srv.URL), WithFallbackURL(srv.URL))

		for _, ip := range []string{"127.0.0.1", "::1", "10.0.0.5", "192.168.1.10"} {
			loc, err := l.Locate(context.Background(), ip)
			require.NoError(t, err)
			assert.Equal(t, entity.Location{Country: entity.LocalNetwork, City: entity.LocalNetwork}, loc)
		}
		assert.Zero(t, calls.Load())
	})

	t.Run("invalid ip", func(t *testing.T) {
		l := NewHTTPLocator(nil)

		_, err := l.Locate(context.Background(), "not-an-ip")

		assert.ErrorIs(t, err, entity.ErrGeoLookupFailed)
	})

	t.Run("primary provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/203.0.113.7/json/", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"country_name":"Germany","city":"Berlin"}`))
		}))
		defer srv.Close()

		l := NewHTTPLocator(srv.Client(), WithPrimaryURL(srv.URL), WithFallbackURL("http://127.0.0.1:1"))

		loc, err := l.Locate(context.Background(), "203.0.113.7")

		require.NoError(t, err)
		assert.Equal(t, entity.Location{Country: "Germany", City: "Berlin"}, loc)
	})

	t.Run("fallback provider", func(t *testing.T) {
		primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer primary.Close()

		fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/json/203.0.113.7", r.URL.Path)
			w.Write([]byte(`{"status":"success","country":"France","city":""}`))
		}))
		defer fallback.Close()

		l := NewHTTPLocator(http.DefaultClient, WithPrimaryURL(primary.URL), WithFallbackURL(fallback.URL))

		loc, err := l.Locate(context.Background(), "203.0.113.7")

		require.NoError(t, err)
		assert.Equal(t, entity.Location{Country: "France", City: entity.Unknown}, loc)
	})

	t.Run("all providers fail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/json/203.0.113.7" {
				w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
				return
			}
			w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
		}))
		defer srv.Close()

		l := NewHTTPLocator(srv.Client(), WithPrimaryURL(srv.URL), WithFallbackURL(srv.URL))

		_, err := l.Locate(context.Background(), "203.0.113.7")

		assert.ErrorIs(t, err, entity.ErrGeoLookupFailed)
	})

	t.Run("context deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		l := NewHTTPLocator(srv.Client(), WithPrimaryURL(srv.URL), WithFallbackURL(srv.URL))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := l.Locate(ctx, "203.0.113.7")

		assert.ErrorIs(t, err, entity.ErrGeoLookupFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
