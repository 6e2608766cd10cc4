package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type mockLocator struct {
	mock.Mock
}

func (m *mockLocator) Locate(ctx context.Context, ip string) (entity.Location, error) {
	args := m.Called(ctx, ip)
	return args.Get(0).(entity.Location), args.Error(1)
}

func TestCachedLocator_Locate(t *testing.T) {
	ctx := context.Background()
	berlin := entity.Location{Country: "Germany", City: "Berlin"}

	t.Run("hit after first lookup", func(t *testing.T) {
		next := new(mockLocator)
		next.On("Locate", ctx, "203.0.113.7").Return(berlin, nil).Once()

		l := NewCachedLocator(next, NewMemoryCache(time.Minute))

		for range 3 {
			loc, err := l.Locate(ctx, "203.0.113.7")
			require.NoError(t, err)
			assert.Equal(t, berlin, loc)
		}

		next.AssertExpectations(t)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		next := new(mockLocator)
		next.On("Locate", ctx, "203.0.113.8").
			Return(entity.Location{}, entity.ErrGeoLookupFailed).Once()
		next.On("Locate", ctx, "203.0.113.8").Return(berlin, nil).Once()

		l := NewCachedLocator(next, NewMemoryCache(time.Minute))

		_, err := l.Locate(ctx, "203.0.113.8")
		assert.True(t, errors.Is(err, entity.ErrGeoLookupFailed))

		loc, err := l.Locate(ctx, "203.0.113.8")
		require.NoError(t, err)
		assert.Equal(t, berlin, loc)

		next.AssertExpectations(t)
	})
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	c.Set("203.0.113.7", entity.Location{Country: "Germany"})

	_, ok := c.Get("203.0.113.7")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = c.Get("203.0.113.7")
	assert.False(t, ok)
}

func TestMemcache_UnreachableIsMiss(t *testing.T) {
	client := memcache.New("127.0.0.1:1")
	client.Timeout = 50 * time.Millisecond
	c := NewMemcache(client, time.Minute)

	c.Set("203.0.113.7", entity.Location{Country: "Germany"})
	_, ok := c.Get("203.0.113.7")

	assert.False(t, ok)
}
