package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// ClickRepository keeps click events grouped by link.
type ClickRepository struct {
	mu     sync.RWMutex
	clicks map[int64][]entity.ClickEvent
}

func NewClickRepository() *ClickRepository {
	return &ClickRepository{clicks: make(map[int64][]entity.ClickEvent)}
}

func (r *ClickRepository) SaveClick(ctx context.Context, click *entity.ClickEvent) error {
	const op = "adapter.repository.memory.ClickRepository.SaveClick"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clicks[click.LinkID] = append(r.clicks[click.LinkID], *click)

	return nil
}

// Stats aggregates the clicks of a link recorded in [from, to).
func (r *ClickRepository) Stats(ctx context.Context, linkID int64, from, to time.Time) (*entity.ClickStats, error) {
	const op = "adapter.repository.memory.ClickRepository.Stats"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		visitors  = make(map[string]struct{})
		days      = make(map[string]int64)
		countries = make(map[string]int64)
		devices   = make(map[string]int64)
		browsers  = make(map[string]int64)
		oses      = make(map[string]int64)
		referrers = make(map[string]int64)
		stats     = &entity.ClickStats{From: from, To: to}
	)

	for _, c := range r.clicks[linkID] {
		if c.ClickedAt.Before(from) || !c.ClickedAt.Before(to) {
			continue
		}

		stats.TotalClicks++
		visitors[c.IPAddress] = struct{}{}
		days[c.ClickedAt.UTC().Format(time.DateOnly)]++
		countries[orDefault(c.Country, entity.Unknown)]++
		devices[c.DeviceType]++
		browsers[c.Browser]++
		oses[c.OS]++
		referrers[orDefault(&c.Referrer, entity.DirectTraffic)]++
	}

	stats.UniqueVisitors = int64(len(visitors))
	stats.Daily = sortByKey(days)
	stats.Countries = sortByCount(countries)
	stats.Devices = sortByCount(devices)
	stats.Browsers = sortByCount(browsers)
	stats.OSes = sortByCount(oses)
	stats.Referrers = sortByCount(referrers)

	return stats, nil
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func toBuckets(m map[string]int64) []entity.Bucket {
	buckets := make([]entity.Bucket, 0, len(m))
	for k, v := range m {
		buckets = append(buckets, entity.Bucket{Key: k, Count: v})
	}
	return buckets
}

func sortByKey(m map[string]int64) []entity.Bucket {
	buckets := toBuckets(m)
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

func sortByCount(m map[string]int64) []entity.Bucket {
	buckets := toBuckets(m)
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}
