// Package memory implements link and click storage for a single process.
// It backs development runs and tests where no database is available.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// linkRecord guards one link. Records are never removed from the map.
type linkRecord struct {
	mu   sync.Mutex
	link entity.Link
}

func (rec *linkRecord) snapshot() *entity.Link {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneLink(rec.link)
}

func cloneLink(link entity.Link) *entity.Link {
	if link.ExpiresAt != nil {
		t := *link.ExpiresAt
		link.ExpiresAt = &t
	}
	if link.MaxClicks != nil {
		n := *link.MaxClicks
		link.MaxClicks = &n
	}
	return &link
}

// LinkRepository keeps links in a sync.Map keyed by short code, each behind
// its own mutex.
type LinkRepository struct {
	links  sync.Map
	lastID atomic.Int64
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{}
}

func (r *LinkRepository) load(shortCode string) (*linkRecord, bool) {
	v, ok := r.links.Load(shortCode)
	if !ok {
		return nil, false
	}
	return v.(*linkRecord), true
}

func (r *LinkRepository) Save(ctx context.Context, link *entity.Link) (*entity.Link, error) {
	const op = "adapter.repository.memory.LinkRepository.Save"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec := &linkRecord{link: *cloneLink(*link)}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, loaded := r.links.LoadOrStore(link.ShortCode, rec); loaded {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	rec.link.ID = r.lastID.Add(1)
	rec.link.ClickCount = 0

	return cloneLink(rec.link), nil
}

func (r *LinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.memory.LinkRepository.FindByShortCode"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, ok := r.load(shortCode)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return rec.snapshot(), nil
}

// IncrementClicks counts one click while the link is active, unexpired and
// under its cap. The click that reaches the cap switches the link off.
func (r *LinkRepository) IncrementClicks(ctx context.Context, shortCode string, now time.Time) (*entity.Link, error) {
	const op = "adapter.repository.memory.LinkRepository.IncrementClicks"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, ok := r.load(shortCode)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	link := &rec.link
	if !link.IsActive || link.IsExpired(now) || link.IsExhausted() {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrClickRejected)
	}

	link.ClickCount++
	if link.IsExhausted() {
		link.IsActive = false
	}
	link.UpdatedAt = now

	return cloneLink(*link), nil
}

func (r *LinkRepository) Deactivate(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.memory.LinkRepository.Deactivate"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rec, ok := r.load(shortCode)
	if !ok {
		return false, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.link.IsActive {
		return false, nil
	}

	rec.link.IsActive = false
	rec.link.UpdatedAt = time.Now()

	return true, nil
}

func (r *LinkRepository) Update(ctx context.Context, shortCode string, upd entity.LinkUpdate) (*entity.Link, error) {
	const op = "adapter.repository.memory.LinkRepository.Update"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, ok := r.load(shortCode)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.link = upd.Apply(rec.link)

	return cloneLink(rec.link), nil
}

func (r *LinkRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "adapter.repository.memory.LinkRepository.DeactivateExpired"

	var n int64

	r.links.Range(func(_, v any) bool {
		if ctx.Err() != nil {
			return false
		}

		rec := v.(*linkRecord)
		rec.mu.Lock()
		if rec.link.IsActive && rec.link.IsExpired(now) {
			rec.link.IsActive = false
			rec.link.UpdatedAt = now
			n++
		}
		rec.mu.Unlock()

		return true
	})

	if err := ctx.Err(); err != nil {
		return n, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (r *LinkRepository) snapshots(ownerID string) []*entity.Link {
	var links []*entity.Link

	r.links.Range(func(_, v any) bool {
		link := v.(*linkRecord).snapshot()
		if link.OwnerID == ownerID {
			links = append(links, link)
		}
		return true
	})

	return links
}

// ListByOwner returns one page of the owner's links, newest first, and the
// number of links matching the filter.
func (r *LinkRepository) ListByOwner(ctx context.Context, filter entity.LinkFilter) ([]*entity.Link, int64, error) {
	const op = "adapter.repository.memory.LinkRepository.ListByOwner"

	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	var matched []*entity.Link
	for _, link := range r.snapshots(filter.OwnerID) {
		if filter.Matches(link) {
			matched = append(matched, link)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))

	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}

	return append([]*entity.Link{}, matched[start:end]...), total, nil
}

// Summary totals all links of the owner.
func (r *LinkRepository) Summary(ctx context.Context, ownerID string) (entity.LinkSummary, error) {
	const op = "adapter.repository.memory.LinkRepository.Summary"

	if err := ctx.Err(); err != nil {
		return entity.LinkSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	var sum entity.LinkSummary
	for _, link := range r.snapshots(ownerID) {
		sum.TotalLinks++
		if link.IsActive {
			sum.ActiveLinks++
		}
		sum.TotalClicks += link.ClickCount
	}

	return sum, nil
}
