package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type mockLinkRepository struct {
	mock.Mock
}

func (m *mockLinkRepository) Save(ctx context.Context, link *entity.Link) (*entity.Link, error) {
	args := m.Called(ctx, link)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	args := m.Called(ctx, shortCode)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkRepository) IncrementClicks(ctx context.Context, shortCode string, now time.Time) (*entity.Link, error) {
	args := m.Called(ctx, shortCode, now)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkRepository) Deactivate(ctx context.Context, shortCode string) (bool, error) {
	args := m.Called(ctx, shortCode)
	return args.Bool(0), args.Error(1)
}

func (m *mockLinkRepository) Update(ctx context.Context, shortCode string, upd entity.LinkUpdate) (*entity.Link, error) {
	args := m.Called(ctx, shortCode, upd)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLinkRepository) ListByOwner(ctx context.Context, filter entity.LinkFilter) ([]*entity.Link, int64, error) {
	args := m.Called(ctx, filter)
	if l := args.Get(0); l != nil {
		return l.([]*entity.Link), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *mockLinkRepository) Summary(ctx context.Context, ownerID string) (entity.LinkSummary, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(entity.LinkSummary), args.Error(1)
}

type mockClickRepository struct {
	mock.Mock
}

func (m *mockClickRepository) Stats(ctx context.Context, linkID int64, from, to time.Time) (*entity.ClickStats, error) {
	args := m.Called(ctx, linkID, from, to)
	if s := args.Get(0); s != nil {
		return s.(*entity.ClickStats), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCodeGenerator struct {
	mock.Mock
}

func (m *mockCodeGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// recorderSpy counts recorded clicks without a worker pool.
type recorderSpy struct {
	mu     sync.Mutex
	clicks []entity.RequestContext
}

func (s *recorderSpy) Record(_ *entity.Link, rc entity.RequestContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, rc)
}

func (s *recorderSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clicks)
}
