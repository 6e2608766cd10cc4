package http

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

// issueToken signs an HS256 bearer token for owner.
func issueToken(secret []byte, owner string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type mockLinkUseCase struct {
	mock.Mock
}

func (m *mockLinkUseCase) Create(ctx context.Context, in usecase.CreateLinkInput) (*entity.Link, error) {
	args := m.Called(ctx, in)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkUseCase) Get(ctx context.Context, owner, shortCode string) (*entity.Link, error) {
	args := m.Called(ctx, owner, shortCode)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkUseCase) UpdatePolicy(ctx context.Context, owner, shortCode string, in usecase.UpdateLinkInput) (*entity.Link, error) {
	args := m.Called(ctx, owner, shortCode, in)
	if l := args.Get(0); l != nil {
		return l.(*entity.Link), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkUseCase) Stats(ctx context.Context, owner, shortCode string, from, to time.Time) (*entity.ClickStats, error) {
	args := m.Called(ctx, owner, shortCode, from, to)
	if s := args.Get(0); s != nil {
		return s.(*entity.ClickStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLinkUseCase) ShortURL(shortCode string) string {
	return "https://sho.rt/" + shortCode
}

func (m *mockLinkUseCase) LookupShortURL(ctx context.Context, shortCode string) (string, error) {
	args := m.Called(ctx, shortCode)
	return args.String(0), args.Error(1)
}

func (m *mockLinkUseCase) List(ctx context.Context, owner string, in usecase.ListLinksInput) (*entity.LinkPage, error) {
	args := m.Called(ctx, owner, in)
	if p := args.Get(0); p != nil {
		return p.(*entity.LinkPage), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLinkResolver struct {
	mock.Mock
}

func (m *mockLinkResolver) Resolve(ctx context.Context, shortCode, password string, rc entity.RequestContext) (*usecase.Resolution, error) {
	args := m.Called(ctx, shortCode, password, rc)
	if res := args.Get(0); res != nil {
		return res.(*usecase.Resolution), args.Error(1)
	}
	return nil, args.Error(1)
}
