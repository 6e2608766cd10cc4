//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vadimbarashkov/shortlink/internal/entity"

	pgpkg "github.com/vadimbarashkov/shortlink/pkg/postgres"
)

const migrationsPath = "file://../../../../migrations"

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	pgCont    testcontainers.Container
	db        *sqlx.DB
	linkRepo  *LinkRepository
	clickRepo *ClickRepository
}

func (suite *RepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	var err error
	suite.pgCont, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "shortlink",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.pgCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := suite.pgCont.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container host: %v", err)
	}

	port, err := suite.pgCont.MappedPort(ctx, "5432")
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%d/shortlink?sslmode=disable", host, port.Int())

	suite.db, err = pgpkg.Connect(ctx, dsn, pgpkg.WithMaxOpenConns(50))
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}
	suite.T().Cleanup(func() {
		suite.db.Close()
	})

	if _, err := pgpkg.Migrate(migrationsPath, dsn); err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}

	suite.linkRepo = NewLinkRepository(suite.db)
	suite.clickRepo = NewClickRepository(suite.db)
}

func (suite *RepositoryIntegrationTestSuite) TearDownSubTest() {
	_, err := suite.db.ExecContext(context.Background(), `TRUNCATE TABLE links RESTART IDENTITY CASCADE`)
	if err != nil {
		suite.T().Fatalf("Failed to clean links table: %v", err)
	}
}

func (suite *RepositoryIntegrationTestSuite) saveLink(code string, maxClicks *int64, expiresAt *time.Time) *entity.Link {
	now := time.Now().UTC()
	link, err := suite.linkRepo.Save(context.Background(), &entity.Link{
		ShortCode:   code,
		OriginalURL: "https://example.com",
		OwnerID:     "owner-1",
		MaxClicks:   maxClicks,
		ExpiresAt:   expiresAt,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		suite.T().Fatalf("Failed to save link: %v", err)
	}
	return link
}

func (suite *RepositoryIntegrationTestSuite) TestSaveDuplicate() {
	suite.Run("second insert is rejected", func() {
		suite.saveLink("abc123", nil, nil)

		_, err := suite.linkRepo.Save(context.Background(), &entity.Link{
			ShortCode:   "abc123",
			OriginalURL: "https://other.example.com",
			IsActive:    true,
		})

		suite.ErrorIs(err, entity.ErrShortCodeExists)
	})
}

func (suite *RepositoryIntegrationTestSuite) TestIncrementClicksConcurrently() {
	suite.Run("cap holds under contention", func() {
		maxClicks := int64(5)
		suite.saveLink("capped", &maxClicks, nil)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := suite.linkRepo.IncrementClicks(context.Background(), "capped", time.Now()); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		link, err := suite.linkRepo.FindByShortCode(context.Background(), "capped")
		suite.Require().NoError(err)
		suite.Equal(5, accepted)
		suite.Equal(int64(5), link.ClickCount)
		suite.False(link.IsActive)
	})

	suite.Run("no lost updates", func() {
		suite.saveLink("busy", nil, nil)

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = suite.linkRepo.IncrementClicks(context.Background(), "busy", time.Now())
			}()
		}
		wg.Wait()

		link, err := suite.linkRepo.FindByShortCode(context.Background(), "busy")
		suite.Require().NoError(err)
		suite.Equal(int64(50), link.ClickCount)
		suite.True(link.IsActive)
	})
}

func (suite *RepositoryIntegrationTestSuite) TestExpiry() {
	suite.Run("expired link is never counted", func() {
		past := time.Now().Add(-time.Minute)
		suite.saveLink("old", nil, &past)

		_, err := suite.linkRepo.IncrementClicks(context.Background(), "old", time.Now())
		suite.ErrorIs(err, entity.ErrClickRejected)

		n, err := suite.linkRepo.DeactivateExpired(context.Background(), time.Now())
		suite.NoError(err)
		suite.Equal(int64(1), n)

		link, err := suite.linkRepo.FindByShortCode(context.Background(), "old")
		suite.Require().NoError(err)
		suite.Zero(link.ClickCount)
		suite.False(link.IsActive)
	})
}

func (suite *RepositoryIntegrationTestSuite) TestStats() {
	suite.Run("aggregates clicks", func() {
		link := suite.saveLink("stats", nil, nil)
		day := time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC)
		germany := "Germany"

		clicks := []*entity.ClickEvent{
			{ID: "0b8f7a5e-0000-4000-8000-000000000001", IPAddress: "203.0.113.1", Country: &germany, Referrer: "https://news.example.com"},
			{ID: "0b8f7a5e-0000-4000-8000-000000000002", IPAddress: "203.0.113.1", Country: &germany},
			{ID: "0b8f7a5e-0000-4000-8000-000000000003", IPAddress: "203.0.113.2"},
		}
		for i, c := range clicks {
			c.LinkID = link.ID
			c.ShortCode = link.ShortCode
			c.ClickedAt = day.Add(time.Duration(i) * time.Hour)
			c.DeviceType = entity.DeviceDesktop
			c.Browser = "Firefox"
			c.OS = "Linux"
			suite.Require().NoError(suite.clickRepo.SaveClick(context.Background(), c))
		}

		stats, err := suite.clickRepo.Stats(context.Background(), link.ID, day.Add(-time.Hour), day.Add(24*time.Hour))

		suite.Require().NoError(err)
		suite.Equal(int64(3), stats.TotalClicks)
		suite.Equal(int64(2), stats.UniqueVisitors)
		suite.Equal([]entity.Bucket{{Key: "2026-10-02", Count: 3}}, stats.Daily)
		suite.Equal([]entity.Bucket{{Key: "Germany", Count: 2}, {Key: entity.Unknown, Count: 1}}, stats.Countries)
		suite.Equal([]entity.Bucket{{Key: entity.DirectTraffic, Count: 2}, {Key: "https://news.example.com", Count: 1}}, stats.Referrers)
	})
}

func (suite *RepositoryIntegrationTestSuite) TestListByOwner() {
	suite.Run("filters pages and totals", func() {
		ctx := context.Background()
		now := time.Now().UTC()
		past := now.Add(-time.Minute)

		suite.saveLink("first", nil, nil)
		suite.saveLink("gone", nil, &past)
		suite.saveLink("100xpct", nil, nil)
		suite.saveLink("last", nil, nil)

		_, err := suite.linkRepo.IncrementClicks(ctx, "first", now)
		suite.Require().NoError(err)
		_, err = suite.linkRepo.Deactivate(ctx, "last")
		suite.Require().NoError(err)

		links, total, err := suite.linkRepo.ListByOwner(ctx, entity.LinkFilter{OwnerID: "owner-1", Now: now, Limit: 2})
		suite.Require().NoError(err)
		suite.Equal(int64(4), total)
		suite.Require().Len(links, 2)
		suite.Equal("last", links[0].ShortCode)

		links, total, err = suite.linkRepo.ListByOwner(ctx, entity.LinkFilter{OwnerID: "owner-1", Status: entity.LinkStatusExpired, Now: now, Limit: 20})
		suite.Require().NoError(err)
		suite.Equal(int64(1), total)
		suite.Require().Len(links, 1)
		suite.Equal("gone", links[0].ShortCode)

		links, _, err = suite.linkRepo.ListByOwner(ctx, entity.LinkFilter{OwnerID: "owner-1", Status: entity.LinkStatusInactive, Now: now, Limit: 20})
		suite.Require().NoError(err)
		suite.Require().Len(links, 1)
		suite.Equal("last", links[0].ShortCode)

		links, _, err = suite.linkRepo.ListByOwner(ctx, entity.LinkFilter{OwnerID: "owner-1", Search: "0XP", Now: now, Limit: 20})
		suite.Require().NoError(err)
		suite.Require().Len(links, 1)
		suite.Equal("100xpct", links[0].ShortCode)

		// "_" matches literally, not as a wildcard.
		links, _, err = suite.linkRepo.ListByOwner(ctx, entity.LinkFilter{OwnerID: "owner-1", Search: "0_p", Now: now, Limit: 20})
		suite.Require().NoError(err)
		suite.Empty(links)

		links, total, err = suite.linkRepo.ListByOwner(ctx, entity.LinkFilter{OwnerID: "owner-2", Now: now, Limit: 20})
		suite.Require().NoError(err)
		suite.Zero(total)
		suite.Empty(links)

		sum, err := suite.linkRepo.Summary(ctx, "owner-1")
		suite.Require().NoError(err)
		suite.Equal(entity.LinkSummary{TotalLinks: 4, ActiveLinks: 3, TotalClicks: 1}, sum)
	})
}

func TestRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}
