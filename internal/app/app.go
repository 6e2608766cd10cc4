// Package app wires the link shortener together and runs it until the
// context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-chi/httplog/v2"
	"github.com/robfig/cron"
	"github.com/vadimbarashkov/shortlink/internal/adapter/geo"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/policy"
	"github.com/vadimbarashkov/shortlink/internal/recorder"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/shortlink/pkg/postgres"
)

type linkRepository interface {
	Save(ctx context.Context, link *entity.Link) (*entity.Link, error)
	FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	IncrementClicks(ctx context.Context, shortCode string, now time.Time) (*entity.Link, error)
	Deactivate(ctx context.Context, shortCode string) (bool, error)
	Update(ctx context.Context, shortCode string, upd entity.LinkUpdate) (*entity.Link, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	ListByOwner(ctx context.Context, filter entity.LinkFilter) ([]*entity.Link, int64, error)
	Summary(ctx context.Context, ownerID string) (entity.LinkSummary, error)
}

type clickRepository interface {
	SaveClick(ctx context.Context, click *entity.ClickEvent) error
	Stats(ctx context.Context, linkID int64, from, to time.Time) (*entity.ClickStats, error)
}

type storage struct {
	links  linkRepository
	clicks clickRepository
	close  func() error
}

func newLogger(cfg *config.Config) *httplog.Logger {
	opts := httplog.Options{
		LogLevel:       slog.LevelInfo,
		JSON:           true,
		RequestHeaders: false,
	}

	if cfg.Env == config.EnvDev {
		opts.LogLevel = slog.LevelDebug
		opts.JSON = false
		opts.Concise = true
	}

	return httplog.NewLogger("shortlink", opts)
}

func newStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	const op = "app.newStorage"

	if cfg.Storage == config.StorageMemory {
		return &storage{
			links:  memory.NewLinkRepository(),
			clicks: memory.NewClickRepository(),
			close:  func() error { return nil },
		}, nil
	}

	db, err := pgpkg.Connect(
		ctx,
		cfg.Postgres.DSN(),
		pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	version, err := pgpkg.Migrate(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	logger.Info("database schema is up to date", slog.Uint64("version", uint64(version)))

	return &storage{
		links:  postgres.NewLinkRepository(db),
		clicks: postgres.NewClickRepository(db),
		close:  db.Close,
	}, nil
}

// newLocator returns nil when geolocation is disabled.
func newLocator(cfg config.Geo, timeout time.Duration) geo.Locator {
	if !cfg.Enabled {
		return nil
	}

	locator := geo.NewHTTPLocator(
		&http.Client{Timeout: timeout},
		geo.WithPrimaryURL(cfg.PrimaryURL),
		geo.WithFallbackURL(cfg.FallbackURL),
	)

	var cache geo.Cache = geo.NewMemoryCache(cfg.CacheTTL)
	if cfg.MemcacheAddr != "" {
		cache = geo.NewMemcache(memcache.New(cfg.MemcacheAddr), cfg.CacheTTL)
	}

	return geo.NewCachedLocator(locator, cache)
}

// newSweeper schedules the deactivation of expired links. It returns nil
// when no schedule is configured.
func newSweeper(ctx context.Context, cfg config.Sweeper, links *usecase.LinkUseCase, logger *slog.Logger) (*cron.Cron, error) {
	const op = "app.newSweeper"

	if cfg.Schedule == "" {
		return nil, nil
	}

	c := cron.New()

	err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		n, err := links.DeactivateExpired(ctx)
		if err != nil {
			logger.Error("failed to sweep expired links", slog.Any("err", err))
			return
		}
		if n > 0 {
			logger.Info("expired links deactivated", slog.Int64("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: invalid schedule %q: %w", op, cfg.Schedule, err)
	}

	return c, nil
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	store, err := newStorage(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer store.close()

	rec := recorder.New(store.clicks, newLocator(cfg.Geo, cfg.Recorder.GeoTimeout), logger.Logger, recorder.Config{
		Workers:        cfg.Recorder.Workers,
		QueueSize:      cfg.Recorder.QueueSize,
		GeoTimeout:     cfg.Recorder.GeoTimeout,
		PersistTimeout: cfg.Recorder.PersistTimeout,
	})

	linkUseCase := usecase.NewLinkUseCase(
		cfg.BaseURL,
		shortcode.NewGenerator(cfg.ShortCodeLength),
		store.links,
		store.clicks,
	)
	resolver := usecase.NewResolver(store.links, policy.New(), rec, logger.Logger)

	sweeper, err := newSweeper(ctx, cfg.Sweeper, linkUseCase, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	router := delivery.NewRouter(logger, linkUseCase, resolver, []byte(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// The recorder outlives the server so clicks of requests finishing
	// during Shutdown are still queued and drained.
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRecorder()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rec.Run(recCtx)
	})

	if sweeper != nil {
		sweeper.Start()

		g.Go(func() error {
			<-ctx.Done()
			sweeper.Stop()
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		defer stopRecorder()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
