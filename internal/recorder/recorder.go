// Package recorder turns successful resolutions into click events off the
// request path. Recording never blocks or fails a redirect.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/adapter/useragent"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers        = 4
	DefaultQueueSize      = 1024
	DefaultGeoTimeout     = 2 * time.Second
	DefaultPersistTimeout = 5 * time.Second
)

// maxLocationLength matches the width of the country and city columns.
const maxLocationLength = 100

type clickSaver interface {
	SaveClick(ctx context.Context, click *entity.ClickEvent) error
}

type locator interface {
	Locate(ctx context.Context, ip string) (entity.Location, error)
}

// Config tunes the worker pool. Zero values fall back to defaults.
type Config struct {
	Workers        int
	QueueSize      int
	GeoTimeout     time.Duration
	PersistTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.GeoTimeout <= 0 {
		c.GeoTimeout = DefaultGeoTimeout
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = DefaultPersistTimeout
	}
}

type job struct {
	linkID    int64
	shortCode string
	rc        entity.RequestContext
}

// Recorder enriches and persists click events on a bounded worker pool.
type Recorder struct {
	clicks  clickSaver
	locator locator
	parseUA func(string) entity.Device
	logger  *slog.Logger
	cfg     Config
	dropped atomic.Int64

	mu      sync.RWMutex
	stopped bool
	queue   chan job
}

// New creates a recorder. A nil locator disables geo enrichment.
func New(clicks clickSaver, loc locator, logger *slog.Logger, cfg Config) *Recorder {
	cfg.setDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		clicks:  clicks,
		locator: loc,
		parseUA: useragent.Parse,
		logger:  logger,
		cfg:     cfg,
		queue:   make(chan job, cfg.QueueSize),
	}
}

// Record schedules a click of link. When the queue is full or the recorder
// has stopped, the click is dropped and a warning is logged.
func (r *Recorder) Record(link *entity.Link, rc entity.RequestContext) {
	if rc.Time.IsZero() {
		rc.Time = time.Now()
	}

	j := job{linkID: link.ID, shortCode: link.ShortCode, rc: rc}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.drop(link.ShortCode, "click recorder stopped, dropping click")
		return
	}

	select {
	case r.queue <- j:
	default:
		r.drop(link.ShortCode, "click queue is full, dropping click")
	}
}

func (r *Recorder) drop(shortCode, msg string) {
	r.dropped.Add(1)
	r.logger.Warn(msg,
		slog.String("short_code", shortCode),
		slog.Int("queue_size", r.cfg.QueueSize),
	)
}

// Dropped returns the number of clicks that were never queued.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run processes queued clicks until ctx is done, then stops accepting
// clicks and drains what is left. It must be called at most once.
func (r *Recorder) Run(ctx context.Context) error {
	// In-flight clicks outlive shutdown, each bounded by its own timeouts.
	base := context.WithoutCancel(ctx)

	g := new(errgroup.Group)

	for range r.cfg.Workers {
		g.Go(func() error {
			for j := range r.queue {
				r.process(base, j)
			}
			return nil
		})
	}

	<-ctx.Done()
	r.stop()

	err := g.Wait()

	r.logger.Info("click recorder stopped", slog.Int64("dropped", r.Dropped()))

	return err
}

// stop closes the queue once no Record call can still be sending on it.
func (r *Recorder) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	close(r.queue)
}

func (r *Recorder) process(ctx context.Context, j job) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("click recording panicked",
				slog.String("short_code", j.shortCode),
				slog.Any("panic", p),
			)
		}
	}()

	device := r.parseUA(j.rc.UserAgent)

	click := &entity.ClickEvent{
		ID:         uuid.NewString(),
		LinkID:     j.linkID,
		ShortCode:  j.shortCode,
		ClickedAt:  j.rc.Time,
		IPAddress:  sanitize(j.rc.IP),
		UserAgent:  sanitize(j.rc.UserAgent),
		Referrer:   sanitize(j.rc.Referrer),
		DeviceType: device.Type,
		Browser:    device.Browser,
		OS:         device.OS,
	}

	loc, err := r.locate(ctx, j.rc.IP)
	if err != nil {
		r.logger.Debug("geo lookup failed",
			slog.String("short_code", j.shortCode),
			slog.Any("err", err),
		)
	} else {
		click.Country = known(loc.Country)
		click.City = known(loc.City)
	}

	if err := r.persist(ctx, click); err != nil {
		r.logger.Error("failed to record click",
			slog.String("short_code", j.shortCode),
			slog.Any("err", err),
		)
	}
}

// locate bounds the lookup even for locators that ignore ctx.
func (r *Recorder) locate(ctx context.Context, ip string) (entity.Location, error) {
	const op = "recorder.Recorder.locate"

	if r.locator == nil || ip == "" {
		return entity.Location{}, fmt.Errorf("%s: %w", op, entity.ErrGeoLookupFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.GeoTimeout)
	defer cancel()

	type result struct {
		loc entity.Location
		err error
	}

	done := make(chan result, 1)
	go func() {
		loc, err := r.locator.Locate(ctx, ip)
		done <- result{loc: loc, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, entity.ErrGeoLookupFailed) {
				return entity.Location{}, fmt.Errorf("%s: %w", op, res.err)
			}
			return entity.Location{}, fmt.Errorf("%s: %w: %w", op, entity.ErrGeoLookupFailed, res.err)
		}
		return res.loc, nil
	case <-ctx.Done():
		return entity.Location{}, fmt.Errorf("%s: %w: %w", op, entity.ErrGeoLookupFailed, ctx.Err())
	}
}

func (r *Recorder) persist(ctx context.Context, click *entity.ClickEvent) error {
	const op = "recorder.Recorder.persist"

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PersistTimeout)
	defer cancel()

	if err := r.clicks.SaveClick(ctx, click); err != nil {
		return fmt.Errorf("%s: %w: %w", op, entity.ErrRecorderPersistFailed, err)
	}

	return nil
}

func known(s string) *string {
	s = sanitize(s)
	if s == "" || s == entity.Unknown || utf8.RuneCountInString(s) > maxLocationLength {
		return nil
	}
	return &s
}

// sanitize makes raw header values storable: text columns reject invalid
// UTF-8 and NUL bytes.
func sanitize(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}
