package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/internal/services"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

const cacheWriteRetries = 3

type ProviderConfig struct {
	// Schedule is a cron spec for background refreshes, e.g. "@every 15m".
	// Empty disables scheduled refreshes.
	Schedule    string
	CacheTTL    time.Duration
	LoadTimeout time.Duration
}

// Status describes the snapshot currently served.
type Status struct {
	Source      string    `json:"source"`
	Version     string    `json:"version,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	Games       int       `json:"games"`
	Selections  int       `json:"selections"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Scheduled   bool      `json:"scheduled"`
}

// Provider owns the catalog snapshot shared by all searches. Snapshots are
// replaced atomically and never modified, so readers need no locking.
type Provider struct {
	source  Source
	cache   *services.CacheService
	cfg     ProviderConfig
	logger  *logrus.Entry
	current atomic.Pointer[models.Catalog]

	mu        sync.Mutex
	cron      *cron.Cron
	isRunning atomic.Bool

	statusMu    sync.RWMutex
	lastAttempt time.Time
	lastErr     error
}

func NewProvider(source Source, cache *services.CacheService, cfg ProviderConfig) *Provider {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	return &Provider{
		source: source,
		cache:  cache,
		cfg:    cfg,
		logger: logger.WithCatalogContext(source.Name()),
	}
}

// Snapshot returns the current catalog, loading it on first use.
func (p *Provider) Snapshot(ctx context.Context) (*models.Catalog, error) {
	if cat := p.current.Load(); cat != nil {
		return cat, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cat := p.current.Load(); cat != nil {
		return cat, nil
	}
	return p.refreshLocked(ctx)
}

// Refresh reloads the catalog from the source. When the source fails and a
// snapshot is already loaded, that snapshot stays in service and is returned
// together with the error. With nothing loaded, the last cached snapshot is
// used before giving up with ErrCatalogUnavailable.
func (p *Provider) Refresh(ctx context.Context) (*models.Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

func (p *Provider) refreshLocked(ctx context.Context) (*models.Catalog, error) {
	cat, err := p.source.Load(ctx)
	p.recordAttempt(err)

	if err == nil {
		p.current.Store(cat)
		if err := p.cache.SetWithRetry(ctx, p.cacheKey(), cat, p.cfg.CacheTTL, cacheWriteRetries); err != nil {
			p.logger.WithError(err).Warn("Failed to cache catalog snapshot")
		}
		p.logger.WithFields(logrus.Fields{
			"version":    cat.Version,
			"games":      len(cat.Games),
			"selections": cat.SelectionCount(),
		}).Info("Catalog snapshot refreshed")
		return cat, nil
	}

	if current := p.current.Load(); current != nil {
		p.logger.WithError(err).WithField("version", current.Version).Warn("Catalog refresh failed, keeping current snapshot")
		return current, fmt.Errorf("refresh failed, serving version %s: %w", current.Version, err)
	}

	var cached models.Catalog
	if cacheErr := p.cache.Get(ctx, p.cacheKey(), &cached); cacheErr == nil && !cached.IsEmpty() {
		p.current.Store(&cached)
		p.logger.WithError(err).WithField("version", cached.Version).Warn("Catalog source failed, serving cached snapshot")
		return &cached, nil
	} else if cacheErr != nil && !errors.Is(cacheErr, services.ErrCacheMiss) {
		p.logger.WithError(cacheErr).Warn("Failed to read cached catalog snapshot")
	}

	p.logger.WithError(err).Error("Catalog unavailable")
	if errors.Is(err, ErrCatalogUnavailable) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
}

// Start schedules background refreshes. It does not load the first snapshot;
// call Refresh or Snapshot for that.
func (p *Provider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning.Load() {
		return fmt.Errorf("catalog provider is already running")
	}
	if p.cfg.Schedule == "" {
		p.logger.Info("No catalog refresh schedule configured")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(p.cfg.Schedule, p.scheduledRefresh); err != nil {
		return fmt.Errorf("failed to schedule catalog refresh: %w", err)
	}
	c.Start()

	p.cron = c
	p.isRunning.Store(true)
	p.logger.WithField("schedule", p.cfg.Schedule).Info("Catalog refresh scheduled")
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (p *Provider) Stop() {
	p.mu.Lock()
	c := p.cron
	running := p.isRunning.Swap(false)
	p.cron = nil
	p.mu.Unlock()

	if !running || c == nil {
		return
	}

	ctx := c.Stop()
	<-ctx.Done()
	p.logger.Info("Catalog refresh stopped")
}

func (p *Provider) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.LoadTimeout)
	defer cancel()

	if _, err := p.Refresh(ctx); err != nil {
		p.logger.WithError(err).Warn("Scheduled catalog refresh failed")
	}
}

func (p *Provider) Status() Status {
	p.statusMu.RLock()
	status := Status{
		Source:      p.source.Name(),
		LastAttempt: p.lastAttempt,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	p.statusMu.RUnlock()

	status.Scheduled = p.isRunning.Load()

	if cat := p.current.Load(); cat != nil {
		status.Version = cat.Version
		status.LoadedAt = cat.LoadedAt
		status.Games = len(cat.Games)
		status.Selections = cat.SelectionCount()
	}
	return status
}

func (p *Provider) recordAttempt(err error) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.lastAttempt = time.Now().UTC()
	p.lastErr = err
}

func (p *Provider) cacheKey() string {
	return services.CatalogCacheKey(p.source.Name())
}
