// Package assetcache is a server-side, cache-first store for the page's static
// assets. It follows the lifecycle of a browser offline worker: Install fills the
// cache named after the current version, Activate drops every other version, and
// Middleware serves cached responses before falling through to the network handler.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/bicarb-prep/internal/metrics"
	"github.com/eugenenazirov/bicarb-prep/internal/storage"
)

// ErrAssetUnavailable is returned when an asset cannot be fetched for caching.
var ErrAssetUnavailable = errors.New("asset unavailable")

// Origin fetches the canonical response for a path.
type Origin interface {
	Fetch(ctx context.Context, path string) (storage.Entry, error)
}

// OriginFunc adapts a function to Origin.
type OriginFunc func(ctx context.Context, path string) (storage.Entry, error)

// Fetch calls f.
func (f OriginFunc) Fetch(ctx context.Context, path string) (storage.Entry, error) {
	return f(ctx, path)
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithMaxAge sets the Cache-Control max-age sent with cached responses.
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *Cache) {
		c.maxAge = maxAge
	}
}

// WithBypass sends requests for which bypass returns true straight to the
// network handler, e.g. a page negotiated into a language the cache does not hold.
func WithBypass(bypass func(*http.Request) bool) Option {
	return func(c *Cache) {
		c.bypass = bypass
	}
}

// Cache wires a versioned cache name and a precache list to a storage backend.
type Cache struct {
	store    storage.Storage
	origin   Origin
	logger   *zap.Logger
	name     string
	precache []string
	maxAge   time.Duration
	clock    func() time.Time
	bypass   func(*http.Request) bool

	mu          sync.RWMutex
	installedAt time.Time
}

// New builds a Cache. precache is copied.
func New(name string, precache []string, store storage.Storage, origin Origin, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := make([]string, len(precache))
	copy(paths, precache)

	c := &Cache{
		store:    store,
		origin:   origin,
		logger:   logger,
		name:     name,
		precache: paths,
		maxAge:   time.Hour,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the current cache version tag.
func (c *Cache) Name() string {
	return c.name
}

// Precache returns a copy of the paths filled on install.
func (c *Cache) Precache() []string {
	out := make([]string, len(c.precache))
	copy(out, c.precache)
	return out
}

// InstalledAt reports when the last successful install finished.
func (c *Cache) InstalledAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.installedAt
}

// Install opens the current cache and replaces its content with every precache
// path. All assets are fetched before any is stored, so a failed install leaves
// the cache as it was, and paths dropped from the precache list stop matching.
func (c *Cache) Install(ctx context.Context) error {
	c.logger.Info("installing asset cache", zap.String("cache", c.name), zap.Int("assets", len(c.precache)))

	if err := c.store.Open(c.name); err != nil {
		metrics.AssetCacheInstalls.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("open cache %s: %w", c.name, err)
	}

	entries := make([]storage.Entry, 0, len(c.precache))
	for _, path := range c.precache {
		if err := ctx.Err(); err != nil {
			metrics.AssetCacheInstalls.WithLabelValues(metrics.OutcomeError).Inc()
			return err
		}
		entry, err := c.origin.Fetch(ctx, path)
		if err != nil {
			metrics.AssetCacheInstalls.WithLabelValues(metrics.OutcomeError).Inc()
			c.logger.Error("failed to precache asset", zap.String("cache", c.name), zap.String("path", path), zap.Error(err))
			return fmt.Errorf("precache %s: %w", path, errors.Join(ErrAssetUnavailable, err))
		}
		entry.Path = path
		entry.StoredAt = c.clock()
		entries = append(entries, entry)
	}

	if err := c.store.Replace(c.name, entries); err != nil {
		metrics.AssetCacheInstalls.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("store %s: %w", c.name, err)
	}

	c.mu.Lock()
	c.installedAt = c.clock()
	c.mu.Unlock()

	metrics.AssetCacheInstalls.WithLabelValues(metrics.OutcomeOK).Inc()
	c.logger.Info("asset cache installed", zap.String("cache", c.name))
	return nil
}

// Activate deletes every cache whose name differs from the current version and
// returns the deleted names.
func (c *Cache) Activate() []string {
	var deleted []string
	for _, name := range c.store.Names() {
		if name == c.name {
			continue
		}
		if c.store.Delete(name) {
			c.logger.Info("deleted outdated asset cache", zap.String("cache", name))
			metrics.AssetCacheEvictions.Inc()
			deleted = append(deleted, name)
		}
	}
	c.logger.Info("asset cache active", zap.String("cache", c.name))
	return deleted
}

// Refresh re-installs the current version and activates it.
func (c *Cache) Refresh(ctx context.Context) error {
	if err := c.Install(ctx); err != nil {
		return err
	}
	c.Activate()
	return nil
}

// Middleware serves GET and HEAD requests from the current cache when an entry
// exists for the path. Requests with a query string, bypassed requests and misses
// go to next.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method != http.MethodGet && r.Method != http.MethodHead) || r.URL.RawQuery != "" {
			next.ServeHTTP(w, r)
			return
		}
		if c.bypass != nil && c.bypass(r) {
			metrics.AssetCacheRequests.WithLabelValues(metrics.CacheBypass).Inc()
			next.ServeHTTP(w, r)
			return
		}

		entry, err := c.store.Match(c.name, r.URL.Path)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				c.logger.Warn("asset cache lookup failed", zap.String("path", r.URL.Path), zap.Error(err))
			}
			if !c.isPrecached(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.AssetCacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
			w.Header().Set("X-Cache", "MISS")
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if sw.status >= http.StatusBadRequest {
				c.logger.Warn("origin failed for precached asset", zap.String("path", r.URL.Path), zap.Int("status", sw.status))
			}
			return
		}

		metrics.AssetCacheRequests.WithLabelValues(metrics.CacheHit).Inc()
		c.writeEntry(w, r, entry)
	})
}

func (c *Cache) writeEntry(w http.ResponseWriter, r *http.Request, entry storage.Entry) {
	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	if entry.ContentLanguage != "" {
		w.Header().Set("Content-Language", entry.ContentLanguage)
	}
	if entry.Vary != "" {
		w.Header().Set("Vary", entry.Vary)
	}
	w.Header().Set("X-Cache", "HIT")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(c.maxAge.Seconds())))
	w.Header().Set("Content-Length", strconv.Itoa(len(entry.Body)))
	if !entry.StoredAt.IsZero() {
		w.Header().Set("Last-Modified", entry.StoredAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(entry.Body); err != nil {
		c.logger.Debug("write cached asset", zap.String("path", entry.Path), zap.Error(err))
	}
}

func (c *Cache) isPrecached(path string) bool {
	for _, p := range c.precache {
		if p == path {
			return true
		}
	}
	return false
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
