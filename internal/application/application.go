package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eugenenazirov/bicarb-prep/internal/api"
	"github.com/eugenenazirov/bicarb-prep/internal/assetcache"
	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
	"github.com/eugenenazirov/bicarb-prep/internal/config"
	"github.com/eugenenazirov/bicarb-prep/internal/page"
	"github.com/eugenenazirov/bicarb-prep/internal/preparation"
	"github.com/eugenenazirov/bicarb-prep/internal/scheduler"
	"github.com/eugenenazirov/bicarb-prep/internal/storage"
)

const installTimeout = 30 * time.Second

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage   storage.Storage
	planner   *preparation.Planner
	handler   *api.Handler
	router    http.Handler
	pages     *page.Handler
	cache     *assetcache.Cache
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
	server    *http.Server

	done     chan struct{}
	stopOnce sync.Once
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rates := cfg.Rates()
	if err := rates.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default rates: %w", err)
	}

	planner := preparation.NewPlanner(calculator.New())

	pages, err := page.NewHandler(planner, page.Options{
		Rates:           rates,
		DefaultLanguage: cfg.DefaultLanguage,
		NoticeHTML:      cfg.NoticeHTML,
		CacheName:       cfg.CacheName,
		Precache:        cfg.PrecachePaths,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build page handler: %w", err)
	}
	site := BuildSiteHandler(pages)

	store := storage.NewMemoryStorage()
	cache := assetcache.New(cfg.CacheName, cfg.PrecachePaths, store, assetcache.NewHandlerOrigin(site), logger,
		assetcache.WithBypass(pages.VariesFromDefault))

	done := make(chan struct{})
	handler := api.NewHandler(planner,
		api.WithRates(rates),
		api.WithDefaultLanguage(cfg.DefaultLanguage),
		api.WithAssetCache(cache),
		api.WithHandlerLogger(logger),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithMetrics(cfg.EnableMetrics),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithClientRateLimit(cfg.ClientRateLimit, cfg.ClientRateCapacity),
		api.WithStop(done),
	)

	var metricsHandler http.Handler
	if cfg.EnableMetrics {
		metricsHandler = promhttp.Handler()
	}
	rootHandler := BuildRootHandler(apiRouter, cache.Middleware(site), metricsHandler)

	return &App{
		storage:   store,
		planner:   planner,
		handler:   handler,
		router:    apiRouter,
		pages:     pages,
		cache:     cache,
		scheduler: scheduler.New(cache, cfg.AssetRefreshInterval, installTimeout, logger),
		logger:    logger,
		server:    NewServer(cfg, rootHandler),
		done:      done,
	}, nil
}

// BuildSiteHandler serves the page, the service worker and the static assets.
// This is also the origin the asset cache fills itself from.
func BuildSiteHandler(pages *page.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/static/", pages.ServeStatic)
	mux.HandleFunc("/sw.js", pages.ServeWorker)
	mux.HandleFunc("/", pages.ServeIndex)
	return mux
}

// BuildRootHandler routes API requests, the optional metrics endpoint and
// everything else to the site handler. A nil metricsHandler leaves /metrics unrouted.
func BuildRootHandler(apiHandler, siteHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	mux.Handle("/", siteHandler)
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start warms the asset cache, schedules its refresh and starts the HTTP server
// in a goroutine. A failed cache install is logged and does not stop the server.
func (a *App) Start() error {
	a.warmCache()

	if err := a.scheduler.Start(); err != nil {
		return err
	}

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

func (a *App) warmCache() {
	ctx, cancel := context.WithTimeout(context.Background(), installTimeout)
	defer cancel()

	if err := a.cache.Install(ctx); err != nil {
		a.logger.Warn("asset cache install failed, serving from origin", zap.Error(err))
		return
	}
	a.cache.Activate()
}

// Shutdown stops background jobs and gracefully shuts the HTTP server down.
func (a *App) Shutdown(ctx context.Context) error {
	a.stop()
	return a.server.Shutdown(ctx)
}

// Close stops background jobs and closes the HTTP server immediately.
func (a *App) Close() error {
	a.stop()
	return a.server.Close()
}

func (a *App) stop() {
	a.stopOnce.Do(func() {
		a.scheduler.Stop()
		close(a.done)
	})
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
