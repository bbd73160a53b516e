package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/adapter/manifest"
	"github.com/MrSnakeDoc/gamedeck/internal/adapter/oauth"
	"github.com/MrSnakeDoc/gamedeck/internal/auth"
	"github.com/MrSnakeDoc/gamedeck/internal/config"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/ledger"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/metrics"
	"github.com/MrSnakeDoc/gamedeck/internal/optimizer"
	"github.com/MrSnakeDoc/gamedeck/internal/orchestrator"
	"github.com/MrSnakeDoc/gamedeck/internal/redis"
	"github.com/MrSnakeDoc/gamedeck/internal/registry"
	"github.com/MrSnakeDoc/gamedeck/internal/scheduler"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
	"github.com/MrSnakeDoc/gamedeck/internal/state/sqlite"
	redisstore "github.com/MrSnakeDoc/gamedeck/internal/store/redis"
	"github.com/MrSnakeDoc/gamedeck/internal/tracker"
	"github.com/MrSnakeDoc/gamedeck/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	backend      state.Backend
	orchestrator *orchestrator.Orchestrator
	scanner      *scheduler.ScanScheduler
	refresher    *scheduler.TokenRefresher

	background context.Context
	cancel     context.CancelFunc
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	background, cancel := context.WithCancel(context.Background())

	// Open the state backend early - fail fast if unavailable
	backend, err := openBackend(background, cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s state backend: %v", cfg.StateBackend, err)
		os.Exit(1)
	}
	loggerClient.Info("state backend ready", logger.String("backend", cfg.StateBackend))

	adapters, err := loadAdapters(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to load adapters: %v", err)
		os.Exit(1)
	}
	if adapters.Len() == 0 {
		loggerClient.Warn("no platform manifests configured, scans will report failure",
			logger.String("hint", "set GAMEDECK_MANIFESTS=platform=path,..."))
	}

	// Stores
	authStore := auth.NewStore(adapters, backend, loggerClient, auth.Options{AuthTimeout: cfg.AuthTimeout})
	games := registry.New(backend, loggerClient)
	content := ledger.New(backend, loggerClient)

	// Restore persisted state before anything reads the stores
	restorer := scheduler.NewStateRestorer(loggerClient).
		Add("auth", authStore).
		Add("registry", games).
		Add("ledger", content)
	// A store that could not read its record will not write it either.
	if _, err := restorer.Restore(background); err != nil {
		loggerClient.Errorf("Failed to restore persisted state: %v", err)
		_ = backend.Close()
		os.Exit(1)
	}
	for _, p := range adapters.Platforms() {
		if err := authStore.Register(background, p); err != nil {
			loggerClient.Warn("failed to register platform session",
				logger.String("platform", p.String()),
				logger.Error(err))
		}
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(promRegistry)

	orch := orchestrator.New(orchestrator.Deps{
		Adapters: adapters,
		Auth:     authStore,
		Games:    games,
		Content:  content,
		Tracker:  tracker.New(games, content, loggerClient),
		Metrics:  recorder,
		Logger:   loggerClient,
	}, orchestrator.Options{
		MaxConcurrent: cfg.MaxConcurrentAdapters,
		ScanTimeout:   cfg.ScanTimeout,
		Retry: orchestrator.RetryPolicy{
			MaxTries:        cfg.RetryMaxTries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
		},
	})

	// Create manual scan trigger channel
	scanTrigger := make(chan struct{}, 1)

	scanner := scheduler.NewScanScheduler(orch, loggerClient, cfg.ScanInterval, scanTrigger)
	refresher := scheduler.NewTokenRefresher(orch, loggerClient, cfg.RefreshInterval, cfg.RefreshWindow)

	// Dependencies passed to routes
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Background:   background,
		Orchestrator: orch,
		Games:        games,
		Content:      content,
		Optimizer:    optimizer.New(games, content, loggerClient),
		StateBackend: cfg.StateBackend,
		ScanTrigger:  scanTrigger,
		Gatherer:     promRegistry,
	}
	if p, ok := backend.(deps.Pinger); ok {
		d.Backend = p
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		backend:      backend,
		orchestrator: orch,
		scanner:      scanner,
		refresher:    refresher,
		background:   background,
		cancel:       cancel,
	}
}

// openBackend opens the configured state backend.
func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (state.Backend, error) {
	switch cfg.StateBackend {
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		return sqlite.Open(ctx, cfg.SQLitePath)

	case config.BackendRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.Options{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client), nil

	default:
		return state.NewFile(cfg.DataDir)
	}
}

// loadAdapters builds one manifest adapter per configured platform.
func loadAdapters(cfg *config.Config, log logger.Logger) (*adapter.Set, error) {
	opts := manifest.Options{
		Callback: oauth.CallbackOptions{
			PortStart: cfg.CallbackPortStart,
			PortEnd:   cfg.CallbackPortEnd,
			Timeout:   cfg.AuthTimeout,
		},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	adapters := make([]adapter.Adapter, 0, len(cfg.Manifests))
	for _, m := range cfg.Manifests {
		a, err := manifest.New(m.Path, opts, log)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", m.Platform, err)
		}
		if want, _ := domain.ParsePlatform(m.Platform); a.Platform() != want {
			return nil, fmt.Errorf("manifest %s declares platform %q, configured as %q",
				m.Path, a.Platform(), m.Platform)
		}
		adapters = append(adapters, a)
		log.Info("platform adapter loaded",
			logger.String("platform", m.Platform),
			logger.String("manifest", m.Path))
	}
	return adapter.NewSet(adapters...)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting gamedeck v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("gamedeck %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(a.background, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start token refresher
	if err := a.refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start token refresher: %w", err)
	}
	a.logger.Info("token refresher started",
		logger.Duration("interval", a.cfg.RefreshInterval),
		logger.Duration("window", a.cfg.RefreshWindow))

	// Start scan scheduler (first cycle runs in the background)
	if err := a.scanner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scan scheduler: %w", err)
	}
	a.logger.Info("scan scheduler started",
		logger.Duration("interval", a.cfg.ScanInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.scanner.Stop()
	a.refresher.Stop()

	// Cancel background authentications and wait for them to unwind
	a.cancel()
	a.orchestrator.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Warnf("failed to close state backend: %v", err)
	} else {
		a.logger.Info("✅ State backend closed cleanly")
	}

	_ = a.logger.Sync()
	if runErr == nil {
		a.logger.Info("✅ gamedeck stopped cleanly")
	}
	return runErr
}
