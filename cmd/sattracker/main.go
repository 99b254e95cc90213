package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sprett/sat-tracker/internal/api"
	"github.com/sprett/sat-tracker/internal/auth"
	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/engine"
	"github.com/sprett/sat-tracker/internal/stream"
	"github.com/sprett/sat-tracker/internal/visibility"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("SATTRACKER_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	engCfg := loadEngineConfig(logger)
	eng := engine.New(engCfg, logger)

	catCfg := loadCatalogConfig(logger)
	store := catalog.NewStore()
	fetcher := catalog.NewFetcher(catCfg.BaseURL, logger)
	var diskCache *catalog.DiskCache
	if catCfg.CacheDir != "" {
		diskCache = catalog.NewDiskCache(catCfg.CacheDir, catCfg.MaxAge, catCfg.MaxFiles)
	}
	source := catalog.NewSource(fetcher, diskCache, store, catCfg.Categories, logger,
		func(c *catalog.Catalog) { eng.ReplaceCatalog(c) })

	// Seed from the disk cache so the first batches don't wait on the network.
	source.LoadCached()

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(eng, store, streamCfg, logger)

	var refresher api.Refresher
	if catCfg.EnableFetch {
		refresher = source
	}
	srv := api.NewServer(addr, eng, store, refresher, streamHandler, logger, authCfg)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the engine actor.
	go eng.Run(ctx)

	// Periodic catalog refresh.
	if catCfg.EnableFetch {
		go source.Start(ctx, catCfg.RefreshInterval)
	}

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"catalog_fetch_enabled", catCfg.EnableFetch,
			"tick_interval", engCfg.TickInterval.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SATTRACKER_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SATTRACKER_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATTRACKER_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATTRACKER_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadEngineConfig(logger *slog.Logger) engine.Config {
	cfg := engine.Config{
		TickInterval:  time.Second,
		Workers:       runtime.NumCPU(),
		CacheCapacity: 0, // engine default
		Policy:        visibility.PolicyClassify,
	}

	if v := os.Getenv("SATTRACKER_TICK_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACKER_TICK_INTERVAL_MS value, using default", "value", v, "default", 1000)
		} else {
			cfg.TickInterval = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("SATTRACKER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACKER_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("SATTRACKER_CACHE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACKER_CACHE_CAPACITY value, using default", "value", v)
		} else {
			cfg.CacheCapacity = n
		}
	}

	if v := os.Getenv("SATTRACKER_VISIBILITY_BYPASS"); v != "" {
		bypass, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATTRACKER_VISIBILITY_BYPASS value, defaulting to false", "value", v)
		} else if bypass {
			cfg.Policy = visibility.PolicyAlwaysVisible
		}
	}

	cfg.Observer = loadObserver(logger)

	logger.Info("engine config",
		"tick_interval", cfg.TickInterval.String(),
		"workers", cfg.Workers,
		"visibility_bypass", cfg.Policy == visibility.PolicyAlwaysVisible,
	)

	return cfg
}

func loadObserver(logger *slog.Logger) visibility.Observer {
	var obs visibility.Observer

	parse := func(env string, min, max float64) (float64, bool) {
		v := os.Getenv(env)
		if v == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < min || f > max {
			logger.Warn("invalid observer coordinate, using 0", "env", env, "value", v)
			return 0, false
		}
		return f, true
	}

	obs.LatDeg, _ = parse("SATTRACKER_OBSERVER_LAT", -90, 90)
	obs.LonDeg, _ = parse("SATTRACKER_OBSERVER_LON", -180, 180)
	obs.AltKm, _ = parse("SATTRACKER_OBSERVER_ALT_KM", -0.5, 9)

	return obs
}

type catalogConfig struct {
	EnableFetch     bool
	BaseURL         string
	Categories      []string
	CacheDir        string
	MaxAge          time.Duration
	MaxFiles        int
	RefreshInterval time.Duration
}

func loadCatalogConfig(logger *slog.Logger) catalogConfig {
	cfg := catalogConfig{
		EnableFetch:     true,
		Categories:      []string{"active"},
		CacheDir:        "/tmp/sattracker/catalog",
		MaxAge:          catalog.DefaultMaxAge,
		MaxFiles:        5,
		RefreshInterval: catalog.DefaultMaxAge,
	}

	if v := os.Getenv("SATTRACKER_ENABLE_CATALOG_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATTRACKER_ENABLE_CATALOG_FETCH value, defaulting to false", "value", v)
			cfg.EnableFetch = false
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("SATTRACKER_CATALOG_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv("SATTRACKER_CATALOG_CATEGORIES"); v != "" {
		var cats []string
		for _, c := range strings.Split(v, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				cats = append(cats, c)
			}
		}
		if len(cats) > 0 {
			cfg.Categories = cats
		}
	}

	if v := os.Getenv("SATTRACKER_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("SATTRACKER_CATALOG_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 1 {
			logger.Warn("invalid SATTRACKER_CATALOG_MAX_AGE value, using default", "value", v)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
			cfg.RefreshInterval = cfg.MaxAge
		}
	}

	logger.Info("catalog config",
		"fetch_enabled", cfg.EnableFetch,
		"categories", cfg.Categories,
		"cache_dir", cfg.CacheDir,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("SATTRACKER_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACKER_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SATTRACKER_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACKER_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATTRACKER_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATTRACKER_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}
