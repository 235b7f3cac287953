package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/cache"
	"github.com/redeclipse/stats-api/internal/config"
	"github.com/redeclipse/stats-api/internal/handlers"
	"github.com/redeclipse/stats-api/internal/logic"
	"github.com/redeclipse/stats-api/internal/models"
	"github.com/redeclipse/stats-api/internal/ruleset"
	"github.com/redeclipse/stats-api/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Sugar().Fatalw("API stopped", "error", err)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	sugar.Infow("Connected to stats database", "driver", cfg.DatabaseDriver)

	checks := map[string]handlers.Pinger{"store": st}

	registry, err := ruleset.NewDefaultRegistry(cfg.DefaultVersion, logger)
	if err != nil {
		return fmt.Errorf("failed to build rulesets: %w", err)
	}

	resolver := logic.NewResolver(st, registry, cfg.PrecacheWorkers, logger)
	start := time.Now()
	if err := resolver.BuildPrecache(ctx); err != nil {
		return fmt.Errorf("failed to build precache: %w", err)
	}
	sugar.Infow("Precache built", "watermark", resolver.Watermark(), "duration", time.Since(start))

	opts := cache.Options{
		Enabled:       cfg.CacheEnabled,
		CleanInterval: cfg.CacheCleanInterval,
		Logger:        logger,
	}
	if cfg.CacheEnabled && cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		opts.Redis = rdb
		sugar.Infow("Cache shared through Redis", "addr", redisOpts.Addr)
	}
	c := cache.New(opts)
	if err := c.StartJanitor(); err != nil {
		return err
	}
	defer c.Stop()
	checks["cache"] = c

	var activity logic.ActivitySource = st
	if cfg.ClickHouseURL != "" {
		conn, err := store.OpenClickHouse(ctx, cfg.ClickHouseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		ch := store.NewClickHouseActivity(conn)
		activity = ch
		checks["clickhouse"] = ch
		sugar.Infow("Activity histograms read from ClickHouse")
	}

	rankings := logic.NewRankingService(st, resolver, registry, c, logger)
	h := handlers.New(handlers.Config{
		Logger:   logger,
		Checks:   checks,
		Precache: resolver,
		API: models.APIConfig{
			ResultsPerPage:    cfg.APIResultsPerPage,
			HighscoreResults:  cfg.APIHighscoreResults,
			DisplayHighscores: cfg.DisplayHighscoreResults,
			DisplayPerPage:    cfg.DisplayResultsPerPage,
			DisplayRecent:     cfg.DisplayResultsRecent,
			DefaultVersion:    registry.DefaultVersion(),
		},
		Rankings: rankings,
		Activity: logic.NewActivityService(activity, cfg.ActivityZone, c, logger),
		Browse: logic.NewBrowseService(st, resolver, rankings, registry, c, logic.BrowseConfig{
			PerPage:    cfg.APIResultsPerPage,
			Recent:     cfg.DisplayResultsRecent,
			Highscores: cfg.APIHighscoreResults,
		}, logger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h.Routes(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		sugar.Infow("API listening", "addr", srv.Addr, "env", cfg.Env)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sugar.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
