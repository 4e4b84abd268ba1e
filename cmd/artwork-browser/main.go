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

	"github.com/Sternrassler/artwork-browser/internal/config"
	"github.com/Sternrassler/artwork-browser/internal/view"
	"github.com/Sternrassler/artwork-browser/internal/web"
	"github.com/Sternrassler/artwork-browser/pkg/client"
	"github.com/Sternrassler/artwork-browser/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// sweepInterval is how often idle sessions are checked.
const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts the server down.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	} else {
		logger.Info().Msg("Redis not configured, response cache disabled")
	}

	handler, sessions, err := buildHandler(cfg, redisClient, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("catalog", cfg.Catalog.BaseURL).
			Str("user_agent", cfg.Catalog.UserAgent).
			Msg("Starting artwork browser")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// connectRedis returns nil when Redis is not configured.
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// buildHandler wires the catalog client, the session store and the web routes.
func buildHandler(cfg config.Config, redisClient *redis.Client, logger zerolog.Logger) (http.Handler, *web.Sessions, error) {
	catalog, err := client.New(client.Config{
		Redis:     redisClient,
		BaseURL:   cfg.Catalog.BaseURL,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.Catalog.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create catalog client: %w", err)
	}

	opts := view.DefaultOptions()
	opts.DefaultRows = cfg.Catalog.DefaultRows
	opts.GuardStale = cfg.Catalog.GuardStale
	opts.Selection = cfg.Catalog.Selection()
	opts.Logger = logger.With().Str("component", "view").Logger()

	sessions := web.NewSessions(catalog, opts, cfg.HTTP.SessionTTL, cfg.HTTP.MaxSessions)

	srv, err := web.NewServer(sessions, web.Config{
		WaitForFetch: cfg.HTTP.WaitForFetch,
		SecureCookie: cfg.HTTP.SecureCookie,
	})
	if err != nil {
		return nil, nil, err
	}

	return srv.Routes(), sessions, nil
}
