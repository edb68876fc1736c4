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

	"smartfinder_backend/internal/email"
	"smartfinder_backend/internal/events"
	"smartfinder_backend/internal/finder"
	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/internal/http/router"
	"smartfinder_backend/internal/leads"
	leadrepo "smartfinder_backend/internal/leads/repository"
	"smartfinder_backend/internal/notification"
	"smartfinder_backend/internal/roi"
	"smartfinder_backend/internal/scheduler"
	"smartfinder_backend/platform/config"
	"smartfinder_backend/platform/db"
	"smartfinder_backend/platform/kvstore"
	"smartfinder_backend/platform/logger"
	"smartfinder_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if cfg.IsDatabaseEnabled() {
		if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool = p
			return nil
		}); err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		defer pool.Close()
		log.Info("database connection established")

		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	store, redisClient := initVisitorStore(ctx, cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var leadReader leadrepo.LeadReader
	if pool != nil {
		leadReader = leadrepo.New(pool)
	}
	var leadNotifier scheduler.LeadNotificationScheduler
	if client, closeClient := initLeadScheduler(cfg, log); client != nil {
		defer closeClient()
		leadNotifier = client
	}

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(email.NewSender(cfg), cfg.GetSalesNotificationAddress(), leadNotifier, leadReader, log)
	notificationModule.RegisterHandlers(eventBus)

	finderModule := finder.NewModule(cfg, store, val, log)
	if err := finderModule.Preload(ctx); err != nil {
		log.Error("smart finder configuration not loaded, sessions will retry", "error", err)
	}
	leadsModule := leads.NewModule(pool, eventBus, val, cfg.GetPhoneDefaultRegion(), log)
	roiModule := roi.NewModule(val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   healthCheck{pool: pool, redis: redisClient},
		EventBus: eventBus,
		Modules: []apphttp.Module{
			finderModule,
			leadsModule,
			roiModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		finderModule.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		eventBus.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// initVisitorStore returns the Redis-backed visitor store when REDIS_URL is
// set, the in-memory store otherwise.
func initVisitorStore(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (kvstore.Store, *redis.Client) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; visitor data is kept in memory")
		return kvstore.NewMemoryStore(nil), nil
	}

	var client *redis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := kvstore.OpenRedis(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			return err
		}
		client = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	return kvstore.NewRedisStore(client), client
}

func initLeadScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lead notifications are sent inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize lead scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// healthCheck pings every configured backing service.
type healthCheck struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func (h healthCheck) Ping(ctx context.Context) error {
	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
