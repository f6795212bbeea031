package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/cx-tal-miterani/flight-ticketing/internal/booking"
	"github.com/cx-tal-miterani/flight-ticketing/internal/cache"
	"github.com/cx-tal-miterani/flight-ticketing/internal/config"
	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/events"
	"github.com/cx-tal-miterani/flight-ticketing/internal/handlers"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/pricing"
	"github.com/cx-tal-miterani/flight-ticketing/internal/ratelimit"
	"github.com/cx-tal-miterani/flight-ticketing/internal/router"
	"github.com/cx-tal-miterani/flight-ticketing/internal/seating"
	"github.com/cx-tal-miterani/flight-ticketing/internal/service"
	"github.com/cx-tal-miterani/flight-ticketing/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Error("Invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DBMinConns, cfg.DBMaxConns)
	if err != nil {
		log.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Error("Failed to migrate database", "error", err.Error())
			os.Exit(1)
		}
	}
	repo := database.NewRepository(pool, cfg.DBAcquireTimeout)

	// Check-in runs through Temporal when a host is configured
	var checkIns service.CheckInRunner = seating.NewEngine(repo, log)
	if cfg.TemporalHost != "" {
		temporalClient, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHost,
			Logger:   tlog.NewStructuredLogger(log.WithComponent("temporal").Logger),
		})
		if err != nil {
			log.Error("Failed to create Temporal client", "error", err.Error())
			os.Exit(1)
		}
		defer temporalClient.Close()
		checkIns = service.NewTemporalCheckIn(temporalClient, cfg.TemporalTaskQueue, log)
		log.Info("Check-in runs as workflows", "temporal_host", cfg.TemporalHost, "task_queue", cfg.TemporalTaskQueue)
	}

	// Redis backs the lookup cache and the rate limiter
	rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	var limiter *ratelimit.Limiter
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		limiter = ratelimit.New(ratelimit.NewRedisCounter(rdb), cfg.RateLimit, log, cfg.TrustedProxies...)
	} else if cfg.RedisAddr != "" {
		log.Warn("Redis unavailable, running without cache and rate limiting", "addr", cfg.RedisAddr)
	}

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	bookingService := service.NewBookingService(service.Dependencies{
		Validator: booking.NewValidator(),
		Lookups:   repo,
		Purchaser: booking.NewManager(repo, pricing.NewSource(cfg.PriceSeed), log),
		CheckIns:  checkIns,
		Cache:     cache.New(rdb, cfg.CacheTTL),
		Events:    events.NewPublisher(cfg.RabbitMQURL, log),
		Notifier:  hub,
		Log:       log,
	})

	h := handlers.NewHandler(bookingService, hub, log)
	r := router.SetupRouter(h, limiter, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("API Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err.Error())
	}

	log.Info("Server stopped")
}
