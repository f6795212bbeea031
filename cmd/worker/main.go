package main

import (
	"context"
	"os"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/cx-tal-miterani/flight-ticketing/internal/activities"
	"github.com/cx-tal-miterani/flight-ticketing/internal/config"
	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/seating"
	"github.com/cx-tal-miterani/flight-ticketing/internal/workflows"
)

const defaultTemporalHost = "localhost:7233"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Error("Invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).WithComponent("worker")

	temporalHost := cfg.TemporalHost
	if temporalHost == "" {
		temporalHost = defaultTemporalHost
	}

	// Connect to database
	log.Info("Connecting to database...")
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DBMinConns, cfg.DBMaxConns)
	if err != nil {
		log.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("Connected to database")

	repo := database.NewRepository(pool, cfg.DBAcquireTimeout)

	// Connect to Temporal
	log.Info("Connecting to Temporal...", "host", temporalHost)
	c, err := client.Dial(client.Options{
		HostPort: temporalHost,
		Logger:   tlog.NewStructuredLogger(log.Logger),
	})
	if err != nil {
		log.Error("Failed to connect to Temporal", "error", err.Error())
		os.Exit(1)
	}
	defer c.Close()
	log.Info("Connected to Temporal")

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.CheckInWorkflow)
	activities.NewActivities(seating.NewEngine(repo, log)).Register(w)

	log.Info("Starting Temporal worker...", "task_queue", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Error("Worker failed", "error", err.Error())
		os.Exit(1)
	}
}
