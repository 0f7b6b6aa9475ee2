package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/shorts/internal/api"
	"thirdcoast.systems/shorts/internal/application"
	"thirdcoast.systems/shorts/internal/config"
	"thirdcoast.systems/shorts/internal/db"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/pipeline"
)

// pollInterval bounds how long a missed notification can delay a job.
const pollInterval = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.LoadConfig(ctx, ".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	application.NewLogger(conf.LogLevel, conf.LogFormat)
	slog.Info("Starting shorts worker")

	versionCtx, cancelVersion := context.WithTimeout(ctx, 10*time.Second)
	if v, err := application.YtdlpVersion(versionCtx, conf); err != nil {
		slog.Warn("yt-dlp not available", "cmd", conf.YtdlpCmd, "error", err)
	} else {
		slog.Info("Found yt-dlp", "version", v)
	}
	cancelVersion()

	if err := os.MkdirAll(conf.WorkDir, 0o755); err != nil {
		slog.Error("failed to create work dir", "dir", conf.WorkDir, "error", err)
		os.Exit(1)
	}
	if n, err := pipeline.CleanWorkDir(conf.WorkDir, conf.WorkDirMaxAge()); err != nil {
		slog.Warn("failed to clean work dir", "dir", conf.WorkDir, "error", err)
	} else if n > 0 {
		slog.Info("Removed old job directories", "count", n)
	}

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	store := db.NewStore(dbc)
	orch := application.NewOrchestrator(conf, store, workerID())

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	wake := make(chan struct{}, 1)
	spawn(func() { dbc.Listen(ctx, db.JobsChannel, wake) })

	sweeper := &pipeline.Sweeper{Store: store, MaxAge: conf.StaleJobMaxAge(), Interval: conf.StaleSweepInterval()}
	spawn(func() { sweeper.Run(ctx) })

	if conf.APIAddr != "" {
		srv := api.NewServer(store, conf.FragmentLimits())
		spawn(func() {
			if err := srv.Run(ctx, conf.APIAddr); err != nil {
				slog.Error("api server failed", "error", err)
				stop()
			}
		})
	}

	slog.Info("Workers started", "workers", conf.Workers, "worker_id", orch.Options.WorkerID)
	for i := range conf.Workers {
		spawn(func() { worker(ctx, i, store, orch, wake) })
	}

	<-ctx.Done()
	slog.Info("Worker service stopping")
	wg.Wait()
}

func workerID() string {
	// Hostname is the container id; PID is always 1 inside one.
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = fmt.Sprintf("pid-%d", os.Getpid())
	}
	return "shorts-" + hostname
}

// worker drains pending jobs, then waits for a notification or the poll tick.
func worker(ctx context.Context, n int, store *db.Store, orch *pipeline.Orchestrator, wake <-chan struct{}) {
	log := slog.With("worker", n)
	for {
		if ctx.Err() != nil {
			return
		}

		for ctx.Err() == nil {
			id, err := store.NextPendingJobID(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("failed to find pending job", "error", err)
				}
				break
			}
			if id == uuid.Nil {
				break
			}

			out, err := orch.Run(ctx, id)
			switch {
			case errors.Is(err, jobs.ErrDuplicateExecution):
				// Another worker holds it; give its claim a moment to land.
				log.Debug("job taken elsewhere", "job_id", id, "status", out.Status)
				select {
				case <-ctx.Done():
				case <-time.After(250 * time.Millisecond):
				}
			case err != nil:
				log.Warn("job finished with error", "job_id", id, "status", out.Status, "error", err)
			default:
				log.Info("job finished", "job_id", id, "status", out.Status, "fragments", out.Fragments)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-time.After(pollInterval):
		}
	}
}
