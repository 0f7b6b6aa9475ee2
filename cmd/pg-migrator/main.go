package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"thirdcoast.systems/shorts/internal/application"
	"thirdcoast.systems/shorts/internal/config"
	"thirdcoast.systems/shorts/internal/db"
)

func main() {
	startupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conf, err := config.LoadConfig(startupCtx, ".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	application.NewLogger(conf.LogLevel, conf.LogFormat)
	slog.Info("Starting database migrator")

	pool, err := application.OpenDBPoolWithRetry(startupCtx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(startupCtx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	if err := dbc.Migrate(startupCtx); err != nil {
		slog.Error("failed to run PostgreSQL migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed successfully")
}
