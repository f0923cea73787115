// Package main is the entry point for the car marketplace API server.
//
// The main package stays minimal: load the environment, build the logger,
// read the configuration, hand everything to internal/server. All real
// logic lives in the internal packages.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mahir/carmarket/internal/config"
	"github.com/mahir/carmarket/internal/server"
)

func main() {
	// A local .env is a convenience for development; in production the
	// variables come from the real environment and the file is absent.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", slog.String("error", err.Error()))
	}

	logLevel := slog.LevelInfo
	if os.Getenv("ENV") == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
