// Package main provides the HTTP server for the therapy pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/ravan/internal/app"
	"github.com/raphaelgruber/ravan/internal/config"
	"github.com/raphaelgruber/ravan/internal/server"
)

func main() {
	portFlag := flag.String("port", "", "listen port (overrides RAVAN_SERVER_PORT)")
	flag.Parse()

	cfg := config.Load()
	if *portFlag != "" {
		cfg.ServerPort = *portFlag
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("starting ravan-server", "port", cfg.ServerPort, "store", cfg.Store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	application.Start()

	srv := server.New(application.ServerDeps(), logger)
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s/", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := application.Close(ctx); err != nil {
		logger.Error("failed to close app", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
