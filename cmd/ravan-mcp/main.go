// Package main provides the entry point for the ravan MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/raphaelgruber/ravan/internal/app"
	"github.com/raphaelgruber/ravan/internal/config"
	"github.com/raphaelgruber/ravan/internal/tools"
)

func main() {
	cfg := config.Load()

	// stdout carries the protocol, so logs go to stderr and the file only
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("ravan-mcp starting",
		"version", tools.Version,
		"store", cfg.Store,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	application.Start()
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := application.Close(closeCtx); err != nil {
			logger.Error("failed to close app", "error", err)
		}
	}()

	s := tools.NewServer(application.ToolDeps())
	logger.Info("server ready, awaiting connections")

	stdio := server.NewStdioServer(s)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		return
	}

	logger.Info("shutdown complete")
}
