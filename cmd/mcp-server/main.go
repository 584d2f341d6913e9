// Package main is the MCP stdio entry point. It needs no network services:
// reference tables are compiled in and the audit trail is a local SQLite file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/biomarker-assessment-engine/internal/config"
	"github.com/biomarker-assessment-engine/internal/logging"
	"github.com/biomarker-assessment-engine/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()

	// stdout carries the protocol; logs go to stderr
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.WithField("data_dir", cfg.DataDir).Info("Starting biomarker MCP server")

	server, err := mcp.NewServer(cfg, mcp.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}
	logger.Info("MCP server stopped")
}
