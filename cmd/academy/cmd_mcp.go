package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/felixgeelhaar/academy/internal/academy"
	"github.com/felixgeelhaar/academy/internal/config"
	mcpserver "github.com/felixgeelhaar/academy/internal/mcp"
)

// cmdMCP serves the academy over MCP on stdio
func cmdMCP() error {
	dir, err := config.EnsureAcademyDir()
	if err != nil {
		return fmt.Errorf("ensure academy dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the protocol
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := academy.Open(ctx, cfg, filepath.Join(dir, "data"), logger)
	if err != nil {
		return fmt.Errorf("open academy: %w", err)
	}
	defer rt.Close()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{App: rt.App})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return mcpSrv.ServeStdio(ctx)
}
