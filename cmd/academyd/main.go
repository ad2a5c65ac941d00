package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/academy/internal/academy"
	"github.com/felixgeelhaar/academy/internal/config"
	"github.com/felixgeelhaar/academy/internal/daemon"
	"github.com/felixgeelhaar/academy/internal/queue"
)

const (
	pidFileName = "academyd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	academyDir, err := config.EnsureAcademyDir()
	if err != nil {
		return fmt.Errorf("ensure academy dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Daemon.LogLevel)
	logFile, err := setupLogging(academyDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	pidPath := filepath.Join(academyDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx := context.Background()
	rt, err := academy.Open(ctx, cfg, filepath.Join(academyDir, "data"), slog.Default())
	if err != nil {
		return fmt.Errorf("open academy: %w", err)
	}
	defer rt.Close()

	publisher, conn := startPublisher(cfg, rt)
	if conn != nil {
		defer conn.Close()
	}

	server, err := daemon.NewServer(ctx, daemon.ServerConfig{
		Config:  cfg,
		Runtime: rt,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if publisher != nil {
			if err := publisher.Close(ctx); err != nil {
				slog.Warn("activity publisher close", "error", err)
			}
			sent, dropped, failed := publisher.Stats()
			slog.Info("activity publisher stopped", "sent", sent, "dropped", dropped, "failed", failed)
		}
		close(done)
	}()

	if err := server.Start(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// startPublisher forwards learner events to RabbitMQ when a broker is
// configured. A broker that cannot be reached only disables publishing.
func startPublisher(cfg *config.LocalConfig, rt *academy.Runtime) (*queue.Publisher, *queue.Connection) {
	if cfg.Events.AMQPURL == "" {
		return nil, nil
	}

	conn, err := queue.NewConnection(cfg.Events.AMQPURL, cfg.Events.Queue)
	if err != nil {
		slog.Warn("activity publishing disabled", "error", err)
		return nil, nil
	}

	source, _ := os.Hostname()
	publisher := queue.NewPublisher(conn, queue.PublisherConfig{
		Queue:  conn.Queue(),
		Source: source,
	})
	rt.Dispatcher.SubscribeAll(publisher.Handle)
	return publisher, conn
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(academyDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(academyDir, "logs", "academyd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode
	slog.SetDefault(slog.New(&multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}))

	return logFile, nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
