package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/chartcore/internal/api"
	"github.com/dgnsrekt/chartcore/internal/config"
	"github.com/dgnsrekt/chartcore/internal/controller"
	"github.com/dgnsrekt/chartcore/internal/netutil"
	"github.com/dgnsrekt/chartcore/internal/storage"
	"github.com/dgnsrekt/chartcore/internal/stream"
	"github.com/go-chi/chi/v5"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("chartd config loaded",
		"bind_addr", cfg.BindAddr,
		"frame_interval_ms", cfg.FrameIntervalMS,
		"strict_time", cfg.StrictTime,
		"journal_dir", cfg.JournalDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.Choose(cfg.BindAddr, cfg.PortCandidates)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	broker := stream.NewBroker(cfg.StreamBufferSize)
	defer broker.Close()

	var journal *storage.Journal
	if cfg.JournalDir != "" {
		journal = storage.NewJournal(cfg.JournalDir, cfg.JournalBufferSize, cfg.JournalMaxSizeMB)
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Error("journal close failed", "error", err)
			}
		}()
	}

	svc := controller.New(controller.Options{
		StrictTime:    cfg.StrictTime,
		FrameInterval: time.Duration(cfg.FrameIntervalMS) * time.Millisecond,
		Journal:       journal,
		Broker:        broker,
	})
	defer svc.Close()

	streamHandler := stream.Handler(broker, func(r *http.Request) string {
		return chi.URLParam(r, "chart_id")
	})

	srv := &http.Server{
		Addr:    bindAddr,
		Handler: api.NewServer(svc, streamHandler),
	}

	go func() {
		slog.Info("chartd listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("chartd server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("chartd shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
