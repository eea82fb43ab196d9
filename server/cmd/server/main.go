package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/logista/realtime-bridge/server/internal/api"
	"github.com/logista/realtime-bridge/server/internal/auth"
	"github.com/logista/realtime-bridge/server/internal/config"
	"github.com/logista/realtime-bridge/server/internal/metrics"
	"github.com/logista/realtime-bridge/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file (hot reloaded)")
	envFile := flag.String("env-file", ".env", "dotenv file merged into the environment; missing file is ignored")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		slog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		slog.Warn("failed to set GOMAXPROCS", "err", err)
	}

	if err := config.LoadDotenv(*envFile); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if lvl, err := config.ParseLevel(cfg.LogLevel); err == nil {
		level.Set(lvl)
	}
	slog.Info("realtime-bridge starting", "config", cfg)

	resolver, err := auth.New(cfg.Auth, cfg.DefaultChannel)
	if err != nil {
		slog.Error("failed to configure auth", "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	hub := ws.New(ws.Options{
		HistoryLimit:    cfg.HistoryLimit,
		Heartbeat:       cfg.Heartbeat.Std(),
		RoomIdleTTL:     cfg.RoomIdleTTL.Std(),
		SendBuffer:      cfg.SendBuffer,
		MaxMessageBytes: cfg.MaxMessageBytes,
		MaxMessageRate:  cfg.MaxMessageRate,
		Resolver:        resolver,
		Metrics:         m,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// WebSocket clients connect to the root path, as the existing browser
	// hook expects; everything else is operator surface.
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(hub))
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("realtime-bridge shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if *configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, *configPath, cfg, func(next *config.Config) error {
				return applyReload(gctx, hub, level, next)
			})
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("realtime-bridge stopped", "err", err)
		os.Exit(1)
	}
}

// applyReload pushes the hot-reloadable settings to the running process.
// Settings that shape the listener or existing sessions need a restart.
func applyReload(ctx context.Context, hub *ws.Hub, level *slog.LevelVar, cfg *config.Config) error {
	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if err := hub.SetHistoryLimit(ctx, cfg.HistoryLimit); err != nil {
		return fmt.Errorf("history limit: %w", err)
	}
	if err := hub.SetRoomIdleTTL(ctx, cfg.RoomIdleTTL.Std()); err != nil {
		return fmt.Errorf("room idle ttl: %w", err)
	}
	level.Set(lvl)
	return nil
}
