package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shuttlecourt/league/internal/config"
	"github.com/shuttlecourt/league/internal/db"
	"github.com/shuttlecourt/league/internal/live"
	"github.com/shuttlecourt/league/internal/scorecache"
	"github.com/shuttlecourt/league/internal/service"
	"github.com/shuttlecourt/league/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("db_driver", cfg.DBDriver))
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()

	if err := db.RunMigrations(database); err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	cache, err := scorecache.Connect(pingCtx, cfg.RedisURL)
	cancel()
	if err != nil {
		return err
	}
	defer cache.Close()
	logger.Info("score cache connected")

	hub := live.NewHub()
	go hub.Run(ctx)

	leagueStore := store.NewLeagueStore()
	matchStore := store.NewMatchStore()
	app := &application{
		leagues:  service.NewLeagueService(database, leagueStore),
		brackets: service.NewBracketService(database, leagueStore, matchStore, hub),
		matches:  service.NewMatchService(database, leagueStore, matchStore, cache, hub),
		live:     live.NewHandler(hub, cfg.CORSOrigins),
		origins:  cfg.CORSOrigins,
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newRouter(app),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
