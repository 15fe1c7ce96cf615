package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mangrovewatch/mangrove/internal/redis"
	"github.com/mangrovewatch/mangrove/internal/rest"
	"github.com/mangrovewatch/mangrove/internal/session"
	"github.com/mangrovewatch/mangrove/internal/setup"
	"github.com/mangrovewatch/mangrove/internal/setup/telemetry"
	"github.com/mangrovewatch/mangrove/internal/statistics"
	"github.com/mangrovewatch/mangrove/internal/worker/core"
	"go.uber.org/zap"
)

// RESTLogDir specifies where REST server log files are stored.
const RESTLogDir = "logs/rest_logs"

// Server timeouts used when the config leaves them unset.
const (
	ReadTimeout     = 5 * time.Second
	WriteTimeout    = 10 * time.Second
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(context.Background(), telemetry.ServiceAPI, RESTLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(context.Background())

	sessionClient, err := app.RedisManager.GetClient(redis.SessionDBIndex)
	if err != nil {
		app.Logger.Fatal("Failed to get session client", zap.Error(err))
	}

	cacheClient, err := app.RedisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		app.Logger.Fatal("Failed to get cache client", zap.Error(err))
	}

	cfg := &app.Config.API
	services := app.DB.Service()
	sessions := session.NewManager(sessionClient, cfg.Session.TTL(), app.Logger)

	server := rest.NewServer(&rest.Services{
		Users:        services.User(),
		Sessions:     sessions,
		Submissions:  services.Submission(),
		Reviews:      services.Review(),
		Leaderboard:  services.Leaderboard(),
		Stats:        services.Stats(),
		Views:        services.View(),
		Charts:       statistics.NewChartCache(cacheClient, app.Logger),
		Workers:      core.NewMonitor(app.StatusClient, app.Logger),
		Queue:        app.Queue,
		SessionStore: sessions,
		UserStore:    services.User(),
	}, cfg, app.Logger)
	defer server.Close()

	// Get server address from config
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  secondsOr(cfg.Server.ReadTimeout, ReadTimeout),
		WriteTimeout: secondsOr(cfg.Server.WriteTimeout, WriteTimeout),
		IdleTimeout:  secondsOr(cfg.Server.IdleTimeout, IdleTimeout),
	}

	// Start server in a goroutine
	go func() {
		app.Logger.Info("REST server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	app.Logger.Info("Shutting down REST server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		app.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	app.Logger.Info("Server gracefully stopped")
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
