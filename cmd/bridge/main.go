package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neuroboost/study-core/internal/activity"
	"github.com/neuroboost/study-core/internal/config"
	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/grading"
	"github.com/neuroboost/study-core/internal/handler"
	"github.com/neuroboost/study-core/internal/logger"
	"github.com/neuroboost/study-core/internal/reward"
	"github.com/neuroboost/study-core/internal/router"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "bridge")
	log.Info().
		Str("port", cfg.BridgePort).
		Str("api", cfg.APIBaseURL).
		Msg("Starting NeuroBoost study bridge")

	// ─── Grading Client ────────────────────────────────────────────────
	client, err := grading.NewClient(cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create grading client")
	}

	// ─── Core ──────────────────────────────────────────────────────────
	bus := events.NewBus()
	busLog := logger.Component(log, "event_bus")
	bus.Subscribe(func(e events.Event) {
		busLog.Debug().Str("event", string(e.Type)).Msg("Core event")
	})

	rewards := reward.NewSynchronizer(client, bus, log)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	rewards.Load(loadCtx)
	loadCancel()

	activities := activity.NewService(client, rewards, log)
	wsHandler := handler.NewWSHandler(client, rewards, activities, bus, cfg.SubmitTimeout, log, cfg.AllowedOrigins)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupBridgeRouter(wsHandler, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.BridgePort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
