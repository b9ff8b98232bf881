package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neuroboost/study-core/internal/config"
	"github.com/neuroboost/study-core/internal/database"
	"github.com/neuroboost/study-core/internal/handler"
	"github.com/neuroboost/study-core/internal/logger"
	"github.com/neuroboost/study-core/internal/middleware"
	"github.com/neuroboost/study-core/internal/repository"
	"github.com/neuroboost/study-core/internal/router"
	"github.com/neuroboost/study-core/internal/service"
	"github.com/neuroboost/study-core/internal/validator"
	"github.com/neuroboost/study-core/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "devserver")
	log.Info().
		Str("port", cfg.DevServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting NeuroBoost reference grading backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Profile Storage ───────────────────────────────────────────────
	var profiles repository.ProfileStore = repository.NewMemoryProfileRepository()
	if cfg.DatabaseURL != "" {
		if err := database.MigrateUp(cfg.DatabaseURL, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate PostgreSQL")
		}
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		profiles = repository.NewProfileRepository(pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set, profiles kept in memory")
	}

	// ─── Mock Test Storage ─────────────────────────────────────────────
	var (
		mockTests repository.MockTestStore
		sweeper   worker.Sweeper
	)
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		repo := repository.NewMockTestRepository(rdb)
		mockTests, sweeper = repo, repo
	} else {
		log.Warn().Msg("REDIS_URL not set, mock tests kept in memory")
		repo := repository.NewMemoryMockTestRepository()
		mockTests, sweeper = repo, repo
	}

	// ─── Start Background Workers ──────────────────────────────────────
	go worker.NewSweepWorker(sweeper, worker.DefaultSweepInterval, log).Start(ctx)

	// ─── Initialize Services ──────────────────────────────────────────
	tasks := repository.NewTaskRepository()
	csrfService := service.NewCSRFService(cfg)
	rewardService := service.NewRewardService(profiles, tasks, log)
	questionService := service.NewQuestionService(
		repository.NewQuestionRepository(),
		mockTests,
		rewardService,
		cfg.MockTestGrace,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Question: handler.NewQuestionHandler(questionService),
		Reward:   handler.NewRewardHandler(rewardService, tasks, log),
		System:   handler.NewSystemHandler(csrfService, log),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	defer limiter.Close()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(csrfService, limiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.DevServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
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
	cancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
