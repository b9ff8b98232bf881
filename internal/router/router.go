package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/neuroboost/study-core/internal/config"
	"github.com/neuroboost/study-core/internal/handler"
	"github.com/neuroboost/study-core/internal/middleware"
	"github.com/neuroboost/study-core/internal/response"
	"github.com/neuroboost/study-core/internal/service"
)

// Handlers groups the devserver handler instances for route setup.
type Handlers struct {
	Question *handler.QuestionHandler
	Reward   *handler.RewardHandler
	System   *handler.SystemHandler
}

func corsConfig(cfg *config.Config) cors.Config {
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.CSRFHeader, "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

// SetupRouter configures the reference grading backend.
func SetupRouter(
	csrf *service.CSRFService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	router.Use(cors.New(corsConfig(cfg)))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.IdentifyUser(csrf))
	router.Use(middleware.Compress())

	router.GET("/health", handlers.System.Health)

	api := router.Group("/api")

	// ─── 1. Bootstrap (Public) ─────────────────────────────────────────
	api.GET("/csrf/", middleware.NoStore(), handlers.System.IssueCSRF)

	// ─── 2. Reads ──────────────────────────────────────────────────────
	reads := api.Group("")
	reads.Use(middleware.NoStore())
	{
		reads.GET("/user/xp/", handlers.Reward.GetXP)
		reads.GET("/user/streak/", handlers.Reward.GetStreak)
		reads.GET("/tasks/", handlers.Reward.ListTasks)
	}

	// ─── 3. Mutations (CSRF + Rate Limited) ────────────────────────────
	mutating := api.Group("")
	mutating.Use(limiter.Middleware(), middleware.RequireCSRF(csrf))
	{
		mutating.POST("/question-center/generate-mcqs/", handlers.Question.GenerateMCQs)
		mutating.POST("/question-center/start-mock-test/", handlers.Question.StartMockTest)
		mutating.POST("/question-center/submit-mcqs/", handlers.Question.SubmitMCQs)
		mutating.POST("/question-center/submit-mock-test/", handlers.Question.SubmitMockTest)
		mutating.POST("/tasks/toggle/:id/", handlers.Reward.ToggleTask)
		mutating.POST("/focus-session/log/", handlers.Reward.LogFocusSession)
	}

	return router
}

// SetupBridgeRouter configures the UI bridge in front of the session core.
func SetupBridgeRouter(ws *handler.WSHandler, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/v1/reward", middleware.NoStore(), ws.RewardState)

	// ─── WebSocket ─────────────────────────────────────────────────────
	router.GET("/ws/v1/study", ws.StudyStream)

	return router
}
