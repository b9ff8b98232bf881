package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/neuroboost/study-core/internal/middleware"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/repository"
	"github.com/neuroboost/study-core/internal/response"
	"github.com/neuroboost/study-core/internal/service"
	"github.com/neuroboost/study-core/internal/validator"
	"github.com/rs/zerolog"
)

// RewardHandler serves XP, streak, task and focus-session endpoints.
type RewardHandler struct {
	rewardService *service.RewardService
	tasks         *repository.TaskRepository
	log           zerolog.Logger
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewardService *service.RewardService, tasks *repository.TaskRepository, log zerolog.Logger) *RewardHandler {
	return &RewardHandler{
		rewardService: rewardService,
		tasks:         tasks,
		log:           log.With().Str("component", "reward_handler").Logger(),
	}
}

// GetXP godoc
// GET /api/user/xp/
func (h *RewardHandler) GetXP(c *gin.Context) {
	snap, err := h.rewardService.Snapshot(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("Reward snapshot failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// GetStreak godoc
// GET /api/user/streak/
func (h *RewardHandler) GetStreak(c *gin.Context) {
	streak, err := h.rewardService.Streak(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("Streak snapshot failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, streak)
}

// ListTasks godoc
// GET /api/tasks/
func (h *RewardHandler) ListTasks(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"tasks": h.tasks.List(c.Request.Context())})
}

// ToggleTask godoc
// POST /api/tasks/toggle/:id/
// Sets a task's completion flag and returns every reward field it changed.
func (h *RewardHandler) ToggleTask(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("id"))
	if err != nil || taskID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ToggleTaskRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.rewardService.ToggleTask(c.Request.Context(), middleware.UserID(c), taskID, req.Completed)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Int("task_id", taskID).Msg("Task toggle failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// LogFocusSession godoc
// POST /api/focus-session/log/
func (h *RewardHandler) LogFocusSession(c *gin.Context) {
	var req model.FocusSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.rewardService.LogFocusSession(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Focus session log failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}
