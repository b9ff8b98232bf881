// Package activity runs the task-completion and focus-session flows against the
// shared reward synchronizer.
package activity

import (
	"context"
	"fmt"

	"github.com/neuroboost/study-core/internal/grading"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/reward"
	"github.com/neuroboost/study-core/internal/validator"
	"github.com/rs/zerolog"
)

// API is the server surface used by the activity flows.
type API interface {
	ToggleTaskCompletion(ctx context.Context, taskID int, completed bool) (*model.ToggleTaskResponse, error)
	LogFocusSession(ctx context.Context, req model.FocusSessionRequest) (*model.FocusSessionResponse, error)
}

// Service applies optimistic rewards for user activity and reconciles them.
type Service struct {
	api     API
	rewards *reward.Synchronizer
	log     zerolog.Logger
}

// NewService creates a Service.
func NewService(api API, rewards *reward.Synchronizer, log zerolog.Logger) *Service {
	return &Service{
		api:     api,
		rewards: rewards,
		log:     log.With().Str("component", "activity").Logger(),
	}
}

// ToggleTask marks a task completed or not. Completing applies the task's XP
// before the request; the server response then settles streak and XP, in that order.
func (s *Service) ToggleTask(ctx context.Context, task model.Task, completed bool) (*model.ToggleTaskResponse, error) {
	var seq reward.Seq
	if completed {
		seq, _ = s.rewards.ApplyLocalGain(task.Category.XP())
	} else {
		seq = s.rewards.Issue()
	}

	resp, err := s.api.ToggleTaskCompletion(ctx, task.ID, completed)
	if err != nil {
		s.log.Warn().Err(err).Int("task_id", task.ID).Msg("Task toggle failed, refreshing rewards")
		s.rewards.Load(ctx)
		return nil, fmt.Errorf("toggle task %d: %w", task.ID, err)
	}

	if resp.StreakUpdated {
		s.rewards.ReconcileStreak(seq, resp.Streak())
	}
	leveledUp, applied := s.rewards.Reconcile(seq, resp.Snapshot())
	if applied && resp.LeveledUp && !leveledUp {
		s.rewards.ConfirmLevelUp(resp.NewLevel)
	}
	return resp, nil
}

// LogFocusSession records a focus session. Sessions of FocusXPThreshold minutes or
// more earn FocusXP, applied before the request.
func (s *Service) LogFocusSession(ctx context.Context, minutes int, notes string) (*model.FocusSessionResponse, error) {
	req := model.FocusSessionRequest{DurationMinutes: minutes, Notes: notes}
	if fields := validator.Struct(req); fields != nil {
		return nil, &grading.ValidationError{Op: "log focus session", Message: "Invalid focus session", Fields: fields}
	}

	if minutes >= model.FocusXPThreshold {
		s.rewards.ApplyLocalGain(model.FocusXP)
	}

	before := s.rewards.State().Level
	resp, err := s.api.LogFocusSession(ctx, req)
	s.rewards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("log focus session: %w", err)
	}
	if after := s.rewards.State().Level; resp.LevelUp && after <= before {
		s.rewards.ConfirmLevelUp(after)
	}

	s.log.Info().Int("minutes", minutes).Int("xp_gained", resp.XPGained).Msg("Focus session logged")
	return resp, nil
}
