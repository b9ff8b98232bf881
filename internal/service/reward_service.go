package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/repository"
	"github.com/rs/zerolog"
)

const (
	// StreakMilestone awards StreakBonusXP whenever the streak lands on a multiple of it.
	StreakMilestone = 5
	StreakBonusXP   = 20
)

var ErrTaskNotFound = errors.New("task not found")

// RewardService owns the authoritative XP, level and streak rules.
type RewardService struct {
	profiles repository.ProfileStore
	tasks    *repository.TaskRepository
	log      zerolog.Logger
	now      func() time.Time
}

// NewRewardService creates a new RewardService.
func NewRewardService(profiles repository.ProfileStore, tasks *repository.TaskRepository, log zerolog.Logger) *RewardService {
	return &RewardService{
		profiles: profiles,
		tasks:    tasks,
		log:      log.With().Str("component", "reward_service").Logger(),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for streak dates.
func (s *RewardService) SetClock(now func() time.Time) {
	s.now = now
}

// Snapshot returns the user's XP view.
func (s *RewardService) Snapshot(ctx context.Context, userID string) (*model.RewardSnapshot, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	snap := snapshotOf(p)
	return &snap, nil
}

// Streak returns the user's streak view.
func (s *RewardService) Streak(ctx context.Context, userID string) (*model.StreakSnapshot, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	out := &model.StreakSnapshot{
		CurrentStreak: p.CurrentStreak,
		StreakActive:  s.streakActive(p),
	}
	if p.LastTaskCompleted != nil {
		d := p.LastTaskCompleted.Format("2006-01-02")
		out.LastTaskCompleted = &d
	}
	return out, nil
}

// Award adds XP to the user and reports whether the level went up.
func (s *RewardService) Award(ctx context.Context, userID string, amount int) (*model.Profile, bool, error) {
	var leveledUp bool
	p, err := s.profiles.Update(ctx, userID, func(p *model.Profile) error {
		leveledUp = GainXP(p, amount)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("award xp: %w", err)
	}
	return p, leveledUp, nil
}

// ToggleTask sets a task's completion flag. A task that becomes completed awards
// its XP and advances the streak, including the milestone bonus.
func (s *RewardService) ToggleTask(ctx context.Context, userID string, taskID int, completed bool) (*model.ToggleTaskResponse, error) {
	prev, err := s.tasks.SetCompleted(ctx, taskID, completed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("set task completion: %w", err)
	}

	resp := &model.ToggleTaskResponse{TaskID: taskID, Completed: completed}
	today := dateOf(s.now())

	p, err := s.profiles.Update(ctx, userID, func(p *model.Profile) error {
		if !completed || prev.Completed {
			return nil
		}
		xp := prev.Category.XP()
		resp.XPGained = xp
		resp.LeveledUp = GainXP(p, xp)

		before := p.CurrentStreak
		if UpdateStreak(p, today) {
			resp.StreakUpdated = true
			resp.StreakIncreased = p.CurrentStreak > before
			if p.CurrentStreak%StreakMilestone == 0 {
				resp.StreakXPGained = StreakBonusXP
				if GainXP(p, StreakBonusXP) {
					resp.LeveledUp = true
				}
			}
		}
		return nil
	})
	if err != nil {
		// Roll the task back so a retry still awards its XP.
		if _, rbErr := s.tasks.SetCompleted(ctx, taskID, prev.Completed); rbErr != nil {
			s.log.Error().Err(rbErr).Int("task_id", taskID).Msg("Failed to restore task after profile error")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	snap := snapshotOf(p)
	resp.NewXP = snap.XP
	resp.NewLevel = snap.Level
	resp.XPToNextLevel = snap.XPToNext
	resp.CurrentStreak = p.CurrentStreak
	resp.StreakActive = s.streakActive(p)

	s.log.Info().
		Str("user_id", userID).
		Int("task_id", taskID).
		Bool("completed", completed).
		Int("xp_gained", resp.XPGained+resp.StreakXPGained).
		Msg("Task toggled")
	return resp, nil
}

// LogFocusSession adds the session to the user's focus time. Sessions of at least
// model.FocusXPThreshold minutes earn model.FocusXP.
func (s *RewardService) LogFocusSession(ctx context.Context, userID string, req model.FocusSessionRequest) (*model.FocusSessionResponse, error) {
	resp := &model.FocusSessionResponse{
		SessionID:       uuid.NewString(),
		DurationMinutes: req.DurationMinutes,
	}
	p, err := s.profiles.Update(ctx, userID, func(p *model.Profile) error {
		p.TotalFocusTime += req.DurationMinutes
		if req.DurationMinutes >= model.FocusXPThreshold {
			resp.XPGained = model.FocusXP
			resp.LevelUp = GainXP(p, model.FocusXP)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("log focus session: %w", err)
	}
	resp.TotalFocusTime = p.TotalFocusTime
	return resp, nil
}

func (s *RewardService) streakActive(p *model.Profile) bool {
	return p.LastTaskCompleted != nil && dateOf(*p.LastTaskCompleted).Equal(dateOf(s.now()))
}

// ─── Profile rules ──────────────────────────────────────────────────────────

// LevelForXP is floor(xp/100)+1.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/100 + 1
}

// GainXP adds amount to the profile and raises the level when the XP supports a
// higher one. Levels never go down.
func GainXP(p *model.Profile, amount int) bool {
	p.XP += amount
	if lvl := LevelForXP(p.XP); lvl > p.Level {
		p.Level = lvl
		return true
	}
	return false
}

// UpdateStreak records activity on day today and reports whether the streak count
// was set. Activity on the same day leaves the count alone.
func UpdateStreak(p *model.Profile, today time.Time) bool {
	today = dateOf(today)
	yesterday := today.AddDate(0, 0, -1)

	changed := true
	switch {
	case p.LastTaskCompleted == nil:
		p.CurrentStreak = 1
	case dateOf(*p.LastTaskCompleted).Equal(yesterday):
		p.CurrentStreak++
	case dateOf(*p.LastTaskCompleted).Before(yesterday):
		p.CurrentStreak = 1
	default:
		changed = false
	}
	p.LastTaskCompleted = &today
	return changed
}

func snapshotOf(p *model.Profile) model.RewardSnapshot {
	return model.RewardSnapshot{XP: p.XP, Level: p.Level, XPToNext: p.Level*100 - p.XP}
}

// dateOf truncates t to its calendar date, expressed in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
