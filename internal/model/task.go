package model

// TaskCategory decides how much XP completing a task is worth.
type TaskCategory string

const (
	TaskCategoryStudy   TaskCategory = "Study"
	TaskCategoryGeneral TaskCategory = "General"
)

// XP returns the XP a task of this category grants on completion.
func (c TaskCategory) XP() int {
	if c == TaskCategoryStudy {
		return 10
	}
	return 5
}

// Task is a to-do item.
type Task struct {
	ID        int          `json:"id"`
	Title     string       `json:"title"`
	Category  TaskCategory `json:"category"`
	Completed bool         `json:"completed"`
	XPPoints  int          `json:"xp_points"`
}

// ToggleTaskRequest flips a task's completion flag.
type ToggleTaskRequest struct {
	Completed bool `json:"completed"`
}

// ToggleTaskResponse carries every reward field the server changed.
type ToggleTaskResponse struct {
	TaskID          int  `json:"task_id"`
	Completed       bool `json:"completed"`
	XPGained        int  `json:"xp_gained,omitempty"`
	NewXP           int  `json:"new_xp"`
	NewLevel        int  `json:"new_level"`
	XPToNextLevel   int  `json:"xp_to_next_level"`
	LeveledUp       bool `json:"leveled_up"`
	StreakUpdated   bool `json:"streak_updated"`
	CurrentStreak   int  `json:"current_streak"`
	StreakActive    bool `json:"streak_active"`
	StreakIncreased bool `json:"streak_increased"`
	StreakXPGained  int  `json:"streak_xp_gained"`
}

// Snapshot extracts the XP part of the response.
func (r *ToggleTaskResponse) Snapshot() RewardSnapshot {
	return RewardSnapshot{XP: r.NewXP, Level: r.NewLevel, XPToNext: r.XPToNextLevel}
}

// Streak extracts the streak part of the response.
func (r *ToggleTaskResponse) Streak() StreakUpdate {
	return StreakUpdate{
		CurrentStreak: r.CurrentStreak,
		Active:        r.StreakActive,
		Increased:     r.StreakIncreased,
		BonusXP:       r.StreakXPGained,
	}
}

// FocusSessionRequest logs a completed focus session.
type FocusSessionRequest struct {
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=600" validate:"min=1,max=600"`
	Notes           string `json:"notes,omitempty" binding:"max=500" validate:"max=500"`
}

// FocusSessionResponse acknowledges a focus session.
type FocusSessionResponse struct {
	SessionID       string `json:"session_id"`
	DurationMinutes int    `json:"duration_minutes"`
	XPGained        int    `json:"xp_gained"`
	LevelUp         bool   `json:"level_up"`
	TotalFocusTime  int    `json:"total_focus_time"`
}

// FocusXPThreshold is the minimum session length that earns FocusXP.
const (
	FocusXPThreshold = 25
	FocusXP          = 15
)
