package model

import "time"

// Profile is the devserver's authoritative gamification record for a user.
type Profile struct {
	UserID            string     `json:"user_id"`
	XP                int        `json:"xp"`
	Level             int        `json:"level"`
	CurrentStreak     int        `json:"current_streak"`
	LastTaskCompleted *time.Time `json:"last_task_completed,omitempty"`
	TotalFocusTime    int        `json:"total_focus_time"`
}

// MockTest is a started timed test together with its answer key.
type MockTest struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	QuestionIDs     []string       `json:"question_ids"`
	AnswerKey       map[string]int `json:"answer_key"`
	DurationMinutes int            `json:"duration_minutes"`
	StartedAt       time.Time      `json:"started_at"`
}

// Deadline returns the moment the test's time runs out.
func (t *MockTest) Deadline() time.Time {
	return t.StartedAt.Add(time.Duration(t.DurationMinutes) * time.Minute)
}
