package model

// RewardState is the client-side cache of the user's XP, level and streak.
type RewardState struct {
	XP           int  `json:"xp"`
	Level        int  `json:"level"`
	XPToNext     int  `json:"xp_to_next_level"`
	StreakDays   int  `json:"current_streak"`
	StreakActive bool `json:"streak_active"`
}

// RewardSnapshot is the authoritative XP view returned by the server.
type RewardSnapshot struct {
	XP       int `json:"xp"`
	Level    int `json:"level"`
	XPToNext int `json:"xp_to_next_level"`
}

// StreakSnapshot is the authoritative streak view returned by the server.
type StreakSnapshot struct {
	CurrentStreak     int     `json:"current_streak"`
	StreakActive      bool    `json:"streak_active"`
	LastTaskCompleted *string `json:"last_task_completed,omitempty"`
}

// StreakUpdate is a streak overwrite carried by a mutating response.
type StreakUpdate struct {
	CurrentStreak int  `json:"current_streak"`
	Active        bool `json:"streak_active"`
	Increased     bool `json:"streak_increased"`
	BonusXP       int  `json:"streak_xp_gained"`
}
