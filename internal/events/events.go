// Package events carries state-change notifications from the session and reward
// core to whatever renders them.
package events

import "github.com/neuroboost/study-core/internal/model"

// Type names an event on the wire.
type Type string

const (
	TypeSessionState    Type = "session_state"
	TypeCountdown       Type = "countdown"
	TypeGraded          Type = "graded"
	TypeSessionError    Type = "session_error"
	TypeXPGained        Type = "xp_gained"
	TypeRewardChanged   Type = "reward_changed"
	TypeLevelUp         Type = "level_up"
	TypeStreakChanged   Type = "streak_changed"
	TypeStreakIncreased Type = "streak_increased"
)

// Event is a single notification. Data is one of the payload structs below.
type Event struct {
	Type Type        `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// SessionState reports a controller transition.
type SessionState struct {
	SessionID string      `json:"session_id,omitempty"`
	Kind      model.Kind  `json:"kind,omitempty"`
	State     model.State `json:"state"`
}

// Countdown reports the remaining time of a timed test.
type Countdown struct {
	SessionID        string `json:"session_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// SessionError reports a failed start or submit.
type SessionError struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// XPGained reports an optimistic XP gain.
type XPGained struct {
	Amount int `json:"amount"`
}

// LevelUp reports a level boundary crossing. Provisional level-ups come from the
// local projection and may be corrected by the server.
type LevelUp struct {
	Level       int  `json:"level"`
	Provisional bool `json:"provisional"`
}

// StreakIncreased reports a streak extension and its bonus XP.
type StreakIncreased struct {
	Streak  int `json:"streak"`
	BonusXP int `json:"bonus_xp"`
}

// Publisher accepts events.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f(e).
func (f PublisherFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})
