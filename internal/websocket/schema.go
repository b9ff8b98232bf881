package websocket

import "github.com/neuroboost/study-core/internal/model"

// ─── Actions (Client → Bridge) ──────────────────────────────────────

type Action string

const (
	ActionStart      Action = "start"
	ActionAnswer     Action = "answer"
	ActionSubmit     Action = "submit"
	ActionReset      Action = "reset"
	ActionToggleTask Action = "toggle_task"
	ActionLogFocus   Action = "log_focus"
	ActionPing       Action = "ping"
)

// RequestPayload carries every action; each action reads only its own fields.
type RequestPayload struct {
	Action Action `json:"action"`

	// start
	Kind   model.Kind        `json:"kind,omitempty"`
	Params model.StartParams `json:"params"`

	// answer
	QuestionID string `json:"question_id,omitempty"`
	Option     int    `json:"option"`

	// toggle_task
	Task      model.Task `json:"task"`
	Completed bool       `json:"completed"`

	// log_focus
	Minutes int    `json:"minutes,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// ─── Events (Bridge → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventPong    Event = "pong"
	EventSession Event = "session"
	EventReward  Event = "reward"
	EventTask    Event = "task_toggled"
	EventFocus   Event = "focus_logged"
)

// DataResponse wraps a payload under an event name, matching the core event shape.
type DataResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Error  string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
