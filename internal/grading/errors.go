package grading

import "fmt"

// NetworkError reports a failed request or a non-success response status.
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user.
func (e *NetworkError) UserMessage() string { return e.Message }

// ValidationError reports a payload rejected by the server or by client-side checks.
type ValidationError struct {
	Op      string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// UserMessage is the text shown to the user.
func (e *ValidationError) UserMessage() string { return e.Message }

// genericMessages are shown when the server payload carries no message.
var genericMessages = map[string]string{
	opGenerateMCQs:    "Could not generate questions",
	opStartMockTest:   "Could not start mock test",
	opSubmitMCQs:      "Could not submit answers",
	opSubmitMockTest:  "Could not submit test",
	opRewardSnapshot:  "Could not load XP data",
	opStreakSnapshot:  "Could not load streak data",
	opToggleTask:      "Could not update task",
	opLogFocusSession: "Could not log focus session",
	opBootstrap:       "Could not obtain anti-forgery token",
}

func genericMessage(op string) string {
	if msg, ok := genericMessages[op]; ok {
		return msg
	}
	return "Request failed"
}
