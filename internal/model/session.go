package model

// Kind distinguishes untimed MCQ batches from timed mock tests.
type Kind string

const (
	KindBatch Kind = "untimed-batch"
	KindTimed Kind = "timed-test"
)

// State enumerates Session Controller states.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateGraded     State = "graded"
)

// StartParams constrains the question set requested when a session starts.
type StartParams struct {
	Topic           string     `json:"topic,omitempty" validate:"max=100"`
	Difficulty      Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Count           int        `json:"count,omitempty" validate:"min=0,max=50"`
	DurationMinutes int        `json:"duration_minutes,omitempty" validate:"min=0,max=180"`
}

// DefaultBatchCount is used when a batch is started without an explicit count.
const DefaultBatchCount = 5

// Session is one assessment instance owned by a Session Controller.
type Session struct {
	ID               string         `json:"id"`
	Kind             Kind           `json:"kind"`
	Topic            string         `json:"topic,omitempty"`
	Questions        []Question     `json:"questions"`
	Answers          map[string]int `json:"answers"`
	DurationMinutes  int            `json:"duration_minutes,omitempty"`
	RemainingSeconds int            `json:"remaining_seconds,omitempty"`
	State            State          `json:"state"`
}

// HasQuestion reports whether id belongs to the session and returns its option count.
func (s *Session) HasQuestion(id string) (int, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return len(s.Questions[i].Options), true
		}
	}
	return 0, false
}

// Clone returns a deep copy safe to hand to renderers.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Questions = append([]Question(nil), s.Questions...)
	cp.Answers = make(map[string]int, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	return &cp
}

// Outcome is the graded result of a session.
type Outcome struct {
	SessionID        string                    `json:"session_id"`
	Kind             Kind                      `json:"kind"`
	Forced           bool                      `json:"forced"`
	Results          map[string]QuestionResult `json:"results"`
	CorrectCount     int                       `json:"correct_count"`
	TotalCount       int                       `json:"total_count"`
	TimeTakenMinutes float64                   `json:"time_taken_minutes,omitempty"`
	XPGained         int                       `json:"xp_gained"`
}

// Percentage returns the rounded score percentage, 0 for an empty session.
func (o *Outcome) Percentage() int {
	if o.TotalCount == 0 {
		return 0
	}
	return (o.CorrectCount*100 + o.TotalCount/2) / o.TotalCount
}
