// Package session drives one assessment per UI surface: an untimed MCQ batch or a
// timed mock test, from question fetch through grading.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/grading"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/validator"
	"github.com/rs/zerolog"
)

// Controller errors.
var (
	ErrSessionLive     = errors.New("a session is already live on this surface")
	ErrNotActive       = errors.New("no active session")
	ErrUnknownKind     = errors.New("unknown session kind")
	ErrNoQuestions     = errors.New("no questions available")
	ErrUnknownQuestion = errors.New("question is not part of this session")
	ErrInvalidOption   = errors.New("option index out of range")
)

const defaultSubmitTimeout = 30 * time.Second

// Grader is the grading collaborator as seen by the controller.
type Grader interface {
	CreateQuestionBatch(ctx context.Context, params model.StartParams) ([]model.Question, error)
	CreateTimedTest(ctx context.Context, params model.StartParams) (*model.MockTestResponse, error)
	GradeBatch(ctx context.Context, answers map[string]int) (*model.GradeBatchResponse, error)
	GradeTimedTest(ctx context.Context, testID string, answers map[string]int, forced bool) (*model.GradeMockTestResponse, error)
}

// RewardReporter receives the XP earned by a graded session.
type RewardReporter interface {
	ReportGain(ctx context.Context, amount int)
}

// Options configures a Controller. Zero values are replaced by defaults.
type Options struct {
	Rewards       RewardReporter
	Publisher     events.Publisher
	Clock         Clock
	SubmitTimeout time.Duration
}

// Controller owns the lifecycle of at most one live session.
type Controller struct {
	mu      sync.Mutex
	state   model.State
	sess    *model.Session
	outcome *model.Outcome
	// expired is set once the countdown reached zero; every later submit is forced.
	expired bool
	// gen identifies the current countdown; stale countdown goroutines compare it.
	gen       uint64
	stopTimer context.CancelFunc
	closed    bool

	grader        Grader
	rewards       RewardReporter
	pub           events.Publisher
	clock         Clock
	submitTimeout time.Duration
	log           zerolog.Logger
}

// NewController creates an idle Controller.
func NewController(grader Grader, opts Options, log zerolog.Logger) *Controller {
	if opts.Publisher == nil {
		opts.Publisher = events.Discard
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	return &Controller{
		state:         model.StateIdle,
		grader:        grader,
		rewards:       opts.Rewards,
		pub:           opts.Publisher,
		clock:         opts.Clock,
		submitTimeout: opts.SubmitTimeout,
		log:           log.With().Str("component", "session_controller").Logger(),
	}
}

// State returns the controller state.
func (c *Controller) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current session, or nil.
func (c *Controller) Snapshot() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.Clone()
}

// Outcome returns the graded result, or nil before grading.
func (c *Controller) Outcome() *model.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return nil
	}
	cp := *c.outcome
	return &cp
}

// Start fetches questions and activates a new session. It fails with
// ErrSessionLive while another session is loading, active or submitting.
func (c *Controller) Start(ctx context.Context, kind model.Kind, params model.StartParams) (*model.Session, error) {
	if kind != model.KindBatch && kind != model.KindTimed {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if fields := validator.Struct(params); fields != nil {
		return nil, &grading.ValidationError{Op: "start session", Message: "Invalid session parameters", Fields: fields}
	}

	c.mu.Lock()
	if c.state == model.StateLoading || c.state == model.StateActive || c.state == model.StateSubmitting {
		c.mu.Unlock()
		return nil, ErrSessionLive
	}
	c.discardLocked()
	c.state = model.StateLoading
	c.mu.Unlock()
	c.publishState("", kind, model.StateLoading)

	sess, err := c.fetch(ctx, kind, params)
	if err != nil {
		c.mu.Lock()
		c.state = model.StateIdle
		c.mu.Unlock()

		c.log.Warn().Err(err).Str("kind", string(kind)).Msg("Session start failed")
		c.publishState("", kind, model.StateIdle)
		c.publishError("", err, false)
		return nil, err
	}

	c.mu.Lock()
	c.sess = sess
	c.setStateLocked(model.StateActive)
	snapshot := sess.Clone()
	c.mu.Unlock()

	c.log.Info().
		Str("session_id", sess.ID).
		Str("kind", string(kind)).
		Int("questions", len(sess.Questions)).
		Msg("Session started")
	c.publishState(sess.ID, kind, model.StateActive)

	// The countdown may submit at once, so it starts only after active is out.
	if kind == model.KindTimed {
		c.resumeCountdown(sess.ID)
	}
	return snapshot, nil
}

func (c *Controller) fetch(ctx context.Context, kind model.Kind, params model.StartParams) (*model.Session, error) {
	sess := &model.Session{
		Kind:    kind,
		Topic:   params.Topic,
		Answers: make(map[string]int),
		State:   model.StateLoading,
	}

	switch kind {
	case model.KindBatch:
		questions, err := c.grader.CreateQuestionBatch(ctx, params)
		if err != nil {
			return nil, err
		}
		sess.ID = uuid.NewString()
		sess.Questions = questions
	case model.KindTimed:
		test, err := c.grader.CreateTimedTest(ctx, params)
		if err != nil {
			return nil, err
		}
		sess.ID = test.TestID
		sess.Questions = test.Questions
		sess.DurationMinutes = params.DurationMinutes
		sess.RemainingSeconds = params.DurationMinutes * 60
	}

	if len(sess.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return sess, nil
}

// RecordAnswer stores the selected option for a question, replacing any earlier
// answer. Only valid while the session is active.
func (c *Controller) RecordAnswer(questionID string, optionIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.StateActive {
		return ErrNotActive
	}
	n, ok := c.sess.HasQuestion(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if optionIndex < 0 || optionIndex >= n {
		return fmt.Errorf("%w: %d", ErrInvalidOption, optionIndex)
	}
	c.sess.Answers[questionID] = optionIndex
	return nil
}

// Submit sends the captured answers for grading. forced marks a timeout-triggered
// submission. When another submit already owns the session, Submit is a no-op and
// returns (nil, nil).
func (c *Controller) Submit(ctx context.Context, forced bool) (*model.Outcome, error) {
	return c.submit(ctx, forced, 0)
}

// submit only acts on countdown generation gen when gen is non-zero.
func (c *Controller) submit(ctx context.Context, forced bool, gen uint64) (*model.Outcome, error) {
	c.mu.Lock()
	if gen != 0 && gen != c.gen {
		c.mu.Unlock()
		return nil, nil
	}
	switch c.state {
	case model.StateActive:
	case model.StateSubmitting, model.StateGraded:
		c.mu.Unlock()
		c.log.Debug().Bool("forced", forced).Msg("Submit already in progress, ignoring")
		return nil, nil
	default:
		c.mu.Unlock()
		return nil, ErrNotActive
	}

	if c.expired {
		forced = true
	}
	c.stopCountdownLocked()
	c.setStateLocked(model.StateSubmitting)
	sess := c.sess.Clone()
	c.mu.Unlock()
	c.publishState(sess.ID, sess.Kind, model.StateSubmitting)

	outcome, err := c.grade(ctx, sess, forced)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(model.StateActive)
		c.mu.Unlock()

		c.log.Error().Err(err).Str("session_id", sess.ID).Bool("forced", forced).Msg("Submit failed")
		c.publishState(sess.ID, sess.Kind, model.StateActive)
		c.publishError(sess.ID, err, true)

		if sess.Kind == model.KindTimed {
			c.resumeCountdown(sess.ID)
		}
		return nil, err
	}

	c.mu.Lock()
	c.outcome = outcome
	c.setStateLocked(model.StateGraded)
	c.mu.Unlock()

	c.log.Info().
		Str("session_id", sess.ID).
		Bool("forced", forced).
		Int("correct", outcome.CorrectCount).
		Int("total", outcome.TotalCount).
		Msg("Session graded")
	c.publishState(sess.ID, sess.Kind, model.StateGraded)
	c.pub.Publish(events.Event{Type: events.TypeGraded, Data: outcome})

	if outcome.XPGained > 0 && c.rewards != nil {
		c.rewards.ReportGain(ctx, outcome.XPGained)
	}
	return outcome, nil
}

func (c *Controller) grade(ctx context.Context, sess *model.Session, forced bool) (*model.Outcome, error) {
	switch sess.Kind {
	case model.KindBatch:
		resp, err := c.grader.GradeBatch(ctx, sess.Answers)
		if err != nil {
			return nil, err
		}
		correct := 0
		for _, q := range sess.Questions {
			if r, ok := resp.Results[q.ID]; ok && r.Correct {
				correct++
			}
		}
		return &model.Outcome{
			SessionID:    sess.ID,
			Kind:         sess.Kind,
			Results:      resp.Results,
			CorrectCount: correct,
			TotalCount:   len(sess.Questions),
			XPGained:     resp.XPGained,
		}, nil
	default:
		resp, err := c.grader.GradeTimedTest(ctx, sess.ID, sess.Answers, forced)
		if err != nil {
			return nil, err
		}
		return &model.Outcome{
			SessionID:        sess.ID,
			Kind:             sess.Kind,
			Forced:           forced,
			Results:          resp.QuestionResults,
			CorrectCount:     resp.CorrectCount,
			TotalCount:       resp.TotalCount,
			TimeTakenMinutes: resp.TimeTaken,
			XPGained:         resp.XPGained,
		}, nil
	}
}

// Reset discards the current session so a new one can start.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state == model.StateLoading || c.state == model.StateSubmitting {
		c.mu.Unlock()
		return ErrSessionLive
	}
	c.discardLocked()
	c.state = model.StateIdle
	c.mu.Unlock()

	c.publishState("", "", model.StateIdle)
	return nil
}

// Close stops the countdown for good. An in-flight submit still completes.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopCountdownLocked()
	c.gen++
}

func (c *Controller) setStateLocked(s model.State) {
	c.state = s
	if c.sess != nil {
		c.sess.State = s
	}
}

// discardLocked cancels the countdown before dropping the session.
func (c *Controller) discardLocked() {
	c.stopCountdownLocked()
	c.gen++
	c.sess = nil
	c.outcome = nil
	c.expired = false
}

func (c *Controller) publishState(id string, kind model.Kind, state model.State) {
	c.pub.Publish(events.Event{
		Type: events.TypeSessionState,
		Data: events.SessionState{SessionID: id, Kind: kind, State: state},
	})
}

func (c *Controller) publishError(id string, err error, retryable bool) {
	c.pub.Publish(events.Event{
		Type: events.TypeSessionError,
		Data: events.SessionError{SessionID: id, Message: UserMessage(err), Retryable: retryable},
	})
}

// UserMessage extracts a human-readable message from err.
func UserMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	switch {
	case errors.Is(err, ErrSessionLive):
		return "Finish the current session first"
	case errors.Is(err, ErrNoQuestions):
		return "No questions available"
	case errors.Is(err, ErrNotActive):
		return "No active session"
	}
	return "Something went wrong"
}
