package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/grading"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/session"
	"github.com/rs/zerolog"
)

const waitTimeout = 2 * time.Second

// ─── Fakes ──────────────────────────────────────────────────────────────────

type gradeCall struct {
	testID  string
	answers map[string]int
	forced  bool
}

type fakeGrader struct {
	mu        sync.Mutex
	questions []model.Question
	startErr  error
	gradeErr  error
	results   map[string]model.QuestionResult
	xp        int
	// block, when set, holds grading until it is closed.
	block chan struct{}

	calls chan gradeCall
}

func newFakeGrader(questions ...model.Question) *fakeGrader {
	return &fakeGrader{
		questions: questions,
		results:   map[string]model.QuestionResult{},
		calls:     make(chan gradeCall, 16),
	}
}

func (g *fakeGrader) CreateQuestionBatch(_ context.Context, _ model.StartParams) ([]model.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return nil, g.startErr
	}
	return g.questions, nil
}

func (g *fakeGrader) CreateTimedTest(_ context.Context, _ model.StartParams) (*model.MockTestResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return nil, g.startErr
	}
	return &model.MockTestResponse{TestID: "test-1", Questions: g.questions}, nil
}

func (g *fakeGrader) record(testID string, answers map[string]int, forced bool) (chan struct{}, error) {
	cp := make(map[string]int, len(answers))
	for k, v := range answers {
		cp[k] = v
	}
	g.calls <- gradeCall{testID: testID, answers: cp, forced: forced}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.block, g.gradeErr
}

func (g *fakeGrader) GradeBatch(_ context.Context, answers map[string]int) (*model.GradeBatchResponse, error) {
	block, err := g.record("", answers, false)
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &model.GradeBatchResponse{Results: g.results, XPGained: g.xp}, nil
}

func (g *fakeGrader) GradeTimedTest(_ context.Context, testID string, answers map[string]int, forced bool) (*model.GradeMockTestResponse, error) {
	block, err := g.record(testID, answers, forced)
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	correct := 0
	for _, r := range g.results {
		if r.Correct {
			correct++
		}
	}
	return &model.GradeMockTestResponse{
		TestID:          testID,
		CorrectCount:    correct,
		TotalCount:      len(g.questions),
		QuestionResults: g.results,
		XPGained:        g.xp,
	}, nil
}

func (g *fakeGrader) set(fn func(g *fakeGrader)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

type manualClock struct {
	created chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{created: make(chan *manualTicker, 8)}
}

func (c *manualClock) NewTicker(time.Duration) session.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.created <- t
	return t
}

func (c *manualClock) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-c.created:
		return tk
	case <-time.After(waitTimeout):
		t.Fatal("countdown was not started")
		return nil
	}
}

type gainRecorder struct {
	mu    sync.Mutex
	gains []int
}

func (r *gainRecorder) ReportGain(_ context.Context, amount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gains = append(r.gains, amount)
}

func question(id string) model.Question {
	return model.Question{ID: id, Prompt: "Q " + id, Options: []string{"a", "b", "c", "d"}}
}

func waitCall(t *testing.T, g *fakeGrader) gradeCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("grader was not called")
		return gradeCall{}
	}
}

func assertNoCall(t *testing.T, g *fakeGrader) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected grade call: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitState(t *testing.T, c *session.Controller, want model.State) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", c.State(), want)
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestController_AnswersLastWriteWins(t *testing.T) {
	g := newFakeGrader(question("q1"), question("q2"))
	c := session.NewController(g, session.Options{}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, a := range []struct {
		id  string
		opt int
	}{{"q1", 0}, {"q1", 2}, {"q2", 1}} {
		if err := c.RecordAnswer(a.id, a.opt); err != nil {
			t.Fatalf("RecordAnswer(%s, %d): %v", a.id, a.opt, err)
		}
	}

	if _, err := c.Submit(context.Background(), false); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	call := waitCall(t, g)
	if len(call.answers) != 2 || call.answers["q1"] != 2 || call.answers["q2"] != 1 {
		t.Errorf("submitted answers = %v", call.answers)
	}
}

func TestController_RecordAnswerValidation(t *testing.T) {
	g := newFakeGrader(question("q1"))
	c := session.NewController(g, session.Options{}, zerolog.Nop())

	if err := c.RecordAnswer("q1", 0); !errors.Is(err, session.ErrNotActive) {
		t.Errorf("answer while idle: err = %v, want ErrNotActive", err)
	}
	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tests := []struct {
		name string
		id   string
		opt  int
		want error
	}{
		{"unknown question", "nope", 0, session.ErrUnknownQuestion},
		{"negative option", "q1", -1, session.ErrInvalidOption},
		{"option past end", "q1", 4, session.ErrInvalidOption},
		{"valid", "q1", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.RecordAnswer(tt.id, tt.opt)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestController_StartRejectedWhileLive(t *testing.T) {
	g := newFakeGrader(question("q1"))
	c := session.NewController(g, session.Options{}, zerolog.Nop())

	first, err := c.Start(context.Background(), model.KindBatch, model.StartParams{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.RecordAnswer("q1", 1); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{}); !errors.Is(err, session.ErrSessionLive) {
		t.Fatalf("second Start while active: err = %v, want ErrSessionLive", err)
	}
	snap := c.Snapshot()
	if snap.ID != first.ID || snap.Answers["q1"] != 1 {
		t.Errorf("existing session changed: %+v", snap)
	}

	// Also rejected while the submit is in flight.
	block := make(chan struct{})
	g.set(func(g *fakeGrader) { g.block = block })
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Submit(context.Background(), false)
	}()
	waitCall(t, g)

	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{}); !errors.Is(err, session.ErrSessionLive) {
		t.Errorf("Start while submitting: err = %v, want ErrSessionLive", err)
	}
	if err := c.Reset(); !errors.Is(err, session.ErrSessionLive) {
		t.Errorf("Reset while submitting: err = %v, want ErrSessionLive", err)
	}
	close(block)
	<-done

	if c.State() != model.StateGraded {
		t.Fatalf("state = %s, want graded", c.State())
	}
	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{}); err != nil {
		t.Errorf("Start after graded: %v", err)
	}
}

func TestController_BatchScoreCountsUnanswered(t *testing.T) {
	g := newFakeGrader(question("q1"), question("q2"), question("q3"))
	g.results = map[string]model.QuestionResult{
		"q1": {Correct: true, CorrectOption: 1},
		"q2": {Correct: false, CorrectOption: 3},
	}
	g.xp = 5
	rewards := &gainRecorder{}
	c := session.NewController(g, session.Options{Rewards: rewards}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{Count: 3}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = c.RecordAnswer("q1", 1)
	_ = c.RecordAnswer("q2", 0)

	out, err := c.Submit(context.Background(), false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	call := waitCall(t, g)
	if _, ok := call.answers["q3"]; ok || len(call.answers) != 2 {
		t.Errorf("submitted answers = %v, want q1 and q2 only", call.answers)
	}
	if out.CorrectCount != 1 || out.TotalCount != 3 {
		t.Errorf("score = %d/%d, want 1/3", out.CorrectCount, out.TotalCount)
	}
	if out.Percentage() != 33 {
		t.Errorf("percentage = %d, want 33", out.Percentage())
	}
	if len(rewards.gains) != 1 || rewards.gains[0] != 5 {
		t.Errorf("reported gains = %v, want [5]", rewards.gains)
	}
	if got := c.Outcome(); got == nil || got.SessionID != out.SessionID {
		t.Errorf("Outcome() = %+v", got)
	}

	// A second submit on a graded session is a no-op.
	again, err := c.Submit(context.Background(), false)
	if again != nil || err != nil {
		t.Errorf("second Submit = %v, %v; want nil, nil", again, err)
	}
	assertNoCall(t, g)
}

func TestController_CountdownForcesExactlyOneSubmit(t *testing.T) {
	g := newFakeGrader(question("q1"))
	clock := newManualClock()

	countdowns := make(chan events.Countdown, 128)
	pub := events.PublisherFunc(func(e events.Event) {
		if cd, ok := e.Data.(events.Countdown); ok {
			countdowns <- cd
		}
	})
	c := session.NewController(g, session.Options{Publisher: pub, Clock: clock}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ticker := clock.next(t)

	block := make(chan struct{})
	g.set(func(g *fakeGrader) { g.block = block })

	for i := 0; i < 60; i++ {
		ticker.ch <- time.Now()
	}
	var last events.Countdown
	for i := 0; i < 60; i++ {
		last = <-countdowns
	}
	if last.RemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0", last.RemainingSeconds)
	}

	// A manual submit racing the expiry must not produce a second request.
	manual := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), false)
		manual <- err
	}()

	call := waitCall(t, g)
	if !call.forced {
		t.Errorf("submit after expiry was not forced")
	}
	if call.testID != "test-1" {
		t.Errorf("testID = %q", call.testID)
	}
	close(block)

	if err := <-manual; err != nil {
		t.Errorf("manual submit: %v", err)
	}
	waitState(t, c, model.StateGraded)
	assertNoCall(t, g)
	if out := c.Outcome(); out == nil || !out.Forced {
		t.Errorf("outcome = %+v, want forced", out)
	}
}

func TestController_ZeroDurationSubmitsImmediately(t *testing.T) {
	g := newFakeGrader(question("q1"))
	clock := newManualClock()
	c := session.NewController(g, session.Options{Clock: clock}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 0}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	call := waitCall(t, g)
	if !call.forced {
		t.Error("zero-duration submit was not forced")
	}
	waitState(t, c, model.StateGraded)
	assertNoCall(t, g)
}

func TestController_ZeroDurationPublishesActiveBeforeGrading(t *testing.T) {
	for i := 0; i < 100; i++ {
		g := newFakeGrader(question("q1"))

		var mu sync.Mutex
		var states []model.State
		pub := events.PublisherFunc(func(e events.Event) {
			if st, ok := e.Data.(events.SessionState); ok {
				mu.Lock()
				states = append(states, st.State)
				mu.Unlock()
			}
		})
		c := session.NewController(g, session.Options{Clock: newManualClock(), Publisher: pub}, zerolog.Nop())

		if _, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 0}); err != nil {
			t.Fatalf("Start: %v", err)
		}
		waitCall(t, g)

		want := []model.State{model.StateLoading, model.StateActive, model.StateSubmitting, model.StateGraded}
		var got []model.State
		deadline := time.Now().Add(waitTimeout)
		for time.Now().Before(deadline) {
			mu.Lock()
			got = append(got[:0], states...)
			mu.Unlock()
			if len(got) >= len(want) {
				break
			}
			time.Sleep(time.Millisecond)
		}
		if len(got) != len(want) {
			t.Fatalf("run %d: states = %v, want %v", i, got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("run %d: states = %v, want %v", i, got, want)
			}
		}
	}
}

func TestController_StartFailureReturnsToIdle(t *testing.T) {
	g := newFakeGrader()
	g.startErr = &grading.NetworkError{Op: "start mock test", Status: 500, Message: "Could not start mock test"}

	var mu sync.Mutex
	var errs []events.SessionError
	pub := events.PublisherFunc(func(e events.Event) {
		if se, ok := e.Data.(events.SessionError); ok {
			mu.Lock()
			errs = append(errs, se)
			mu.Unlock()
		}
	})
	c := session.NewController(g, session.Options{Publisher: pub}, zerolog.Nop())

	_, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 5})
	var netErr *grading.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if c.State() != model.StateIdle || c.Snapshot() != nil {
		t.Errorf("state = %s, snapshot = %+v; want idle and nil", c.State(), c.Snapshot())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || errs[0].Message != "Could not start mock test" {
		t.Errorf("session errors = %+v", errs)
	}
}

func TestController_EmptyQuestionSetFails(t *testing.T) {
	g := newFakeGrader()
	c := session.NewController(g, session.Options{}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindBatch, model.StartParams{}); !errors.Is(err, session.ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
	if c.State() != model.StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestController_InvalidParams(t *testing.T) {
	g := newFakeGrader(question("q1"))
	c := session.NewController(g, session.Options{}, zerolog.Nop())

	_, err := c.Start(context.Background(), model.KindBatch, model.StartParams{Difficulty: "brutal"})
	var verr *grading.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["difficulty"]; !ok {
		t.Errorf("fields = %v, want difficulty", verr.Fields)
	}
	if _, err := c.Start(context.Background(), "essay", model.StartParams{}); !errors.Is(err, session.ErrUnknownKind) {
		t.Errorf("unknown kind: err = %v", err)
	}
}

func TestController_SubmitFailureResumesCountdown(t *testing.T) {
	g := newFakeGrader(question("q1"))
	g.gradeErr = &grading.NetworkError{Op: "submit mock test", Status: 502, Message: "Could not submit test"}
	clock := newManualClock()
	c := session.NewController(g, session.Options{Clock: clock}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := clock.next(t)
	first.ch <- time.Now()
	waitRemaining(t, c, 119)

	if _, err := c.Submit(context.Background(), false); err == nil {
		t.Fatal("Submit succeeded, want error")
	}
	if call := waitCall(t, g); call.forced {
		t.Error("manual submit was sent as forced")
	}
	if c.State() != model.StateActive {
		t.Fatalf("state = %s, want active", c.State())
	}
	if err := c.RecordAnswer("q1", 2); err != nil {
		t.Errorf("answers locked after failed submit: %v", err)
	}

	resumed := clock.next(t)
	resumed.ch <- time.Now()
	waitRemaining(t, c, 118)

	g.set(func(g *fakeGrader) { g.gradeErr = nil })
	if _, err := c.Submit(context.Background(), false); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if call := waitCall(t, g); call.answers["q1"] != 2 {
		t.Errorf("retry answers = %v", call.answers)
	}
}

func TestController_ForcedRetryStaysForced(t *testing.T) {
	g := newFakeGrader(question("q1"))
	g.gradeErr = errors.New("connection reset")
	clock := newManualClock()
	c := session.NewController(g, session.Options{Clock: clock}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 0}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.next(t)
	if call := waitCall(t, g); !call.forced {
		t.Fatal("expiry submit not forced")
	}
	waitState(t, c, model.StateActive)

	select {
	case <-clock.created:
		t.Fatal("countdown restarted with no time left")
	case <-time.After(50 * time.Millisecond):
	}

	g.set(func(g *fakeGrader) { g.gradeErr = nil })
	if _, err := c.Submit(context.Background(), false); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if call := waitCall(t, g); !call.forced {
		t.Error("retry after expiry was not forced")
	}
}

func TestController_ResetDiscardsSession(t *testing.T) {
	g := newFakeGrader(question("q1"))
	clock := newManualClock()

	var mu sync.Mutex
	ticks := 0
	pub := events.PublisherFunc(func(e events.Event) {
		if e.Type == events.TypeCountdown {
			mu.Lock()
			ticks++
			mu.Unlock()
		}
	})
	c := session.NewController(g, session.Options{Publisher: pub, Clock: clock}, zerolog.Nop())

	if _, err := c.Start(context.Background(), model.KindTimed, model.StartParams{DurationMinutes: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ticker := clock.next(t)

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if c.State() != model.StateIdle || c.Snapshot() != nil {
		t.Fatalf("state = %s after reset", c.State())
	}

	// The stale countdown may still drain a tick but must not act on it.
	select {
	case ticker.ch <- time.Now():
	case <-time.After(50 * time.Millisecond):
	}
	assertNoCall(t, g)
	mu.Lock()
	defer mu.Unlock()
	if ticks != 0 {
		t.Errorf("countdown events after reset = %d, want 0", ticks)
	}
}

func waitRemaining(t *testing.T, c *session.Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if s := c.Snapshot(); s != nil && s.RemainingSeconds == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("remaining seconds never reached %d", want)
}
