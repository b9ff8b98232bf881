package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/repository"
	"github.com/rs/zerolog"
)

const (
	BatchXPPerCorrect    = 5
	MockTestXPPerCorrect = 10
)

var (
	ErrNoQuestions      = errors.New("no questions match the request")
	ErrMockTestNotFound = errors.New("mock test not found")
	ErrMockTestExpired  = errors.New("mock test time is over")
)

// QuestionService generates question sets and grades submissions.
type QuestionService struct {
	bank      *repository.QuestionRepository
	mockTests repository.MockTestStore
	rewards   *RewardService
	grace     time.Duration
	log       zerolog.Logger
	now       func() time.Time
	shuffle   func(n int, swap func(i, j int))
}

// NewQuestionService creates a new QuestionService. grace is how long after the
// deadline a submission without time_up is still accepted.
func NewQuestionService(
	bank *repository.QuestionRepository,
	mockTests repository.MockTestStore,
	rewards *RewardService,
	grace time.Duration,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		bank:      bank,
		mockTests: mockTests,
		rewards:   rewards,
		grace:     grace,
		log:       log.With().Str("component", "question_service").Logger(),
		now:       time.Now,
		shuffle:   rand.Shuffle,
	}
}

// SetClock overrides the time source used for deadlines.
func (s *QuestionService) SetClock(now func() time.Time) {
	s.now = now
}

// pick selects up to count distinct questions matching the filters.
func (s *QuestionService) pick(topic string, difficulty model.Difficulty, count int) ([]model.BankQuestion, error) {
	pool := s.bank.List(topic, difficulty)
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count > 0 && count < len(pool) {
		pool = pool[:count]
	}
	return pool, nil
}

func publicQuestions(qs []model.BankQuestion) []model.Question {
	out := make([]model.Question, len(qs))
	for i := range qs {
		out[i] = qs[i].Question
	}
	return out
}

// GenerateBatch returns an untimed MCQ batch without answers.
func (s *QuestionService) GenerateBatch(_ context.Context, req model.BatchRequest) (*model.BatchResponse, error) {
	qs, err := s.pick(req.Topic, req.Difficulty, req.Count)
	if err != nil {
		return nil, err
	}
	return &model.BatchResponse{Questions: publicQuestions(qs)}, nil
}

// GradeBatch grades answers against the bank and awards BatchXPPerCorrect per
// correct answer. Unknown question IDs get no verdict.
func (s *QuestionService) GradeBatch(ctx context.Context, userID string, answers map[string]int) (*model.GradeBatchResponse, error) {
	results := make(map[string]model.QuestionResult, len(answers))
	correct := 0
	for id, selected := range answers {
		q, err := s.bank.Get(id)
		if err != nil {
			continue
		}
		res := q.Grade(selected, true)
		if res.Correct {
			correct++
		}
		results[id] = res
	}

	resp := &model.GradeBatchResponse{Results: results, XPGained: correct * BatchXPPerCorrect}
	if resp.XPGained > 0 {
		if _, _, err := s.rewards.Award(ctx, userID, resp.XPGained); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// StartMockTest picks the questions of a timed test and stores its answer key
// until the deadline plus grace.
func (s *QuestionService) StartMockTest(ctx context.Context, userID string, req model.MockTestRequest) (*model.MockTestResponse, error) {
	count := req.Count
	if count == 0 {
		count = model.DefaultMockTestCount
	}
	qs, err := s.pick(req.Topic, req.Difficulty, count)
	if err != nil {
		return nil, err
	}

	test := &model.MockTest{
		ID:              uuid.NewString(),
		UserID:          userID,
		QuestionIDs:     make([]string, len(qs)),
		AnswerKey:       make(map[string]int, len(qs)),
		DurationMinutes: req.Duration,
		StartedAt:       s.now().UTC(),
	}
	for i, q := range qs {
		test.QuestionIDs[i] = q.ID
		test.AnswerKey[q.ID] = q.Answer
	}

	ttl := time.Duration(req.Duration)*time.Minute + s.grace
	if err := s.mockTests.Save(ctx, test, ttl); err != nil {
		return nil, fmt.Errorf("save mock test: %w", err)
	}

	s.log.Info().
		Str("test_id", test.ID).
		Int("questions", len(qs)).
		Int("duration_minutes", req.Duration).
		Msg("Mock test started")
	return &model.MockTestResponse{TestID: test.ID, Questions: publicQuestions(qs)}, nil
}

// GradeMockTest grades every question of the test; unanswered ones are incorrect.
func (s *QuestionService) GradeMockTest(ctx context.Context, userID string, req model.GradeMockTestRequest) (*model.GradeMockTestResponse, error) {
	test, err := s.mockTests.Get(ctx, req.TestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMockTestNotFound
		}
		return nil, fmt.Errorf("get mock test: %w", err)
	}
	if test.UserID != userID {
		return nil, ErrMockTestNotFound
	}

	now := s.now()
	if !req.TimeUp && now.After(test.Deadline().Add(s.grace)) {
		return nil, ErrMockTestExpired
	}

	results := make(map[string]model.QuestionResult, len(test.QuestionIDs))
	correct := 0
	for _, id := range test.QuestionIDs {
		q, err := s.bank.Get(id)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", id, err)
		}
		selected, answered := req.Answers[id]
		res := q.Grade(selected, answered)
		if res.Correct {
			correct++
		}
		results[id] = res
	}

	if err := s.mockTests.Delete(ctx, test); err != nil {
		s.log.Warn().Err(err).Str("test_id", test.ID).Msg("Failed to delete graded mock test")
	}

	taken := now.Sub(test.StartedAt).Minutes()
	if limit := float64(test.DurationMinutes); taken > limit {
		taken = limit
	}
	resp := &model.GradeMockTestResponse{
		TestID:          test.ID,
		CorrectCount:    correct,
		TotalCount:      len(test.QuestionIDs),
		TimeTaken:       math.Round(taken*10) / 10,
		XPGained:        correct * MockTestXPPerCorrect,
		QuestionResults: results,
	}
	if resp.XPGained > 0 {
		if _, _, err := s.rewards.Award(ctx, userID, resp.XPGained); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("test_id", test.ID).
		Int("correct", correct).
		Int("total", resp.TotalCount).
		Bool("time_up", req.TimeUp).
		Msg("Mock test graded")
	return resp, nil
}
