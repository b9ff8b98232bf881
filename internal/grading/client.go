// Package grading talks to the NeuroBoost HTTP API: question generation, grading,
// reward snapshots and the task and focus endpoints that grant XP.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"

	"github.com/neuroboost/study-core/internal/config"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/rs/zerolog"
)

const (
	opGenerateMCQs    = "generate mcqs"
	opStartMockTest   = "start mock test"
	opSubmitMCQs      = "submit mcqs"
	opSubmitMockTest  = "submit mock test"
	opRewardSnapshot  = "reward snapshot"
	opStreakSnapshot  = "streak snapshot"
	opToggleTask      = "toggle task"
	opLogFocusSession = "log focus session"
	opBootstrap       = "bootstrap"

	csrfPath = "/api/csrf/"

	maxResponseBytes = 4 << 20
)

// Client is the grading collaborator client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// NewClient creates a Client for cfg.APIBaseURL. When tokens is nil the client uses
// cfg.CSRFToken if set, otherwise the csrftoken cookie collected by Bootstrap.
func NewClient(cfg *config.Config, tokens TokenSource, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if tokens == nil {
		if cfg.CSRFToken != "" {
			tokens = StaticToken(cfg.CSRFToken)
		} else {
			tokens = &CookieToken{Jar: jar, URL: base}
		}
	}

	return &Client{
		baseURL: cfg.APIBaseURL,
		http:    &http.Client{Timeout: cfg.HTTPTimeout, Jar: jar},
		tokens:  tokens,
		log:     log.With().Str("component", "grading_client").Logger(),
	}, nil
}

// Bootstrap asks the server to issue an anti-forgery cookie.
func (c *Client) Bootstrap(ctx context.Context) error {
	return c.do(ctx, opBootstrap, http.MethodGet, csrfPath, nil, nil)
}

// CreateQuestionBatch requests an untimed MCQ batch.
func (c *Client) CreateQuestionBatch(ctx context.Context, params model.StartParams) ([]model.Question, error) {
	count := params.Count
	if count == 0 {
		count = model.DefaultBatchCount
	}
	req := model.BatchRequest{Topic: params.Topic, Difficulty: params.Difficulty, Count: count}

	var resp model.BatchResponse
	if err := c.do(ctx, opGenerateMCQs, http.MethodPost, "/api/question-center/generate-mcqs/", req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// CreateTimedTest starts a mock test and returns the grader-assigned test id.
func (c *Client) CreateTimedTest(ctx context.Context, params model.StartParams) (*model.MockTestResponse, error) {
	req := model.MockTestRequest{
		Topic:      params.Topic,
		Difficulty: params.Difficulty,
		Count:      params.Count,
		Duration:   params.DurationMinutes,
	}

	var resp model.MockTestResponse
	if err := c.do(ctx, opStartMockTest, http.MethodPost, "/api/question-center/start-mock-test/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GradeBatch submits MCQ answers.
func (c *Client) GradeBatch(ctx context.Context, answers map[string]int) (*model.GradeBatchResponse, error) {
	req := model.GradeBatchRequest{Answers: answers}

	var resp model.GradeBatchResponse
	if err := c.do(ctx, opSubmitMCQs, http.MethodPost, "/api/question-center/submit-mcqs/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GradeTimedTest submits mock test answers. forced is true when the timer expired.
func (c *Client) GradeTimedTest(ctx context.Context, testID string, answers map[string]int, forced bool) (*model.GradeMockTestResponse, error) {
	req := model.GradeMockTestRequest{TestID: testID, Answers: answers, TimeUp: forced}

	var resp model.GradeMockTestResponse
	if err := c.do(ctx, opSubmitMockTest, http.MethodPost, "/api/question-center/submit-mock-test/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RewardSnapshot fetches the authoritative XP and level.
func (c *Client) RewardSnapshot(ctx context.Context) (*model.RewardSnapshot, error) {
	var resp model.RewardSnapshot
	if err := c.do(ctx, opRewardSnapshot, http.MethodGet, "/api/user/xp/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreakSnapshot fetches the authoritative streak.
func (c *Client) StreakSnapshot(ctx context.Context) (*model.StreakSnapshot, error) {
	var resp model.StreakSnapshot
	if err := c.do(ctx, opStreakSnapshot, http.MethodGet, "/api/user/streak/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ToggleTaskCompletion flips a task and returns every reward field it changed.
func (c *Client) ToggleTaskCompletion(ctx context.Context, taskID int, completed bool) (*model.ToggleTaskResponse, error) {
	path := "/api/tasks/toggle/" + strconv.Itoa(taskID) + "/"

	var resp model.ToggleTaskResponse
	if err := c.do(ctx, opToggleTask, http.MethodPost, path, model.ToggleTaskRequest{Completed: completed}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogFocusSession records a finished focus session.
func (c *Client) LogFocusSession(ctx context.Context, req model.FocusSessionRequest) (*model.FocusSessionResponse, error) {
	var resp model.FocusSessionResponse
	if err := c.do(ctx, opLogFocusSession, http.MethodPost, "/api/focus-session/log/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = raw
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &NetworkError{Op: op, Message: genericMessage(op), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if method != http.MethodGet {
		token, err := c.token(ctx)
		if err != nil {
			return &NetworkError{Op: op, Message: genericMessage(op), Err: err}
		}
		req.Header.Set(CSRFHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Msg("Request failed")
		return &NetworkError{Op: op, Message: genericMessage(op), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Op: op, Status: resp.StatusCode, Message: genericMessage(op), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := decodeData(raw, out); err != nil {
		return &NetworkError{Op: op, Status: resp.StatusCode, Message: genericMessage(op), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// token returns the anti-forgery token, bootstrapping the cookie once if needed.
func (c *Client) token(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err == nil || !errors.Is(err, ErrNoToken) {
		return token, err
	}
	if _, ok := c.tokens.(*CookieToken); !ok {
		return "", err
	}
	if err := c.Bootstrap(ctx); err != nil {
		return "", err
	}
	return c.tokens.Token(ctx)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// decodeData accepts both the {"data": ...} envelope and a bare JSON object.
func decodeData(raw []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}

// statusError maps a non-success status to the error taxonomy, preferring the
// server's own message.
func statusError(op string, status int, raw []byte) error {
	msg, fields := parseErrorPayload(raw)
	if msg == "" {
		msg = genericMessage(op)
	}
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return &ValidationError{Op: op, Message: msg, Fields: fields}
	}
	return &NetworkError{Op: op, Status: status, Message: msg}
}

func parseErrorPayload(raw []byte) (string, map[string]string) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Error) == 0 {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(env.Error, &text); err == nil {
		return text, nil
	}

	var body errorBody
	if err := json.Unmarshal(env.Error, &body); err == nil {
		return body.Message, body.Fields
	}
	return "", nil
}
