package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neuroboost/study-core/internal/middleware"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/neuroboost/study-core/internal/response"
	"github.com/neuroboost/study-core/internal/service"
	"github.com/neuroboost/study-core/internal/validator"
)

// QuestionHandler serves the question-center endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// GenerateMCQs godoc
// POST /api/question-center/generate-mcqs/
// Returns an untimed MCQ batch.
func (h *QuestionHandler) GenerateMCQs(c *gin.Context) {
	var req model.BatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	batch, err := h.questionService.GenerateBatch(c.Request.Context(), req)
	if err != nil {
		failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusOK, batch)
}

// StartMockTest godoc
// POST /api/question-center/start-mock-test/
// Starts a timed mock test and keeps its answer key until grading.
func (h *QuestionHandler) StartMockTest(c *gin.Context) {
	var req model.MockTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.questionService.StartMockTest(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusCreated, test)
}

// SubmitMCQs godoc
// POST /api/question-center/submit-mcqs/
// Grades an MCQ batch.
func (h *QuestionHandler) SubmitMCQs(c *gin.Context) {
	var req model.GradeBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.questionService.GradeBatch(c.Request.Context(), middleware.UserID(c), req.Answers)
	if err != nil {
		failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// SubmitMockTest godoc
// POST /api/question-center/submit-mock-test/
// Grades a mock test. Unanswered questions count as incorrect.
func (h *QuestionHandler) SubmitMockTest(c *gin.Context) {
	var req model.GradeMockTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.questionService.GradeMockTest(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		failQuestion(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func failQuestion(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusNotFound, response.ErrNoQuestions)
	case errors.Is(err, service.ErrMockTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMockTestNotFound)
	case errors.Is(err, service.ErrMockTestExpired):
		response.Fail(c, http.StatusGone, response.ErrMockTestExpired)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
