package model

// Difficulty tags a question or a requested batch.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a single multiple-choice question. The index into Options is the
// answer encoding, so option order is significant.
type Question struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"question"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// QuestionResult is the grading collaborator's verdict for one question.
type QuestionResult struct {
	Correct           bool   `json:"correct"`
	CorrectOption     int    `json:"correct_option"`
	CorrectOptionText string `json:"correct_option_text"`
	Explanation       string `json:"explanation,omitempty"`
}

// BatchRequest is the payload for generating an untimed MCQ batch.
type BatchRequest struct {
	Topic      string     `json:"topic,omitempty" binding:"max=100"`
	Difficulty Difficulty `json:"difficulty,omitempty" binding:"omitempty,oneof=easy medium hard"`
	Count      int        `json:"count" binding:"required,min=1,max=50"`
}

// BatchResponse carries a freshly generated MCQ batch.
type BatchResponse struct {
	Questions []Question `json:"questions"`
}

// MockTestRequest is the payload for starting a timed mock test.
type MockTestRequest struct {
	Topic      string     `json:"topic,omitempty" binding:"max=100"`
	Difficulty Difficulty `json:"difficulty,omitempty" binding:"omitempty,oneof=easy medium hard"`
	Count      int        `json:"count,omitempty" binding:"min=0,max=50"`
	Duration   int        `json:"duration" binding:"min=0,max=180"`
}

// DefaultMockTestCount is used when a mock test is started without an explicit count.
const DefaultMockTestCount = 10

// MockTestResponse carries the test id assigned by the grader and its questions.
type MockTestResponse struct {
	TestID    string     `json:"test_id"`
	Questions []Question `json:"questions"`
}

// GradeBatchRequest submits answers for an MCQ batch.
type GradeBatchRequest struct {
	Answers map[string]int `json:"answers" binding:"required"`
}

// GradeBatchResponse is the batch verdict.
type GradeBatchResponse struct {
	Results  map[string]QuestionResult `json:"results"`
	XPGained int                       `json:"xp_gained,omitempty"`
}

// GradeMockTestRequest submits answers for a timed mock test.
type GradeMockTestRequest struct {
	TestID  string         `json:"test_id" binding:"required,uuid"`
	Answers map[string]int `json:"answers"`
	TimeUp  bool           `json:"time_up"`
}

// GradeMockTestResponse is the mock test verdict.
type GradeMockTestResponse struct {
	TestID          string                    `json:"test_id"`
	CorrectCount    int                       `json:"correct_count"`
	TotalCount      int                       `json:"total_count"`
	TimeTaken       float64                   `json:"time_taken"`
	XPGained        int                       `json:"xp_gained"`
	QuestionResults map[string]QuestionResult `json:"question_results"`
}

// BankQuestion is a stored question together with its answer key.
type BankQuestion struct {
	Question
	Topic       string
	Answer      int
	Explanation string
}

// Grade returns the verdict for a selected option. A missing answer is incorrect.
func (b *BankQuestion) Grade(selected int, answered bool) QuestionResult {
	res := QuestionResult{
		Correct:       answered && selected == b.Answer,
		CorrectOption: b.Answer,
		Explanation:   b.Explanation,
	}
	if b.Answer >= 0 && b.Answer < len(b.Options) {
		res.CorrectOptionText = b.Options[b.Answer]
	}
	return res
}
