package repository

import (
	"strings"

	"github.com/neuroboost/study-core/internal/model"
)

// QuestionRepository is a read-only, in-memory question bank.
type QuestionRepository struct {
	questions []model.BankQuestion
	byID      map[string]int
}

// NewQuestionRepository creates a bank from the given questions. With no
// arguments the built-in seed set is used.
func NewQuestionRepository(questions ...model.BankQuestion) *QuestionRepository {
	if len(questions) == 0 {
		questions = seedQuestions
	}
	r := &QuestionRepository{
		questions: questions,
		byID:      make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		r.byID[q.ID] = i
	}
	return r
}

// List returns questions matching topic and difficulty. Empty filters match all;
// topic matching is case-insensitive.
func (r *QuestionRepository) List(topic string, difficulty model.Difficulty) []model.BankQuestion {
	var out []model.BankQuestion
	for _, q := range r.questions {
		if topic != "" && !strings.EqualFold(q.Topic, topic) {
			continue
		}
		if difficulty != "" && q.Difficulty != difficulty {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Get returns a question by ID.
func (r *QuestionRepository) Get(id string) (*model.BankQuestion, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	q := r.questions[i]
	return &q, nil
}

func bankQuestion(id, topic string, d model.Difficulty, prompt string, answer int, explanation string, options ...string) model.BankQuestion {
	return model.BankQuestion{
		Question:    model.Question{ID: id, Prompt: prompt, Options: options, Difficulty: d},
		Topic:       topic,
		Answer:      answer,
		Explanation: explanation,
	}
}

var seedQuestions = []model.BankQuestion{
	bankQuestion("bio-1", "Biology", model.DifficultyEasy,
		"Which organelle produces most of a cell's ATP?", 2,
		"Mitochondria carry out oxidative phosphorylation.",
		"Nucleus", "Ribosome", "Mitochondrion", "Golgi apparatus"),
	bankQuestion("bio-2", "Biology", model.DifficultyMedium,
		"Which molecule carries amino acids to the ribosome?", 1,
		"Transfer RNA pairs its anticodon with the mRNA codon.",
		"mRNA", "tRNA", "rRNA", "DNA polymerase"),
	bankQuestion("bio-3", "Biology", model.DifficultyHard,
		"In which phase of meiosis does crossing over occur?", 0,
		"Homologous chromosomes exchange segments during prophase I.",
		"Prophase I", "Metaphase I", "Anaphase II", "Telophase II"),
	bankQuestion("phy-1", "Physics", model.DifficultyEasy,
		"What is the SI unit of force?", 3,
		"One newton accelerates one kilogram at one metre per second squared.",
		"Joule", "Watt", "Pascal", "Newton"),
	bankQuestion("phy-2", "Physics", model.DifficultyMedium,
		"A car doubles its speed. Its kinetic energy becomes", 2,
		"Kinetic energy grows with the square of speed.",
		"the same", "twice as large", "four times as large", "half as large"),
	bankQuestion("phy-3", "Physics", model.DifficultyHard,
		"Which quantity is conserved in a perfectly inelastic collision?", 1,
		"Momentum is conserved; kinetic energy is not.",
		"Kinetic energy", "Momentum", "Velocity", "Both energy and momentum"),
	bankQuestion("math-1", "Mathematics", model.DifficultyEasy,
		"What is 7 x 8?", 1, "",
		"54", "56", "58", "64"),
	bankQuestion("math-2", "Mathematics", model.DifficultyMedium,
		"What is the derivative of x^3?", 0,
		"Power rule: d/dx x^n = n x^(n-1).",
		"3x^2", "x^2", "3x^3", "x^4/4"),
	bankQuestion("math-3", "Mathematics", model.DifficultyHard,
		"How many ways can 5 distinct books be arranged on a shelf?", 3,
		"5! = 120.",
		"25", "60", "100", "120"),
	bankQuestion("hist-1", "History", model.DifficultyEasy,
		"In which year did World War II end?", 2, "",
		"1918", "1939", "1945", "1950"),
	bankQuestion("hist-2", "History", model.DifficultyMedium,
		"Which empire built Machu Picchu?", 0, "",
		"Inca", "Aztec", "Maya", "Olmec"),
	bankQuestion("chem-1", "Chemistry", model.DifficultyEasy,
		"What is the chemical symbol for sodium?", 1,
		"From the Latin natrium.",
		"S", "Na", "So", "Sd"),
	bankQuestion("chem-2", "Chemistry", model.DifficultyMedium,
		"What is the pH of a neutral solution at 25 degrees C?", 2, "",
		"0", "5", "7", "14"),
}
