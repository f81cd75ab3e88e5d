package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the free-form difficulty label sent to the generator.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"

	DefaultDifficulty = DifficultyMedium
	DefaultTopic      = "General Knowledge"
	DefaultExportName = "Quiz"

	DefaultQuestionCount = 5
	MaxQuestionCount     = 50
)

// ParseDifficulty accepts the three known labels in any case.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// Question is a single multiple-choice question as produced by the generator.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// MatchingOptions returns the indices of options equal to CorrectAnswer.
// Matching is exact; a well-formed question yields exactly one index.
func (q Question) MatchingOptions() []int {
	var out []int
	for i, opt := range q.Options {
		if opt == q.CorrectAnswer {
			out = append(out, i)
		}
	}
	return out
}

// HasOption reports whether opt is one of the question's options.
func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Quiz is a generated quiz together with the parameters it was requested with.
type Quiz struct {
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Questions  []Question `json:"quiz"`
}

// QuestionCount accepts either a JSON number or a numeric JSON string,
// since HTML forms post num_ques as a string.
type QuestionCount int

func (n *QuestionCount) UnmarshalJSON(b []byte) error {
	var i int
	if err := json.Unmarshal(b, &i); err == nil {
		*n = QuestionCount(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("num_ques must be a number or numeric string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("num_ques %q is not a number: %w", s, err)
	}
	*n = QuestionCount(i)
	return nil
}

// GenerateRequest is the body of POST /generate_quiz/.
type GenerateRequest struct {
	Topic      string        `json:"topic"`
	NumQues    QuestionCount `json:"num_ques"`
	Difficulty Difficulty    `json:"difficulty"`
}

// GenerateResponse is the success body of POST /generate_quiz/.
type GenerateResponse struct {
	Quiz []Question `json:"quiz"`
}

// ExportRequest is the body of POST /download_quiz_pdf/.
type ExportRequest struct {
	Topic string     `json:"topic"`
	Quiz  []Question `json:"quiz"`
}

// ArchivedQuiz is a generated quiz stored by the server for later listing.
type ArchivedQuiz struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Questions  []Question `json:"quiz"`
	CreatedAt  time.Time  `json:"created_at"`
}

// QuizListResponse represents the response for listing archived quizzes
type QuizListResponse struct {
	Quizzes []ArchivedQuiz `json:"quizzes"`
	Total   int64          `json:"total"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthRequiredError is the error code returned with 401 responses.
const AuthRequiredError = "AUTH_REQUIRED"
