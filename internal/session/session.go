// Package session holds the quiz session controller: the current quiz, the
// per-question answer states, the running score and the busy gate that keeps
// generation requests from overlapping. It has no rendering dependency; a
// presentation layer drives it and listens through an Observer.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"quizpad/internal/models"
	"quizpad/internal/quizerr"
)

var (
	ErrBusy              = errors.New("a quiz is already being generated")
	ErrNoQuiz            = errors.New("no quiz loaded")
	ErrExportUnavailable = errors.New("export is not configured")
	ErrQuestionIndex     = errors.New("question index out of range")
)

// ExportFilename is the name the exported document is saved under.
const ExportFilename = "quiz.pdf"

// Generator produces a quiz from the requested parameters.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) ([]models.Question, error)
}

// Exporter converts a quiz into a downloadable document.
type Exporter interface {
	Export(ctx context.Context, req models.ExportRequest) ([]byte, error)
}

// Saver stores an exported document and returns where it ended up.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// AnswerState records whether and how the user answered one question.
type AnswerState struct {
	Answered       bool
	SelectedOption string
	IsCorrect      bool
}

// Score is the running tally over all answer states.
type Score struct {
	Answered int
	Correct  int
	Total    int
}

func (s Score) String() string {
	return fmt.Sprintf("%d / %d", s.Correct, s.Total)
}

// Reveal lists the options of one question that equal its correct answer.
// CorrectOptions is empty or has several entries when the generator returned
// an ambiguous question.
type Reveal struct {
	QuestionIndex  int
	CorrectOptions []int
}

type Option func(*Session)

// WithExporter enables ExportQuiz.
func WithExporter(e Exporter) Option {
	return func(s *Session) { s.exporter = e }
}

// WithSaver sets where exported documents are written.
func WithSaver(sv Saver) Option {
	return func(s *Session) { s.saver = sv }
}

// WithObserver registers the presentation layer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.obs = o
		}
	}
}

// Session owns the current quiz and its answer states. All methods are safe
// for concurrent use; the lock is never held across collaborator calls.
type Session struct {
	generator Generator
	exporter  Exporter
	saver     Saver
	obs       Observer

	mu      sync.Mutex
	quiz    *models.Quiz
	answers []AnswerState
	score   Score
	busy    bool
}

func New(gen Generator, opts ...Option) *Session {
	s := &Session{generator: gen, obs: NopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestQuiz asks the generator for a new quiz. On success the previous quiz,
// its answers and the score are discarded. On failure nothing changes.
func (s *Session) RequestQuiz(ctx context.Context, topic string, questionCount int, difficulty models.Difficulty) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return &quizerr.ValidationError{Field: "topic", Reason: "must not be empty"}
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.mu.Unlock()
	s.obs.BusyChanged(true)

	questions, err := s.generator.Generate(ctx, models.GenerateRequest{
		Topic:      topic,
		NumQues:    models.QuestionCount(questionCount),
		Difficulty: difficulty,
	})
	if err == nil {
		err = validateQuestions(questions)
	}

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		s.obs.BusyChanged(false)
		s.fail("generate", err)
		return err
	}
	quiz := models.Quiz{Topic: topic, Difficulty: difficulty, Questions: questions}
	s.quiz = &quiz
	s.answers = make([]AnswerState, len(questions))
	s.score = Score{Total: len(questions)}
	loaded := copyQuiz(quiz)
	s.mu.Unlock()

	s.obs.BusyChanged(false)
	s.obs.QuizLoaded(loaded)
	return nil
}

// SubmitAnswer records the first answer to a question and scores it by exact
// equality with the correct answer. Later calls for the same question are no-ops.
func (s *Session) SubmitAnswer(index int, option string) (Score, error) {
	s.mu.Lock()
	if s.quiz == nil {
		s.mu.Unlock()
		return Score{}, ErrNoQuiz
	}
	if index < 0 || index >= len(s.quiz.Questions) {
		score := s.score
		s.mu.Unlock()
		return score, fmt.Errorf("%w: %d", ErrQuestionIndex, index)
	}
	if s.answers[index].Answered {
		score := s.score
		s.mu.Unlock()
		return score, nil
	}
	q := s.quiz.Questions[index]
	if !q.HasOption(option) {
		score := s.score
		s.mu.Unlock()
		return score, &quizerr.ValidationError{Field: "option", Reason: fmt.Sprintf("%q is not an option of question %d", option, index+1)}
	}

	st := AnswerState{Answered: true, SelectedOption: option, IsCorrect: option == q.CorrectAnswer}
	s.answers[index] = st
	s.score.Answered++
	if st.IsCorrect {
		s.score.Correct++
	}
	score := s.score
	s.mu.Unlock()

	s.obs.AnswerMarked(index, st)
	s.obs.ScoreChanged(score)
	return score, nil
}

// RevealAnswers reports the correct option(s) of every question. It reads
// state only and may be called any number of times.
func (s *Session) RevealAnswers() ([]Reveal, error) {
	s.mu.Lock()
	if s.quiz == nil {
		s.mu.Unlock()
		return nil, ErrNoQuiz
	}
	reveals := make([]Reveal, len(s.quiz.Questions))
	for i, q := range s.quiz.Questions {
		reveals[i] = Reveal{QuestionIndex: i, CorrectOptions: q.MatchingOptions()}
	}
	s.mu.Unlock()

	s.obs.AnswersRevealed(reveals)
	return reveals, nil
}

// ExportQuiz sends the current quiz to the exporter and saves the returned
// document as quiz.pdf. Session state is never modified.
func (s *Session) ExportQuiz(ctx context.Context) (string, error) {
	if s.exporter == nil || s.saver == nil {
		return "", ErrExportUnavailable
	}

	s.mu.Lock()
	if s.quiz == nil {
		s.mu.Unlock()
		return "", ErrNoQuiz
	}
	quiz := copyQuiz(*s.quiz)
	s.mu.Unlock()

	topic := quiz.Topic
	if topic == "" {
		topic = models.DefaultExportName
	}
	doc, err := s.exporter.Export(ctx, models.ExportRequest{Topic: topic, Quiz: quiz.Questions})
	if err != nil {
		s.fail("export", err)
		return "", err
	}

	location, err := s.saver.Save(ctx, ExportFilename, doc)
	if err != nil {
		err = fmt.Errorf("save %s: %w", ExportFilename, err)
		s.fail("export", err)
		return "", err
	}
	s.obs.Exported(location)
	return location, nil
}

func (s *Session) fail(op string, err error) {
	if auth, ok := quizerr.AsAuthorization(err); ok {
		s.obs.SignInRequired(auth.SignInURL)
		return
	}
	s.obs.Failed(op, err)
}

// Busy reports whether a generation request is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Quiz returns a copy of the current quiz.
func (s *Session) Quiz() (models.Quiz, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return models.Quiz{}, false
	}
	return copyQuiz(*s.quiz), true
}

// Answer returns the answer state of question i.
func (s *Session) Answer(i int) (AnswerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return AnswerState{}, ErrNoQuiz
	}
	if i < 0 || i >= len(s.answers) {
		return AnswerState{}, fmt.Errorf("%w: %d", ErrQuestionIndex, i)
	}
	return s.answers[i], nil
}

func (s *Session) Score() Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// CanReveal reports whether the reveal action is available.
func (s *Session) CanReveal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz != nil
}

// CanExport reports whether the export action is available.
func (s *Session) CanExport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz != nil && s.exporter != nil && s.saver != nil
}

func validateQuestions(questions []models.Question) error {
	if len(questions) == 0 {
		return &quizerr.MalformedResponseError{Op: "generate", Err: errors.New("quiz has no questions")}
	}
	for i, q := range questions {
		if len(q.Options) < 2 {
			return &quizerr.MalformedResponseError{Op: "generate", Err: fmt.Errorf("question %d has %d options", i+1, len(q.Options))}
		}
	}
	return nil
}

func copyQuiz(q models.Quiz) models.Quiz {
	out := q
	out.Questions = make([]models.Question, len(q.Questions))
	for i, qq := range q.Questions {
		qq.Options = append([]string(nil), qq.Options...)
		out.Questions[i] = qq
	}
	return out
}
