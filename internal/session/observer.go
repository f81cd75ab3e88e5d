package session

import "quizpad/internal/models"

// Observer receives the signals a presentation layer needs to redraw.
// Callbacks run on the goroutine that invoked the session operation and
// never while the session lock is held.
type Observer interface {
	BusyChanged(busy bool)
	QuizLoaded(quiz models.Quiz)
	AnswerMarked(index int, state AnswerState)
	ScoreChanged(score Score)
	AnswersRevealed(reveals []Reveal)
	Exported(location string)
	SignInRequired(signInURL string)
	Failed(op string, err error)
}

// NopObserver ignores every signal.
type NopObserver struct{}

func (NopObserver) BusyChanged(bool) {}
func (NopObserver) QuizLoaded(models.Quiz) {}
func (NopObserver) AnswerMarked(int, AnswerState) {}
func (NopObserver) ScoreChanged(Score) {}
func (NopObserver) AnswersRevealed([]Reveal) {}
func (NopObserver) Exported(string) {}
func (NopObserver) SignInRequired(string) {}
func (NopObserver) Failed(string, error) {}
