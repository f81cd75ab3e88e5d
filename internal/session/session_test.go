package session

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"quizpad/internal/models"
	"quizpad/internal/quizerr"
)

/* ---------------- fakes ---------------- */

type fakeGenerator struct {
	questions []models.Question
	err       error
	calls     int
	lastReq   models.GenerateRequest
	block     chan struct{} // when set, Generate waits on it
	started   chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req models.GenerateRequest) ([]models.Question, error) {
	g.calls++
	g.lastReq = req
	if g.started != nil {
		close(g.started)
	}
	if g.block != nil {
		<-g.block
	}
	return g.questions, g.err
}

type fakeExporter struct {
	doc     []byte
	err     error
	lastReq models.ExportRequest
}

func (e *fakeExporter) Export(ctx context.Context, req models.ExportRequest) ([]byte, error) {
	e.lastReq = req
	return e.doc, e.err
}

type fakeSaver struct {
	saved map[string][]byte
	err   error
}

func (s *fakeSaver) Save(ctx context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[name] = data
	return "/tmp/" + name, nil
}

type recordingObserver struct {
	NopObserver
	busy     []bool
	loaded   int
	scores   []Score
	signIn   []string
	failures []string
	reveals  int
	exported []string
}

func (o *recordingObserver) BusyChanged(b bool) { o.busy = append(o.busy, b) }
func (o *recordingObserver) QuizLoaded(models.Quiz) { o.loaded++ }
func (o *recordingObserver) ScoreChanged(s Score) { o.scores = append(o.scores, s) }
func (o *recordingObserver) SignInRequired(u string) { o.signIn = append(o.signIn, u) }
func (o *recordingObserver) Failed(op string, err error) { o.failures = append(o.failures, op) }
func (o *recordingObserver) AnswersRevealed([]Reveal) { o.reveals++ }
func (o *recordingObserver) Exported(loc string) { o.exported = append(o.exported, loc) }

func arithmeticQuiz() []models.Question {
	return []models.Question{
		{Text: "2+2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
	}
}

func threeQuestionQuiz() []models.Question {
	return []models.Question{
		{Text: "2+2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris"},
		{Text: "Largest planet?", Options: []string{"Mars", "Jupiter", "Venus", "Earth"}, CorrectAnswer: "Jupiter"},
	}
}

func loadedSession(t *testing.T, questions []models.Question, opts ...Option) *Session {
	t.Helper()
	s := New(&fakeGenerator{questions: questions}, opts...)
	if err := s.RequestQuiz(context.Background(), "math", len(questions), models.DifficultyEasy); err != nil {
		t.Fatalf("RequestQuiz: %v", err)
	}
	return s
}

/* ---------------- RequestQuiz ---------------- */

func TestRequestQuiz_EmptyTopic(t *testing.T) {
	for _, topic := range []string{"", "   ", "\t\n"} {
		gen := &fakeGenerator{questions: arithmeticQuiz()}
		s := New(gen)

		err := s.RequestQuiz(context.Background(), topic, 5, models.DifficultyMedium)
		if !quizerr.IsValidation(err) {
			t.Fatalf("topic %q: expected ValidationError, got %v", topic, err)
		}
		if gen.calls != 0 {
			t.Errorf("topic %q: generator called %d times", topic, gen.calls)
		}
		if s.Busy() {
			t.Errorf("topic %q: session left busy", topic)
		}
	}
}

func TestRequestQuiz_Success(t *testing.T) {
	gen := &fakeGenerator{questions: threeQuestionQuiz()}
	obs := &recordingObserver{}
	s := New(gen, WithObserver(obs))

	if err := s.RequestQuiz(context.Background(), "  trivia ", 3, models.DifficultyHard); err != nil {
		t.Fatal(err)
	}

	if gen.lastReq.Topic != "trivia" || gen.lastReq.NumQues != 3 || gen.lastReq.Difficulty != models.DifficultyHard {
		t.Errorf("unexpected generator request: %+v", gen.lastReq)
	}
	q, ok := s.Quiz()
	if !ok || len(q.Questions) != 3 || q.Topic != "trivia" {
		t.Fatalf("unexpected quiz: %+v", q)
	}
	if got := s.Score(); got != (Score{Total: 3}) {
		t.Errorf("expected zero score over 3, got %+v", got)
	}
	if !s.CanReveal() {
		t.Error("reveal should be available after load")
	}
	if s.Busy() {
		t.Error("session left busy")
	}
	if !reflect.DeepEqual(obs.busy, []bool{true, false}) {
		t.Errorf("expected busy signals [true false], got %v", obs.busy)
	}
	if obs.loaded != 1 {
		t.Errorf("expected 1 QuizLoaded, got %d", obs.loaded)
	}
}

func TestRequestQuiz_Forbidden(t *testing.T) {
	authErr := &quizerr.AuthorizationError{Op: "generate", Status: http.StatusForbidden, SignInURL: "http://x/signup/?next=/"}
	obs := &recordingObserver{}
	s := New(&fakeGenerator{err: authErr}, WithObserver(obs))

	err := s.RequestQuiz(context.Background(), "math", 5, models.DifficultyEasy)
	if _, ok := quizerr.AsAuthorization(err); !ok {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if s.Busy() {
		t.Error("busy must be false after an authorization failure")
	}
	if len(obs.signIn) != 1 || obs.signIn[0] != authErr.SignInURL {
		t.Errorf("expected sign-in signal, got %v", obs.signIn)
	}
	if len(obs.failures) != 0 {
		t.Errorf("authorization failure must not surface as generic error, got %v", obs.failures)
	}
}

func TestRequestQuiz_FailureKeepsPreviousQuiz(t *testing.T) {
	gen := &fakeGenerator{questions: threeQuestionQuiz()}
	obs := &recordingObserver{}
	s := New(gen, WithObserver(obs))
	if err := s.RequestQuiz(context.Background(), "trivia", 3, models.DifficultyEasy); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitAnswer(0, "4"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		qs   []models.Question
	}{
		{name: "transport", err: &quizerr.TransportError{Op: "generate", Status: 500}},
		{name: "malformed", err: &quizerr.MalformedResponseError{Op: "generate", Err: errors.New("bad json")}},
		{name: "empty quiz", qs: []models.Question{}},
		{name: "single option", qs: []models.Question{{Text: "?", Options: []string{"only"}, CorrectAnswer: "only"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen.err = tt.err
			gen.questions = tt.qs

			err := s.RequestQuiz(context.Background(), "other", 2, models.DifficultyEasy)
			if !quizerr.IsTransport(err) {
				t.Fatalf("expected transport-class error, got %v", err)
			}
			q, _ := s.Quiz()
			if q.Topic != "trivia" || len(q.Questions) != 3 {
				t.Errorf("previous quiz was replaced: %+v", q)
			}
			if got := s.Score(); got != (Score{Answered: 1, Correct: 1, Total: 3}) {
				t.Errorf("score changed on failure: %+v", got)
			}
			if s.Busy() {
				t.Error("session left busy")
			}
		})
	}
	if len(obs.failures) != len(tests) {
		t.Errorf("expected %d failure signals, got %d", len(tests), len(obs.failures))
	}
}

func TestRequestQuiz_RejectedWhileBusy(t *testing.T) {
	gen := &fakeGenerator{
		questions: arithmeticQuiz(),
		block:     make(chan struct{}),
		started:   make(chan struct{}),
	}
	s := New(gen)

	done := make(chan error, 1)
	go func() {
		done <- s.RequestQuiz(context.Background(), "first", 1, models.DifficultyEasy)
	}()
	<-gen.started

	if !s.Busy() {
		t.Fatal("expected busy while generation is in flight")
	}
	if err := s.RequestQuiz(context.Background(), "second", 1, models.DifficultyEasy); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(gen.block)
	if err := <-done; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one generator call, got %d", gen.calls)
	}
	q, _ := s.Quiz()
	if q.Topic != "first" {
		t.Errorf("expected first quiz to be loaded, got %q", q.Topic)
	}
}

func TestRequestQuiz_ResetsAnswers(t *testing.T) {
	gen := &fakeGenerator{questions: threeQuestionQuiz()}
	s := New(gen)
	if err := s.RequestQuiz(context.Background(), "trivia", 3, models.DifficultyEasy); err != nil {
		t.Fatal(err)
	}
	s.SubmitAnswer(0, "4")
	s.SubmitAnswer(1, "Rome")

	gen.questions = arithmeticQuiz()
	if err := s.RequestQuiz(context.Background(), "math", 1, models.DifficultyEasy); err != nil {
		t.Fatal(err)
	}

	if got := s.Score(); got != (Score{Total: 1}) {
		t.Errorf("expected reset score, got %+v", got)
	}
	st, err := s.Answer(0)
	if err != nil {
		t.Fatal(err)
	}
	if st.Answered {
		t.Errorf("expected unanswered state after new quiz, got %+v", st)
	}
	if _, err := s.Answer(1); !errors.Is(err, ErrQuestionIndex) {
		t.Errorf("expected old answer states to be gone, got %v", err)
	}
}

/* ---------------- SubmitAnswer ---------------- */

func TestSubmitAnswer_Scoring(t *testing.T) {
	tests := []struct {
		name       string
		first      string
		wantFirst  Score
		wantMarked bool
	}{
		{name: "correct", first: "4", wantFirst: Score{Answered: 1, Correct: 1, Total: 1}, wantMarked: true},
		{name: "incorrect", first: "3", wantFirst: Score{Answered: 1, Correct: 0, Total: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			s := loadedSession(t, arithmeticQuiz(), WithObserver(obs))

			got, err := s.SubmitAnswer(0, tt.first)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.wantFirst {
				t.Errorf("expected %+v, got %+v", tt.wantFirst, got)
			}
			if got.String() != map[bool]string{true: "1 / 1", false: "0 / 1"}[tt.wantMarked] {
				t.Errorf("unexpected score text %q", got.String())
			}

			// second click on the same question is a no-op
			again, err := s.SubmitAnswer(0, "4")
			if err != nil {
				t.Fatal(err)
			}
			if again != tt.wantFirst {
				t.Errorf("second answer changed score: %+v", again)
			}
			st, _ := s.Answer(0)
			if st.SelectedOption != tt.first || st.IsCorrect != tt.wantMarked {
				t.Errorf("answer state mutated: %+v", st)
			}
			if len(obs.scores) != 1 {
				t.Errorf("expected one score signal, got %d", len(obs.scores))
			}
		})
	}
}

func TestSubmitAnswer_Invariants(t *testing.T) {
	s := loadedSession(t, threeQuestionQuiz())
	picks := []struct {
		index  int
		option string
	}{
		{2, "Mars"}, {0, "4"}, {2, "Jupiter"}, {1, "Paris"}, {0, "3"}, {1, "Rome"},
	}

	for _, p := range picks {
		score, err := s.SubmitAnswer(p.index, p.option)
		if err != nil {
			t.Fatal(err)
		}
		if !(score.Correct <= score.Answered && score.Answered <= score.Total) {
			t.Fatalf("invariant broken: %+v", score)
		}
	}

	want := Score{Answered: 3, Correct: 2, Total: 3}
	if got := s.Score(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSubmitAnswer_Preconditions(t *testing.T) {
	empty := New(&fakeGenerator{})
	if _, err := empty.SubmitAnswer(0, "4"); !errors.Is(err, ErrNoQuiz) {
		t.Errorf("expected ErrNoQuiz, got %v", err)
	}

	s := loadedSession(t, arithmeticQuiz())
	for _, idx := range []int{-1, 1, 99} {
		if _, err := s.SubmitAnswer(idx, "4"); !errors.Is(err, ErrQuestionIndex) {
			t.Errorf("index %d: expected ErrQuestionIndex, got %v", idx, err)
		}
	}
	if _, err := s.SubmitAnswer(0, "four"); !quizerr.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown option, got %v", err)
	}
	if st, _ := s.Answer(0); st.Answered {
		t.Errorf("rejected answer must not lock the question: %+v", st)
	}
	if got := s.Score(); got != (Score{Total: 1}) {
		t.Errorf("rejected answers changed the score: %+v", got)
	}
}

func TestSubmitAnswer_ExactMatchOnly(t *testing.T) {
	qs := []models.Question{{Text: "Capital?", Options: []string{"paris", "Rome"}, CorrectAnswer: "Paris"}}
	s := loadedSession(t, qs)

	score, err := s.SubmitAnswer(0, "paris")
	if err != nil {
		t.Fatal(err)
	}
	if score.Correct != 0 {
		t.Errorf("case-insensitive match must not count as correct: %+v", score)
	}
}

/* ---------------- RevealAnswers ---------------- */

func TestRevealAnswers_NoQuiz(t *testing.T) {
	obs := &recordingObserver{}
	s := New(&fakeGenerator{}, WithObserver(obs))

	if s.CanReveal() {
		t.Error("reveal must be disabled before a quiz is loaded")
	}
	reveals, err := s.RevealAnswers()
	if !errors.Is(err, ErrNoQuiz) || reveals != nil {
		t.Errorf("expected ErrNoQuiz and no reveals, got %v %v", reveals, err)
	}
	if obs.reveals != 0 {
		t.Error("no reveal signal expected")
	}
	if _, ok := s.Quiz(); ok {
		t.Error("reveal must not create a quiz")
	}
}

func TestRevealAnswers_Idempotent(t *testing.T) {
	qs := append(threeQuestionQuiz(), models.Question{Text: "Ambiguous", Options: []string{"a", "b"}, CorrectAnswer: "c"})
	s := loadedSession(t, qs)
	s.SubmitAnswer(0, "3")
	before := s.Score()

	first, err := s.RevealAnswers()
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.RevealAnswers()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reveal is not idempotent: %v vs %v", first, second)
	}

	want := []Reveal{
		{QuestionIndex: 0, CorrectOptions: []int{1}},
		{QuestionIndex: 1, CorrectOptions: []int{0}},
		{QuestionIndex: 2, CorrectOptions: []int{1}},
		{QuestionIndex: 3, CorrectOptions: nil},
	}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("expected %v, got %v", want, first)
	}
	if s.Score() != before {
		t.Errorf("reveal changed the score")
	}
	if st, _ := s.Answer(1); st.Answered {
		t.Errorf("reveal changed answer states")
	}
}

/* ---------------- ExportQuiz ---------------- */

func TestExportQuiz(t *testing.T) {
	exp := &fakeExporter{doc: []byte("%PDF-1.3 test")}
	saver := &fakeSaver{}
	obs := &recordingObserver{}
	s := loadedSession(t, threeQuestionQuiz(), WithExporter(exp), WithSaver(saver), WithObserver(obs))

	if !s.CanExport() {
		t.Fatal("export should be available")
	}
	loc, err := s.ExportQuiz(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if loc != "/tmp/quiz.pdf" {
		t.Errorf("unexpected location %q", loc)
	}
	if string(saver.saved[ExportFilename]) != "%PDF-1.3 test" {
		t.Errorf("document not saved as %s", ExportFilename)
	}
	if exp.lastReq.Topic != "math" || len(exp.lastReq.Quiz) != 3 || exp.lastReq.Quiz[1].CorrectAnswer != "Paris" {
		t.Errorf("unexpected export request: %+v", exp.lastReq)
	}
	if len(obs.exported) != 1 {
		t.Errorf("expected Exported signal")
	}
}

func TestExportQuiz_Failures(t *testing.T) {
	t.Run("no quiz", func(t *testing.T) {
		s := New(&fakeGenerator{}, WithExporter(&fakeExporter{}), WithSaver(&fakeSaver{}))
		if s.CanExport() {
			t.Error("export must be disabled before a quiz is loaded")
		}
		if _, err := s.ExportQuiz(context.Background()); !errors.Is(err, ErrNoQuiz) {
			t.Errorf("expected ErrNoQuiz, got %v", err)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		s := loadedSession(t, arithmeticQuiz())
		if _, err := s.ExportQuiz(context.Background()); !errors.Is(err, ErrExportUnavailable) {
			t.Errorf("expected ErrExportUnavailable, got %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		obs := &recordingObserver{}
		exp := &fakeExporter{err: &quizerr.AuthorizationError{Op: "export", Status: 401, SignInURL: "/signup/?next=/"}}
		saver := &fakeSaver{}
		s := loadedSession(t, arithmeticQuiz(), WithExporter(exp), WithSaver(saver), WithObserver(obs))
		s.SubmitAnswer(0, "4")

		_, err := s.ExportQuiz(context.Background())
		if _, ok := quizerr.AsAuthorization(err); !ok {
			t.Fatalf("expected AuthorizationError, got %v", err)
		}
		if len(obs.signIn) != 1 {
			t.Errorf("expected sign-in signal")
		}
		if len(saver.saved) != 0 {
			t.Errorf("nothing should be saved")
		}
		if got := s.Score(); got != (Score{Answered: 1, Correct: 1, Total: 1}) {
			t.Errorf("export failure changed state: %+v", got)
		}
	})

	t.Run("save error", func(t *testing.T) {
		obs := &recordingObserver{}
		s := loadedSession(t, arithmeticQuiz(),
			WithExporter(&fakeExporter{doc: []byte("%PDF")}),
			WithSaver(&fakeSaver{err: errors.New("disk full")}),
			WithObserver(obs))

		if _, err := s.ExportQuiz(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if len(obs.failures) != 1 || obs.failures[0] != "export" {
			t.Errorf("expected export failure signal, got %v", obs.failures)
		}
	})
}
