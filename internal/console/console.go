// Package console is a line-oriented front end for a quiz session. It parses
// commands, forwards them to the session and renders the session's signals.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"quizpad/internal/models"
	"quizpad/internal/quizerr"
	"quizpad/internal/session"
)

// Controller is the subset of *session.Session the console drives.
type Controller interface {
	RequestQuiz(ctx context.Context, topic string, questionCount int, difficulty models.Difficulty) error
	SubmitAnswer(index int, option string) (session.Score, error)
	RevealAnswers() ([]session.Reveal, error)
	ExportQuiz(ctx context.Context) (string, error)
	Quiz() (models.Quiz, bool)
	Answer(i int) (session.AnswerState, error)
	Score() session.Score
	CanExport() bool
}

// Defaults fill in whatever a "new" command leaves out.
type Defaults struct {
	Count      int
	Difficulty models.Difficulty
}

// Console renders session signals to out. It implements session.Observer.
type Console struct {
	ctrl     Controller
	defaults Defaults

	mu   sync.Mutex
	out  io.Writer
	quiz models.Quiz

	pending sync.WaitGroup
}

var _ session.Observer = (*Console)(nil)

func New(out io.Writer, defaults Defaults) *Console {
	if defaults.Count <= 0 {
		defaults.Count = models.DefaultQuestionCount
	}
	if defaults.Difficulty == "" {
		defaults.Difficulty = models.DefaultDifficulty
	}
	return &Console{out: out, defaults: defaults}
}

// Attach sets the controller commands are sent to. It must be called before Run.
func (c *Console) Attach(ctrl Controller) { c.ctrl = ctrl }

// Run reads commands from in until EOF or "quit". Generation runs in the
// background so the prompt stays usable; Run waits for it before returning.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	if c.ctrl == nil {
		return errors.New("console has no controller attached")
	}
	c.printf("Type \"help\" for commands.\n")

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			break
		}
		if quit := c.Execute(ctx, sc.Text()); quit {
			break
		}
	}
	c.Wait()
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}

// Wait blocks until background generation has finished.
func (c *Console) Wait() { c.pending.Wait() }

// Execute runs a single command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "new", "generate":
		c.generate(ctx, args)
	case "answer", "a":
		if len(args) == 1 {
			c.answer(args[0])
		} else if len(args) == 2 {
			c.answer(args[0] + args[1])
		} else {
			c.printf("Usage: answer <question#> <letter>\n")
		}
	case "reveal":
		if _, err := c.ctrl.RevealAnswers(); err != nil {
			c.reportCommandError(err)
		}
	case "export":
		c.export(ctx)
	case "score":
		c.printScore(c.ctrl.Score())
	case "show":
		q, ok := c.ctrl.Quiz()
		if !ok {
			c.printf("No quiz loaded. Try: new 5 medium photosynthesis\n")
			return false
		}
		c.printQuiz(q)
	case "help", "?":
		c.printf("%s", helpText)
	case "quit", "exit", "q":
		return true
	default:
		// "3b" answers question 3 with option B.
		if len(fields) == 1 && isAnswerShorthand(cmd) {
			c.answer(cmd)
			return false
		}
		c.printf("Unknown command %q. Type \"help\" for commands.\n", fields[0])
	}
	return false
}

const helpText = `Commands:
  new [count] [easy|medium|hard] <topic>   generate a quiz (alias: generate)
  answer <question#> <letter>              answer a question, e.g. "answer 3 b" or "3b"
  reveal                                   show the correct answers
  export                                   save the quiz as a PDF
  score                                    show the current score
  show                                     print the current quiz
  quit                                     exit
`

func (c *Console) generate(ctx context.Context, args []string) {
	count, difficulty := c.defaults.Count, c.defaults.Difficulty
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			if n < 1 || n > models.MaxQuestionCount {
				c.printf("Number of questions must be between 1 and %d.\n", models.MaxQuestionCount)
				return
			}
			count, args = n, args[1:]
		}
	}
	if len(args) > 0 {
		if d, ok := models.ParseDifficulty(args[0]); ok {
			difficulty, args = d, args[1:]
		}
	}
	topic := strings.Join(args, " ")

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		err := c.ctrl.RequestQuiz(ctx, topic, count, difficulty)
		switch {
		case errors.Is(err, session.ErrBusy):
			c.printf("A quiz is already being generated, please wait.\n")
		case quizerr.IsValidation(err):
			c.printf("Please enter a topic.\n")
		}
	}()
}

func (c *Console) answer(arg string) {
	qnum, letter, ok := splitAnswer(arg)
	if !ok {
		c.printf("Usage: answer <question#> <letter>\n")
		return
	}
	q, loaded := c.ctrl.Quiz()
	if !loaded {
		c.reportCommandError(session.ErrNoQuiz)
		return
	}
	idx := qnum - 1
	if idx < 0 || idx >= len(q.Questions) {
		c.printf("There is no question %d.\n", qnum)
		return
	}
	opt := letterIndex(letter)
	if opt < 0 || opt >= len(q.Questions[idx].Options) {
		c.printf("Question %d has no option %s.\n", qnum, strings.ToUpper(letter))
		return
	}
	if st, err := c.ctrl.Answer(idx); err == nil && st.Answered {
		c.printf("Question %d is already answered.\n", qnum)
		return
	}
	if _, err := c.ctrl.SubmitAnswer(idx, q.Questions[idx].Options[opt]); err != nil {
		c.reportCommandError(err)
	}
}

func (c *Console) export(ctx context.Context) {
	if !c.ctrl.CanExport() {
		if _, ok := c.ctrl.Quiz(); !ok {
			c.reportCommandError(session.ErrNoQuiz)
			return
		}
		c.reportCommandError(session.ErrExportUnavailable)
		return
	}
	c.printf("Exporting…\n")
	// Failures reach the user through Failed or SignInRequired.
	c.ctrl.ExportQuiz(ctx)
}

func (c *Console) reportCommandError(err error) {
	switch {
	case errors.Is(err, session.ErrNoQuiz):
		c.printf("No quiz loaded. Try: new 5 medium photosynthesis\n")
	case errors.Is(err, session.ErrExportUnavailable):
		c.printf("Export is not configured.\n")
	default:
		c.printf("Error: %v\n", err)
	}
}

// Observer implementation.

func (c *Console) BusyChanged(busy bool) {
	if busy {
		c.printf("Status: Generating…\n")
	}
}

func (c *Console) QuizLoaded(q models.Quiz) {
	c.mu.Lock()
	c.quiz = q
	c.mu.Unlock()
	c.printf("Status: Ready\n")
	c.printQuiz(q)
}

func (c *Console) AnswerMarked(index int, st session.AnswerState) {
	c.mu.Lock()
	q := c.quiz
	c.mu.Unlock()

	label := st.SelectedOption
	if index < len(q.Questions) {
		for i, opt := range q.Questions[index].Options {
			if opt == st.SelectedOption {
				label = optionLetter(i) + ". " + opt
				break
			}
		}
	}
	mark := "✗ incorrect"
	if st.IsCorrect {
		mark = "✓ correct"
	}
	c.printf("Question %d: %s  %s\n", index+1, label, mark)
}

func (c *Console) ScoreChanged(s session.Score) { c.printScore(s) }

func (c *Console) AnswersRevealed(reveals []session.Reveal) {
	c.mu.Lock()
	q := c.quiz
	c.mu.Unlock()

	var b strings.Builder
	b.WriteString("Answers:\n")
	for _, r := range reveals {
		fmt.Fprintf(&b, "  Question %d: ", r.QuestionIndex+1)
		if len(r.CorrectOptions) == 0 {
			b.WriteString("no option matches the expected answer\n")
			continue
		}
		labels := make([]string, len(r.CorrectOptions))
		for i, idx := range r.CorrectOptions {
			labels[i] = optionLetter(idx)
			if r.QuestionIndex < len(q.Questions) {
				labels[i] += ". " + q.Questions[r.QuestionIndex].Options[idx]
			}
		}
		fmt.Fprintf(&b, "%s  ✓ correct\n", strings.Join(labels, ", "))
	}
	c.printf("%s", b.String())
}

func (c *Console) Exported(location string) {
	c.printf("Saved quiz to %s\n", location)
}

func (c *Console) SignInRequired(signInURL string) {
	c.printf("Status: Error\nYou need to sign in first. Open %s in a browser, then restart with -session.\n", signInURL)
}

func (c *Console) Failed(op string, err error) {
	if op == "generate" {
		c.printf("Status: Error\nCould not generate quiz: %v\n", err)
		return
	}
	c.printf("Could not %s quiz: %v\n", op, err)
}

// Rendering.

func (c *Console) printQuiz(q models.Quiz) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%d questions] [%s]\n", q.Topic, len(q.Questions), q.Difficulty)
	for i, question := range q.Questions {
		st, _ := c.ctrl.Answer(i)
		fmt.Fprintf(&b, "\nQuestion %d\n%s\n", i+1, question.Text)
		for j, opt := range question.Options {
			mark := ""
			if st.Answered && st.SelectedOption == opt {
				mark = "  ✗"
				if st.IsCorrect {
					mark = "  ✓"
				}
			}
			fmt.Fprintf(&b, "  %s. %s%s\n", optionLetter(j), opt, mark)
		}
	}
	c.printf("%s", b.String())
}

func (c *Console) printScore(s session.Score) {
	if s.Answered == 0 {
		c.printf("No answers yet.\n")
		return
	}
	c.printf("Score: %s\n", s)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func optionLetter(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}

func letterIndex(s string) int {
	if len(s) == 1 && unicode.IsLetter(rune(s[0])) {
		return int(unicode.ToUpper(rune(s[0])) - 'A')
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n - 1
	}
	return -1
}

func isAnswerShorthand(s string) bool {
	_, _, ok := splitAnswer(s)
	return ok
}

// splitAnswer splits "3b" into 3 and "b".
func splitAnswer(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i != len(s)-1 {
		return 0, "", false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", false
	}
	letter := s[i:]
	if !unicode.IsLetter(rune(letter[0])) {
		return 0, "", false
	}
	return n, letter, true
}
