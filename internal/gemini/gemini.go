package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"quizpad/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrNoJSON is returned when the model reply contains no JSON object.
var ErrNoJSON = errors.New("no JSON found")

const maxAttempts = 3

// contentGenerator is the part of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client wraps the Gemini client
type Client struct {
	client     *genai.Client
	model      contentGenerator
	retryDelay time.Duration
}

// NewClient creates a new Gemini client for the given model.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(int32(8192))

	log.Printf("INFO: Gemini client initialized with model %s", modelName)
	return &Client{client: client, model: model, retryDelay: 2 * time.Second}, nil
}

// Close closes the Gemini client
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// CreatePrompt builds the generation prompt.
func CreatePrompt(topic string, numQues int, difficulty models.Difficulty) string {
	return fmt.Sprintf("Generate exactly %d multiple-choice questions about %q "+
		"at %s difficulty.\n\n"+
		"Return ONLY one valid JSON object in the following format:\n\n"+
		"{\n"+
		"  \"quiz\": [\n"+
		"    {\n"+
		"      \"question\": \"Question text\",\n"+
		"      \"options\": [\"opt1\", \"opt2\", \"opt3\", \"opt4\"],\n"+
		"      \"correct_answer\": \"opt1\"\n"+
		"    }\n"+
		"  ]\n"+
		"}\n", numQues, topic, difficulty)
}

// GenerateQuiz asks the model for a quiz and parses the reply, trying up to
// three times before giving up.
func (c *Client) GenerateQuiz(ctx context.Context, topic string, numQues int, difficulty models.Difficulty) ([]models.Question, error) {
	prompt := CreatePrompt(topic, numQues, difficulty)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("failed to generate content (attempt %d): %w", attempt, err)
			log.Printf("WARN: %v", lastErr)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		raw := responseText(resp)
		if raw == "" {
			lastErr = fmt.Errorf("no content generated (attempt %d)", attempt)
			log.Printf("WARN: %v", lastErr)
			continue
		}

		quiz, err := ParseQuizText(raw)
		if err != nil {
			log.Printf("DEBUG: Raw model text (attempt %d) before parse error: %s", attempt, raw)
			lastErr = fmt.Errorf("failed to parse model response (attempt %d): %w", attempt, err)
			continue
		}

		log.Printf("INFO: Generated %d questions about %q (%s)", len(quiz), topic, difficulty)
		return quiz, nil
	}

	return nil, fmt.Errorf("failed to generate quiz after %d attempts: %w", maxAttempts, lastErr)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

var leadingJSONLabel = regexp.MustCompile(`(?i)^\s*json`)

// ParseQuizText extracts the quiz object from a model reply that may be
// wrapped in a markdown code fence.
func ParseQuizText(raw string) ([]models.Question, error) {
	text, err := extractJSONFromText(raw)
	if err != nil {
		return nil, err
	}

	var resp models.GenerateResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("invalid quiz JSON: %w", err)
	}
	if len(resp.Quiz) == 0 {
		return nil, errors.New("quiz response contained no questions")
	}
	for i, q := range resp.Quiz {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d has %d options", i+1, len(q.Options))
		}
	}
	return resp.Quiz, nil
}

// extractJSONFromText strips code fences and an optional "json" label, then
// returns everything from the first '{' to the last '}'.
func extractJSONFromText(text string) (string, error) {
	text = strings.Trim(text, "`")
	text = leadingJSONLabel.ReplaceAllString(text, "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}
