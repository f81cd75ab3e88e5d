// Package config loads settings for the quiz console and the reference server
// from flags and environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"quizpad/internal/models"
	"quizpad/internal/r2"

	"github.com/joho/godotenv"
)

const (
	ExportFS = "fs"
	ExportR2 = "r2"

	DefaultBaseURL     = "http://localhost:8080"
	DefaultSessionName = "quizpad_session"
	DefaultTimeout     = 2 * time.Minute
	DefaultGeminiModel = "gemini-2.5-flash"
)

// LoadEnv reads a .env file if one exists in the working directory.
func LoadEnv() error {
	err := godotenv.Load()
	if errors.Is(err, os.ErrNotExist) {
		log.Println("WARN: No .env file found, relying on process environment")
		return nil
	}
	if err != nil {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// Client holds the console's settings.
type Client struct {
	BaseURL       string
	SessionCookie string
	SessionName   string
	Timeout       time.Duration
	ExportTarget  string
	ExportDir     string
	Count         int
	Difficulty    models.Difficulty
	R2            r2.Settings
}

// ParseClient parses flags and falls back to the environment for anything not
// given on the command line.
func ParseClient(args []string) (Client, error) {
	var cfg Client
	var difficulty string

	fs := flag.NewFlagSet("quiz", flag.ContinueOnError)
	fs.StringVar(&cfg.BaseURL, "url", "", "Base URL of the quiz server")
	fs.StringVar(&cfg.SessionCookie, "session", "", "Session cookie value copied from a signed-in browser (prefer env)")
	fs.StringVar(&cfg.SessionName, "session-name", "", "Session cookie name")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Request timeout")
	fs.StringVar(&cfg.ExportTarget, "export", "", "Export target (fs or r2)")
	fs.StringVar(&cfg.ExportDir, "out", "", "Directory exported quizzes are written to")
	fs.IntVar(&cfg.Count, "n", 0, "Default number of questions")
	fs.StringVar(&difficulty, "difficulty", "", "Default difficulty (easy, medium, hard)")

	if err := fs.Parse(args); err != nil {
		return Client{}, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = envOr("QUIZ_BASE_URL", DefaultBaseURL)
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = os.Getenv("QUIZ_SESSION_COOKIE")
	}
	if cfg.SessionName == "" {
		cfg.SessionName = envOr("QUIZ_SESSION_NAME", DefaultSessionName)
	}
	if cfg.Timeout == 0 {
		d, err := envDuration("QUIZ_TIMEOUT", DefaultTimeout)
		if err != nil {
			return Client{}, err
		}
		cfg.Timeout = d
	}
	if cfg.Timeout < 0 {
		return Client{}, errors.New("timeout must be positive")
	}

	if cfg.ExportTarget == "" {
		cfg.ExportTarget = envOr("QUIZ_EXPORT_TARGET", ExportFS)
	}
	cfg.ExportTarget = strings.ToLower(cfg.ExportTarget)
	if cfg.ExportTarget != ExportFS && cfg.ExportTarget != ExportR2 {
		return Client{}, fmt.Errorf("unknown export target %q (use fs or r2)", cfg.ExportTarget)
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = envOr("QUIZ_EXPORT_DIR", ".")
	}

	if cfg.Count == 0 {
		if v := os.Getenv("QUIZ_COUNT"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Client{}, fmt.Errorf("invalid QUIZ_COUNT: %w", err)
			}
			cfg.Count = n
		} else {
			cfg.Count = models.DefaultQuestionCount
		}
	}
	if cfg.Count < 1 || cfg.Count > models.MaxQuestionCount {
		return Client{}, fmt.Errorf("question count must be between 1 and %d", models.MaxQuestionCount)
	}

	if difficulty == "" {
		difficulty = os.Getenv("QUIZ_DIFFICULTY")
	}
	if difficulty == "" {
		cfg.Difficulty = models.DefaultDifficulty
	} else {
		d, ok := models.ParseDifficulty(difficulty)
		if !ok {
			return Client{}, fmt.Errorf("unknown difficulty %q", difficulty)
		}
		cfg.Difficulty = d
	}

	cfg.R2 = r2.Settings{
		AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		Bucket:          os.Getenv("R2_BUCKET_NAME"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		PublicURL:       os.Getenv("R2_PUBLIC_URL"),
	}
	if cfg.ExportTarget == ExportR2 && !cfg.R2.Complete() {
		return Client{}, errors.New("r2 export requires CLOUDFLARE_ACCOUNT_ID, R2_BUCKET_NAME, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_PUBLIC_URL")
	}

	return cfg, nil
}

// Server holds the reference server's settings.
type Server struct {
	Port               string
	SessionSecret      string
	DatabaseURL        string
	GeminiAPIKey       string
	GeminiModel        string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string
	SecureCookies      bool
}

// ServerFromEnv reads the server settings. SESSION_SECRET is required.
func ServerFromEnv() (Server, error) {
	cfg := Server{
		Port:               envOr("PORT", "8080"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        envOr("GEMINI_MODEL", DefaultGeminiModel),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		FrontendURL:        envOr("FRONTEND_URL", "http://localhost:3000"),
		SecureCookies:      envBool("SECURE_COOKIES", false),
	}
	if cfg.SessionSecret == "" {
		return Server{}, errors.New("SESSION_SECRET environment variable not set")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Server{}, fmt.Errorf("invalid PORT %q", cfg.Port)
	}
	return cfg, nil
}

// GoogleAuthEnabled reports whether OAuth sign-in can be offered.
func (s Server) GoogleAuthEnabled() bool {
	return s.GoogleClientID != "" && s.GoogleClientSecret != "" && s.GoogleRedirectURL != ""
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return d, nil
}
