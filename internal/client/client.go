// Package client talks to the quiz-generation and export endpoints over HTTP
// and maps their outcomes onto the quizerr taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"quizpad/internal/models"
	"quizpad/internal/quizerr"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultGeneratePath = "/generate_quiz/"
	DefaultExportPath   = "/download_quiz_pdf/"
	DefaultCSRFPath     = "/csrf/"
	DefaultSignInPath   = "/signup/?next=/"

	maxQuizBody   = 10 << 20 // 10 MB
	maxExportBody = 50 << 20 // 50 MB
)

// Config describes where the collaborators live and how requests are signed.
type Config struct {
	BaseURL      string
	GeneratePath string
	ExportPath   string
	CSRFPath     string
	SignInPath   string
	Timeout      time.Duration
	Jar          http.CookieJar
	// Signer defaults to a CSRFSigner over Jar.
	Signer Signer
}

// Client implements session.Generator and session.Exporter.
type Client struct {
	http   *http.Client
	base   *url.URL
	cfg    Config
	signer Signer
}

// New creates a client. A cookie jar is created when none is supplied so that
// the session and CSRF cookies survive between calls.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", cfg.BaseURL)
	}

	if cfg.GeneratePath == "" {
		cfg.GeneratePath = DefaultGeneratePath
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = DefaultExportPath
	}
	if cfg.CSRFPath == "" {
		cfg.CSRFPath = DefaultCSRFPath
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = DefaultSignInPath
	}
	if cfg.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		cfg.Jar = jar
	}
	signer := cfg.Signer
	if signer == nil {
		signer = NewCSRFSigner(cfg.Jar)
	}

	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout, Jar: cfg.Jar},
		base:   base,
		cfg:    cfg,
		signer: signer,
	}, nil
}

// SetSessionCookie seeds the jar with a session cookie obtained elsewhere,
// typically copied from a browser that signed in.
func (c *Client) SetSessionCookie(name, value string) {
	if value == "" {
		return
	}
	c.cfg.Jar.SetCookies(c.base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// SignInURL is where the user is sent when a collaborator rejects the credentials.
func (c *Client) SignInURL() string {
	return c.base.String() + c.cfg.SignInPath
}

// Prime fetches the CSRF endpoint so the server can set its token cookie.
func (c *Client) Prime(ctx context.Context) error {
	resp, err := c.do(ctx, "csrf", http.MethodGet, c.cfg.CSRFPath, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Generate asks the quiz-generation collaborator for a quiz.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) ([]models.Question, error) {
	const op = "generate"
	resp, err := c.do(ctx, op, http.MethodPost, c.cfg.GeneratePath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Quiz *[]models.Question `json:"quiz"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxQuizBody)).Decode(&body); err != nil {
		return nil, &quizerr.MalformedResponseError{Op: op, Err: err}
	}
	if body.Quiz == nil {
		return nil, &quizerr.MalformedResponseError{Op: op, Err: errors.New(`missing "quiz" field`)}
	}
	log.Printf("INFO: Received %d questions for topic %q", len(*body.Quiz), req.Topic)
	return *body.Quiz, nil
}

// Export asks the export collaborator to render the quiz and returns the document bytes.
func (c *Client) Export(ctx context.Context, req models.ExportRequest) ([]byte, error) {
	const op = "export"
	resp, err := c.do(ctx, op, http.MethodPost, c.cfg.ExportPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || (mediaType != "application/pdf" && mediaType != "application/octet-stream") {
			return nil, &quizerr.MalformedResponseError{Op: op, Err: fmt.Errorf("unexpected content type %q", ct)}
		}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBody))
	if err != nil {
		return nil, &quizerr.TransportError{Op: op, Err: err}
	}
	if len(data) == 0 {
		return nil, &quizerr.MalformedResponseError{Op: op, Err: errors.New("empty document")}
	}
	log.Printf("INFO: Received exported document (%d bytes) for topic %q", len(data), req.Topic)
	return data, nil
}

// do sends one request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
	if err := c.signer.Sign(req); err != nil {
		return nil, fmt.Errorf("%s: failed to sign request: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("ERROR: %s request to %s failed: %v", op, path, err)
		return nil, &quizerr.TransportError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		log.Printf("WARN: %s request to %s rejected with %d, sign-in required", op, path, resp.StatusCode)
		return nil, &quizerr.AuthorizationError{Op: op, Status: resp.StatusCode, SignInURL: c.SignInURL()}
	case resp.StatusCode/100 != 2:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		log.Printf("ERROR: %s request to %s failed with status %d: %s", op, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		return nil, &quizerr.TransportError{Op: op, Status: resp.StatusCode}
	}
	return resp, nil
}
