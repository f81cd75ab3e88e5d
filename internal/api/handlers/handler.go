package handlers

import (
	"context"
	"fmt"
	"log"

	"quizpad/internal/db"
	"quizpad/internal/models"
	"quizpad/internal/pdf"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// UserProfile stores information about the authenticated user.
type UserProfile struct {
	DatabaseID    uuid.UUID `json:"-"`  // Our internal user UUID (omit from JSON response to client)
	GoogleID      string    `json:"id"` // Google's ID (keep as 'id' in JSON)
	Email         string    `json:"email"`
	VerifiedEmail bool      `json:"verified_email"`
	Name          string    `json:"name"`
	Picture       string    `json:"picture"`
}

// Session and context keys
const (
	OauthStateSessionKey = "oauthstate"
	NextSessionKey       = "next"
	ProfileSessionKey    = "profile"

	UserIDContextKey      = "userID"
	UserProfileContextKey = "userProfile"
)

// QuizGenerator produces quiz questions for a topic.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, topic string, numQues int, difficulty models.Difficulty) ([]models.Question, error)
}

// Store persists users and the quiz archive.
type Store interface {
	UpsertUser(ctx context.Context, u db.User) (uuid.UUID, error)
	SaveQuiz(ctx context.Context, q models.ArchivedQuiz) (models.ArchivedQuiz, error)
	ListQuizzes(ctx context.Context, userID uuid.UUID, limit int) ([]models.ArchivedQuiz, int64, error)
}

// Handler contains the API handlers dependencies
type Handler struct {
	OauthConfig *oauth2.Config
	// Generator is nil when no Gemini API key is configured.
	Generator QuizGenerator
	// Store is nil when no database is configured; the archive is then disabled.
	Store       Store
	FrontendURL string
	// RenderPDF turns a quiz into a document. Defaults to pdf.Render.
	RenderPDF func(topic string, questions []models.Question) ([]byte, error)
	// FetchUser resolves an OAuth token to a Google profile.
	FetchUser func(ctx context.Context, token *oauth2.Token) (*UserProfile, error)
}

// NewHandler creates a new Handler
func NewHandler(oauth *oauth2.Config, gen QuizGenerator, store Store, frontendURL string) *Handler {
	h := &Handler{
		OauthConfig: oauth,
		Generator:   gen,
		Store:       store,
		FrontendURL: frontendURL,
		RenderPDF:   pdf.Render,
	}
	h.FetchUser = h.fetchGoogleUser
	return h
}

// abortWithError logs an error and aborts the request with a JSON body.
func abortWithError(c *gin.Context, userID uuid.UUID, statusCode int, errorContext string, err error) {
	log.Printf("ERROR: %s: %v (UserID: %s, Path: %s)", errorContext, err, userID, c.Request.URL.Path)
	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Error: fmt.Sprintf("%s: %v", errorContext, err)})
}

// currentUser returns the profile AuthRequired placed in the context.
func currentUser(c *gin.Context) (UserProfile, bool) {
	v, ok := c.Get(UserProfileContextKey)
	if !ok {
		return UserProfile{}, false
	}
	p, ok := v.(UserProfile)
	return p, ok
}

// userIDFor derives a stable ID for a Google account when no database assigns one.
func userIDFor(googleID, email string) uuid.UUID {
	key := googleID
	if key == "" {
		key = email
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://accounts.google.com/"+key))
}
