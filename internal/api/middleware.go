package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"net/http"
	"strings"

	"quizpad/internal/api/handlers"
	"quizpad/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
	csrfContextKey = "csrfToken"
	csrfCookieAge  = 365 * 24 * 60 * 60
)

// CORSMiddleware adds CORS headers to allow credentialed requests from the frontend.
func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	origin := strings.TrimSuffix(frontendURL, "/")
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, "+CSRFHeaderName+", X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// CSRFMiddleware issues a csrftoken cookie and, for unsafe methods, requires
// the X-CSRFToken header to carry the same value.
func CSRFMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CSRFCookieName)
		hasCookie := err == nil && token != ""
		if !hasCookie {
			token = newCSRFToken()
			c.SetSameSite(http.SameSiteLaxMode)
			// Readable by scripts so the frontend can echo it in the header.
			c.SetCookie(CSRFCookieName, token, csrfCookieAge, "/", "", secure, false)
		}
		c.Set(csrfContextKey, token)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		header := c.GetHeader(CSRFHeaderName)
		if !hasCookie || header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(token)) != 1 {
			log.Printf("WARN: CSRF verification failed for %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "CSRF verification failed"})
			return
		}
		c.Next()
	}
}

// HandleCSRFToken returns the token CSRFMiddleware placed in the cookie.
func HandleCSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrf_token": c.GetString(csrfContextKey)})
}

func newCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Printf("ERROR: Failed to generate CSRF token: %v", err)
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// AuthRequired is middleware to ensure the user is authenticated.
// It answers 401 {"error":"AUTH_REQUIRED"} when the session holds no profile,
// and otherwise puts the user ID and profile into the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		profile, ok := session.Get(handlers.ProfileSessionKey).(handlers.UserProfile)
		if !ok || profile.DatabaseID == uuid.Nil {
			log.Printf("WARN: AuthRequired failed for %s %s - no profile in session", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.AuthRequiredError})
			return
		}

		c.Set(handlers.UserIDContextKey, profile.DatabaseID)
		c.Set(handlers.UserProfileContextKey, profile)
		c.Next()
	}
}
