package api

import (
	"net/http"

	"quizpad/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// Options configure the middleware SetupRoutes installs.
type Options struct {
	FrontendURL   string
	SecureCookies bool
}

// SetupRoutes sets up the server routes. The quiz endpoints keep the paths
// the quiz console and the browser page post to.
func SetupRoutes(router *gin.Engine, handler *handlers.Handler, opts Options) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Use(CORSMiddleware(opts.FrontendURL))
	router.Use(CSRFMiddleware(opts.SecureCookies))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/csrf/", HandleCSRFToken)

	// --- Public Auth Routes ---
	router.GET("/login", handler.HandleGoogleLogin)
	router.GET("/signup/", handler.HandleSignup)
	router.GET("/auth/google/callback", handler.HandleGoogleCallback)
	router.GET("/api/auth/status", handler.HandleAuthStatus)

	// --- Protected Routes ---
	authorized := router.Group("/")
	authorized.Use(AuthRequired())
	{
		authorized.POST("/logout", handler.HandleLogout)
		authorized.POST("/generate_quiz/", handler.HandleGenerateQuiz)
		authorized.POST("/download_quiz_pdf/", handler.HandleDownloadQuizPDF)
		authorized.GET("/quizzes/", handler.HandleListUserQuizzes)
	}
}
