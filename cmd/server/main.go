package main

import (
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizpad/internal/api"
	"quizpad/internal/api/handlers"
	"quizpad/internal/config"
	"quizpad/internal/db"
	"quizpad/internal/gemini"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	gsessions "github.com/gin-contrib/sessions/postgres"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const storeName = "quizpad_session"

func init() {
	// Gob needs the concrete type stored in the session.
	gob.Register(handlers.UserProfile{})
}

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	cfg, err := config.ServerFromEnv()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Google OAuth Configuration ---
	var oauthConfig *oauth2.Config
	if cfg.GoogleAuthEnabled() {
		oauthConfig = &oauth2.Config{
			RedirectURL:  cfg.GoogleRedirectURL,
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	} else {
		log.Println("WARN: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET or GOOGLE_REDIRECT_URL not set. Sign-in is disabled.")
	}

	// --- Gemini ---
	var generator handlers.QuizGenerator
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer geminiClient.Close()
		generator = geminiClient
	} else {
		log.Println("WARN: GEMINI_API_KEY not set. Quiz generation will answer 500.")
	}

	router := gin.Default()

	// --- Database and Session Store ---
	var store handlers.Store
	var sessionStore sessions.Store
	if cfg.DatabaseURL != "" {
		database, err := db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.CreateSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare database: %v", err)
		}
		store = database

		// The session store takes a database/sql pool; use pgx through its stdlib adapter.
		sessionDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database connection for session store: %v", err)
		}
		defer sessionDB.Close()
		if err := sessionDB.PingContext(ctx); err != nil {
			log.Fatalf("Failed to ping database for session store: %v", err)
		}
		pgStore, err := gsessions.NewStore(sessionDB, []byte(cfg.SessionSecret))
		if err != nil {
			log.Fatalf("Failed to create postgres session store: %v", err)
		}
		sessionStore = pgStore
	} else {
		log.Println("WARN: DATABASE_URL not set. Using cookie sessions; the quiz archive is disabled.")
		sessionStore = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		Secure:   cfg.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(storeName, sessionStore))

	handler := handlers.NewHandler(oauthConfig, generator, store, cfg.FrontendURL)
	api.SetupRoutes(router, handler, api.Options{
		FrontendURL:   cfg.FrontendURL,
		SecureCookies: cfg.SecureCookies,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("INFO: Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("INFO: Server exited properly")
}
