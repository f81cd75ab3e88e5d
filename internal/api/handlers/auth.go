package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"quizpad/internal/db"
	"quizpad/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// HandleGoogleLogin initiates the Google OAuth flow. The optional "next"
// query parameter is where the user lands after signing in.
func (h *Handler) HandleGoogleLogin(c *gin.Context) {
	if h.OauthConfig == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Google sign-in not configured"})
		return
	}
	session := sessions.Default(c)

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		log.Printf("ERROR: Failed to generate state: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate state"})
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	session.Set(OauthStateSessionKey, state)
	session.Set(NextSessionKey, safeNext(c.Query("next")))
	if err := session.Save(); err != nil {
		log.Printf("ERROR: Failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save session"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.OauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// HandleSignup sends users to the Google sign-in flow, keeping "next".
// Accounts are created on first sign-in.
func (h *Handler) HandleSignup(c *gin.Context) {
	target := "/login?next=" + url.QueryEscape(safeNext(c.Query("next")))
	c.Redirect(http.StatusFound, target)
}

// HandleGoogleCallback handles the redirect back from Google.
func (h *Handler) HandleGoogleCallback(c *gin.Context) {
	if h.OauthConfig == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Google sign-in not configured"})
		return
	}
	session := sessions.Default(c)
	savedState, _ := session.Get(OauthStateSessionKey).(string)
	queryState := c.Query("state")

	if queryState == "" || savedState == "" || savedState != queryState {
		log.Printf("WARN: Invalid OAuth state parameter. Session state: %q, Query state: %q", savedState, queryState)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid state parameter."})
		return
	}

	ctx := c.Request.Context()
	token, err := h.OauthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		log.Printf("ERROR: Failed to exchange code: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to exchange code"})
		return
	}
	if !token.Valid() {
		log.Printf("WARN: Retrieved invalid token.")
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Retrieved invalid token"})
		return
	}

	profile, err := h.FetchUser(ctx, token)
	if err != nil {
		log.Printf("ERROR: Failed to get user info: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get user info"})
		return
	}

	if h.Store != nil {
		id, err := h.Store.UpsertUser(ctx, db.User{
			Email:    profile.Email,
			Name:     profile.Name,
			GoogleID: profile.GoogleID,
			Picture:  profile.Picture,
		})
		if err != nil {
			log.Printf("ERROR: Failed to store user %s: %v", profile.Email, err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Database error saving user profile"})
			return
		}
		profile.DatabaseID = id
	} else {
		profile.DatabaseID = userIDFor(profile.GoogleID, profile.Email)
	}
	log.Printf("INFO: User %s signed in with ID %s", profile.Email, profile.DatabaseID)

	next, _ := session.Get(NextSessionKey).(string)
	session.Set(ProfileSessionKey, *profile)
	session.Delete(OauthStateSessionKey)
	session.Delete(NextSessionKey)
	if err := session.Save(); err != nil {
		log.Printf("ERROR: Failed to save session after login: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save session"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.redirectTarget(next))
}

func (h *Handler) fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*UserProfile, error) {
	client := h.OauthConfig.Client(ctx, token)
	svc, err := oauth2api.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth2 service: %w", err)
	}
	info, err := svc.Userinfo.V2.Me.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	return &UserProfile{
		GoogleID:      info.Id,
		Email:         info.Email,
		VerifiedEmail: info.VerifiedEmail != nil && *info.VerifiedEmail,
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}

// HandleLogout clears the session.
func (h *Handler) HandleLogout(c *gin.Context) {
	userID := uuid.Nil
	if profile, ok := currentUser(c); ok {
		userID = profile.DatabaseID
	}

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		log.Printf("ERROR: Failed to save session during logout for user %s: %v", userID, err)
	}

	log.Printf("INFO: User session cleared for user ID: %s", userID)
	c.Status(http.StatusOK)
}

// HandleAuthStatus checks if a user is currently authenticated via session.
func (h *Handler) HandleAuthStatus(c *gin.Context) {
	profile, ok := sessions.Default(c).Get(ProfileSessionKey).(UserProfile)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          profile,
	})
}

// safeNext keeps only same-site relative paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}

func (h *Handler) redirectTarget(next string) string {
	next = safeNext(next)
	if h.FrontendURL == "" {
		return next
	}
	return strings.TrimSuffix(h.FrontendURL, "/") + next
}
