package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"quizpad/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// HandleGenerateQuiz generates a quiz for the posted topic, count and difficulty.
func (h *Handler) HandleGenerateQuiz(c *gin.Context) {
	profile, _ := currentUser(c)
	userID := profile.DatabaseID

	if h.Generator == nil {
		log.Printf("ERROR: Quiz generation requested but Gemini is not configured")
		c.String(http.StatusInternalServerError, "Gemini API key not configured")
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, userID, http.StatusBadRequest, "Bind Generate Request", err)
		return
	}
	topic, numQues, difficulty := normalizeGenerateRequest(req)

	ctx := c.Request.Context()
	questions, err := h.Generator.GenerateQuiz(ctx, topic, numQues, difficulty)
	if err != nil {
		abortWithError(c, userID, http.StatusInternalServerError, "Quiz generation failed", err)
		return
	}

	if h.Store != nil && userID != uuid.Nil {
		archived, err := h.Store.SaveQuiz(ctx, models.ArchivedQuiz{
			UserID:     userID,
			Topic:      topic,
			Difficulty: difficulty,
			Questions:  questions,
		})
		if err != nil {
			// The user still gets the quiz.
			log.Printf("ERROR: Failed to archive quiz for user %s: %v", userID, err)
		} else {
			log.Printf("INFO: Archived quiz %s for user %s", archived.ID, userID)
		}
	}

	log.Printf("INFO: Generated %d questions on %q (%s) for user %s", len(questions), topic, difficulty, userID)
	c.JSON(http.StatusOK, models.GenerateResponse{Quiz: questions})
}

// normalizeGenerateRequest applies defaults and clamps the question count.
func normalizeGenerateRequest(req models.GenerateRequest) (string, int, models.Difficulty) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = models.DefaultTopic
	}

	n := int(req.NumQues)
	switch {
	case n == 0:
		n = models.DefaultQuestionCount
	case n < 1:
		n = 1
	case n > models.MaxQuestionCount:
		n = models.MaxQuestionCount
	}

	difficulty := models.Difficulty(strings.ToLower(strings.TrimSpace(string(req.Difficulty))))
	if difficulty == "" {
		difficulty = models.DefaultDifficulty
	}
	return topic, n, difficulty
}

// HandleDownloadQuizPDF renders the posted quiz as a PDF attachment.
func (h *Handler) HandleDownloadQuizPDF(c *gin.Context) {
	profile, _ := currentUser(c)

	var req models.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, profile.DatabaseID, http.StatusBadRequest, "Bind Export Request", err)
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = models.DefaultExportName
	}

	doc, err := h.RenderPDF(topic, req.Quiz)
	if err != nil {
		log.Printf("ERROR: PDF export failed for user %s: %v", profile.DatabaseID, err)
		c.String(http.StatusInternalServerError, "PDF error")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=quiz.pdf")
	c.Data(http.StatusOK, "application/pdf", doc)
}

// HandleListUserQuizzes lists the quizzes the current user generated, newest first.
func (h *Handler) HandleListUserQuizzes(c *gin.Context) {
	profile, _ := currentUser(c)
	userID := profile.DatabaseID

	if h.Store == nil {
		abortWithError(c, userID, http.StatusServiceUnavailable, "List Quizzes", errors.New("quiz archive not configured"))
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortWithError(c, userID, http.StatusBadRequest, "Parse Limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	quizzes, total, err := h.Store.ListQuizzes(c.Request.Context(), userID, limit)
	if err != nil {
		abortWithError(c, userID, http.StatusInternalServerError, "List Quizzes", err)
		return
	}
	if quizzes == nil {
		quizzes = []models.ArchivedQuiz{}
	}
	c.JSON(http.StatusOK, models.QuizListResponse{Quizzes: quizzes, Total: total})
}
