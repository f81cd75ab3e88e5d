package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quizpad/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a signed-in account.
type User struct {
	ID       uuid.UUID
	Email    string
	Name     string
	GoogleID string
	Picture  string
}

// UpsertUser creates the user on first sign-in and refreshes the profile
// fields on later ones. It returns the stored user ID.
func (db *DB) UpsertUser(ctx context.Context, u User) (uuid.UUID, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var id uuid.UUID
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO app_user (id, email, name, google_id, picture)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, google_id = EXCLUDED.google_id, picture = EXCLUDED.picture
		RETURNING id`,
		u.ID, u.Email, u.Name, u.GoogleID, u.Picture,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert user %s: %w", u.Email, err)
	}
	return id, nil
}

// SaveQuiz archives a generated quiz. ID and CreatedAt are filled in when zero.
func (db *DB) SaveQuiz(ctx context.Context, q models.ArchivedQuiz) (models.ArchivedQuiz, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return models.ArchivedQuiz{}, fmt.Errorf("failed to encode questions: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO generated_quiz (id, user_id, topic, difficulty, questions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.UserID, q.Topic, string(q.Difficulty), questions, q.CreatedAt,
	)
	if err != nil {
		return models.ArchivedQuiz{}, fmt.Errorf("failed to save quiz: %w", err)
	}
	return q, nil
}

// ListQuizzes returns the user's most recent quizzes, newest first, and the
// total number the user has generated.
func (db *DB) ListQuizzes(ctx context.Context, userID uuid.UUID, limit int) ([]models.ArchivedQuiz, int64, error) {
	var total int64
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM generated_quiz WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count quizzes: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, topic, difficulty, questions, created_at
		FROM generated_quiz
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quizzes: %w", err)
	}

	quizzes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ArchivedQuiz, error) {
		var q models.ArchivedQuiz
		var difficulty string
		err := row.Scan(&q.ID, &q.UserID, &q.Topic, &difficulty, &q.Questions, &q.CreatedAt)
		q.Difficulty = models.Difficulty(difficulty)
		return q, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan quizzes: %w", err)
	}
	return quizzes, total, nil
}
