package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
)

const columns = `feedback_id, course_id, user_id, rating, content, likes, dislikes,
	created_at, updated_at, deleted_at`

func Create(ctx context.Context, db sqlx.ExtContext, f Feedback) error {
	const q = `
	INSERT INTO feedbacks
		(feedback_id, course_id, user_id, rating, content, created_at, updated_at)
	VALUES
		(:feedback_id, :course_id, :user_id, :rating, :content, :created_at, :updated_at)`

	if _, err := database.NamedExec(ctx, db, q, f); err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, f Feedback) error {
	const q = `
	UPDATE feedbacks SET
		rating = :rating,
		content = :content,
		updated_at = :updated_at
	WHERE feedback_id = :feedback_id AND deleted_at IS NULL`

	res, err := database.NamedExec(ctx, db, q, f)
	if err != nil {
		return fmt.Errorf("updating feedback[%s]: %w", f.ID, err)
	}
	return database.ExpectAffected(res, database.ErrDBNotFound)
}

// SoftDelete marks the feedback deleted and returns its course id.
func SoftDelete(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) (string, error) {
	const q = `
	UPDATE feedbacks SET deleted_at = $2, updated_at = $2
	WHERE feedback_id = $1 AND deleted_at IS NULL
	RETURNING course_id`

	var courseID string
	if err := database.Get(ctx, db, &courseID, q, id, now); err != nil {
		return "", fmt.Errorf("deleting feedback[%s]: %w", id, err)
	}
	return courseID, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Feedback, error) {
	q := `SELECT ` + columns + ` FROM feedbacks WHERE feedback_id = $1 AND deleted_at IS NULL`

	var f Feedback
	if err := database.Get(ctx, db, &f, q, id); err != nil {
		return Feedback{}, fmt.Errorf("selecting feedback[%s]: %w", id, err)
	}
	return f, nil
}

func FetchByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Feedback, error) {
	q := `SELECT ` + columns + ` FROM feedbacks
	WHERE course_id = $1 AND deleted_at IS NULL
	ORDER BY created_at DESC`

	fs := []Feedback{}
	if err := database.Select(ctx, db, &fs, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting feedbacks of course[%s]: %w", courseID, err)
	}
	return fs, nil
}
