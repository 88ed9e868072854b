package quiz

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
)

const columns = `quiz_id, lecture_id, title, passing_score, created_at, updated_at`

func Create(ctx context.Context, db sqlx.ExtContext, qz Quiz) error {
	const q = `
	INSERT INTO quizzes
		(quiz_id, lecture_id, title, passing_score, created_at, updated_at)
	VALUES
		(:quiz_id, :lecture_id, :title, :passing_score, :created_at, :updated_at)`

	if _, err := database.NamedExec(ctx, db, q, qz); err != nil {
		return fmt.Errorf("inserting quiz: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, qz Quiz) error {
	const q = `
	UPDATE quizzes SET
		lecture_id = :lecture_id,
		title = :title,
		passing_score = :passing_score,
		updated_at = :updated_at
	WHERE quiz_id = :quiz_id`

	res, err := database.NamedExec(ctx, db, q, qz)
	if err != nil {
		return fmt.Errorf("updating quiz[%s]: %w", qz.ID, err)
	}
	return database.ExpectAffected(res, database.ErrDBNotFound)
}

// Delete removes the quiz and returns the lecture it was bound to, if any.
func Delete(ctx context.Context, db sqlx.ExtContext, id string) (*string, error) {
	const q = `DELETE FROM quizzes WHERE quiz_id = $1 RETURNING lecture_id`

	var lectureID *string
	if err := database.Get(ctx, db, &lectureID, q, id); err != nil {
		return nil, fmt.Errorf("deleting quiz[%s]: %w", id, err)
	}
	return lectureID, nil
}

// FetchForUpdate locks the quiz row for the rest of the transaction.
func FetchForUpdate(ctx context.Context, db sqlx.ExtContext, id string) (Quiz, error) {
	q := `SELECT ` + columns + ` FROM quizzes WHERE quiz_id = $1 FOR UPDATE`

	var qz Quiz
	if err := database.Get(ctx, db, &qz, q, id); err != nil {
		return Quiz{}, fmt.Errorf("selecting quiz[%s]: %w", id, err)
	}
	return qz, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Quiz, error) {
	q := `SELECT ` + columns + ` FROM quizzes WHERE quiz_id = $1`

	var qz Quiz
	if err := database.Get(ctx, db, &qz, q, id); err != nil {
		return Quiz{}, fmt.Errorf("selecting quiz[%s]: %w", id, err)
	}
	return qz, nil
}

func FetchByLecture(ctx context.Context, db sqlx.ExtContext, lectureID string) ([]Quiz, error) {
	q := `SELECT ` + columns + ` FROM quizzes WHERE lecture_id = $1 ORDER BY created_at`

	qs := []Quiz{}
	if err := database.Select(ctx, db, &qs, q, lectureID); err != nil {
		return nil, fmt.Errorf("selecting quizzes of lecture[%s]: %w", lectureID, err)
	}
	return qs, nil
}
