package lecture

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
)

const columns = `lecture_id, chapter_id, name, description, order_index, duration,
	file_url, is_preview, requires_quiz, created_at, updated_at, deleted_at, version`

func Create(ctx context.Context, db sqlx.ExtContext, l Lecture) error {
	const q = `
	INSERT INTO lectures
		(lecture_id, chapter_id, name, description, order_index, duration,
		file_url, is_preview, created_at, updated_at, version)
	VALUES
		(:lecture_id, :chapter_id, :name, :description, :order_index, :duration,
		:file_url, :is_preview, :created_at, :updated_at, 1)`

	if _, err := database.NamedExec(ctx, db, q, l); err != nil {
		return fmt.Errorf("inserting lecture: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, l Lecture) error {
	const q = `
	UPDATE lectures SET
		chapter_id = :chapter_id,
		name = :name,
		description = :description,
		order_index = :order_index,
		duration = :duration,
		file_url = :file_url,
		is_preview = :is_preview,
		updated_at = :updated_at,
		version = version + 1
	WHERE lecture_id = :lecture_id AND version = :version AND deleted_at IS NULL`

	res, err := database.NamedExec(ctx, db, q, l)
	if err != nil {
		return fmt.Errorf("updating lecture[%s]: %w", l.ID, err)
	}
	return database.ExpectAffected(res, database.ErrVersionConflict)
}

// SetMedia stores the processed duration and file location of a lecture
// and returns its chapter id. An empty fileURL keeps the current one.
func SetMedia(ctx context.Context, db sqlx.ExtContext, id string, m MediaUp, now time.Time) (string, error) {
	const q = `
	UPDATE lectures SET
		duration = $2,
		file_url = COALESCE(NULLIF($3, ''), file_url),
		updated_at = $4,
		version = version + 1
	WHERE lecture_id = $1 AND deleted_at IS NULL
	RETURNING chapter_id`

	var chapterID string
	if err := database.Get(ctx, db, &chapterID, q, id, *m.Duration, m.FileURL, now); err != nil {
		return "", fmt.Errorf("setting media of lecture[%s]: %w", id, err)
	}
	return chapterID, nil
}

func SoftDelete(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) (string, error) {
	const q = `
	UPDATE lectures SET deleted_at = $2, updated_at = $2, version = version + 1
	WHERE lecture_id = $1 AND deleted_at IS NULL
	RETURNING chapter_id`

	var chapterID string
	if err := database.Get(ctx, db, &chapterID, q, id, now); err != nil {
		return "", fmt.Errorf("deleting lecture[%s]: %w", id, err)
	}
	return chapterID, nil
}

func Restore(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) (string, error) {
	const q = `
	UPDATE lectures SET deleted_at = NULL, updated_at = $2, version = version + 1
	WHERE lecture_id = $1 AND deleted_at IS NOT NULL
	RETURNING chapter_id`

	var chapterID string
	if err := database.Get(ctx, db, &chapterID, q, id, now); err != nil {
		return "", fmt.Errorf("restoring lecture[%s]: %w", id, err)
	}
	return chapterID, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Lecture, error) {
	q := `SELECT ` + columns + ` FROM lectures WHERE lecture_id = $1 AND deleted_at IS NULL`

	var l Lecture
	if err := database.Get(ctx, db, &l, q, id); err != nil {
		return Lecture{}, fmt.Errorf("selecting lecture[%s]: %w", id, err)
	}
	return l, nil
}

func FetchByChapter(ctx context.Context, db sqlx.ExtContext, chapterID string) ([]Lecture, error) {
	q := `SELECT ` + columns + ` FROM lectures
	WHERE chapter_id = $1 AND deleted_at IS NULL
	ORDER BY order_index, created_at`

	ls := []Lecture{}
	if err := database.Select(ctx, db, &ls, q, chapterID); err != nil {
		return nil, fmt.Errorf("selecting lectures of chapter[%s]: %w", chapterID, err)
	}
	return ls, nil
}
