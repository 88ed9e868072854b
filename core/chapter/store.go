package chapter

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
)

const columns = `chapter_id, course_id, name, order_index, duration,
	created_at, updated_at, deleted_at, version`

func Create(ctx context.Context, db sqlx.ExtContext, ch Chapter) error {
	const q = `
	INSERT INTO chapters
		(chapter_id, course_id, name, order_index, created_at, updated_at, version)
	VALUES
		(:chapter_id, :course_id, :name, :order_index, :created_at, :updated_at, 1)`

	if _, err := database.NamedExec(ctx, db, q, ch); err != nil {
		return fmt.Errorf("inserting chapter: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, ch Chapter) error {
	const q = `
	UPDATE chapters SET
		course_id = :course_id,
		name = :name,
		order_index = :order_index,
		updated_at = :updated_at,
		version = version + 1
	WHERE chapter_id = :chapter_id AND version = :version AND deleted_at IS NULL`

	res, err := database.NamedExec(ctx, db, q, ch)
	if err != nil {
		return fmt.Errorf("updating chapter[%s]: %w", ch.ID, err)
	}
	return database.ExpectAffected(res, database.ErrVersionConflict)
}

// SoftDelete marks the chapter deleted and returns its course id.
func SoftDelete(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) (string, error) {
	const q = `
	UPDATE chapters SET deleted_at = $2, updated_at = $2, version = version + 1
	WHERE chapter_id = $1 AND deleted_at IS NULL
	RETURNING course_id`

	var courseID string
	if err := database.Get(ctx, db, &courseID, q, id, now); err != nil {
		return "", fmt.Errorf("deleting chapter[%s]: %w", id, err)
	}
	return courseID, nil
}

// Restore clears the soft-delete marker and returns the chapter's course id.
func Restore(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) (string, error) {
	const q = `
	UPDATE chapters SET deleted_at = NULL, updated_at = $2, version = version + 1
	WHERE chapter_id = $1 AND deleted_at IS NOT NULL
	RETURNING course_id`

	var courseID string
	if err := database.Get(ctx, db, &courseID, q, id, now); err != nil {
		return "", fmt.Errorf("restoring chapter[%s]: %w", id, err)
	}
	return courseID, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Chapter, error) {
	q := `SELECT ` + columns + ` FROM chapters WHERE chapter_id = $1 AND deleted_at IS NULL`

	var ch Chapter
	if err := database.Get(ctx, db, &ch, q, id); err != nil {
		return Chapter{}, fmt.Errorf("selecting chapter[%s]: %w", id, err)
	}
	return ch, nil
}

func FetchByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Chapter, error) {
	q := `SELECT ` + columns + ` FROM chapters
	WHERE course_id = $1 AND deleted_at IS NULL
	ORDER BY order_index, created_at`

	chs := []Chapter{}
	if err := database.Select(ctx, db, &chs, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting chapters of course[%s]: %w", courseID, err)
	}
	return chs, nil
}
