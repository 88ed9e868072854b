package course

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
)

const columns = `course_id, instructor_id, name, description, image_url, price,
	total_duration, average_rating, rating_count, created_at, updated_at, deleted_at, version`

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, instructor_id, name, description, image_url, price, created_at, updated_at, version)
	VALUES
		(:course_id, :instructor_id, :name, :description, :image_url, :price, :created_at, :updated_at, 1)`

	if _, err := database.NamedExec(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

// Update writes the editable fields if the stored version still matches
// c.Version, and bumps it.
func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		updated_at = :updated_at,
		version = version + 1
	WHERE course_id = :course_id AND version = :version AND deleted_at IS NULL`

	res, err := database.NamedExec(ctx, db, q, c)
	if err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return database.ExpectAffected(res, database.ErrVersionConflict)
}

func SoftDelete(ctx context.Context, db sqlx.ExtContext, id string, now time.Time) error {
	const q = `
	UPDATE courses SET deleted_at = $2, updated_at = $2, version = version + 1
	WHERE course_id = $1 AND deleted_at IS NULL`

	res, err := db.ExecContext(ctx, q, id, now)
	if err != nil {
		return fmt.Errorf("deleting course[%s]: %w", id, err)
	}
	return database.ExpectAffected(res, database.ErrDBNotFound)
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	q := `SELECT ` + columns + ` FROM courses WHERE course_id = $1 AND deleted_at IS NULL`

	var c Course
	if err := database.Get(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	q := `SELECT ` + columns + ` FROM courses WHERE deleted_at IS NULL ORDER BY created_at, course_id`

	cs := []Course{}
	if err := database.Select(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}
