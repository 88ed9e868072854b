package aggregate

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Live-row sums. Both take the root id as $1 so they can be embedded as
// subqueries of the aggregate UPDATE statements. SUM ignores NULL leaf
// durations and COALESCE turns an empty set into zero.
const (
	chapterDurationSQL = `SELECT COALESCE(SUM(duration), 0)::BIGINT FROM lectures
		WHERE chapter_id = $1 AND deleted_at IS NULL`

	courseDurationSQL = `SELECT COALESCE(SUM(duration), 0)::BIGINT FROM chapters
		WHERE course_id = $1 AND deleted_at IS NULL`
)

// ChapterDuration returns the sum of the live lecture durations of a chapter.
func ChapterDuration(ctx context.Context, db sqlx.QueryerContext, chapterID string) (int64, error) {
	var d int64
	if err := sqlx.GetContext(ctx, db, &d, chapterDurationSQL, chapterID); err != nil {
		return 0, fmt.Errorf("summing lectures of chapter[%s]: %w", chapterID, err)
	}
	return d, nil
}

// CourseDuration returns the sum of the live chapter durations of a course.
func CourseDuration(ctx context.Context, db sqlx.QueryerContext, courseID string) (int64, error) {
	var d int64
	if err := sqlx.GetContext(ctx, db, &d, courseDurationSQL, courseID); err != nil {
		return 0, fmt.Errorf("summing chapters of course[%s]: %w", courseID, err)
	}
	return d, nil
}
