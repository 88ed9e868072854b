package aggregate

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

type CourseTotals struct {
	CourseID      string
	TotalDuration int64
}

type RatingStats struct {
	CourseID      string  `json:"courseId" db:"-"`
	AverageRating float64 `json:"averageRating" db:"average_rating"`
	RatingCount   int     `json:"ratingCount" db:"rating_count"`
}

// RecomputeCourseDuration sets the course total to the live chapter sum.
// It reads committed chapter durations, so in a cascade it must run after
// the chapter stage has committed.
func (e *Engine) RecomputeCourseDuration(ctx context.Context, courseID string) (CourseTotals, error) {
	const lockQ = `SELECT course_id FROM courses WHERE course_id = $1 FOR UPDATE`
	const updateQ = `UPDATE courses SET total_duration = (` + courseDurationSQL + `)
		WHERE course_id = $1
		RETURNING total_duration`

	t := CourseTotals{CourseID: courseID}
	attrs := []attribute.KeyValue{attribute.String("course_id", courseID)}

	err := e.write(ctx, opCourseDuration, attrs, func(ctx context.Context, tx sqlx.ExtContext) error {
		var id string
		if err := lock(ctx, tx, &id, lockQ, courseID); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, tx, &t.TotalDuration, updateQ, courseID)
	})
	if err != nil {
		return CourseTotals{CourseID: courseID}, err
	}

	return t, nil
}

// RecomputeCourseRatingStats sets the average rating, rounded to two
// decimals, and the rating count from the live feedback of the course.
// A course without feedback gets 0 and 0.
func (e *Engine) RecomputeCourseRatingStats(ctx context.Context, courseID string) (RatingStats, error) {
	const lockQ = `SELECT course_id FROM courses WHERE course_id = $1 FOR UPDATE`
	const updateQ = `UPDATE courses SET (average_rating, rating_count) = (
			SELECT COALESCE(ROUND(AVG(rating)::NUMERIC, 2), 0), COUNT(*)
			FROM feedbacks
			WHERE course_id = $1 AND deleted_at IS NULL
		)
		WHERE course_id = $1
		RETURNING average_rating, rating_count`

	s := RatingStats{CourseID: courseID}
	attrs := []attribute.KeyValue{attribute.String("course_id", courseID)}

	err := e.write(ctx, opCourseRatingStats, attrs, func(ctx context.Context, tx sqlx.ExtContext) error {
		var id string
		if err := lock(ctx, tx, &id, lockQ, courseID); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, tx, &s, updateQ, courseID)
	})
	if err != nil {
		return RatingStats{CourseID: courseID}, err
	}

	return s, nil
}
