package aggregate

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// RecomputeRequiresQuiz sets the lecture flag to whether any quiz is
// currently bound to it.
func (e *Engine) RecomputeRequiresQuiz(ctx context.Context, lectureID string) (bool, error) {
	const lockQ = `SELECT lecture_id FROM lectures WHERE lecture_id = $1 FOR UPDATE`
	const updateQ = `UPDATE lectures
		SET requires_quiz = EXISTS (SELECT 1 FROM quizzes WHERE lecture_id = $1)
		WHERE lecture_id = $1
		RETURNING requires_quiz`

	var requires bool
	attrs := []attribute.KeyValue{attribute.String("lecture_id", lectureID)}

	err := e.write(ctx, opRequiresQuiz, attrs, func(ctx context.Context, tx sqlx.ExtContext) error {
		var id string
		if err := lock(ctx, tx, &id, lockQ, lectureID); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, tx, &requires, updateQ, lectureID)
	})
	if err != nil {
		return false, err
	}

	return requires, nil
}
