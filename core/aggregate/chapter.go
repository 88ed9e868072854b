package aggregate

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

type ChapterTotals struct {
	ChapterID string
	CourseID  string
	Duration  int64
}

// RecomputeChapterDuration sets the chapter duration to the live lecture
// sum. The returned CourseID is the parent the cascade continues with.
func (e *Engine) RecomputeChapterDuration(ctx context.Context, chapterID string) (ChapterTotals, error) {
	const lockQ = `SELECT course_id FROM chapters WHERE chapter_id = $1 FOR UPDATE`
	const updateQ = `UPDATE chapters SET duration = (` + chapterDurationSQL + `)
		WHERE chapter_id = $1
		RETURNING duration`

	t := ChapterTotals{ChapterID: chapterID}
	attrs := []attribute.KeyValue{attribute.String("chapter_id", chapterID)}

	err := e.write(ctx, opChapterDuration, attrs, func(ctx context.Context, tx sqlx.ExtContext) error {
		if err := lock(ctx, tx, &t.CourseID, lockQ, chapterID); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, tx, &t.Duration, updateQ, chapterID)
	})
	if err != nil {
		return ChapterTotals{ChapterID: chapterID}, err
	}

	return t, nil
}
