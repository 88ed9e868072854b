package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Dispatcher is called by leaf writers after their own write committed.
// Vanished roots are skipped. Other failures are logged as inconsistencies
// for the repair job and returned to the caller, which must not undo its
// leaf write because of them.
type Dispatcher struct {
	log    logrus.FieldLogger
	engine *Engine
}

func NewDispatcher(log logrus.FieldLogger, engine *Engine) *Dispatcher {
	return &Dispatcher{log: log, engine: engine}
}

func (d *Dispatcher) Engine() *Engine {
	return d.engine
}

func (d *Dispatcher) LectureCreated(ctx context.Context, chapterID string) error {
	return d.durationCascade(ctx, "lecture.created", chapterID)
}

// LectureUpdated accepts the previous and the current chapter of a lecture
// so that a move is reflected on both sides.
func (d *Dispatcher) LectureUpdated(ctx context.Context, chapterIDs ...string) error {
	return d.durationCascade(ctx, "lecture.updated", chapterIDs...)
}

func (d *Dispatcher) LectureDeleted(ctx context.Context, chapterID string) error {
	return d.durationCascade(ctx, "lecture.deleted", chapterID)
}

func (d *Dispatcher) LectureRestored(ctx context.Context, chapterID string) error {
	return d.durationCascade(ctx, "lecture.restored", chapterID)
}

// ChapterChanged recomputes the courses whose set of live chapters changed.
func (d *Dispatcher) ChapterChanged(ctx context.Context, courseIDs ...string) error {
	const event = "chapter.changed"

	var merr *multierror.Error
	for _, id := range distinct(courseIDs) {
		_, err := d.engine.RecomputeCourseDuration(ctx, id)
		merr = multierror.Append(merr, d.settle(event, "course_id", id, err))
	}
	return joined(merr)
}

// QuizChanged recomputes the requires-quiz flag of every lecture a quiz was
// or now is bound to.
func (d *Dispatcher) QuizChanged(ctx context.Context, lectureIDs ...string) error {
	const event = "quiz.changed"

	var merr *multierror.Error
	for _, id := range distinct(lectureIDs) {
		_, err := d.engine.RecomputeRequiresQuiz(ctx, id)
		merr = multierror.Append(merr, d.settle(event, "lecture_id", id, err))
	}
	return joined(merr)
}

func (d *Dispatcher) FeedbackChanged(ctx context.Context, courseID string) error {
	_, err := d.engine.RecomputeCourseRatingStats(ctx, courseID)
	return d.settle("feedback.changed", "course_id", courseID, err)
}

// UpsertReaction and RemoveReaction are the write itself, so their errors,
// including a missing feedback, go back to the caller as they are.
func (d *Dispatcher) UpsertReaction(ctx context.Context, feedbackID, userID string, typ ReactionType) (Counters, error) {
	return d.engine.UpsertReaction(ctx, feedbackID, userID, typ)
}

func (d *Dispatcher) RemoveReaction(ctx context.Context, feedbackID, userID string) (Counters, error) {
	return d.engine.RemoveReaction(ctx, feedbackID, userID)
}

// durationCascade recomputes each chapter and then, once every chapter
// write has committed, each parent course. A course is only recomputed for
// chapters whose own stage succeeded.
func (d *Dispatcher) durationCascade(ctx context.Context, event string, chapterIDs ...string) error {
	var merr *multierror.Error
	var courses []string

	for _, id := range distinct(chapterIDs) {
		t, err := d.engine.RecomputeChapterDuration(ctx, id)
		if err != nil {
			merr = multierror.Append(merr, d.settle(event, "chapter_id", id, err))
			continue
		}
		courses = append(courses, t.CourseID)
	}

	for _, id := range distinct(courses) {
		_, err := d.engine.RecomputeCourseDuration(ctx, id)
		merr = multierror.Append(merr, d.settle(event, "course_id", id, err))
	}

	return joined(merr)
}

// settle applies the propagation policy to the outcome of one stage.
func (d *Dispatcher) settle(event, key, id string, err error) error {
	if err == nil {
		return nil
	}

	log := d.log.WithFields(logrus.Fields{
		"event": event,
		key:     id,
	})

	if errors.Is(err, ErrNotFound) {
		log.Info("aggregate root gone, skipping recompute")
		return nil
	}

	log.WithError(err).Error("aggregate recompute failed, repair required")
	return fmt.Errorf("%s %s[%s]: %w", event, key, id, err)
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
