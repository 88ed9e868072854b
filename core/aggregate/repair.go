package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RepairReport counts the roots recomputed by a repair run.
type RepairReport struct {
	Courses  int
	Chapters int
	Lectures int
	Failed   int
	Took     time.Duration
}

func (r *RepairReport) add(o RepairReport) {
	r.Courses += o.Courses
	r.Chapters += o.Chapters
	r.Lectures += o.Lectures
	r.Failed += o.Failed
}

// RepairCourse recomputes every aggregate of one course from scratch:
// all its chapters, then the course duration and rating statistics, then
// the requires-quiz flag of all its lectures. It uses the same operations
// as the incremental path, so both produce identical values.
func (d *Dispatcher) RepairCourse(ctx context.Context, courseID string) (RepairReport, error) {
	start := time.Now()

	r, err := d.engine.repairCourse(ctx, courseID)
	r.Took = time.Since(start)

	d.log.WithFields(logrus.Fields{
		"course_id": courseID,
		"chapters":  r.Chapters,
		"lectures":  r.Lectures,
		"failed":    r.Failed,
		"took":      r.Took.String(),
	}).Info("course repair finished")

	return r, err
}

// RepairCatalog runs RepairCourse over every live course, a bounded number
// of courses at a time. Failures of one course do not stop the others.
func (d *Dispatcher) RepairCatalog(ctx context.Context) (RepairReport, error) {
	const q = `SELECT course_id FROM courses WHERE deleted_at IS NULL ORDER BY course_id`

	start := time.Now()

	var ids []string
	if err := sqlx.SelectContext(ctx, d.engine.db, &ids, q); err != nil {
		return RepairReport{}, fmt.Errorf("selecting courses: %w", err)
	}

	var (
		mu     sync.Mutex
		report RepairReport
		merr   *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.engine.repairConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			r, err := d.engine.repairCourse(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			report.add(r)
			if err != nil && !errors.Is(err, ErrNotFound) {
				merr = multierror.Append(merr, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Took = time.Since(start)

	d.log.WithFields(logrus.Fields{
		"courses":  report.Courses,
		"chapters": report.Chapters,
		"lectures": report.Lectures,
		"failed":   report.Failed,
		"took":     report.Took.String(),
	}).Info("catalog repair finished")

	return report, joined(merr)
}

func (e *Engine) repairCourse(ctx context.Context, courseID string) (RepairReport, error) {
	const chaptersQ = `SELECT chapter_id FROM chapters WHERE course_id = $1 ORDER BY chapter_id`
	const lecturesQ = `SELECT l.lecture_id FROM lectures l
		JOIN chapters c ON c.chapter_id = l.chapter_id
		WHERE c.course_id = $1
		ORDER BY l.lecture_id`

	var r RepairReport
	var merr *multierror.Error

	fail := func(err error) {
		if errors.Is(err, ErrNotFound) {
			return
		}
		r.Failed++
		merr = multierror.Append(merr, err)
	}

	var chapters []string
	if err := sqlx.SelectContext(ctx, e.db, &chapters, chaptersQ, courseID); err != nil {
		return r, fmt.Errorf("selecting chapters of course[%s]: %w", courseID, err)
	}

	chaptersOK := true
	for _, id := range chapters {
		if _, err := e.RecomputeChapterDuration(ctx, id); err != nil {
			if !errors.Is(err, ErrNotFound) {
				chaptersOK = false
			}
			fail(err)
			continue
		}
		r.Chapters++
	}

	// The course total is only meaningful once every chapter is settled.
	if chaptersOK {
		if _, err := e.RecomputeCourseDuration(ctx, courseID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return r, err
			}
			fail(err)
		}
	}

	if _, err := e.RecomputeCourseRatingStats(ctx, courseID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return r, err
		}
		fail(err)
	} else {
		r.Courses++
	}

	var lectures []string
	if err := sqlx.SelectContext(ctx, e.db, &lectures, lecturesQ, courseID); err != nil {
		return r, fmt.Errorf("selecting lectures of course[%s]: %w", courseID, err)
	}

	for _, id := range lectures {
		if _, err := e.RecomputeRequiresQuiz(ctx, id); err != nil {
			fail(err)
			continue
		}
		r.Lectures++
	}

	if err := joined(merr); err != nil {
		return r, fmt.Errorf("repairing course[%s]: %w", courseID, err)
	}
	return r, nil
}
