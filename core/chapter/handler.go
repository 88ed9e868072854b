package chapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/middleware"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/weberr"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/course"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
)

func fetchCourse(ctx context.Context, db *sqlx.DB, id string) error {
	if _, err := course.Fetch(ctx, db, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return weberr.NotFound(fmt.Errorf("course[%s] not found", id))
		}
		return fmt.Errorf("fetching course[%s]: %w", id, err)
	}
	return nil
}

func HandleCreate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var cn ChapterNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := fetchCourse(ctx, db, courseID); err != nil {
			return err
		}

		now := time.Now().UTC()
		ch := Chapter{
			ID:         validate.GenerateID(),
			CourseID:   courseID,
			Name:       cn.Name,
			OrderIndex: cn.OrderIndex,
			CreatedAt:  now,
			UpdatedAt:  now,
			Version:    1,
		}

		if err := Create(ctx, db, ch); err != nil {
			return fmt.Errorf("creating chapter: %w", err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.ChapterChanged(ctx, courseID))

		return web.Respond(ctx, w, ch, http.StatusCreated)
	}
}

// HandleUpdate renames, reorders or moves a chapter to another course.
// A move recomputes both the old and the new course.
func HandleUpdate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var cu ChapterUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		ch, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("chapter[%s] not found", id))
			}
			return fmt.Errorf("fetching chapter[%s]: %w", id, err)
		}
		prevCourseID := ch.CourseID

		if cu.CourseID != nil && *cu.CourseID != ch.CourseID {
			if err := fetchCourse(ctx, db, *cu.CourseID); err != nil {
				return err
			}
			ch.CourseID = *cu.CourseID
		}
		if cu.Name != nil {
			ch.Name = *cu.Name
		}
		if cu.OrderIndex != nil {
			ch.OrderIndex = *cu.OrderIndex
		}
		ch.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, ch); err != nil {
			if errors.Is(err, database.ErrVersionConflict) {
				return weberr.Conflict(fmt.Errorf("chapter[%s] changed while updating: %w", id, err))
			}
			return fmt.Errorf("updating chapter[%s]: %w", id, err)
		}
		ch.Version++

		if prevCourseID != ch.CourseID {
			disp.Cascade(middleware.ContextRequestID(ctx), disp.ChapterChanged(ctx, prevCourseID, ch.CourseID))
		}

		return web.Respond(ctx, w, ch, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		courseID, err := SoftDelete(ctx, db, id, time.Now().UTC())
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("chapter[%s] not found", id))
			}
			return fmt.Errorf("deleting chapter[%s]: %w", id, err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.ChapterChanged(ctx, courseID))

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleRestore(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		courseID, err := Restore(ctx, db, id, time.Now().UTC())
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("deleted chapter[%s] not found", id))
			}
			return fmt.Errorf("restoring chapter[%s]: %w", id, err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.ChapterChanged(ctx, courseID))

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		ch, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("chapter[%s] not found", id))
			}
			return fmt.Errorf("fetching chapter[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, ch, http.StatusOK)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		chs, err := FetchByCourse(ctx, db, courseID)
		if err != nil {
			return fmt.Errorf("fetching chapters of course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, chs, http.StatusOK)
	}
}
