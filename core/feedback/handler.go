package feedback

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
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/claims"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/course"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
)

func fetch(ctx context.Context, db *sqlx.DB, id string) (Feedback, error) {
	f, err := Fetch(ctx, db, id)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Feedback{}, weberr.NotFound(fmt.Errorf("feedback[%s] not found", id))
		}
		return Feedback{}, fmt.Errorf("fetching feedback[%s]: %w", id, err)
	}
	return f, nil
}

// owned fetches a feedback the caller may modify: its author or an admin.
func owned(ctx context.Context, db *sqlx.DB, id string) (Feedback, error) {
	f, err := fetch(ctx, db, id)
	if err != nil {
		return Feedback{}, err
	}
	if !claims.CanModify(ctx, f.UserID) {
		return Feedback{}, weberr.Forbidden(fmt.Errorf("feedback[%s] belongs to another user", id))
	}
	return f, nil
}

func HandleCreate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var fn FeedbackNew
		if err := web.Decode(w, r, &fn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(fn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := course.Fetch(ctx, db, courseID); err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("course[%s] not found", courseID))
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		now := time.Now().UTC()
		f := Feedback{
			ID:        validate.GenerateID(),
			CourseID:  courseID,
			UserID:    clm.UserID,
			Rating:    fn.Rating,
			Content:   fn.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, f); err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) {
				return weberr.Conflict(fmt.Errorf("user[%s] already reviewed course[%s]", clm.UserID, courseID))
			}
			return fmt.Errorf("creating feedback: %w", err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.FeedbackChanged(ctx, courseID))

		return web.Respond(ctx, w, f, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var fu FeedbackUp
		if err := web.Decode(w, r, &fu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(fu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		f, err := owned(ctx, db, id)
		if err != nil {
			return err
		}
		prevRating := f.Rating

		if fu.Rating != nil {
			f.Rating = *fu.Rating
		}
		if fu.Content != nil {
			f.Content = *fu.Content
		}
		f.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, f); err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("feedback[%s] not found", id))
			}
			return fmt.Errorf("updating feedback[%s]: %w", id, err)
		}

		if f.Rating != prevRating {
			disp.Cascade(middleware.ContextRequestID(ctx), disp.FeedbackChanged(ctx, f.CourseID))
		}

		return web.Respond(ctx, w, f, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		if _, err := owned(ctx, db, id); err != nil {
			return err
		}

		courseID, err := SoftDelete(ctx, db, id, time.Now().UTC())
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("feedback[%s] not found", id))
			}
			return fmt.Errorf("deleting feedback[%s]: %w", id, err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.FeedbackChanged(ctx, courseID))

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		fs, err := FetchByCourse(ctx, db, courseID)
		if err != nil {
			return fmt.Errorf("fetching feedbacks of course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, fs, http.StatusOK)
	}
}

// HandleReact records the caller's like or dislike. The reaction ledger is
// the write itself, so its errors are the response.
func HandleReact(disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var ru ReactionUp
		if err := web.Decode(w, r, &ru); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ru); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		typ, err := aggregate.ParseReaction(ru.Type)
		if err != nil {
			return aggregate.WebError(err)
		}

		c, err := disp.UpsertReaction(ctx, id, clm.UserID, typ)
		if err != nil {
			return aggregate.WebError(fmt.Errorf("reacting to feedback[%s]: %w", id, err))
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleUnreact(disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		c, err := disp.RemoveReaction(ctx, id, clm.UserID)
		if err != nil {
			return aggregate.WebError(fmt.Errorf("removing reaction from feedback[%s]: %w", id, err))
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}
