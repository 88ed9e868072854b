package quiz

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
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/lecture"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
)

func fetchLecture(ctx context.Context, db sqlx.ExtContext, id string) error {
	if _, err := lecture.Fetch(ctx, db, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return weberr.NotFound(fmt.Errorf("lecture[%s] not found", id))
		}
		return fmt.Errorf("fetching lecture[%s]: %w", id, err)
	}
	return nil
}

func lectureIDs(ids ...*string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

func HandleCreate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var qn QuizNew
		if err := web.Decode(w, r, &qn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(qn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if qn.LectureID != nil {
			if err := fetchLecture(ctx, db, *qn.LectureID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		qz := Quiz{
			ID:           validate.GenerateID(),
			LectureID:    qn.LectureID,
			Title:        qn.Title,
			PassingScore: qn.PassingScore,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := Create(ctx, db, qz); err != nil {
			return fmt.Errorf("creating quiz: %w", err)
		}

		if qz.LectureID != nil {
			disp.Cascade(middleware.ContextRequestID(ctx), disp.QuizChanged(ctx, *qz.LectureID))
		}

		return web.Respond(ctx, w, qz, http.StatusCreated)
	}
}

// HandleUpdate edits a quiz and may bind it to another lecture or detach
// it. Both the previous and the current lecture are recomputed.
func HandleUpdate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var qu QuizUp
		if err := web.Decode(w, r, &qu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(qu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if qu.Detach && qu.LectureID != nil {
			err := errors.New("a quiz cannot be detached and rebound at once")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var qz Quiz
		var prev *string

		err := database.TransactionContext(ctx, db, nil, func(tx sqlx.ExtContext) error {
			var err error
			if qz, err = FetchForUpdate(ctx, tx, id); err != nil {
				if errors.Is(err, database.ErrDBNotFound) {
					return weberr.NotFound(fmt.Errorf("quiz[%s] not found", id))
				}
				return err
			}
			prev = qz.LectureID

			switch {
			case qu.Detach:
				qz.LectureID = nil
			case qu.LectureID != nil:
				if err := fetchLecture(ctx, tx, *qu.LectureID); err != nil {
					return err
				}
				qz.LectureID = qu.LectureID
			}
			if qu.Title != nil {
				qz.Title = *qu.Title
			}
			if qu.PassingScore != nil {
				qz.PassingScore = *qu.PassingScore
			}
			qz.UpdatedAt = time.Now().UTC()

			return Update(ctx, tx, qz)
		})
		if err != nil {
			return fmt.Errorf("updating quiz[%s]: %w", id, err)
		}

		if ids := lectureIDs(prev, qz.LectureID); len(ids) > 0 {
			disp.Cascade(middleware.ContextRequestID(ctx), disp.QuizChanged(ctx, ids...))
		}

		return web.Respond(ctx, w, qz, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		lectureID, err := Delete(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("quiz[%s] not found", id))
			}
			return fmt.Errorf("deleting quiz[%s]: %w", id, err)
		}

		if lectureID != nil {
			disp.Cascade(middleware.ContextRequestID(ctx), disp.QuizChanged(ctx, *lectureID))
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		qz, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("quiz[%s] not found", id))
			}
			return fmt.Errorf("fetching quiz[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, qz, http.StatusOK)
	}
}

func HandleListByLecture(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		lectureID := web.Param(r, "lecture_id")
		if err := validate.CheckID(lectureID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		qs, err := FetchByLecture(ctx, db, lectureID)
		if err != nil {
			return fmt.Errorf("fetching quizzes of lecture[%s]: %w", lectureID, err)
		}

		return web.Respond(ctx, w, qs, http.StatusOK)
	}
}
