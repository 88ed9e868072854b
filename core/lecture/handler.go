package lecture

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
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/chapter"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
)

func fetchChapter(ctx context.Context, db *sqlx.DB, id string) error {
	if _, err := chapter.Fetch(ctx, db, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return weberr.NotFound(fmt.Errorf("chapter[%s] not found", id))
		}
		return fmt.Errorf("fetching chapter[%s]: %w", id, err)
	}
	return nil
}

func fetch(ctx context.Context, db *sqlx.DB, id string) (Lecture, error) {
	l, err := Fetch(ctx, db, id)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Lecture{}, weberr.NotFound(fmt.Errorf("lecture[%s] not found", id))
		}
		return Lecture{}, fmt.Errorf("fetching lecture[%s]: %w", id, err)
	}
	return l, nil
}

func HandleCreate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		chapterID := web.Param(r, "chapter_id")
		if err := validate.CheckID(chapterID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var ln LectureNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ln); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := fetchChapter(ctx, db, chapterID); err != nil {
			return err
		}

		now := time.Now().UTC()
		l := Lecture{
			ID:          validate.GenerateID(),
			ChapterID:   chapterID,
			Name:        ln.Name,
			Description: ln.Description,
			OrderIndex:  ln.OrderIndex,
			Duration:    ln.Duration,
			FileURL:     ln.FileURL,
			IsPreview:   ln.IsPreview,
			CreatedAt:   now,
			UpdatedAt:   now,
			Version:     1,
		}

		if err := Create(ctx, db, l); err != nil {
			return fmt.Errorf("creating lecture: %w", err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.LectureCreated(ctx, chapterID))

		return web.Respond(ctx, w, Project(l), http.StatusCreated)
	}
}

// HandleUpdate edits a lecture. Moving it to another chapter recomputes
// both chapters and their courses.
func HandleUpdate(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var lu LectureUp
		if err := web.Decode(w, r, &lu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(lu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		l, err := fetch(ctx, db, id)
		if err != nil {
			return err
		}
		prevChapterID := l.ChapterID
		prevDuration := l.Duration

		if lu.ChapterID != nil && *lu.ChapterID != l.ChapterID {
			if err := fetchChapter(ctx, db, *lu.ChapterID); err != nil {
				return err
			}
			l.ChapterID = *lu.ChapterID
		}
		if lu.Name != nil {
			l.Name = *lu.Name
		}
		if lu.Description != nil {
			l.Description = *lu.Description
		}
		if lu.OrderIndex != nil {
			l.OrderIndex = *lu.OrderIndex
		}
		if lu.Duration != nil {
			l.Duration = lu.Duration
		}
		if lu.FileURL != nil {
			l.FileURL = *lu.FileURL
		}
		if lu.IsPreview != nil {
			l.IsPreview = *lu.IsPreview
		}
		l.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, l); err != nil {
			if errors.Is(err, database.ErrVersionConflict) {
				return weberr.Conflict(fmt.Errorf("lecture[%s] changed while updating: %w", id, err))
			}
			return fmt.Errorf("updating lecture[%s]: %w", id, err)
		}
		l.Version++

		if prevChapterID != l.ChapterID || !sameDuration(prevDuration, l.Duration) {
			disp.Cascade(middleware.ContextRequestID(ctx), disp.LectureUpdated(ctx, prevChapterID, l.ChapterID))
		}

		return web.Respond(ctx, w, Project(l), http.StatusOK)
	}
}

// HandleMedia is called by the media pipeline once it knows the real
// duration of an uploaded file.
func HandleMedia(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var mu MediaUp
		if err := web.Decode(w, r, &mu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(mu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		chapterID, err := SetMedia(ctx, db, id, mu, time.Now().UTC())
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("lecture[%s] not found", id))
			}
			return fmt.Errorf("setting media of lecture[%s]: %w", id, err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.LectureUpdated(ctx, chapterID))

		l, err := fetch(ctx, db, id)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, Project(l), http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		chapterID, err := SoftDelete(ctx, db, id, time.Now().UTC())
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("lecture[%s] not found", id))
			}
			return fmt.Errorf("deleting lecture[%s]: %w", id, err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.LectureDeleted(ctx, chapterID))

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleRestore(db *sqlx.DB, disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		chapterID, err := Restore(ctx, db, id, time.Now().UTC())
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("deleted lecture[%s] not found", id))
			}
			return fmt.Errorf("restoring lecture[%s]: %w", id, err)
		}

		disp.Cascade(middleware.ContextRequestID(ctx), disp.LectureRestored(ctx, chapterID))

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		l, err := fetch(ctx, db, id)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, Project(l), http.StatusOK)
	}
}

func HandleListByChapter(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		chapterID := web.Param(r, "chapter_id")
		if err := validate.CheckID(chapterID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		ls, err := FetchByChapter(ctx, db, chapterID)
		if err != nil {
			return fmt.Errorf("fetching lectures of chapter[%s]: %w", chapterID, err)
		}

		return web.Respond(ctx, w, ProjectAll(ls), http.StatusOK)
	}
}

func sameDuration(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
