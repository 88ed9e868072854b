// Package repair exposes the aggregate repair over HTTP.
package repair

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/background"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/middleware"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/weberr"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
	"github.com/sirupsen/logrus"
)

type Report struct {
	Courses  int    `json:"courses"`
	Chapters int    `json:"chapters"`
	Lectures int    `json:"lectures"`
	Failed   int    `json:"failed"`
	Took     string `json:"took"`
}

func toReport(r aggregate.RepairReport) Report {
	return Report{
		Courses:  r.Courses,
		Chapters: r.Chapters,
		Lectures: r.Lectures,
		Failed:   r.Failed,
		Took:     r.Took.String(),
	}
}

func HandleCourse(disp *aggregate.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		rep, err := disp.RepairCourse(ctx, id)
		if err != nil {
			return aggregate.WebError(fmt.Errorf("repairing course[%s]: %w", id, err))
		}

		return web.Respond(ctx, w, toReport(rep), http.StatusOK)
	}
}

// HandleCatalog starts a catalog repair in the background and answers
// right away. The run outlives the request, is bounded by timeout and is
// canceled when the server shuts down.
func HandleCatalog(log logrus.FieldLogger, disp *aggregate.Dispatcher, bg *background.Background, timeout time.Duration) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		reqID := middleware.ContextRequestID(ctx)

		started := bg.Go(func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if _, err := disp.RepairCatalog(ctx); err != nil {
				log.WithFields(logrus.Fields{
					"req_id": reqID,
				}).WithError(err).Error("catalog repair finished with failures")
			}
		})
		if !started {
			return weberr.Unavailable(errors.New("server is shutting down"))
		}

		resp := struct {
			Status string `json:"status"`
		}{"repair started"}
		return web.Respond(ctx, w, resp, http.StatusAccepted)
	}
}
