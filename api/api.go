package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/background"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/middleware"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/chapter"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/course"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/feedback"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/lecture"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/quiz"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/repair"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/rate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	DB            *sqlx.DB
	Dispatcher    *aggregate.Dispatcher
	Background    *background.Background
	RepairTimeout time.Duration
	Limiter       *rate.Limiter
	Gatherer      prometheus.Gatherer
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())
	a.mw = append(a.mw, middleware.Claims())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := middleware.Authenticate()
	admin := middleware.Admin()
	limit := middleware.RateLimit(cfg.Limiter)

	db, disp := cfg.DB, cfg.Dispatcher

	a.Handle(http.MethodGet, "/readiness", handleReadiness(db))
	if cfg.Gatherer != nil {
		a.Router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	a.Handle(http.MethodGet, "/courses", course.HandleList(db))
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(db))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(db), admin)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(db), admin)
	a.Handle(http.MethodDelete, "/courses/{id}", course.HandleDelete(db), admin)
	a.Handle(http.MethodPost, "/courses/{id}/repair", repair.HandleCourse(disp), admin)
	a.Handle(http.MethodPost, "/repair", repair.HandleCatalog(cfg.Log, disp, cfg.Background, cfg.RepairTimeout), admin)

	a.Handle(http.MethodGet, "/courses/{course_id}/chapters", chapter.HandleListByCourse(db))
	a.Handle(http.MethodPost, "/courses/{course_id}/chapters", chapter.HandleCreate(db, disp), admin)
	a.Handle(http.MethodGet, "/chapters/{id}", chapter.HandleShow(db))
	a.Handle(http.MethodPut, "/chapters/{id}", chapter.HandleUpdate(db, disp), admin)
	a.Handle(http.MethodDelete, "/chapters/{id}", chapter.HandleDelete(db, disp), admin)
	a.Handle(http.MethodPost, "/chapters/{id}/restore", chapter.HandleRestore(db, disp), admin)

	a.Handle(http.MethodGet, "/chapters/{chapter_id}/lectures", lecture.HandleListByChapter(db))
	a.Handle(http.MethodPost, "/chapters/{chapter_id}/lectures", lecture.HandleCreate(db, disp), admin)
	a.Handle(http.MethodGet, "/lectures/{id}", lecture.HandleShow(db))
	a.Handle(http.MethodPut, "/lectures/{id}", lecture.HandleUpdate(db, disp), admin)
	a.Handle(http.MethodPut, "/lectures/{id}/media", lecture.HandleMedia(db, disp), admin)
	a.Handle(http.MethodDelete, "/lectures/{id}", lecture.HandleDelete(db, disp), admin)
	a.Handle(http.MethodPost, "/lectures/{id}/restore", lecture.HandleRestore(db, disp), admin)

	a.Handle(http.MethodGet, "/lectures/{lecture_id}/quizzes", quiz.HandleListByLecture(db))
	a.Handle(http.MethodGet, "/quizzes/{id}", quiz.HandleShow(db))
	a.Handle(http.MethodPost, "/quizzes", quiz.HandleCreate(db, disp), admin)
	a.Handle(http.MethodPut, "/quizzes/{id}", quiz.HandleUpdate(db, disp), admin)
	a.Handle(http.MethodDelete, "/quizzes/{id}", quiz.HandleDelete(db, disp), admin)

	a.Handle(http.MethodGet, "/courses/{course_id}/feedbacks", feedback.HandleListByCourse(db))
	a.Handle(http.MethodPost, "/courses/{course_id}/feedbacks", feedback.HandleCreate(db, disp), authen)
	a.Handle(http.MethodPut, "/feedbacks/{id}", feedback.HandleUpdate(db, disp), authen)
	a.Handle(http.MethodDelete, "/feedbacks/{id}", feedback.HandleDelete(db, disp), authen)
	a.Handle(http.MethodPut, "/feedbacks/{id}/reactions", feedback.HandleReact(disp), authen, limit)
	a.Handle(http.MethodDelete, "/feedbacks/{id}/reactions", feedback.HandleUnreact(disp), authen, limit)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

func handleReadiness(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		if err := database.StatusCheck(ctx, db); err != nil {
			status = "db not ready"
			code = http.StatusServiceUnavailable
		}

		data := struct {
			Status string `json:"status"`
		}{status}

		return web.Respond(ctx, w, data, code)
	}
}
