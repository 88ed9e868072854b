package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

// Logger writes one entry per request once it completes. Server errors
// log at ERROR, client errors at WARN and the rest at INFO; probes are
// only logged at DEBUG.
func Logger(log logrus.FieldLogger) web.Middleware {
	return func(handler web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			entry := log.WithFields(logrus.Fields{
				"req_id":     ContextRequestID(ctx),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
				"statuscode": lw.Status(),
				"bytes":      lw.BytesWritten(),
				"took":       time.Since(start).String(),
			})
			if uid := r.Header.Get(UserIDHeader); uid != "" {
				entry = entry.WithField("user_id", uid)
			}

			switch status := lw.Status(); {
			case r.URL.Path == "/readiness" || r.URL.Path == "/metrics":
				entry.Debug("completed")
			case status >= http.StatusInternalServerError:
				entry.Error("completed")
			case status >= http.StatusBadRequest:
				entry.Warn("completed")
			default:
				entry.Info("completed")
			}

			return err
		}
	}
}
