package aggregate

import (
	"errors"
	"net/http"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/weberr"
	"github.com/sirupsen/logrus"
)

// Cascade ties the outcome of a dispatcher call to the request that made
// it. The leaf write before it has committed, so a failure only leaves
// stale aggregates behind for repair and never fails the request.
func (d *Dispatcher) Cascade(reqID string, err error) {
	if err == nil {
		return
	}

	d.log.WithFields(logrus.Fields{
		"req_id": reqID,
	}).WithError(err).Warn("request committed with stale aggregates")
}

// WebError maps engine errors to their HTTP response and tags the log
// entry with the error class.
func WebError(err error) error {
	class := func(c string) weberr.Opt {
		return weberr.WithFields(map[string]interface{}{"aggregate_error": c})
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return weberr.NotFound(err, class("not_found"))
	case errors.Is(err, ErrInvalid):
		return weberr.NewError(err, err.Error(), http.StatusBadRequest, class("invalid"))
	case errors.Is(err, ErrInvariant):
		return weberr.Conflict(err, class("invariant"))
	case errors.Is(err, ErrTransient):
		return weberr.Unavailable(err, class("transient"))
	}
	return err
}
