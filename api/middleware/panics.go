package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
)

// Panics turns a panic in the handler chain into an error, so the Errors
// middleware above it answers with a 500.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
				}
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
