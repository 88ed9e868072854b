package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/weberr"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/claims"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
)

// Identity headers set by the gateway in front of the service, after it
// authenticated the caller.
const (
	UserIDHeader   = "X-User-Id"
	UserRoleHeader = "X-User-Role"
)

// Claims loads the caller identity forwarded by the gateway. Requests
// without identity headers pass through anonymous.
func Claims() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			id := r.Header.Get(UserIDHeader)
			if id == "" {
				return handler(ctx, w, r)
			}

			if err := validate.CheckID(id); err != nil {
				return weberr.NotAuthorized(err)
			}

			ctx = claims.Set(ctx, claims.Claims{
				UserID: id,
				Role:   claims.ParseRole(r.Header.Get(UserRoleHeader)),
			})
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Authenticate() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			if !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("user is not an admin"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
