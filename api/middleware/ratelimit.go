package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/weberr"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/claims"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/rate"
)

// RateLimit throttles callers by user id, or by remote address for
// anonymous requests. A nil limiter disables it.
func RateLimit(lim *rate.Limiter) web.Middleware {
	if lim == nil {
		return nil
	}

	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}
			if clm, err := claims.Get(ctx); err == nil {
				key = clm.UserID
			}

			if !lim.Check(key) {
				return weberr.TooManyRequests(fmt.Errorf("client[%s] exceeded its rate", key))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
