package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/web"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/weberr"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/claims"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/rate"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const userID = "6f1c3b9e-4a57-4c2d-8d0e-2b7f5c1e9a33"

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ok(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// serve runs h behind the Errors middleware, as the router does.
func serve(t *testing.T, h web.Handler, mw []web.Middleware, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	chain := append([]web.Middleware{Errors(quiet())}, mw...)
	h = web.WrapMiddleware(chain, h)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()

	if err := h(r.Context(), w, r); err != nil {
		t.Fatalf("unexpected error escaping the chain: %v", err)
	}
	return w
}

func identity(id, role string) http.Header {
	h := http.Header{}
	h.Set(UserIDHeader, id)
	h.Set(UserRoleHeader, role)
	return h
}

func TestClaims(t *testing.T) {
	var got claims.Claims
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got, _ = claims.Get(ctx)
		return ok(ctx, w, r)
	}

	tt := []struct {
		name   string
		header http.Header
		mw     []web.Middleware
		code   int
		want   claims.Claims
	}{
		{"anonymous passes", nil, []web.Middleware{Claims()}, http.StatusNoContent, claims.Claims{}},
		{"user", identity(userID, "user"), []web.Middleware{Claims()}, http.StatusNoContent, claims.Claims{UserID: userID, Role: claims.RoleUser}},
		{"admin", identity(userID, "admin"), []web.Middleware{Claims()}, http.StatusNoContent, claims.Claims{UserID: userID, Role: claims.RoleAdmin}},
		{"unknown role is a user", identity(userID, "root"), []web.Middleware{Claims()}, http.StatusNoContent, claims.Claims{UserID: userID, Role: claims.RoleUser}},
		{"malformed id", identity("42", "admin"), []web.Middleware{Claims()}, http.StatusUnauthorized, claims.Claims{}},
		{"authenticate anonymous", nil, []web.Middleware{Claims(), Authenticate()}, http.StatusUnauthorized, claims.Claims{}},
		{"admin only rejects user", identity(userID, "user"), []web.Middleware{Claims(), Admin()}, http.StatusForbidden, claims.Claims{}},
		{"admin only accepts admin", identity(userID, "ADMIN"), []web.Middleware{Claims(), Admin()}, http.StatusNoContent, claims.Claims{UserID: userID, Role: claims.RoleAdmin}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got = claims.Claims{}

			w := serve(t, h, tc.mw, tc.header)
			if w.Code != tc.code {
				t.Fatalf("expected status %d, got %d", tc.code, w.Code)
			}
			if got != tc.want {
				t.Fatalf("expected claims %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestErrorsRendersDecoratedErrors(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return weberr.Conflict(errors.New("stale version"))
	}

	w := serve(t, h, nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	var body weberr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error == "" || body.Error == "stale version" {
		t.Fatalf("expected the public message only, got %q", body.Error)
	}
}

func TestErrorsHidesInternalErrors(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("connection refused")
	}

	w := serve(t, h, nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestPanics(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	}

	w := serve(t, h, []web.Middleware{Panics()}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	lim := rate.NewLimiter(2, time.Hour, rate.Every(time.Hour))
	defer lim.Stop()

	mw := []web.Middleware{Claims(), RateLimit(lim)}
	other := "0b7e0f32-63d8-4a7e-9a5f-6c3f5a1d2e10"

	for i, exp := range []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests} {
		if w := serve(t, ok, mw, identity(userID, "user")); w.Code != exp {
			t.Fatalf("request %d: expected status %d, got %d", i, exp, w.Code)
		}
	}

	if w := serve(t, ok, mw, identity(other, "user")); w.Code != http.StatusNoContent {
		t.Fatalf("other user must have its own bucket, got %d", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	if RateLimit(nil) != nil {
		t.Fatal("expected a nil middleware for a nil limiter")
	}
}

func TestRequestID(t *testing.T) {
	var got string
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got = ContextRequestID(ctx)
		return ok(ctx, w, r)
	}

	hdr := http.Header{}
	hdr.Set(RequestIDHeader, "abc")
	serve(t, h, []web.Middleware{RequestID()}, hdr)
	if got != "abc" {
		t.Fatalf("expected forwarded request id, got %q", got)
	}

	serve(t, h, []web.Middleware{RequestID()}, nil)
	if got == "" || got == "abc" {
		t.Fatalf("expected a generated request id, got %q", got)
	}
}

func TestRequestIDRejectsUnprintable(t *testing.T) {
	var got string
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got = ContextRequestID(ctx)
		return ok(ctx, w, r)
	}

	hdr := http.Header{}
	hdr.Set(RequestIDHeader, "bad id")
	w := serve(t, h, []web.Middleware{RequestID()}, hdr)
	if got == "bad id" || got == "" {
		t.Fatalf("expected a replaced request id, got %q", got)
	}
	if w.Header().Get(RequestIDHeader) != got {
		t.Fatalf("expected the id to be echoed, got %q", w.Header().Get(RequestIDHeader))
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  logrus.Level
	}{
		{"success", http.StatusOK, logrus.InfoLevel},
		{"client error", http.StatusNotFound, logrus.WarnLevel},
		{"server error", http.StatusServiceUnavailable, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			h := web.WrapMiddleware([]web.Middleware{Logger(log)}, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				w.WriteHeader(tt.status)
				return nil
			})

			r := httptest.NewRequest(http.MethodGet, "/courses", nil)
			if err := h(context.Background(), httptest.NewRecorder(), r); err != nil {
				t.Fatal(err)
			}

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatal("expected a log entry")
			}
			if entry.Level != tt.level {
				t.Fatalf("expected level %s, got %s", tt.level, entry.Level)
			}
			if entry.Data["statuscode"] != tt.status {
				t.Fatalf("expected statuscode %d, got %v", tt.status, entry.Data["statuscode"])
			}
		})
	}
}
