package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/background"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/api/middleware"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/claims"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database/dbtest"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/rate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
	"github.com/prometheus/client_golang/prometheus"
)

type TestEnv struct {
	*httptest.Server
	DB    *sqlx.DB
	Admin claims.Claims
	User  claims.Claims
}

// NewTestEnv starts the API on a fresh database. opts may adjust the engine
// configuration before the engine is built.
func NewTestEnv(t *testing.T, name string, opts ...func(*aggregate.Config)) (*TestEnv, error) {
	db := dbtest.NewDB(t, name)
	log := dbtest.Logger()

	cfg := aggregate.Config{
		Log:               log,
		DB:                db,
		MaxRetries:        10,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		RepairConcurrency: 2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine := aggregate.New(cfg)
	disp := aggregate.NewDispatcher(log, engine)

	bg := background.New(log)
	lim := rate.NewLimiter(1000, time.Hour, 1000)

	mux := api.APIMux(api.APIConfig{
		Log:           log,
		DB:            db,
		Dispatcher:    disp,
		Background:    bg,
		RepairTimeout: time.Minute,
		Limiter:       lim,
		Gatherer:      prometheus.NewRegistry(),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		lim.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := bg.Shutdown(ctx); err != nil {
			t.Logf("background shutdown: %v", err)
		}
	})

	return &TestEnv{
		Server: srv,
		DB:     db,
		Admin:  claims.Claims{UserID: validate.GenerateID(), Role: claims.RoleAdmin},
		User:   claims.Claims{UserID: validate.GenerateID(), Role: claims.RoleUser},
	}, nil
}

// NewUser returns the identity of a fresh regular user.
func (env *TestEnv) NewUser() claims.Claims {
	return claims.Claims{UserID: validate.GenerateID(), Role: claims.RoleUser}
}

// Do sends a JSON request as the given identity, nil meaning anonymous,
// and decodes a successful response into out when out is not nil.
func (env *TestEnv) Do(method, path string, as *claims.Claims, body, out interface{}) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, env.URL+path, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		r.Header.Set(middleware.UserIDHeader, as.UserID)
		r.Header.Set(middleware.UserRoleHeader, as.Role)
	}

	w, err := env.Client().Do(r)
	if err != nil {
		return 0, err
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode >= 200 && w.StatusCode < 300 {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			return w.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return w.StatusCode, nil
}

// expect sends the request and fails the test unless the response status
// is code.
func (env *TestEnv) expect(t *testing.T, code int, method, path string, as *claims.Claims, body, out interface{}) {
	t.Helper()

	got, err := env.Do(method, path, as, body, out)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if got != code {
		t.Fatalf("%s %s: expected status %d, got %d", method, path, code, got)
	}
}
