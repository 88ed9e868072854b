// Package dbtest starts a disposable Postgres container for integration
// tests and hands back a migrated connection.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/config"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
)

const (
	dbUser = "postgres"
	dbPass = "postgres"
	dbName = "learning"
)

// NewDB starts Postgres, applies the migrations and registers the cleanup.
// The test is skipped when no docker daemon is reachable.
func NewDB(t *testing.T, name string) *sqlx.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	opts := dockertest.RunOptions{
		Name:       fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		Repository: "postgres",
		Tag:        "14-alpine",
		Env: []string{
			"POSTGRES_USER=" + dbUser,
			"POSTGRES_PASSWORD=" + dbPass,
			"POSTGRES_DB=" + dbName,
		},
	}

	resource, err := pool.RunWithOptions(&opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})
	_ = resource.Expire(300)

	cfg := config.DB{
		User:         dbUser,
		Password:     dbPass,
		Host:         resource.GetHostPort("5432/tcp"),
		Name:         dbName,
		MaxIdleConns: 5,
		MaxOpenConns: 20,
		DisableTLS:   true,
	}

	var db *sqlx.DB
	err = pool.Retry(func() error {
		var err error
		if db, err = database.Open(cfg); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return database.StatusCheck(ctx, db)
	})
	if err != nil {
		t.Fatalf("waiting for postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return db
}

// Logger returns a logger that stays quiet unless LOG_TESTS is set.
func Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	if os.Getenv("LOG_TESTS") != "" {
		log.SetOutput(os.Stdout)
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
