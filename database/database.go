// Package database opens the Postgres connection pool and provides the
// transaction and error helpers shared by the stores and the aggregate engine.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/config"
	_ "github.com/lib/pq"
)

var (
	ErrDBNotFound        = sql.ErrNoRows
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
	ErrVersionConflict   = errors.New("version conflict")
)

func Open(cfg config.DB) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	db, err := sqlx.Open("postgres", u.String())
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	return db, nil
}

// StatusCheck returns nil if it can successfully talk to the database.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}

	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = db.PingContext(ctx)
		if pingError == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	const q = `SELECT true`
	var tmp bool
	return db.QueryRowContext(ctx, q).Scan(&tmp)
}

func Transaction(db *sqlx.DB, f func(sqlx.ExtContext) error) error {
	return TransactionContext(context.Background(), db, nil, f)
}

// TransactionContext runs f inside a transaction bound to ctx. The
// transaction is committed when f returns nil and rolled back otherwise.
func TransactionContext(ctx context.Context, db *sqlx.DB, opts *sql.TxOptions, f func(sqlx.ExtContext) error) error {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := f(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed[%v]: %w", rerr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Get runs a query expected to return exactly one row into dest.
func Get(ctx context.Context, db sqlx.ExtContext, dest interface{}, q string, args ...interface{}) error {
	if err := sqlx.GetContext(ctx, db, dest, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDBNotFound
		}
		return err
	}
	return nil
}

// Select runs a query returning a set of rows into dest.
func Select(ctx context.Context, db sqlx.ExtContext, dest interface{}, q string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, db, dest, q, args...)
}

// NamedExec runs a named statement and maps unique violations to
// ErrDBDuplicatedEntry.
func NamedExec(ctx context.Context, db sqlx.ExtContext, q string, data interface{}) (sql.Result, error) {
	res, err := sqlx.NamedExecContext(ctx, db, q, data)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDBDuplicatedEntry
		}
		return nil, err
	}
	return res, nil
}

// ExpectAffected turns a zero-row result into notFound.
func ExpectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
