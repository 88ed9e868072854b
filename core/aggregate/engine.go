package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opChapterDuration   = "chapter.duration"
	opCourseDuration    = "course.duration"
	opCourseRatingStats = "course.rating_stats"
	opRequiresQuiz      = "lecture.requires_quiz"
	opUpsertReaction    = "feedback.reaction.upsert"
	opRemoveReaction    = "feedback.reaction.remove"
)

type Config struct {
	Log    logrus.FieldLogger
	DB     *sqlx.DB
	Runner TxRunner
	Hooks  Hooks

	MaxRetries        uint64
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RepairConcurrency int
}

// Engine runs the aggregate recomputations. It is safe for concurrent use.
type Engine struct {
	log    logrus.FieldLogger
	db     *sqlx.DB
	runner TxRunner
	hooks  Hooks
	tracer trace.Tracer

	maxRetries        uint64
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	repairConcurrency int
}

func New(cfg Config) *Engine {
	e := &Engine{
		log:               cfg.Log,
		db:                cfg.DB,
		runner:            cfg.Runner,
		hooks:             cfg.Hooks,
		tracer:            otel.Tracer("aggregate"),
		maxRetries:        cfg.MaxRetries,
		initialBackoff:    cfg.InitialBackoff,
		maxBackoff:        cfg.MaxBackoff,
		repairConcurrency: cfg.RepairConcurrency,
	}

	if e.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		e.log = l
	}
	if e.runner == nil {
		e.runner = NewTxRunner(cfg.DB)
	}
	if e.hooks == nil {
		e.hooks = noopHooks{}
	}
	if e.initialBackoff <= 0 {
		e.initialBackoff = 10 * time.Millisecond
	}
	if e.maxBackoff < e.initialBackoff {
		e.maxBackoff = e.initialBackoff
	}
	if e.repairConcurrency <= 0 {
		e.repairConcurrency = 1
	}

	return e
}

// write runs fn in a transaction and retries it while the database reports
// a serialization failure, a deadlock or an unavailable lock. fn must be
// idempotent and must issue its statements with the ctx it is given, which
// carries the operation span.
func (e *Engine) write(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context, tx sqlx.ExtContext) error) error {
	ctx, span := e.tracer.Start(ctx, "aggregate."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.initialBackoff
	bo.MaxInterval = e.maxBackoff
	bo.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(bo, e.maxRetries), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		if attempts > 1 {
			e.hooks.IncRetry(op)
		}

		err := e.runner.InTx(ctx, func(tx sqlx.ExtContext) error {
			return fn(ctx, tx)
		})
		switch {
		case err == nil:
			return nil
		case database.IsRetryable(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, b)

	switch {
	case err == nil:
	case database.IsRetryable(err), database.IsCanceled(err):
		err = &transientError{op: op, attempts: attempts, err: err}
	default:
		err = fmt.Errorf("%s: %w", op, err)
	}

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.hooks.ObserveOperation(op, status(err), time.Since(start))

	return err
}

// lock selects the aggregate root row FOR UPDATE and scans q's columns into
// dest. A missing row yields ErrNotFound.
func lock(ctx context.Context, tx sqlx.ExtContext, dest interface{}, q string, args ...interface{}) error {
	if err := database.Get(ctx, tx, dest, q, args...); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
