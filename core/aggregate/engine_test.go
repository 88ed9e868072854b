package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// scriptedRunner returns the scripted errors in order without touching a
// database, then succeeds.
type scriptedRunner struct {
	errs  []error
	calls int
}

func (r *scriptedRunner) InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	r.calls++
	if len(r.errs) == 0 {
		return nil
	}
	err := r.errs[0]
	r.errs = r.errs[1:]
	return err
}

type spyHooks struct {
	mu      sync.Mutex
	ops     []string
	retries []string
}

func (h *spyHooks) ObserveOperation(op, status string, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, op+":"+status)
}

func (h *spyHooks) IncRetry(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries = append(h.retries, op)
}

func serialization() error { return &pq.Error{Code: "40001"} }
func deadlock() error      { return &pq.Error{Code: "40P01"} }

func newTestEngine(r TxRunner, h Hooks, retries uint64) *Engine {
	return New(Config{
		Runner:         r,
		Hooks:          h,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func noop(context.Context, sqlx.ExtContext) error { return nil }

func TestWriteRetriesConflicts(t *testing.T) {
	r := &scriptedRunner{errs: []error{serialization(), deadlock()}}
	h := &spyHooks{}
	e := newTestEngine(r, h, 3)

	if err := e.write(context.Background(), opChapterDuration, nil, noop); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}

	if r.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", r.calls)
	}
	if diff := cmp.Diff([]string{opChapterDuration, opChapterDuration}, h.retries); diff != "" {
		t.Fatalf("unexpected retries (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{opChapterDuration + ":success"}, h.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestWriteExhaustsRetries(t *testing.T) {
	r := &scriptedRunner{errs: []error{serialization(), serialization(), serialization()}}
	h := &spyHooks{}
	e := newTestEngine(r, h, 2)

	err := e.write(context.Background(), opCourseDuration, nil, noop)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "40001" {
		t.Fatalf("expected the database error to stay reachable, got %v", err)
	}
	if r.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", r.calls)
	}
	if diff := cmp.Diff([]string{opCourseDuration + ":transient"}, h.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestWriteDoesNotRetryPermanentErrors(t *testing.T) {
	tests := map[string]struct {
		err    error
		is     error
		status string
	}{
		"not found": {err: ErrNotFound, is: ErrNotFound, status: "not_found"},
		"invariant": {err: ErrInvariant, is: ErrInvariant, status: "invariant"},
		"unique":    {err: &pq.Error{Code: "23505"}, status: "error"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := &scriptedRunner{errs: []error{tt.err, tt.err}}
			h := &spyHooks{}
			e := newTestEngine(r, h, 5)

			err := e.write(context.Background(), opRequiresQuiz, nil, noop)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("expected %v, got %v", tt.is, err)
			}
			if errors.Is(err, ErrTransient) {
				t.Fatalf("permanent error reported as transient: %v", err)
			}
			if r.calls != 1 {
				t.Fatalf("expected a single attempt, got %d", r.calls)
			}
			if diff := cmp.Diff([]string{opRequiresQuiz + ":" + tt.status}, h.ops); diff != "" {
				t.Fatalf("unexpected operations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteCanceledContextIsTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &scriptedRunner{errs: []error{context.Canceled}}
	e := newTestEngine(r, nil, 3)

	err := e.write(ctx, opCourseRatingStats, nil, noop)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestDistinct(t *testing.T) {
	got := distinct([]string{"b", "", "a", "b", "a", "c"})
	if diff := cmp.Diff([]string{"b", "a", "c"}, got); diff != "" {
		t.Fatalf("unexpected ids (-want +got):\n%s", diff)
	}
}
