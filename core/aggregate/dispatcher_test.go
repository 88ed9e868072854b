package aggregate

import (
	"context"
	"errors"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestDispatcher(r TxRunner, h Hooks, retries uint64) (*Dispatcher, *test.Hook) {
	log, hook := test.NewNullLogger()
	return NewDispatcher(log, newTestEngine(r, h, retries)), hook
}

func TestCascadeStopsAtFailedChapter(t *testing.T) {
	r := &scriptedRunner{errs: []error{serialization(), serialization(), serialization()}}
	h := &spyHooks{}
	d, hook := newTestDispatcher(r, h, 2)

	err := d.LectureUpdated(context.Background(), "c1")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "chapter_id[c1]") {
		t.Fatalf("expected the failed chapter in the error, got %q", err)
	}
	if strings.Contains(err.Error(), "\n") {
		t.Fatalf("expected a single line error, got %q", err)
	}

	if r.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", r.calls)
	}
	if diff := cmp.Diff([]string{opChapterDuration + ":transient"}, h.ops); diff != "" {
		t.Fatalf("course stage must not run (-want +got):\n%s", diff)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected the failure to be logged at error, got %+v", entry)
	}
	if entry.Data["chapter_id"] != "c1" || entry.Data["event"] != "lecture.updated" {
		t.Fatalf("unexpected log fields %v", entry.Data)
	}
}

func TestCascadeReportsEveryFailedChapter(t *testing.T) {
	r := &scriptedRunner{errs: []error{serialization(), deadlock()}}
	h := &spyHooks{}
	d, _ := newTestDispatcher(r, h, 0)

	err := d.LectureUpdated(context.Background(), "c1", "c2", "c1")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	msg := err.Error()
	if !strings.Contains(msg, "chapter_id[c1]") || !strings.Contains(msg, "chapter_id[c2]") {
		t.Fatalf("expected both chapters in the error, got %q", msg)
	}
	if strings.Contains(msg, "\n") {
		t.Fatalf("expected a single line error, got %q", msg)
	}

	want := []string{opChapterDuration + ":transient", opChapterDuration + ":transient"}
	if diff := cmp.Diff(want, h.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestDispatcherSkipsMissingRoots(t *testing.T) {
	tests := map[string]struct {
		call func(d *Dispatcher) error
		op   string
	}{
		"chapter": {
			call: func(d *Dispatcher) error { return d.LectureDeleted(context.Background(), "c1") },
			op:   opChapterDuration,
		},
		"course": {
			call: func(d *Dispatcher) error { return d.ChapterChanged(context.Background(), "k1") },
			op:   opCourseDuration,
		},
		"rating": {
			call: func(d *Dispatcher) error { return d.FeedbackChanged(context.Background(), "k1") },
			op:   opCourseRatingStats,
		},
		"lecture": {
			call: func(d *Dispatcher) error { return d.QuizChanged(context.Background(), "l1") },
			op:   opRequiresQuiz,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := &spyHooks{}
			d, hook := newTestDispatcher(&scriptedRunner{errs: []error{ErrNotFound}}, h, 3)

			if err := tt.call(d); err != nil {
				t.Fatalf("expected a missing root to be skipped, got %v", err)
			}
			if diff := cmp.Diff([]string{tt.op + ":not_found"}, h.ops); diff != "" {
				t.Fatalf("unexpected operations (-want +got):\n%s", diff)
			}
			if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.InfoLevel {
				t.Fatalf("expected the skip to be logged at info, got %+v", entry)
			}
		})
	}
}

func TestReactionErrorsReachTheCaller(t *testing.T) {
	d, _ := newTestDispatcher(&scriptedRunner{errs: []error{ErrNotFound}}, nil, 3)

	if _, err := d.UpsertReaction(context.Background(), "f1", "u1", ReactionLike); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCascadeLogsOneLine(t *testing.T) {
	d, hook := newTestDispatcher(&scriptedRunner{}, nil, 0)

	d.Cascade("req-1", nil)
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected nothing logged for a clean cascade, got %d entries", len(hook.AllEntries()))
	}

	var merr *multierror.Error
	merr = multierror.Append(merr, errors.New("chapter_id[c1]: locked"), errors.New("chapter_id[c2]: locked"))
	d.Cascade("req-1", joined(merr))

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
	if entry.Data["req_id"] != "req-1" {
		t.Fatalf("expected req_id req-1, got %v", entry.Data["req_id"])
	}

	err, _ := entry.Data[logrus.ErrorKey].(error)
	if err == nil {
		t.Fatal("expected the error in the entry")
	}
	if got, want := err.Error(), "chapter_id[c1]: locked; chapter_id[c2]: locked"; got != want {
		t.Fatalf("error text: want %q, got %q", want, got)
	}
}

// txRunner hands fn a nil transaction, enough for statements that never
// touch it.
type txRunner struct{}

func (txRunner) InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	return fn(nil)
}

func TestWriteRunsInsideOperationSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := newTestEngine(txRunner{}, nil, 0)
	e.tracer = tp.Tracer("aggregate")

	var inner trace.SpanContext
	err := e.write(context.Background(), opChapterDuration, nil, func(ctx context.Context, _ sqlx.ExtContext) error {
		inner = trace.SpanContextFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected one span, got %d", len(ended))
	}
	if ended[0].Name() != "aggregate."+opChapterDuration {
		t.Fatalf("unexpected span name %q", ended[0].Name())
	}
	if !inner.IsValid() || inner.SpanID() != ended[0].SpanContext().SpanID() {
		t.Fatalf("statements ran outside the operation span: %v", inner)
	}
}

// The engine is linked into the repair CLI, so it stays free of the HTTP
// middleware and background task packages.
func TestEngineImports(t *testing.T) {
	forbidden := []string{"/api/middleware", "/api/background", "/api/web"}

	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}

	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}

		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parsing %s: %v", name, err)
		}

		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			for _, bad := range forbidden {
				if strings.HasSuffix(path, bad) {
					t.Errorf("%s imports %s", name, path)
				}
			}
		}
	}
}
