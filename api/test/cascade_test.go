package test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/aggregate"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/chapter"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/lecture"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/core/quiz"
	"github.com/lib/pq"
)

func seconds(n int) *int { return &n }

func TestDurationCascade(t *testing.T) {
	env, err := NewTestEnv(t, "cascade_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}

	c := ct.createCourseOK(t)
	ch := ct.createChapterOK(t, c.ID)

	l1 := ct.createLectureOK(t, ch.ID, lecture.LectureNew{Duration: seconds(120)})
	l2 := ct.createLectureOK(t, ch.ID, lecture.LectureNew{Duration: seconds(180)})
	ct.expectDurations(t, c.ID, ch.ID, 300)

	ct.createLectureOK(t, ch.ID, lecture.LectureNew{Duration: seconds(300)})
	ct.expectDurations(t, c.ID, ch.ID, 600)

	// media callback
	ct.expect(t, http.StatusOK, http.MethodPut, "/lectures/"+l1.ID+"/media", &ct.Admin,
		lecture.MediaUp{Duration: seconds(60), FileURL: "https://cdn.example.com/l1.mp4"}, nil)
	ct.expectDurations(t, c.ID, ch.ID, 540)

	// a callback without a usable duration leaves the lecture alone
	ct.expect(t, http.StatusBadRequest, http.MethodPut, "/lectures/"+l1.ID+"/media", &ct.Admin,
		map[string]string{"fileUrl": "https://cdn.example.com/l1-v2.mp4"}, nil)
	ct.expect(t, http.StatusBadRequest, http.MethodPut, "/lectures/"+l1.ID+"/media", &ct.Admin,
		map[string]int64{"duration": 3_000_000_000}, nil)
	ct.expectDurations(t, c.ID, ch.ID, 540)

	ct.expect(t, http.StatusNoContent, http.MethodDelete, "/lectures/"+l2.ID, &ct.Admin, nil, nil)
	ct.expectDurations(t, c.ID, ch.ID, 360)
	ct.expect(t, http.StatusNotFound, http.MethodGet, "/lectures/"+l2.ID, nil, nil, nil)

	ct.expect(t, http.StatusNoContent, http.MethodPost, "/lectures/"+l2.ID+"/restore", &ct.Admin, nil, nil)
	ct.expectDurations(t, c.ID, ch.ID, 540)

	// moving a lecture to a chapter of another course updates both courses
	other := ct.createCourseOK(t)
	och := ct.createChapterOK(t, other.ID)
	ct.expect(t, http.StatusOK, http.MethodPut, "/lectures/"+l2.ID, &ct.Admin,
		lecture.LectureUp{ChapterID: &och.ID}, nil)
	ct.expectDurations(t, c.ID, ch.ID, 360)
	ct.expectDurations(t, other.ID, och.ID, 180)

	// a chapter soft-delete takes its whole duration off the course
	ct.expect(t, http.StatusNoContent, http.MethodDelete, "/chapters/"+och.ID, &ct.Admin, nil, nil)
	if got := ct.fetchCourse(t, other.ID).TotalDuration; got != 0 {
		t.Fatalf("course duration after chapter delete: want 0, got %d", got)
	}
	ct.expect(t, http.StatusNoContent, http.MethodPost, "/chapters/"+och.ID+"/restore", &ct.Admin, nil, nil)
	if got := ct.fetchCourse(t, other.ID).TotalDuration; got != 180 {
		t.Fatalf("course duration after chapter restore: want 180, got %d", got)
	}

	// unknown parents
	ct.expect(t, http.StatusNotFound, http.MethodPost, "/chapters/"+c.ID+"/lectures", &ct.Admin,
		lecture.LectureNew{Name: "x"}, nil)
	ct.expect(t, http.StatusForbidden, http.MethodPut, "/lectures/"+l1.ID+"/media", &ct.User,
		lecture.MediaUp{Duration: seconds(1)}, nil)
}

func TestLectureProjection(t *testing.T) {
	env, err := NewTestEnv(t, "projection_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	ch := ct.createChapterOK(t, ct.createCourseOK(t).ID)

	preview := ct.createLectureOK(t, ch.ID, lecture.LectureNew{FileURL: "https://cdn.example.com/a.mp4", IsPreview: true})
	locked := ct.createLectureOK(t, ch.ID, lecture.LectureNew{FileURL: "https://cdn.example.com/b.mp4"})

	var got lecture.Public
	ct.expect(t, http.StatusOK, http.MethodGet, "/lectures/"+preview.ID, nil, nil, &got)
	if got.FileURL != "https://cdn.example.com/a.mp4" {
		t.Fatalf("preview lecture must expose its file url, got %q", got.FileURL)
	}

	got = lecture.Public{}
	ct.expect(t, http.StatusOK, http.MethodGet, "/lectures/"+locked.ID, nil, nil, &got)
	if got.FileURL != "" {
		t.Fatalf("locked lecture must hide its file url, got %q", got.FileURL)
	}

	var ls []lecture.Public
	ct.expect(t, http.StatusOK, http.MethodGet, "/chapters/"+ch.ID+"/lectures", nil, nil, &ls)
	if len(ls) != 2 {
		t.Fatalf("expected 2 lectures, got %d", len(ls))
	}
}

func TestRequiresQuiz(t *testing.T) {
	env, err := NewTestEnv(t, "quiz_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	ch := ct.createChapterOK(t, ct.createCourseOK(t).ID)
	l1 := ct.createLectureOK(t, ch.ID, lecture.LectureNew{})
	l2 := ct.createLectureOK(t, ch.ID, lecture.LectureNew{})

	var qz quiz.Quiz
	ct.expect(t, http.StatusCreated, http.MethodPost, "/quizzes", &ct.Admin,
		quiz.QuizNew{LectureID: &l1.ID, Title: "checkpoint", PassingScore: 70}, &qz)
	ct.expectRequiresQuiz(t, l1.ID, true)
	ct.expectRequiresQuiz(t, l2.ID, false)

	ct.expect(t, http.StatusOK, http.MethodPut, "/quizzes/"+qz.ID, &ct.Admin,
		quiz.QuizUp{LectureID: &l2.ID}, nil)
	ct.expectRequiresQuiz(t, l1.ID, false)
	ct.expectRequiresQuiz(t, l2.ID, true)

	ct.expect(t, http.StatusOK, http.MethodPut, "/quizzes/"+qz.ID, &ct.Admin,
		quiz.QuizUp{Detach: true}, nil)
	ct.expectRequiresQuiz(t, l2.ID, false)

	ct.expect(t, http.StatusOK, http.MethodPut, "/quizzes/"+qz.ID, &ct.Admin,
		quiz.QuizUp{LectureID: &l1.ID}, nil)
	ct.expectRequiresQuiz(t, l1.ID, true)

	ct.expect(t, http.StatusNoContent, http.MethodDelete, "/quizzes/"+qz.ID, &ct.Admin, nil, nil)
	ct.expectRequiresQuiz(t, l1.ID, false)

	ct.expect(t, http.StatusBadRequest, http.MethodPost, "/quizzes", &ct.Admin,
		quiz.QuizNew{Title: "too hard", PassingScore: 101}, nil)
}

func TestRepair(t *testing.T) {
	env, err := NewTestEnv(t, "repair_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	c := ct.createCourseOK(t)
	ch := ct.createChapterOK(t, c.ID)
	ct.createLectureOK(t, ch.ID, lecture.LectureNew{Duration: seconds(75)})

	if _, err := ct.DB.Exec(`UPDATE chapters SET duration = 1 WHERE chapter_id = $1`, ch.ID); err != nil {
		t.Fatalf("corrupting chapter: %v", err)
	}
	if _, err := ct.DB.Exec(`UPDATE courses SET total_duration = 1 WHERE course_id = $1`, c.ID); err != nil {
		t.Fatalf("corrupting course: %v", err)
	}

	var rep struct {
		Courses  int `json:"courses"`
		Chapters int `json:"chapters"`
		Failed   int `json:"failed"`
	}
	ct.expect(t, http.StatusOK, http.MethodPost, "/courses/"+c.ID+"/repair", &ct.Admin, nil, &rep)
	if rep.Courses != 1 || rep.Chapters != 1 || rep.Failed != 0 {
		t.Fatalf("unexpected repair report: %+v", rep)
	}
	ct.expectDurations(t, c.ID, ch.ID, 75)

	ct.expect(t, http.StatusAccepted, http.MethodPost, "/repair", &ct.Admin, nil, nil)
	ct.expect(t, http.StatusForbidden, http.MethodPost, "/repair", &ct.User, nil, nil)
}

// outageRunner fails every aggregate transaction with a serialization
// error while down is set. Leaf writes do not go through it.
type outageRunner struct {
	next aggregate.TxRunner
	down atomic.Bool
}

func (r *outageRunner) InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	if r.down.Load() {
		return &pq.Error{Code: "40001"}
	}
	return r.next.InTx(ctx, fn)
}

func TestCascadeFailureKeepsLeafWrite(t *testing.T) {
	runner := &outageRunner{}
	env, err := NewTestEnv(t, "cascade_failure_test", func(cfg *aggregate.Config) {
		runner.next = aggregate.NewTxRunner(cfg.DB)
		cfg.Runner = runner
		cfg.MaxRetries = 0
	})
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	c := ct.createCourseOK(t)
	ch := ct.createChapterOK(t, c.ID)
	l := ct.createLectureOK(t, ch.ID, lecture.LectureNew{Duration: seconds(120)})
	ct.expectDurations(t, c.ID, ch.ID, 120)

	runner.down.Store(true)

	var got lecture.Public
	ct.expect(t, http.StatusOK, http.MethodPut, "/lectures/"+l.ID, &ct.Admin,
		lecture.LectureUp{Duration: seconds(300)}, &got)
	if got.Duration == nil || *got.Duration != 300 {
		t.Fatalf("updated lecture: want duration 300, got %v", got.Duration)
	}

	var stored lecture.Public
	ct.expect(t, http.StatusOK, http.MethodGet, "/lectures/"+l.ID, nil, nil, &stored)
	if stored.Duration == nil || *stored.Duration != 300 {
		t.Fatalf("stored lecture: want duration 300, got %v", stored.Duration)
	}

	// the leaf write stands, its aggregates wait for a repair
	ct.expectDurations(t, c.ID, ch.ID, 120)
	ct.expect(t, http.StatusServiceUnavailable, http.MethodPost, "/courses/"+c.ID+"/repair", &ct.Admin, nil, nil)
	ct.expectDurations(t, c.ID, ch.ID, 120)

	runner.down.Store(false)

	ct.expect(t, http.StatusOK, http.MethodPost, "/courses/"+c.ID+"/repair", &ct.Admin, nil, nil)
	ct.expectDurations(t, c.ID, ch.ID, 300)
}

func (ct *courseTest) expectDurations(t *testing.T, courseID, chapterID string, want int64) {
	t.Helper()

	var ch chapter.Chapter
	ct.expect(t, http.StatusOK, http.MethodGet, "/chapters/"+chapterID, nil, nil, &ch)
	if ch.Duration != want {
		t.Fatalf("chapter[%s] duration: want %d, got %d", chapterID, want, ch.Duration)
	}

	if got := ct.fetchCourse(t, courseID).TotalDuration; got != want {
		t.Fatalf("course[%s] duration: want %d, got %d", courseID, want, got)
	}
}

func (ct *courseTest) expectRequiresQuiz(t *testing.T, lectureID string, want bool) {
	t.Helper()

	var l lecture.Public
	ct.expect(t, http.StatusOK, http.MethodGet, "/lectures/"+lectureID, nil, nil, &l)
	if l.RequiresQuiz != want {
		t.Fatalf("lecture[%s] requires quiz: want %v, got %v", lectureID, want, l.RequiresQuiz)
	}
}
