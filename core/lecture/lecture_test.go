package lecture

import (
	"testing"

	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/validate"
)

func seconds(n int) *int { return &n }

func TestMediaUpValidation(t *testing.T) {
	tests := []struct {
		name  string
		media MediaUp
		ok    bool
	}{
		{"duration set", MediaUp{Duration: seconds(95), FileURL: "https://cdn.example.com/a.mp4"}, true},
		{"zero duration", MediaUp{Duration: seconds(0)}, true},
		{"largest duration", MediaUp{Duration: seconds(2147483647)}, true},
		{"missing duration", MediaUp{FileURL: "https://cdn.example.com/a.mp4"}, false},
		{"negative duration", MediaUp{Duration: seconds(-1)}, false},
		{"duration overflows column", MediaUp{Duration: seconds(2147483648)}, false},
		{"bad url", MediaUp{Duration: seconds(1), FileURL: "not a url"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Check(tt.media)
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLectureDurationBounds(t *testing.T) {
	if err := validate.Check(LectureNew{Name: "Intro", Duration: seconds(2147483648)}); err == nil {
		t.Fatal("expected an oversized duration to be rejected on create")
	}
	if err := validate.Check(LectureUp{Duration: seconds(2147483648)}); err == nil {
		t.Fatal("expected an oversized duration to be rejected on update")
	}
	if err := validate.Check(LectureNew{Name: "Intro"}); err != nil {
		t.Fatalf("expected a lecture without duration to be valid, got %v", err)
	}
}
