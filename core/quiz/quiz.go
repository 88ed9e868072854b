package quiz

import "time"

// Quiz optionally points at the lecture it gates. The reference is weak:
// deleting the lecture detaches the quiz instead of deleting it.
type Quiz struct {
	ID           string    `json:"id" db:"quiz_id"`
	LectureID    *string   `json:"lectureId" db:"lecture_id"`
	Title        string    `json:"title" db:"title"`
	PassingScore int       `json:"passingScore" db:"passing_score"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type QuizNew struct {
	LectureID    *string `json:"lectureId" validate:"omitempty,uuid4"`
	Title        string  `json:"title" validate:"required"`
	PassingScore int     `json:"passingScore" validate:"gte=0,lte=100"`
}

// QuizUp rebinds the quiz when LectureID is present; Detach clears the
// binding.
type QuizUp struct {
	LectureID    *string `json:"lectureId" validate:"omitempty,uuid4"`
	Detach       bool    `json:"detach"`
	Title        *string `json:"title"`
	PassingScore *int    `json:"passingScore" validate:"omitempty,gte=0,lte=100"`
}
