package chapter

import "time"

// Duration is the sum of the chapter's live lecture durations in seconds,
// written only by the aggregate engine.
type Chapter struct {
	ID         string     `json:"id" db:"chapter_id"`
	CourseID   string     `json:"courseId" db:"course_id"`
	Name       string     `json:"name" db:"name"`
	OrderIndex int        `json:"orderIndex" db:"order_index"`
	Duration   int64      `json:"duration" db:"duration"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt  *time.Time `json:"-" db:"deleted_at"`
	Version    int        `json:"-" db:"version"`
}

type ChapterNew struct {
	Name       string `json:"name" validate:"required"`
	OrderIndex int    `json:"orderIndex" validate:"gte=0"`
}

type ChapterUp struct {
	CourseID   *string `json:"courseId" validate:"omitempty,uuid4"`
	Name       *string `json:"name"`
	OrderIndex *int    `json:"orderIndex" validate:"omitempty,gte=0"`
}
