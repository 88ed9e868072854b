package course

import "time"

// Course aggregates (TotalDuration, AverageRating, RatingCount) are
// maintained by the aggregate engine and are never part of a write model.
type Course struct {
	ID            string     `json:"id" db:"course_id"`
	InstructorID  string     `json:"instructorId" db:"instructor_id"`
	Name          string     `json:"name" db:"name"`
	Description   string     `json:"description" db:"description"`
	ImageURL      string     `json:"imageUrl" db:"image_url"`
	Price         int        `json:"price" db:"price"`
	TotalDuration int64      `json:"totalDuration" db:"total_duration"`
	AverageRating float64    `json:"averageRating" db:"average_rating"`
	RatingCount   int        `json:"ratingCount" db:"rating_count"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time `json:"-" db:"deleted_at"`
	Version       int        `json:"-" db:"version"`
}

type CourseNew struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       int    `json:"price" validate:"gte=0,lte=10000"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

type CourseUp struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int    `json:"price" validate:"omitempty,gte=0,lte=10000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
}
