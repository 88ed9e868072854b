package feedback

import "time"

// Feedback is a course review. Like and Dislike are maintained by the
// reaction ledger.
type Feedback struct {
	ID        string     `json:"id" db:"feedback_id"`
	CourseID  string     `json:"courseId" db:"course_id"`
	UserID    string     `json:"userId" db:"user_id"`
	Rating    int        `json:"rating" db:"rating"`
	Content   string     `json:"content" db:"content"`
	Like      int        `json:"like" db:"likes"`
	Dislike   int        `json:"dislike" db:"dislikes"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

type FeedbackNew struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Content string `json:"content"`
}

type FeedbackUp struct {
	Rating  *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Content *string `json:"content"`
}

type ReactionUp struct {
	Type string `json:"type" validate:"required,oneof=like dislike"`
}
