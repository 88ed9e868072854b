package lecture

import "time"

type Lecture struct {
	ID           string     `json:"id" db:"lecture_id"`
	ChapterID    string     `json:"chapterId" db:"chapter_id"`
	Name         string     `json:"name" db:"name"`
	Description  string     `json:"description" db:"description"`
	OrderIndex   int        `json:"orderIndex" db:"order_index"`
	Duration     *int       `json:"duration" db:"duration"`
	FileURL      string     `json:"-" db:"file_url"`
	IsPreview    bool       `json:"isPreview" db:"is_preview"`
	RequiresQuiz bool       `json:"requiresQuiz" db:"requires_quiz"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt    *time.Time `json:"-" db:"deleted_at"`
	Version      int        `json:"-" db:"version"`
}

// Public is the outward shape of a lecture. The file url is only exposed
// for previewable lectures.
type Public struct {
	Lecture
	FileURL string `json:"fileUrl,omitempty"`
}

func Project(l Lecture) Public {
	p := Public{Lecture: l}
	if l.IsPreview {
		p.FileURL = l.FileURL
	}
	return p
}

func ProjectAll(ls []Lecture) []Public {
	ps := make([]Public, 0, len(ls))
	for _, l := range ls {
		ps = append(ps, Project(l))
	}
	return ps
}

type LectureNew struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	OrderIndex  int    `json:"orderIndex" validate:"gte=0"`
	Duration    *int   `json:"duration" validate:"omitempty,gte=0,lte=2147483647"`
	FileURL     string `json:"fileUrl" validate:"omitempty,url"`
	IsPreview   bool   `json:"isPreview"`
}

type LectureUp struct {
	ChapterID   *string `json:"chapterId" validate:"omitempty,uuid4"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	OrderIndex  *int    `json:"orderIndex" validate:"omitempty,gte=0"`
	Duration    *int    `json:"duration" validate:"omitempty,gte=0,lte=2147483647"`
	FileURL     *string `json:"fileUrl" validate:"omitempty,url"`
	IsPreview   *bool   `json:"isPreview"`
}

// MediaUp is posted by the media-processing pipeline once the real
// duration of an uploaded file is known. Durations are stored as INTEGER
// seconds, hence the upper bound.
type MediaUp struct {
	Duration *int   `json:"duration" validate:"required,gte=0,lte=2147483647"`
	FileURL  string `json:"fileUrl" validate:"omitempty,url"`
}
