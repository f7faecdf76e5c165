package models

import "time"

// Difficulty grades tracks and lessons
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// LessonType is the kind of activity a lesson contains
type LessonType string

const (
	LessonReading LessonType = "reading"
	LessonCoding  LessonType = "coding"
	LessonQuiz    LessonType = "quiz"
	LessonVideo   LessonType = "video"
	LessonProject LessonType = "project"
)

// Valid reports whether lt is a known lesson type
func (lt LessonType) Valid() bool {
	switch lt {
	case LessonReading, LessonCoding, LessonQuiz, LessonVideo, LessonProject:
		return true
	}
	return false
}

// Track is a course made of ordered lessons
type Track struct {
	ID              int64      `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Difficulty      Difficulty `json:"difficulty"`
	EstimatedHours  int        `json:"estimatedHours"`
	Category        string     `json:"category"`
	ThumbnailURL    string     `json:"thumbnailUrl"`
	Tags            []string   `json:"tags"`
	TotalLessons    int        `json:"totalLessons"`
	EnrollmentCount int        `json:"enrollmentCount"`
	AverageRating   float64    `json:"averageRating"`
	IsPublished     bool       `json:"isPublished"`
	IsPremium       bool       `json:"isPremium"`
	Order           int        `json:"order"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TrackFilter narrows track listings
type TrackFilter struct {
	Category           string
	Difficulty         Difficulty
	Tag                string
	IncludeUnpublished bool
}

// TestCase is one check run against submitted code
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Hidden         bool   `json:"hidden,omitempty"`
}

// QuizQuestion is a single multiple-choice question
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Points        int      `json:"points"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Lesson is a unit of content owned by exactly one track
type Lesson struct {
	ID               int64          `json:"id"`
	Slug             string         `json:"slug"`
	TrackID          int64          `json:"trackId"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Content          string         `json:"content"`
	Type             LessonType     `json:"type"`
	Difficulty       Difficulty     `json:"difficulty"`
	Order            int            `json:"order"`
	EstimatedMinutes int            `json:"estimatedMinutes"`
	ExperiencePoints int            `json:"experiencePoints"`
	IsPremium        bool           `json:"isPremium"`
	IsPublished      bool           `json:"isPublished"`
	VideoURL         string         `json:"videoUrl,omitempty"`
	StarterCode      string         `json:"starterCode,omitempty"`
	TestCases        []TestCase     `json:"testCases,omitempty"`
	Questions        []QuizQuestion `json:"questions,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// PublicCopy strips quiz answers and hidden test cases before a lesson is
// shown to a learner.
func (l *Lesson) PublicCopy() *Lesson {
	c := *l
	if len(l.Questions) > 0 {
		c.Questions = make([]QuizQuestion, len(l.Questions))
		for i, q := range l.Questions {
			q.CorrectAnswer = -1
			q.Explanation = ""
			c.Questions[i] = q
		}
	}
	if len(l.TestCases) > 0 {
		c.TestCases = nil
		for _, tc := range l.TestCases {
			if !tc.Hidden {
				c.TestCases = append(c.TestCases, tc)
			}
		}
	}
	return &c
}

// LessonNavigation points at the neighbouring published lessons of a track
type LessonNavigation struct {
	Previous *Lesson `json:"previous,omitempty"`
	Next     *Lesson `json:"next,omitempty"`
}
