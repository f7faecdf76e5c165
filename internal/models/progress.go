package models

import "time"

// ProgressStatus is the state of a learner on one lesson
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not-started"
	StatusInProgress ProgressStatus = "in-progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusSkipped    ProgressStatus = "skipped"
)

// Valid reports whether s is a known status
func (s ProgressStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// Progress is the single record per (user, lesson)
type Progress struct {
	ID            int64          `json:"id"`
	UserID        int64          `json:"userId"`
	LessonID      int64          `json:"lessonId"`
	TrackID       int64          `json:"trackId"`
	Status        ProgressStatus `json:"status"`
	Score         *int           `json:"score,omitempty"`
	TimeSpent     int            `json:"timeSpent"`
	Attempts      int            `json:"attempts"`
	SubmittedCode string         `json:"submittedCode,omitempty"`
	QuizAnswers   string         `json:"quizAnswers,omitempty"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// IsCompleted reports whether the lesson has been completed
func (p *Progress) IsCompleted() bool {
	return p != nil && p.Status == StatusCompleted
}

// Enrollment links a user to a track
type Enrollment struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"userId"`
	TrackID           int64      `json:"trackId"`
	Progress          int        `json:"progress"`
	TotalTimeSpent    int        `json:"totalTimeSpent"`
	StreakCount       int        `json:"streakCount"`
	LastStudiedAt     *time.Time `json:"lastStudiedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CertificateIssued bool       `json:"certificateIssued"`
	CertificateID     string     `json:"certificateId,omitempty"`
	EnrolledAt        time.Time  `json:"enrolledAt"`
}

// EnrollmentWithTrack pairs an enrollment with its track for dashboards
type EnrollmentWithTrack struct {
	Enrollment
	Track *Track `json:"track"`
}

// UserStats summarises a learner's activity
type UserStats struct {
	CompletedLessons      int   `json:"completedLessons"`
	TotalTimeSpent        int   `json:"totalTimeSpent"`
	EnrolledTracks        int   `json:"enrolledTracks"`
	CompletedTracks       int   `json:"completedTracks"`
	Achievements          int   `json:"achievements"`
	Level                 int   `json:"level"`
	Experience            int64 `json:"experience"`
	ExperienceToNextLevel int64 `json:"experienceToNextLevel"`
	StreakDays            int   `json:"streakDays"`
}
