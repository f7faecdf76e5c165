package repository

import "learnhub/internal/database"

// Store groups every repository over one connection or transaction.
type Store struct {
	Users         *UserRepository
	Sessions      *SessionRepository
	Tracks        *TrackRepository
	Lessons       *LessonRepository
	Enrollments   *EnrollmentRepository
	Progress      *ProgressRepository
	Achievements  *AchievementRepository
	Notifications *NotificationRepository
	Discussions   *DiscussionRepository
	Changelog     *ChangelogRepository
}

// NewStore builds all repositories on q, which may be a *database.DB or a
// *database.Tx.
func NewStore(q database.DBTX) *Store {
	return &Store{
		Users:         NewUserRepository(q),
		Sessions:      NewSessionRepository(q),
		Tracks:        NewTrackRepository(q),
		Lessons:       NewLessonRepository(q),
		Enrollments:   NewEnrollmentRepository(q),
		Progress:      NewProgressRepository(q),
		Achievements:  NewAchievementRepository(q),
		Notifications: NewNotificationRepository(q),
		Discussions:   NewDiscussionRepository(q),
		Changelog:     NewChangelogRepository(q),
	}
}
