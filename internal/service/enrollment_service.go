package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
)

// TrackProgress is the outcome of recomputing an enrollment
type TrackProgress struct {
	Enrollment       *models.Enrollment `json:"enrollment"`
	CompletedLessons int                `json:"completedLessons"`
	PublishedLessons int                `json:"publishedLessons"`
	JustCompleted    bool               `json:"justCompleted"`
}

// TrackProgressView is a user's standing in one track
type TrackProgressView struct {
	Track      *models.Track      `json:"track"`
	Enrollment *models.Enrollment `json:"enrollment"`
	Lessons    []*models.Progress `json:"lessons"`
}

// EnrollmentService handles enrollments and their progress percentage
type EnrollmentService struct {
	db          *database.DB
	store       *repository.Store
	leaderboard *LeaderboardService
	mailer      Mailer
	log         *logger.Logger
	now         func() time.Time
}

// NewEnrollmentService creates a new enrollment service. mailer may be nil.
func NewEnrollmentService(db *database.DB, leaderboard *LeaderboardService, mailer Mailer, log *logger.Logger) *EnrollmentService {
	return &EnrollmentService{
		db:          db,
		store:       repository.NewStore(db),
		leaderboard: leaderboard,
		mailer:      mailer,
		log:         log,
		now:         time.Now,
	}
}

// progressPercent is round(100 * completed / published), or 0 for a track
// without published lessons.
func progressPercent(completed, published int) int {
	if published <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(completed) / float64(published)))
	return min(pct, 100)
}

// ensureEnrollment returns the user's enrollment in a track, creating it
// when missing. created reports whether this call made it.
func ensureEnrollment(st *repository.Store, userID, trackID int64, now time.Time) (e *models.Enrollment, created bool, err error) {
	e, err = st.Enrollments.GetEnrollment(userID, trackID)
	if err != nil || e != nil {
		return e, false, err
	}

	e, err = st.Enrollments.CreateEnrollment(userID, trackID, now)
	if err != nil {
		return nil, false, err
	}
	if err := st.Tracks.IncrementEnrollmentCount(trackID); err != nil {
		return nil, false, fmt.Errorf("failed to count enrollment: %w", err)
	}
	return e, true, nil
}

// recomputeTrackProgress refreshes the enrollment percentage and, the first
// time it reaches 100, completes the enrollment with a certificate and the
// track-completion achievement.
func recomputeTrackProgress(st *repository.Store, e *models.Enrollment, track *models.Track, timeDelta, streak int, now time.Time) (*TrackProgress, []*models.Achievement, error) {
	completed, err := st.Progress.CountCompletedInTrack(e.UserID, e.TrackID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	published, err := st.Lessons.CountPublishedLessons(e.TrackID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count published lessons: %w", err)
	}

	pct := progressPercent(completed, published)
	if err := st.Enrollments.UpdateProgress(e.ID, pct, timeDelta, streak, now); err != nil {
		return nil, nil, fmt.Errorf("failed to update enrollment: %w", err)
	}
	e.Progress = pct
	e.TotalTimeSpent += timeDelta
	e.StreakCount = streak
	e.LastStudiedAt = &now

	result := &TrackProgress{Enrollment: e, CompletedLessons: completed, PublishedLessons: published}
	if pct < 100 || e.CompletedAt != nil {
		return result, nil, nil
	}

	certificateID := uuid.NewString()
	done, err := st.Enrollments.MarkCompleted(e.ID, certificateID, now)
	if err != nil || !done {
		return result, nil, err
	}
	e.CompletedAt = &now
	e.CertificateIssued = true
	e.CertificateID = certificateID
	result.JustCompleted = true

	_, err = st.Notifications.CreateNotification(e.UserID, models.NotificationTrackCompleted,
		"Track completed: "+track.Title,
		"Your certificate ID is "+certificateID+".",
		now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to notify track completion: %w", err)
	}
	achievement, err := grantAchievement(st, e.UserID, trackAward(track), now)
	if err != nil {
		return nil, nil, err
	}
	if achievement != nil {
		return result, []*models.Achievement{achievement}, nil
	}
	return result, nil, nil
}

func (s *EnrollmentService) visibleTrack(viewer *models.User, slug string) (*models.Track, error) {
	track, err := s.store.Tracks.GetTrackBySlug(slug)
	if err != nil {
		return nil, err
	}
	if track == nil || !visible(track.IsPublished, viewer) {
		return nil, fmt.Errorf("%w: track %q", ErrNotFound, slug)
	}
	return track, nil
}

// Enroll joins a user to a track. Enrolling twice returns the existing
// enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, user *models.User, trackSlug string) (*models.Enrollment, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	track, err := s.visibleTrack(user, trackSlug)
	if err != nil {
		return nil, err
	}

	var enrollment *models.Enrollment
	var created bool
	err = s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		now := s.now()
		var err error
		if enrollment, created, err = ensureEnrollment(st, user.ID, track.ID, now); err != nil {
			return err
		}
		if created {
			_, err = grantAchievement(st, user.ID, firstEnrollmentAward(), now)
		}
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return s.store.Enrollments.GetEnrollment(user.ID, track.ID)
		}
		return nil, err
	}

	if created {
		s.log.Info("User enrolled", "user_id", user.ID, "track_id", track.ID)
		invalidateScores(ctx, s.leaderboard)
	}
	return enrollment, nil
}

// GetTrackProgress returns a user's enrollment and per-lesson progress in a
// track. Enrollment is nil when the user has not joined.
func (s *EnrollmentService) GetTrackProgress(user *models.User, trackSlug string) (*TrackProgressView, error) {
	track, err := s.visibleTrack(user, trackSlug)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.store.Enrollments.GetEnrollment(user.ID, track.ID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.store.Progress.ListTrackProgress(user.ID, track.ID)
	if err != nil {
		return nil, err
	}
	if lessons == nil {
		lessons = []*models.Progress{}
	}
	return &TrackProgressView{Track: track, Enrollment: enrollment, Lessons: lessons}, nil
}

// ListEnrollments returns a user's enrollments with their tracks
func (s *EnrollmentService) ListEnrollments(userID int64) ([]*models.EnrollmentWithTrack, error) {
	enrollments, err := s.store.Enrollments.ListUserEnrollments(userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.EnrollmentWithTrack, 0, len(enrollments))
	for _, e := range enrollments {
		track, err := s.store.Tracks.GetTrackByID(e.TrackID)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.EnrollmentWithTrack{Enrollment: *e, Track: track})
	}
	return out, nil
}

// RecomputeTrackProgress recalculates a user's percentage in a track from
// their completed lessons.
func (s *EnrollmentService) RecomputeTrackProgress(ctx context.Context, userID, trackID int64) (*TrackProgress, error) {
	var result *TrackProgress
	var track *models.Track
	err := s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		e, err := st.Enrollments.GetEnrollment(userID, trackID)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("%w: enrollment for user %d in track %d", ErrNotFound, userID, trackID)
		}
		if track, err = st.Tracks.GetTrackByID(trackID); err != nil {
			return err
		}
		if track == nil {
			return fmt.Errorf("%w: track %d", ErrNotFound, trackID)
		}
		result, _, err = recomputeTrackProgress(st, e, track, 0, e.StreakCount, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateScores(ctx, s.leaderboard)
	if result.JustCompleted {
		s.sendCertificate(ctx, userID, track, result.Enrollment.CertificateID)
	}
	return result, nil
}

// sendCertificate emails the certificate after the completing transaction
// has committed. Failures are logged, not returned.
func (s *EnrollmentService) sendCertificate(ctx context.Context, userID int64, track *models.Track, certificateID string) {
	if s.mailer == nil {
		return
	}
	user, err := s.store.Users.GetUserByID(userID)
	if err != nil || user == nil {
		s.log.Warn("Certificate email skipped: user lookup failed", "user_id", userID, "error", err)
		return
	}
	if err := s.mailer.SendCertificateEmail(ctx, user.Email, user.DisplayName, track.Title, certificateID); err != nil {
		s.log.Error("Failed to send certificate email", "user_id", userID, "track_id", track.ID, "error", err)
	}
}
