package repository

import (
	"database/sql"
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// EnrollmentRepository handles database operations for enrollments
type EnrollmentRepository struct {
	db database.DBTX
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db database.DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `
	id, user_id, track_id, progress, total_time_spent, streak_count,
	last_studied_at, completed_at, certificate_issued, certificate_id, enrolled_at`

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	var lastStudied, completed sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.TrackID,
		&e.Progress,
		&e.TotalTimeSpent,
		&e.StreakCount,
		&lastStudied,
		&completed,
		&e.CertificateIssued,
		&e.CertificateID,
		&e.EnrolledAt,
	)
	if err != nil {
		return nil, err
	}
	if lastStudied.Valid {
		e.LastStudiedAt = &lastStudied.Time
	}
	if completed.Valid {
		e.CompletedAt = &completed.Time
	}
	return e, nil
}

// CreateEnrollment inserts a new enrollment with zero progress
func (r *EnrollmentRepository) CreateEnrollment(userID, trackID int64, now time.Time) (*models.Enrollment, error) {
	query := `
		INSERT INTO enrollments (user_id, track_id, progress, total_time_spent, streak_count,
			certificate_issued, certificate_id, enrolled_at)
		VALUES (?, ?, 0, 0, 0, ?, '', ?)
	`
	id, err := r.db.ExecReturningID(query, userID, trackID, false, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	return &models.Enrollment{
		ID:         id,
		UserID:     userID,
		TrackID:    trackID,
		EnrolledAt: now,
	}, nil
}

// GetEnrollment retrieves the enrollment of a user in a track
func (r *EnrollmentRepository) GetEnrollment(userID, trackID int64) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE user_id = ? AND track_id = ?"
	e, err := scanEnrollment(r.db.QueryRow(query, userID, trackID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

// ListUserEnrollments returns a user's enrollments, most recently studied first
func (r *EnrollmentRepository) ListUserEnrollments(userID int64) ([]*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + ` FROM enrollments
		WHERE user_id = ?
		ORDER BY enrolled_at DESC, id DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// UpdateProgress stores a recomputed percentage and accumulates study time
func (r *EnrollmentRepository) UpdateProgress(id int64, progress, timeDelta, streak int, now time.Time) error {
	query := `
		UPDATE enrollments
		SET progress = ?, total_time_spent = total_time_spent + ?, streak_count = ?, last_studied_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, progress, timeDelta, streak, now, id)
	return err
}

// MarkCompleted sets completion and the certificate once. It reports
// whether this call performed the transition.
func (r *EnrollmentRepository) MarkCompleted(id int64, certificateID string, now time.Time) (bool, error) {
	query := `
		UPDATE enrollments
		SET completed_at = ?, certificate_issued = ?, certificate_id = ?
		WHERE id = ? AND completed_at IS NULL
	`
	result, err := r.db.Exec(query, now, true, certificateID, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete enrollment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountUserEnrollments returns how many tracks a user joined and finished
func (r *EnrollmentRepository) CountUserEnrollments(userID int64) (enrolled, completed int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN completed_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM enrollments
		WHERE user_id = ?
	`
	err = r.db.QueryRow(query, userID).Scan(&enrolled, &completed)
	return enrolled, completed, err
}
