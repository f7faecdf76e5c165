package repository

import (
	"database/sql"
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// ProgressRepository handles per-lesson progress records
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `
	id, user_id, lesson_id, track_id, status, score, time_spent, attempts,
	submitted_code, quiz_answers, completed_at, created_at, updated_at`

func scanProgress(row rowScanner) (*models.Progress, error) {
	p := &models.Progress{}
	var score sql.NullInt64
	var completed sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.LessonID,
		&p.TrackID,
		&p.Status,
		&score,
		&p.TimeSpent,
		&p.Attempts,
		&p.SubmittedCode,
		&p.QuizAnswers,
		&completed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		s := int(score.Int64)
		p.Score = &s
	}
	if completed.Valid {
		p.CompletedAt = &completed.Time
	}
	return p, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// GetProgress retrieves the record for a user and lesson
func (r *ProgressRepository) GetProgress(userID, lessonID int64) (*models.Progress, error) {
	query := "SELECT " + progressColumns + " FROM progress WHERE user_id = ? AND lesson_id = ?"
	p, err := scanProgress(r.db.QueryRow(query, userID, lessonID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

// CreateProgress inserts the first record for a user and lesson
func (r *ProgressRepository) CreateProgress(p *models.Progress) (*models.Progress, error) {
	query := `
		INSERT INTO progress (user_id, lesson_id, track_id, status, score, time_spent, attempts,
			submitted_code, quiz_answers, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		p.UserID, p.LessonID, p.TrackID, p.Status, nullableInt(p.Score), p.TimeSpent, p.Attempts,
		p.SubmittedCode, p.QuizAnswers, nullableTime(p.CompletedAt), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	p.ID = id
	return p, nil
}

// RecordAttempt applies one more attempt to an existing record: time spent
// accumulates, attempts increments, and completed_at keeps its first value.
// A nil score leaves the stored score unchanged.
func (r *ProgressRepository) RecordAttempt(id int64, status models.ProgressStatus, score *int, timeSpent int, completedAt *time.Time, now time.Time) error {
	query := `
		UPDATE progress
		SET status = ?,
			score = COALESCE(?, score),
			time_spent = time_spent + ?,
			attempts = attempts + 1,
			completed_at = COALESCE(completed_at, ?),
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, status, nullableInt(score), timeSpent, nullableTime(completedAt), now, id)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// SaveSubmission stores the latest submitted code or quiz answers
func (r *ProgressRepository) SaveSubmission(id int64, code, answers string) error {
	query := `UPDATE progress SET submitted_code = ?, quiz_answers = ? WHERE id = ?`
	_, err := r.db.Exec(query, code, answers, id)
	return err
}

// CountCompletedInTrack counts a user's completed lessons among the
// published lessons of a track.
func (r *ProgressRepository) CountCompletedInTrack(userID, trackID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM progress p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE p.user_id = ? AND p.track_id = ? AND p.status = ? AND l.is_published = ?
	`
	var count int
	err := r.db.QueryRow(query, userID, trackID, models.StatusCompleted, true).Scan(&count)
	return count, err
}

// CountCompleted counts every lesson a user has completed
func (r *ProgressRepository) CountCompleted(userID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM progress WHERE user_id = ? AND status = ?"
	err := r.db.QueryRow(query, userID, models.StatusCompleted).Scan(&count)
	return count, err
}

// SumTimeSpent returns a user's total recorded minutes
func (r *ProgressRepository) SumTimeSpent(userID int64) (int, error) {
	var total int
	err := r.db.QueryRow("SELECT COALESCE(SUM(time_spent), 0) FROM progress WHERE user_id = ?", userID).Scan(&total)
	return total, err
}

// ListTrackProgress returns a user's records within one track
func (r *ProgressRepository) ListTrackProgress(userID, trackID int64) ([]*models.Progress, error) {
	query := "SELECT " + progressColumns + " FROM progress WHERE user_id = ? AND track_id = ? ORDER BY lesson_id"
	rows, err := r.db.Query(query, userID, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*models.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}
