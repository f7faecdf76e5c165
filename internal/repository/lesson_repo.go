package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// LessonRepository handles database operations for lessons
type LessonRepository struct {
	db database.DBTX
}

// NewLessonRepository creates a new lesson repository
func NewLessonRepository(db database.DBTX) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `
	id, slug, track_id, title, description, content, lesson_type, difficulty,
	sort_order, estimated_minutes, experience_points, is_premium, is_published,
	video_url, starter_code, test_cases, questions, created_at, updated_at`

func scanLesson(row rowScanner) (*models.Lesson, error) {
	lesson := &models.Lesson{}
	var testCases, questions string
	err := row.Scan(
		&lesson.ID,
		&lesson.Slug,
		&lesson.TrackID,
		&lesson.Title,
		&lesson.Description,
		&lesson.Content,
		&lesson.Type,
		&lesson.Difficulty,
		&lesson.Order,
		&lesson.EstimatedMinutes,
		&lesson.ExperiencePoints,
		&lesson.IsPremium,
		&lesson.IsPublished,
		&lesson.VideoURL,
		&lesson.StarterCode,
		&testCases,
		&questions,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if testCases != "" {
		if err := json.Unmarshal([]byte(testCases), &lesson.TestCases); err != nil {
			return nil, fmt.Errorf("invalid test cases for lesson %d: %w", lesson.ID, err)
		}
	}
	if questions != "" {
		if err := json.Unmarshal([]byte(questions), &lesson.Questions); err != nil {
			return nil, fmt.Errorf("invalid questions for lesson %d: %w", lesson.ID, err)
		}
	}
	return lesson, nil
}

func encodeList(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

// CreateLesson inserts a lesson
func (r *LessonRepository) CreateLesson(l *models.Lesson) (*models.Lesson, error) {
	testCases, err := encodeList(l.TestCases)
	if err != nil {
		return nil, err
	}
	questions, err := encodeList(l.Questions)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO lessons (slug, track_id, title, description, content, lesson_type, difficulty,
			sort_order, estimated_minutes, experience_points, is_premium, is_published,
			video_url, starter_code, test_cases, questions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		l.Slug, l.TrackID, l.Title, l.Description, l.Content, l.Type, l.Difficulty,
		l.Order, l.EstimatedMinutes, l.ExperiencePoints, l.IsPremium, l.IsPublished,
		l.VideoURL, l.StarterCode, testCases, questions, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}
	l.ID = id
	return l, nil
}

// UpdateLesson updates a lesson. The owning track cannot change.
func (r *LessonRepository) UpdateLesson(l *models.Lesson) error {
	testCases, err := encodeList(l.TestCases)
	if err != nil {
		return err
	}
	questions, err := encodeList(l.Questions)
	if err != nil {
		return err
	}

	query := `
		UPDATE lessons
		SET slug = ?, title = ?, description = ?, content = ?, lesson_type = ?, difficulty = ?,
			sort_order = ?, estimated_minutes = ?, experience_points = ?, is_premium = ?,
			is_published = ?, video_url = ?, starter_code = ?, test_cases = ?, questions = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.Exec(query,
		l.Slug, l.Title, l.Description, l.Content, l.Type, l.Difficulty,
		l.Order, l.EstimatedMinutes, l.ExperiencePoints, l.IsPremium,
		l.IsPublished, l.VideoURL, l.StarterCode, testCases, questions,
		l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	return nil
}

func (r *LessonRepository) getOne(where string, arg interface{}) (*models.Lesson, error) {
	query := "SELECT " + lessonColumns + " FROM lessons WHERE " + where
	lesson, err := scanLesson(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

// GetLessonByID retrieves a lesson by ID
func (r *LessonRepository) GetLessonByID(id int64) (*models.Lesson, error) {
	return r.getOne("id = ?", id)
}

// GetLessonBySlug retrieves a lesson by slug
func (r *LessonRepository) GetLessonBySlug(slug string) (*models.Lesson, error) {
	return r.getOne("slug = ?", slug)
}

func (r *LessonRepository) list(query string, args ...interface{}) ([]*models.Lesson, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*models.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

// ListTrackLessons returns a track's lessons in navigation order
func (r *LessonRepository) ListTrackLessons(trackID int64, includeUnpublished bool) ([]*models.Lesson, error) {
	query := "SELECT " + lessonColumns + " FROM lessons WHERE track_id = ?"
	args := []interface{}{trackID}
	if !includeUnpublished {
		query += " AND is_published = ?"
		args = append(args, true)
	}
	query += " ORDER BY sort_order ASC, id ASC"
	return r.list(query, args...)
}

// ListAllLessons returns every lesson, for backups
func (r *LessonRepository) ListAllLessons() ([]*models.Lesson, error) {
	return r.list("SELECT " + lessonColumns + " FROM lessons ORDER BY track_id ASC, sort_order ASC, id ASC")
}

// CountPublishedLessons returns the number of published lessons in a track
func (r *LessonRepository) CountPublishedLessons(trackID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM lessons WHERE track_id = ? AND is_published = ?"
	err := r.db.QueryRow(query, trackID, true).Scan(&count)
	return count, err
}

// GetNeighbours returns the published lessons immediately before and after
// the given position in a track.
func (r *LessonRepository) GetNeighbours(trackID int64, order int, lessonID int64) (*models.LessonNavigation, error) {
	nav := &models.LessonNavigation{}

	prevQuery := "SELECT " + lessonColumns + ` FROM lessons
		WHERE track_id = ? AND is_published = ? AND (sort_order < ? OR (sort_order = ? AND id < ?))
		ORDER BY sort_order DESC, id DESC LIMIT 1`
	prev, err := scanLesson(r.db.QueryRow(prevQuery, trackID, true, order, order, lessonID))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get previous lesson: %w", err)
	}
	if err == nil {
		nav.Previous = prev
	}

	nextQuery := "SELECT " + lessonColumns + ` FROM lessons
		WHERE track_id = ? AND is_published = ? AND (sort_order > ? OR (sort_order = ? AND id > ?))
		ORDER BY sort_order ASC, id ASC LIMIT 1`
	next, err := scanLesson(r.db.QueryRow(nextQuery, trackID, true, order, order, lessonID))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get next lesson: %w", err)
	}
	if err == nil {
		nav.Next = next
	}

	return nav, nil
}
