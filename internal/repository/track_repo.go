package repository

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// TrackRepository handles database operations for tracks and their tags
type TrackRepository struct {
	db database.DBTX
}

// NewTrackRepository creates a new track repository
func NewTrackRepository(db database.DBTX) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `
	t.id, t.slug, t.title, t.description, t.difficulty, t.estimated_hours,
	t.category, t.thumbnail_url, t.total_lessons, t.enrollment_count,
	t.average_rating, t.is_published, t.is_premium, t.sort_order,
	t.created_at, t.updated_at`

func scanTrack(row rowScanner) (*models.Track, error) {
	track := &models.Track{}
	err := row.Scan(
		&track.ID,
		&track.Slug,
		&track.Title,
		&track.Description,
		&track.Difficulty,
		&track.EstimatedHours,
		&track.Category,
		&track.ThumbnailURL,
		&track.TotalLessons,
		&track.EnrollmentCount,
		&track.AverageRating,
		&track.IsPublished,
		&track.IsPremium,
		&track.Order,
		&track.CreatedAt,
		&track.UpdatedAt,
	)
	return track, err
}

// CreateTrack inserts a track and its tags
func (r *TrackRepository) CreateTrack(t *models.Track) (*models.Track, error) {
	query := `
		INSERT INTO tracks (slug, title, description, difficulty, estimated_hours, category,
			thumbnail_url, total_lessons, enrollment_count, average_rating,
			is_published, is_premium, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		t.Slug, t.Title, t.Description, t.Difficulty, t.EstimatedHours, t.Category,
		t.ThumbnailURL, t.AverageRating, t.IsPublished, t.IsPremium, t.Order,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create track: %w", err)
	}
	t.ID = id

	if err := r.setTags(id, t.Tags); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTrack updates the editable fields of a track and replaces its tags.
// The denormalized counters are left alone.
func (r *TrackRepository) UpdateTrack(t *models.Track) error {
	query := `
		UPDATE tracks
		SET slug = ?, title = ?, description = ?, difficulty = ?, estimated_hours = ?,
			category = ?, thumbnail_url = ?, average_rating = ?, is_published = ?,
			is_premium = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		t.Slug, t.Title, t.Description, t.Difficulty, t.EstimatedHours,
		t.Category, t.ThumbnailURL, t.AverageRating, t.IsPublished,
		t.IsPremium, t.Order, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return r.setTags(t.ID, t.Tags)
}

func (r *TrackRepository) setTags(trackID int64, tags []string) error {
	if _, err := r.db.Exec("DELETE FROM track_tags WHERE track_id = ?", trackID); err != nil {
		return fmt.Errorf("failed to clear track tags: %w", err)
	}
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := r.db.Exec("INSERT INTO track_tags (track_id, tag) VALUES (?, ?)", trackID, tag); err != nil {
			return fmt.Errorf("failed to add track tag: %w", err)
		}
	}
	return nil
}

func (r *TrackRepository) loadTags(tracks ...*models.Track) error {
	for _, t := range tracks {
		rows, err := r.db.Query("SELECT tag FROM track_tags WHERE track_id = ? ORDER BY tag", t.ID)
		if err != nil {
			return fmt.Errorf("failed to load track tags: %w", err)
		}
		t.Tags = []string{}
		for rows.Next() {
			var tag string
			if err := rows.Scan(&tag); err != nil {
				rows.Close()
				return err
			}
			t.Tags = append(t.Tags, tag)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TrackRepository) getOne(where string, arg interface{}) (*models.Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks t WHERE " + where
	track, err := scanTrack(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	if err := r.loadTags(track); err != nil {
		return nil, err
	}
	return track, nil
}

// GetTrackByID retrieves a track by ID
func (r *TrackRepository) GetTrackByID(id int64) (*models.Track, error) {
	return r.getOne("t.id = ?", id)
}

// GetTrackBySlug retrieves a track by slug
func (r *TrackRepository) GetTrackBySlug(slug string) (*models.Track, error) {
	return r.getOne("t.slug = ?", slug)
}

// ListTracks returns tracks matching filter ordered by sort_order
func (r *TrackRepository) ListTracks(filter models.TrackFilter) ([]*models.Track, error) {
	var where []string
	var args []interface{}
	if !filter.IncludeUnpublished {
		where = append(where, "t.is_published = ?")
		args = append(args, true)
	}
	if filter.Category != "" {
		where = append(where, "t.category = ?")
		args = append(args, filter.Category)
	}
	if filter.Difficulty != "" {
		where = append(where, "t.difficulty = ?")
		args = append(args, filter.Difficulty)
	}
	if filter.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM track_tags tt WHERE tt.track_id = t.id AND tt.tag = ?)")
		args = append(args, strings.ToLower(filter.Tag))
	}

	query := "SELECT " + trackColumns + " FROM tracks t"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.sort_order ASC, t.id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tracks = append(tracks, track)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := r.loadTags(tracks...); err != nil {
		return nil, err
	}
	return tracks, nil
}

// ListCategories returns the distinct categories of published tracks
func (r *TrackRepository) ListCategories() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT category FROM tracks WHERE is_published = ? AND category <> ''", true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, rows.Err()
}

// IncrementTotalLessons adjusts the denormalized lesson count
func (r *TrackRepository) IncrementTotalLessons(trackID int64, delta int, now time.Time) error {
	query := `UPDATE tracks SET total_lessons = total_lessons + ?, updated_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, delta, now, trackID)
	return err
}

// IncrementEnrollmentCount adds one to the denormalized enrollment count
func (r *TrackRepository) IncrementEnrollmentCount(trackID int64) error {
	_, err := r.db.Exec(`UPDATE tracks SET enrollment_count = enrollment_count + 1 WHERE id = ?`, trackID)
	return err
}
