package repository

import (
	"database/sql"
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// ChangelogRepository handles changelog entries
type ChangelogRepository struct {
	db database.DBTX
}

// NewChangelogRepository creates a new changelog repository
func NewChangelogRepository(db database.DBTX) *ChangelogRepository {
	return &ChangelogRepository{db: db}
}

const changelogColumns = `
	id, title, body, entry_type, status, severity, is_resolved, version,
	author_id, published_at, resolved_at, created_at, updated_at`

func scanChangelog(row rowScanner) (*models.ChangelogEntry, error) {
	e := &models.ChangelogEntry{}
	var authorID sql.NullInt64
	var published, resolved sql.NullTime
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Body,
		&e.Type,
		&e.Status,
		&e.Severity,
		&e.IsResolved,
		&e.Version,
		&authorID,
		&published,
		&resolved,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if authorID.Valid {
		e.AuthorID = &authorID.Int64
	}
	if published.Valid {
		e.PublishedAt = &published.Time
	}
	if resolved.Valid {
		e.ResolvedAt = &resolved.Time
	}
	return e, nil
}

// CreateEntry inserts a changelog entry
func (r *ChangelogRepository) CreateEntry(e *models.ChangelogEntry) (*models.ChangelogEntry, error) {
	query := `
		INSERT INTO changelog_entries (title, body, entry_type, status, severity, is_resolved,
			version, author_id, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		e.Title, e.Body, e.Type, e.Status, e.Severity, e.IsResolved,
		e.Version, nullableID(e.AuthorID), nullableTime(e.PublishedAt), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create changelog entry: %w", err)
	}
	e.ID = id
	return e, nil
}

// UpdateEntry updates the editable fields of an entry
func (r *ChangelogRepository) UpdateEntry(e *models.ChangelogEntry) error {
	query := `
		UPDATE changelog_entries
		SET title = ?, body = ?, entry_type = ?, severity = ?, version = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, e.Title, e.Body, e.Type, e.Severity, e.Version, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update changelog entry: %w", err)
	}
	return nil
}

// GetEntry retrieves an entry by ID
func (r *ChangelogRepository) GetEntry(id int64) (*models.ChangelogEntry, error) {
	query := "SELECT " + changelogColumns + " FROM changelog_entries WHERE id = ?"
	e, err := scanChangelog(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get changelog entry: %w", err)
	}
	return e, nil
}

func (r *ChangelogRepository) list(query string, args ...interface{}) ([]*models.ChangelogEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list changelog entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.ChangelogEntry{}
	for rows.Next() {
		e, err := scanChangelog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListEntries returns every entry for the admin view, newest first
func (r *ChangelogRepository) ListEntries() ([]*models.ChangelogEntry, error) {
	return r.list("SELECT " + changelogColumns + " FROM changelog_entries ORDER BY created_at DESC, id DESC")
}

// ListPublished returns published entries, most recently published first
func (r *ChangelogRepository) ListPublished(limit int) ([]*models.ChangelogEntry, error) {
	query := "SELECT " + changelogColumns + ` FROM changelog_entries
		WHERE status = ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?`
	return r.list(query, models.ChangelogPublished, limit)
}

// ListActiveIncidents returns published, unresolved issue and maintenance entries
func (r *ChangelogRepository) ListActiveIncidents() ([]*models.ChangelogEntry, error) {
	query := "SELECT " + changelogColumns + ` FROM changelog_entries
		WHERE status = ? AND is_resolved = ? AND entry_type IN (?, ?)
		ORDER BY published_at DESC, id DESC`
	return r.list(query, models.ChangelogPublished, false, models.ChangelogIssue, models.ChangelogMaintenance)
}

// Publish marks an entry published. published_at keeps its first value.
func (r *ChangelogRepository) Publish(id int64, now time.Time) error {
	query := `
		UPDATE changelog_entries
		SET status = ?, published_at = COALESCE(published_at, ?), updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, models.ChangelogPublished, now, now, id)
	return err
}

// Archive hides an entry from the public feeds
func (r *ChangelogRepository) Archive(id int64, now time.Time) error {
	_, err := r.db.Exec("UPDATE changelog_entries SET status = ?, updated_at = ? WHERE id = ?", models.ChangelogArchived, now, id)
	return err
}

// Resolve closes an issue or maintenance entry
func (r *ChangelogRepository) Resolve(id int64, now time.Time) error {
	query := `
		UPDATE changelog_entries
		SET is_resolved = ?, resolved_at = COALESCE(resolved_at, ?), updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, true, now, now, id)
	return err
}
