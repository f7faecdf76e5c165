package service

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData is the portable content export: the catalogue and the
// changelog. Learner data is not included.
type BackupData struct {
	Version      string                   `json:"version"`
	ExportedAt   time.Time                `json:"exported_at"`
	DatabaseType string                   `json:"database_type"`
	Tracks       []TrackBackup            `json:"tracks"`
	Changelog    []*models.ChangelogEntry `json:"changelog"`
}

// TrackBackup is a track with its lessons
type TrackBackup struct {
	*models.Track
	Lessons []*models.Lesson `json:"lessons"`
}

// ImportSummary counts what an import changed
type ImportSummary struct {
	TracksCreated    int `json:"tracksCreated"`
	TracksUpdated    int `json:"tracksUpdated"`
	LessonsCreated   int `json:"lessonsCreated"`
	LessonsUpdated   int `json:"lessonsUpdated"`
	ChangelogCreated int `json:"changelogCreated"`
	ChangelogSkipped int `json:"changelogSkipped"`
}

// BackupService handles content export and restore
type BackupService struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log *logger.Logger) *BackupService {
	return &BackupService{db: db, log: log, now: time.Now}
}

// Export writes the content backup as indented JSON
func (s *BackupService) Export(w io.Writer) (*BackupData, error) {
	st := repository.NewStore(s.db)
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
	}

	tracks, err := st.Tracks.ListTracks(models.TrackFilter{IncludeUnpublished: true})
	if err != nil {
		return nil, fmt.Errorf("failed to export tracks: %w", err)
	}
	for _, t := range tracks {
		lessons, err := st.Lessons.ListTrackLessons(t.ID, true)
		if err != nil {
			return nil, fmt.Errorf("failed to export lessons of %s: %w", t.Slug, err)
		}
		if lessons == nil {
			lessons = []*models.Lesson{}
		}
		backup.Tracks = append(backup.Tracks, TrackBackup{Track: t, Lessons: lessons})
	}

	if backup.Changelog, err = st.Changelog.ListEntries(); err != nil {
		return nil, fmt.Errorf("failed to export changelog: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.Info("Content exported", "tracks", len(backup.Tracks), "changelog", len(backup.Changelog))
	return backup, nil
}

// ExportFile writes the content backup to outputPath
func (s *BackupService) ExportFile(outputPath string) (*BackupData, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.Export(file)
	if err != nil {
		return nil, err
	}
	return backup, file.Sync()
}

// ImportFile restores content from a backup file
func (s *BackupService) ImportFile(inputPath string) (*ImportSummary, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.Import(file)
}

// Import restores content from a backup reader. Tracks and lessons are
// matched by slug and updated in place; changelog entries already present
// (same title and creation time) are skipped. Everything happens in one
// transaction.
func (s *BackupService) Import(r io.Reader) (*ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("%w: failed to decode backup: %v", ErrInvalidInput, err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %q", ErrInvalidInput, backup.Version)
	}
	s.log.Info("Importing content", "version", backup.Version, "exported_at", backup.ExportedAt)

	summary := &ImportSummary{}
	err := s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		now := s.now()
		for _, tb := range backup.Tracks {
			if tb.Track == nil {
				continue
			}
			trackID, err := importTrack(st, tb.Track, now, summary)
			if err != nil {
				return fmt.Errorf("track %s: %w", tb.Track.Slug, err)
			}
			for _, l := range tb.Lessons {
				if err := importLesson(st, trackID, l, now, summary); err != nil {
					return fmt.Errorf("lesson %s: %w", l.Slug, err)
				}
			}
		}
		return importChangelog(st, backup.Changelog, summary)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import backup: %w", err)
	}

	s.log.Info("Content import completed",
		"tracks_created", summary.TracksCreated, "tracks_updated", summary.TracksUpdated,
		"lessons_created", summary.LessonsCreated, "lessons_updated", summary.LessonsUpdated,
		"changelog_created", summary.ChangelogCreated)
	return summary, nil
}

func importTrack(st *repository.Store, t *models.Track, now time.Time, summary *ImportSummary) (int64, error) {
	existing, err := st.Tracks.GetTrackBySlug(t.Slug)
	if err != nil {
		return 0, err
	}
	t.UpdatedAt = now
	if existing != nil {
		t.ID = existing.ID
		summary.TracksUpdated++
		return t.ID, st.Tracks.UpdateTrack(t)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	created, err := st.Tracks.CreateTrack(t)
	if err != nil {
		return 0, err
	}
	summary.TracksCreated++
	return created.ID, nil
}

func importLesson(st *repository.Store, trackID int64, l *models.Lesson, now time.Time, summary *ImportSummary) error {
	existing, err := st.Lessons.GetLessonBySlug(l.Slug)
	if err != nil {
		return err
	}
	l.UpdatedAt = now
	if existing != nil {
		if existing.TrackID != trackID {
			return fmt.Errorf("slug already belongs to track %d", existing.TrackID)
		}
		l.ID, l.TrackID = existing.ID, existing.TrackID
		summary.LessonsUpdated++
		return st.Lessons.UpdateLesson(l)
	}
	l.TrackID = trackID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if _, err := st.Lessons.CreateLesson(l); err != nil {
		return err
	}
	summary.LessonsCreated++
	return st.Tracks.IncrementTotalLessons(trackID, 1, now)
}

func importChangelog(st *repository.Store, entries []*models.ChangelogEntry, summary *ImportSummary) error {
	current, err := st.Changelog.ListEntries()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(current))
	key := func(e *models.ChangelogEntry) string {
		return e.Title + "|" + e.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, e := range current {
		seen[key(e)] = true
	}

	for _, e := range entries {
		if seen[key(e)] {
			summary.ChangelogSkipped++
			continue
		}
		// Authors are users of the source deployment.
		e.AuthorID = nil
		e.BodyHTML = ""
		created, err := st.Changelog.CreateEntry(e)
		if err != nil {
			return err
		}
		if e.IsResolved && e.ResolvedAt != nil {
			if err := st.Changelog.Resolve(created.ID, *e.ResolvedAt); err != nil {
				return err
			}
		}
		seen[key(e)] = true
		summary.ChangelogCreated++
	}
	return nil
}
