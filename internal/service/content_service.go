package service

import (
	"fmt"
	"strings"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
	"learnhub/internal/validation"
)

// LessonView is a lesson as shown to one viewer
type LessonView struct {
	Lesson     *models.Lesson           `json:"lesson"`
	Track      *models.Track            `json:"track"`
	Navigation *models.LessonNavigation `json:"navigation"`
	Locked     bool                     `json:"locked"`
}

// ContentService handles tracks and lessons
type ContentService struct {
	db    *database.DB
	store *repository.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewContentService creates a new content service
func NewContentService(db *database.DB, log *logger.Logger) *ContentService {
	return &ContentService{
		db:    db,
		store: repository.NewStore(db),
		log:   log,
		now:   time.Now,
	}
}

// ListTracks returns tracks in display order. Only admins see unpublished
// tracks.
func (s *ContentService) ListTracks(viewer *models.User, filter models.TrackFilter) ([]*models.Track, error) {
	filter.IncludeUnpublished = filter.IncludeUnpublished && viewer != nil && viewer.IsAdmin()
	tracks, err := s.store.Tracks.ListTracks(filter)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []*models.Track{}
	}
	return tracks, nil
}

// ListCategories returns the categories of published tracks
func (s *ContentService) ListCategories() ([]string, error) {
	return s.store.Tracks.ListCategories()
}

func visible(published bool, viewer *models.User) bool {
	return published || (viewer != nil && viewer.IsAdmin())
}

// GetTrack returns a track by slug
func (s *ContentService) GetTrack(viewer *models.User, slug string) (*models.Track, error) {
	track, err := s.store.Tracks.GetTrackBySlug(slug)
	if err != nil {
		return nil, err
	}
	if track == nil || !visible(track.IsPublished, viewer) {
		return nil, fmt.Errorf("%w: track %q", ErrNotFound, slug)
	}
	return track, nil
}

// ListLessons returns the lessons of a track in navigation order, with quiz
// answers and hidden tests removed for non-admins.
func (s *ContentService) ListLessons(viewer *models.User, trackSlug string) ([]*models.Lesson, error) {
	track, err := s.GetTrack(viewer, trackSlug)
	if err != nil {
		return nil, err
	}
	admin := viewer != nil && viewer.IsAdmin()
	lessons, err := s.store.Lessons.ListTrackLessons(track.ID, admin)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if !admin {
			l = l.PublicCopy()
		}
		out = append(out, l)
	}
	return out, nil
}

// GetLesson returns a lesson with its track and neighbours. Premium content
// is locked for viewers without a paid subscription.
func (s *ContentService) GetLesson(viewer *models.User, slug string) (*LessonView, error) {
	lesson, err := s.store.Lessons.GetLessonBySlug(slug)
	if err != nil {
		return nil, err
	}
	if lesson == nil || !visible(lesson.IsPublished, viewer) {
		return nil, fmt.Errorf("%w: lesson %q", ErrNotFound, slug)
	}
	track, err := s.store.Tracks.GetTrackByID(lesson.TrackID)
	if err != nil {
		return nil, err
	}
	if track == nil || !visible(track.IsPublished, viewer) {
		return nil, fmt.Errorf("%w: lesson %q", ErrNotFound, slug)
	}

	nav, err := s.store.Lessons.GetNeighbours(lesson.TrackID, lesson.Order, lesson.ID)
	if err != nil {
		return nil, err
	}

	view := &LessonView{Track: track, Navigation: nav}
	if viewer != nil && viewer.IsAdmin() {
		view.Lesson = lesson
		return view, nil
	}

	view.Lesson = lesson.PublicCopy()
	if requiresPremium(track, lesson) && (viewer == nil || !viewer.HasPremium()) {
		view.Locked = true
		view.Lesson.Content = ""
		view.Lesson.StarterCode = ""
		view.Lesson.VideoURL = ""
		view.Lesson.TestCases = nil
		view.Lesson.Questions = nil
	}
	return view, nil
}

func requiresPremium(track *models.Track, lesson *models.Lesson) bool {
	return lesson.IsPremium || (track != nil && track.IsPremium)
}

func normalizeTrack(t *models.Track) error {
	t.Slug = strings.TrimSpace(t.Slug)
	t.Title = strings.TrimSpace(t.Title)
	t.Category = strings.TrimSpace(t.Category)
	if t.Difficulty == "" {
		t.Difficulty = models.DifficultyBeginner
	}

	if err := validation.ValidateSlug(t.Slug); err != nil {
		return err
	}
	if err := validation.ValidateRequired("title", t.Title, 200); err != nil {
		return err
	}
	if !t.Difficulty.Valid() {
		return validation.ValidationError{Field: "difficulty", Message: "unknown difficulty"}
	}
	if err := validation.ValidateRange("estimatedHours", t.EstimatedHours, 0, 10000); err != nil {
		return err
	}
	return validation.ValidateOptionalURL("thumbnailUrl", t.ThumbnailURL)
}

// CreateTrack adds a track. Only admins may do this.
func (s *ContentService) CreateTrack(actor *models.User, t *models.Track) (*models.Track, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := normalizeTrack(t); err != nil {
		return nil, err
	}

	existing, err := s.store.Tracks.GetTrackBySlug(t.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlugTaken
	}

	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	err = s.db.WithTx(func(tx *database.Tx) error {
		var err error
		t, err = repository.NewStore(tx).Tracks.CreateTrack(t)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	s.log.Info("Created track", "track_id", t.ID, "slug", t.Slug, "by", actor.ID)
	return s.store.Tracks.GetTrackByID(t.ID)
}

// UpdateTrack replaces the editable fields of a track. Only admins may do this.
func (s *ContentService) UpdateTrack(actor *models.User, trackID int64, t *models.Track) (*models.Track, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	current, err := s.store.Tracks.GetTrackByID(trackID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: track %d", ErrNotFound, trackID)
	}
	if err := normalizeTrack(t); err != nil {
		return nil, err
	}
	if t.Slug != current.Slug {
		other, err := s.store.Tracks.GetTrackBySlug(t.Slug)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, ErrSlugTaken
		}
	}

	t.ID = trackID
	t.UpdatedAt = s.now()
	err = s.db.WithTx(func(tx *database.Tx) error {
		return repository.NewStore(tx).Tracks.UpdateTrack(t)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return s.store.Tracks.GetTrackByID(trackID)
}

func normalizeLesson(l *models.Lesson) error {
	l.Slug = strings.TrimSpace(l.Slug)
	l.Title = strings.TrimSpace(l.Title)
	if l.Type == "" {
		l.Type = models.LessonReading
	}
	if l.Difficulty == "" {
		l.Difficulty = models.DifficultyBeginner
	}

	if err := validation.ValidateSlug(l.Slug); err != nil {
		return err
	}
	if err := validation.ValidateRequired("title", l.Title, 200); err != nil {
		return err
	}
	if !l.Type.Valid() {
		return validation.ValidationError{Field: "type", Message: "unknown lesson type"}
	}
	if !l.Difficulty.Valid() {
		return validation.ValidationError{Field: "difficulty", Message: "unknown difficulty"}
	}
	if err := validation.ValidateRange("experiencePoints", l.ExperiencePoints, 0, 10000); err != nil {
		return err
	}
	if err := validation.ValidateRange("estimatedMinutes", l.EstimatedMinutes, 0, 10000); err != nil {
		return err
	}
	if err := validation.ValidateOptionalURL("videoUrl", l.VideoURL); err != nil {
		return err
	}
	for i, q := range l.Questions {
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return validation.ValidationError{
				Field:   fmt.Sprintf("questions[%d].correctAnswer", i),
				Message: "must index one of the options",
			}
		}
		if q.Points <= 0 {
			l.Questions[i].Points = 1
		}
	}
	return nil
}

// CreateLesson adds a lesson to a track and bumps the track's lesson count
// in the same transaction. Only admins may do this.
func (s *ContentService) CreateLesson(actor *models.User, l *models.Lesson) (*models.Lesson, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := normalizeLesson(l); err != nil {
		return nil, err
	}

	track, err := s.store.Tracks.GetTrackByID(l.TrackID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, fmt.Errorf("%w: track %d", ErrNotFound, l.TrackID)
	}
	existing, err := s.store.Lessons.GetLessonBySlug(l.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlugTaken
	}

	now := s.now()
	l.CreatedAt, l.UpdatedAt = now, now
	err = s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		var err error
		if l, err = st.Lessons.CreateLesson(l); err != nil {
			return err
		}
		return st.Tracks.IncrementTotalLessons(l.TrackID, 1, now)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	s.log.Info("Created lesson", "lesson_id", l.ID, "slug", l.Slug, "track_id", l.TrackID, "by", actor.ID)
	return l, nil
}

// UpdateLesson replaces the editable fields of a lesson. A lesson never
// moves between tracks. Only admins may do this.
func (s *ContentService) UpdateLesson(actor *models.User, lessonID int64, l *models.Lesson) (*models.Lesson, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	current, err := s.store.Lessons.GetLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
	}
	if err := normalizeLesson(l); err != nil {
		return nil, err
	}
	if l.Slug != current.Slug {
		other, err := s.store.Lessons.GetLessonBySlug(l.Slug)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, ErrSlugTaken
		}
	}

	l.ID = lessonID
	l.TrackID = current.TrackID
	l.CreatedAt = current.CreatedAt
	l.UpdatedAt = s.now()
	if err := s.store.Lessons.UpdateLesson(l); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return l, nil
}
