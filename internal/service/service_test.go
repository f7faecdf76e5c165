package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
)

var testStart = time.Date(2024, time.May, 6, 9, 30, 0, 0, time.UTC)

type sentMail struct {
	kind, to, subject string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendCertificateEmail(_ context.Context, toEmail, _, trackTitle, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"certificate", toEmail, trackTitle})
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(_ context.Context, toEmail, toName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"welcome", toEmail, toName})
	return nil
}

func (m *fakeMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	db          *database.DB
	st          *repository.Store
	clock       time.Time
	mailer      *fakeMailer
	admin       *models.User
	leaderboard *LeaderboardService
	users       *UserService
	content     *ContentService
	enrollments *EnrollmentService
	progress    *ProgressService
	discussions *DiscussionService
	changelog   *ChangelogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.NewNop()
	env := &testEnv{db: db, st: repository.NewStore(db), clock: testStart, mailer: &fakeMailer{}}
	now := func() time.Time { return env.clock }

	env.leaderboard = NewLeaderboardService(repository.NewSnapshotRepository(db), leaderboard.NewMemoryCache(time.Minute), log)
	env.leaderboard.now = now
	env.users = NewUserService(db, env.leaderboard, time.UTC, log)
	env.users.now = now
	env.content = NewContentService(db, log)
	env.content.now = now
	env.enrollments = NewEnrollmentService(db, env.leaderboard, env.mailer, log)
	env.enrollments.now = now
	env.progress = NewProgressService(db, env.enrollments, env.leaderboard, nil, time.UTC, log)
	env.progress.now = now
	env.discussions = NewDiscussionService(db, log)
	env.discussions.now = now
	env.changelog = NewChangelogService(db, nil, log)
	env.changelog.now = now

	// The first account becomes the admin.
	env.admin = env.newUser(t, "admin")
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.clock = env.clock.Add(d)
}

func (env *testEnv) newUser(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := env.st.Users.CreateUser(&models.User{
		ExternalID:  "test|" + name,
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		CreatedAt:   env.clock,
		UpdatedAt:   env.clock,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return u
}

func (env *testEnv) reload(t *testing.T, u *models.User) *models.User {
	t.Helper()
	fresh, err := env.users.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	return fresh
}

// newTrack creates a published track with one published reading lesson per
// xp value.
func (env *testEnv) newTrack(t *testing.T, slug string, xp ...int) (*models.Track, []*models.Lesson) {
	t.Helper()
	track, err := env.content.CreateTrack(env.admin, &models.Track{
		Slug:        slug,
		Title:       "Track " + slug,
		Category:    "backend",
		IsPublished: true,
	})
	if err != nil {
		t.Fatalf("CreateTrack() error = %v", err)
	}
	var lessons []*models.Lesson
	for i, points := range xp {
		l, err := env.content.CreateLesson(env.admin, &models.Lesson{
			Slug:             slug + "-" + string(rune('a'+i)),
			TrackID:          track.ID,
			Title:            "Lesson " + string(rune('A'+i)),
			Order:            i + 1,
			ExperiencePoints: points,
			IsPublished:      true,
		})
		if err != nil {
			t.Fatalf("CreateLesson() error = %v", err)
		}
		lessons = append(lessons, l)
	}
	return track, lessons
}

func (env *testEnv) complete(t *testing.T, u *models.User, l *models.Lesson) *ProgressResult {
	t.Helper()
	res, err := env.progress.RecordProgress(context.Background(), u.ID, l.ID, models.StatusCompleted, 60, nil)
	if err != nil {
		t.Fatalf("RecordProgress(%s) error = %v", l.Slug, err)
	}
	return res
}

func achievementKeys(list []*models.Achievement) []string {
	keys := make([]string, len(list))
	for i, a := range list {
		keys[i] = a.AwardKey
	}
	return keys
}
