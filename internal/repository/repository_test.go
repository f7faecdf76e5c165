package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

var testNow = time.Date(2024, time.May, 6, 9, 30, 0, 0, time.UTC)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, st *Store, externalID, username string) *models.User {
	t.Helper()
	u, err := st.Users.CreateUser(&models.User{
		ExternalID: externalID,
		Username:   username,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func createTrackWithLessons(t *testing.T, st *Store, slug string, xp ...int) (*models.Track, []*models.Lesson) {
	t.Helper()
	track, err := st.Tracks.CreateTrack(&models.Track{
		Slug:        slug,
		Title:       slug,
		Difficulty:  models.DifficultyBeginner,
		Tags:        []string{"Go", "go", "backend"},
		IsPublished: true,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	})
	if err != nil {
		t.Fatalf("CreateTrack() error = %v", err)
	}
	var lessons []*models.Lesson
	for i, points := range xp {
		l, err := st.Lessons.CreateLesson(&models.Lesson{
			Slug:             slug + "-lesson-" + string(rune('a'+i)),
			TrackID:          track.ID,
			Title:            "Lesson",
			Type:             models.LessonReading,
			Difficulty:       models.DifficultyBeginner,
			Order:            i + 1,
			ExperiencePoints: points,
			IsPublished:      true,
			CreatedAt:        testNow,
			UpdatedAt:        testNow,
		})
		if err != nil {
			t.Fatalf("CreateLesson() error = %v", err)
		}
		lessons = append(lessons, l)
	}
	return track, lessons
}

func TestFirstUserIsAdmin(t *testing.T) {
	st := NewStore(setupDB(t))

	first := createUser(t, st, "ext-1", "ada")
	second := createUser(t, st, "ext-2", "grace")

	if first.Role != models.RoleAdmin {
		t.Errorf("first user role = %q, want admin", first.Role)
	}
	if second.Role != models.RoleStudent {
		t.Errorf("second user role = %q, want student", second.Role)
	}

	got, err := st.Users.GetUserByExternalID("ext-2")
	if err != nil || got == nil {
		t.Fatalf("GetUserByExternalID() = %v, %v", got, err)
	}
	if got.Level != 1 || got.SubscriptionTier != models.TierFree {
		t.Errorf("defaults not applied: %+v", got)
	}

	missing, err := st.Users.GetUserByExternalID("nobody")
	if err != nil || missing != nil {
		t.Errorf("GetUserByExternalID(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestRaiseLevelNeverLowers(t *testing.T) {
	st := NewStore(setupDB(t))
	u := createUser(t, st, "ext-1", "ada")

	if err := st.Users.RaiseLevel(u.ID, 4); err != nil {
		t.Fatal(err)
	}
	if err := st.Users.RaiseLevel(u.ID, 2); err != nil {
		t.Fatal(err)
	}
	got, _ := st.Users.GetUserByID(u.ID)
	if got.Level != 4 {
		t.Errorf("level = %d, want 4", got.Level)
	}
}

func TestTrackTagsAndFilter(t *testing.T) {
	st := NewStore(setupDB(t))
	track, _ := createTrackWithLessons(t, st, "go-basics")

	got, err := st.Tracks.GetTrackBySlug("go-basics")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "backend" || got.Tags[1] != "go" {
		t.Errorf("tags = %v, want [backend go]", got.Tags)
	}

	tracks, err := st.Tracks.ListTracks(models.TrackFilter{Tag: "GO"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID != track.ID {
		t.Errorf("ListTracks(tag) = %v", tracks)
	}

	tracks, _ = st.Tracks.ListTracks(models.TrackFilter{Tag: "python"})
	if len(tracks) != 0 {
		t.Errorf("ListTracks(python) returned %d tracks", len(tracks))
	}
}

func TestProgressRecordAttempt(t *testing.T) {
	st := NewStore(setupDB(t))
	u := createUser(t, st, "ext-1", "ada")
	track, lessons := createTrackWithLessons(t, st, "go-basics", 50)

	p, err := st.Progress.CreateProgress(&models.Progress{
		UserID:    u.ID,
		LessonID:  lessons[0].ID,
		TrackID:   track.ID,
		Status:    models.StatusInProgress,
		TimeSpent: 5,
		Attempts:  1,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}

	first := testNow.Add(time.Hour)
	score := 90
	if err := st.Progress.RecordAttempt(p.ID, models.StatusCompleted, &score, 7, &first, first); err != nil {
		t.Fatal(err)
	}
	later := testNow.Add(2 * time.Hour)
	if err := st.Progress.RecordAttempt(p.ID, models.StatusCompleted, nil, 3, &later, later); err != nil {
		t.Fatal(err)
	}

	got, err := st.Progress.GetProgress(u.ID, lessons[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TimeSpent != 15 || got.Attempts != 3 {
		t.Errorf("timeSpent, attempts = %d, %d; want 15, 3", got.TimeSpent, got.Attempts)
	}
	if got.Score == nil || *got.Score != 90 {
		t.Errorf("score = %v, want 90", got.Score)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(first) {
		t.Errorf("completedAt = %v, want %v", got.CompletedAt, first)
	}
}

func TestEnrollmentMarkCompletedOnce(t *testing.T) {
	st := NewStore(setupDB(t))
	u := createUser(t, st, "ext-1", "ada")
	track, _ := createTrackWithLessons(t, st, "go-basics")

	e, err := st.Enrollments.CreateEnrollment(u.ID, track.ID, testNow)
	if err != nil {
		t.Fatal(err)
	}
	done, err := st.Enrollments.MarkCompleted(e.ID, "cert-1", testNow)
	if err != nil || !done {
		t.Fatalf("first MarkCompleted() = %v, %v", done, err)
	}
	done, err = st.Enrollments.MarkCompleted(e.ID, "cert-2", testNow.Add(time.Hour))
	if err != nil || done {
		t.Fatalf("second MarkCompleted() = %v, %v; want false", done, err)
	}

	got, _ := st.Enrollments.GetEnrollment(u.ID, track.ID)
	if got.CertificateID != "cert-1" || !got.CertificateIssued {
		t.Errorf("certificate = %q issued=%v, want cert-1", got.CertificateID, got.CertificateIssued)
	}
}

func TestSnapshotLoad(t *testing.T) {
	db := setupDB(t)
	st := NewStore(db)
	u1 := createUser(t, st, "ext-1", "ada")
	u2 := createUser(t, st, "ext-2", "grace")
	track, lessons := createTrackWithLessons(t, st, "go-basics", 50, 30)
	other, otherLessons := createTrackWithLessons(t, st, "rust-basics", 70)

	st.Enrollments.CreateEnrollment(u1.ID, track.ID, testNow)
	st.Enrollments.CreateEnrollment(u2.ID, other.ID, testNow)
	completed := testNow
	for _, p := range []*models.Progress{
		{UserID: u1.ID, LessonID: lessons[0].ID, TrackID: track.ID, Status: models.StatusCompleted, CompletedAt: &completed},
		{UserID: u1.ID, LessonID: lessons[1].ID, TrackID: track.ID, Status: models.StatusInProgress},
		{UserID: u2.ID, LessonID: otherLessons[0].ID, TrackID: other.ID, Status: models.StatusCompleted, CompletedAt: &completed},
	} {
		p.CreatedAt, p.UpdatedAt = testNow, testNow
		if _, err := st.Progress.CreateProgress(p); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := NewSnapshotRepository(db).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Users) != 2 || snap.Users[0].ID != u1.ID {
		t.Errorf("users = %+v", snap.Users)
	}
	if len(snap.Enrollments) != 2 || len(snap.Completions) != 2 {
		t.Errorf("enrollments = %d, completions = %d; want 2, 2", len(snap.Enrollments), len(snap.Completions))
	}

	snap, err = NewSnapshotRepository(db).Load(context.Background(), track.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Completions) != 1 || snap.Completions[0].ExperiencePoints != 50 {
		t.Errorf("track completions = %+v", snap.Completions)
	}
	if !snap.Completions[0].CompletedAt.Equal(completed) {
		t.Errorf("completedAt = %v, want %v", snap.Completions[0].CompletedAt, completed)
	}
}

func TestVoteUniqueness(t *testing.T) {
	db := setupDB(t)
	st := NewStore(db)
	u := createUser(t, st, "ext-1", "ada")
	d, err := st.Discussions.CreateDiscussion(&models.Discussion{
		UserID: u.ID, Title: "Help", Body: "Stuck", CreatedAt: testNow, UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}

	vote := &models.DiscussionVote{UserID: u.ID, EntityType: models.VoteEntityDiscussion, EntityID: d.ID, VoteType: models.VoteUp, CreatedAt: testNow}
	if _, err := st.Discussions.CreateVote(vote); err != nil {
		t.Fatal(err)
	}
	_, err = st.Discussions.CreateVote(&models.DiscussionVote{UserID: u.ID, EntityType: models.VoteEntityDiscussion, EntityID: d.ID, VoteType: models.VoteDown, CreatedAt: testNow})
	if !database.IsUniqueViolation(err) {
		t.Errorf("second vote error = %v, want unique violation", err)
	}
}

func TestCreateAchievementIfAbsentKeepsTransactionUsable(t *testing.T) {
	db := setupDB(t)
	u := createUser(t, NewStore(db), "ext-1", "ada")
	award := func() *models.Achievement {
		return &models.Achievement{
			UserID: u.ID, Type: models.AchievementFirstEnrollment, AwardKey: "first-enrollment",
			Title: "Enrolled", EarnedAt: testNow,
		}
	}

	err := db.WithTx(func(tx *database.Tx) error {
		st := NewStore(tx)
		first, err := st.Achievements.CreateAchievementIfAbsent(award())
		if err != nil {
			return err
		}
		if first == nil || first.ID == 0 {
			t.Errorf("first insert = %+v, want a stored achievement", first)
		}

		dup, err := st.Achievements.CreateAchievementIfAbsent(award())
		if err != nil {
			return err
		}
		if dup != nil {
			t.Errorf("duplicate insert = %+v, want nil", dup)
		}

		// Later statements in the same transaction still run.
		_, err = st.Notifications.CreateNotification(u.ID, models.NotificationAchievement, "Achievement unlocked: Enrolled", "", testNow)
		return err
	})
	if err != nil {
		t.Fatalf("transaction error = %v", err)
	}

	n, err := NewStore(db).Achievements.CountUserAchievements(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("achievements = %d, want 1", n)
	}
}
