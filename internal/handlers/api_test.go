package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/identity"
	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
	"learnhub/internal/security"
	"learnhub/internal/service"
)

type apiEnv struct {
	server   *httptest.Server
	verifier *identity.Verifier
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.NewNop()
	verifier := identity.NewVerifier("api-test-secret", "learnhub-test")
	csrf := security.NewCSRFGenerator("csrf-test-secret")

	lb := service.NewLeaderboardService(repository.NewSnapshotRepository(db), leaderboard.NewMemoryCache(time.Minute), log)
	users := service.NewUserService(db, lb, time.UTC, log)
	auth := service.NewAuthService(db, users, verifier, nil, time.Hour, log)
	content := service.NewContentService(db, log)
	enrollments := service.NewEnrollmentService(db, lb, nil, log)
	progress := service.NewProgressService(db, enrollments, lb, nil, time.UTC, log)
	discussions := service.NewDiscussionService(db, log)
	changelog := service.NewChangelogService(db, nil, log)

	status := NewStartupStatus(StepDatabase)
	status.CompleteStep(StepDatabase)
	status.MarkReady()

	router := &Router{
		Middleware:  NewMiddleware(auth, csrf, security.NewRateLimiter(100, time.Minute), log),
		Auth:        NewAuthHandler(auth, nil, "http://localhost", log),
		User:        NewUserHandler(users, service.NewAchievementService(db), enrollments, csrf, log),
		Content:     NewContentHandler(content, enrollments, progress, log),
		Leaderboard: NewLeaderboardHandler(lb, content, log),
		Discussion:  NewDiscussionHandler(discussions, log),
		Changelog:   NewChangelogHandler(changelog, "http://localhost", log),
		Admin:       NewAdminHandler(content, changelog, users, enrollments, service.NewBackupService(db, log), db, log),
		Startup:     status,
		DB:          db,
	}

	server := httptest.NewServer(router.Routes())
	t.Cleanup(server.Close)
	return &apiEnv{server: server, verifier: verifier}
}

func (env *apiEnv) token(t *testing.T, name string) string {
	t.Helper()
	tok, err := env.verifier.Sign(identity.Identity{
		Subject: "test|" + name,
		Email:   name + "@example.com",
		Name:    name,
	}, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return tok
}

// do sends a JSON request and decodes the response into out when non-nil
func (env *apiEnv) do(t *testing.T, token, method, path string, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func expectStatus(t *testing.T, what string, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: status = %d, want %d", what, got, want)
	}
}

func TestAPILearningFlow(t *testing.T) {
	env := newAPIEnv(t)
	adminTok := env.token(t, "root")
	adaTok := env.token(t, "ada")

	var me models.User
	expectStatus(t, "admin me", env.do(t, adminTok, http.MethodGet, "/api/me", nil, &me), http.StatusOK)
	if me.Role != models.RoleAdmin {
		t.Fatalf("first account role = %q, want admin", me.Role)
	}

	var ada models.User
	expectStatus(t, "student me", env.do(t, adaTok, http.MethodGet, "/api/me", nil, &ada), http.StatusOK)
	if ada.Role != models.RoleStudent || ada.Level != 1 {
		t.Fatalf("new student = %+v", ada)
	}

	track := models.Track{Slug: "go-basics", Title: "Go Basics", Category: "backend", IsPublished: true}
	expectStatus(t, "student create track",
		env.do(t, adaTok, http.MethodPost, "/api/admin/tracks", track, nil), http.StatusForbidden)

	var created models.Track
	expectStatus(t, "create track",
		env.do(t, adminTok, http.MethodPost, "/api/admin/tracks", track, &created), http.StatusCreated)
	expectStatus(t, "duplicate slug",
		env.do(t, adminTok, http.MethodPost, "/api/admin/tracks", track, nil), http.StatusConflict)

	for i, xp := range []int{60, 60} {
		lesson := models.Lesson{
			Slug:             fmt.Sprintf("go-basics-%d", i+1),
			TrackID:          created.ID,
			Title:            fmt.Sprintf("Lesson %d", i+1),
			Order:            i + 1,
			ExperiencePoints: xp,
			IsPublished:      true,
		}
		expectStatus(t, "create lesson",
			env.do(t, adminTok, http.MethodPost, "/api/admin/lessons", lesson, nil), http.StatusCreated)
	}

	var view service.TrackProgressView
	expectStatus(t, "progress before enrolling",
		env.do(t, adaTok, http.MethodGet, "/api/tracks/go-basics/progress", nil, &view), http.StatusOK)
	if view.Enrollment != nil {
		t.Fatalf("enrollment before enrolling = %+v", view.Enrollment)
	}
	expectStatus(t, "missing track",
		env.do(t, adaTok, http.MethodGet, "/api/tracks/rust-basics/progress", nil, nil), http.StatusNotFound)
	expectStatus(t, "enroll", env.do(t, adaTok, http.MethodPost, "/api/tracks/go-basics/enroll", nil, nil), http.StatusOK)

	var result service.ProgressResult
	done := map[string]interface{}{"status": "completed", "timeSpent": 120}
	expectStatus(t, "complete lesson 1",
		env.do(t, adaTok, http.MethodPost, "/api/lessons/go-basics-1/progress", done, &result), http.StatusOK)
	if result.Track == nil || result.Track.Enrollment.Progress != 50 {
		t.Fatalf("track progress after one of two lessons = %+v", result.Track)
	}

	expectStatus(t, "complete lesson 2",
		env.do(t, adaTok, http.MethodPost, "/api/lessons/go-basics-2/progress", done, &result), http.StatusOK)
	if !result.Track.JustCompleted || !result.Track.Enrollment.CertificateIssued {
		t.Errorf("finishing the track should issue a certificate: %+v", result.Track.Enrollment)
	}
	if result.Experience == nil || result.Experience.NewExperience != 120 || result.Experience.NewLevel != 2 {
		t.Errorf("experience = %+v, want 120 xp at level 2", result.Experience)
	}

	// Completing again awards nothing new.
	expectStatus(t, "repeat completion",
		env.do(t, adaTok, http.MethodPost, "/api/lessons/go-basics-2/progress", done, &result), http.StatusOK)
	expectStatus(t, "me after", env.do(t, adaTok, http.MethodGet, "/api/me", nil, &ada), http.StatusOK)
	if ada.Experience != 120 {
		t.Errorf("experience after repeat = %d, want 120", ada.Experience)
	}

	var board struct {
		Scope   leaderboard.Scope   `json:"scope"`
		Entries []leaderboard.Entry `json:"entries"`
	}
	expectStatus(t, "global leaderboard",
		env.do(t, "", http.MethodGet, "/api/leaderboard", nil, &board), http.StatusOK)
	if len(board.Entries) == 0 || board.Entries[0].UserID != ada.ID || board.Entries[0].Rank != 1 {
		t.Fatalf("global leaderboard = %+v", board.Entries)
	}

	expectStatus(t, "track leaderboard",
		env.do(t, "", http.MethodGet, "/api/leaderboard?scope=track&track=go-basics", nil, &board), http.StatusOK)
	if len(board.Entries) != 1 || board.Entries[0].Score != 100*10+120 {
		t.Fatalf("track leaderboard = %+v", board.Entries)
	}
	expectStatus(t, "track scope without slug",
		env.do(t, "", http.MethodGet, "/api/leaderboard?scope=track", nil, nil), http.StatusBadRequest)
	expectStatus(t, "unknown period",
		env.do(t, "", http.MethodGet, "/api/leaderboard?period=daily", nil, nil), http.StatusBadRequest)

	var rank struct {
		Rank *int `json:"rank"`
	}
	expectStatus(t, "rank", env.do(t, adaTok, http.MethodGet, "/api/leaderboard/rank", nil, &rank), http.StatusOK)
	if rank.Rank == nil || *rank.Rank != 1 {
		t.Errorf("rank = %v, want 1", rank.Rank)
	}
}

func TestAPIDiscussionVoting(t *testing.T) {
	env := newAPIEnv(t)
	adminTok := env.token(t, "root")
	bobTok := env.token(t, "bob")
	expectStatus(t, "admin me", env.do(t, adminTok, http.MethodGet, "/api/me", nil, nil), http.StatusOK)

	var d models.Discussion
	in := map[string]interface{}{"title": "Goroutine leak?", "body": "My workers never exit.", "tags": []string{"concurrency"}}
	expectStatus(t, "anonymous create",
		env.do(t, "", http.MethodPost, "/api/discussions", in, nil), http.StatusUnauthorized)
	expectStatus(t, "create discussion",
		env.do(t, adminTok, http.MethodPost, "/api/discussions", in, &d), http.StatusCreated)

	path := fmt.Sprintf("/api/discussions/%d/vote", d.ID)
	steps := []struct {
		vote     string
		up, down int
	}{
		{"up", 1, 0},
		{"up", 1, 0},
		{"down", 0, 1},
	}
	for _, step := range steps {
		var res service.VoteResult
		expectStatus(t, "vote "+step.vote,
			env.do(t, bobTok, http.MethodPost, path, map[string]string{"voteType": step.vote}, &res), http.StatusOK)
		if res.Upvotes != step.up || res.Downvotes != step.down {
			t.Errorf("after %s: %d/%d, want %d/%d", step.vote, res.Upvotes, res.Downvotes, step.up, step.down)
		}
	}
	expectStatus(t, "bad vote type",
		env.do(t, bobTok, http.MethodPost, path, map[string]string{"voteType": "sideways"}, nil), http.StatusBadRequest)
	expectStatus(t, "missing discussion",
		env.do(t, bobTok, http.MethodPost, "/api/discussions/9999/vote", map[string]string{"voteType": "up"}, nil), http.StatusNotFound)

	expectStatus(t, "block term",
		env.do(t, adminTok, http.MethodPost, "/api/admin/blocked-terms", map[string]string{"term": "spamword"}, nil), http.StatusNoContent)
	expectStatus(t, "blocked reply",
		env.do(t, bobTok, http.MethodPost, fmt.Sprintf("/api/discussions/%d/replies", d.ID), map[string]string{"body": "buy spamword now"}, nil),
		http.StatusUnprocessableEntity)
}

func TestAPIChangelogPublishing(t *testing.T) {
	env := newAPIEnv(t)
	adminTok := env.token(t, "root")
	expectStatus(t, "admin me", env.do(t, adminTok, http.MethodGet, "/api/me", nil, nil), http.StatusOK)

	var entry models.ChangelogEntry
	in := map[string]interface{}{"title": "Leaderboards", "body": "Weekly **boards**", "type": "feature", "version": "v1.2"}
	expectStatus(t, "create entry",
		env.do(t, adminTok, http.MethodPost, "/api/admin/changelog", in, &entry), http.StatusCreated)
	if entry.Status != models.ChangelogDraft {
		t.Fatalf("new entry status = %q, want draft", entry.Status)
	}

	var public []*models.ChangelogEntry
	expectStatus(t, "public list", env.do(t, "", http.MethodGet, "/api/changelog", nil, &public), http.StatusOK)
	if len(public) != 0 {
		t.Fatalf("drafts should not be listed publicly, got %d", len(public))
	}
	expectStatus(t, "draft by id", env.do(t, "", http.MethodGet, fmt.Sprintf("/api/changelog/%d", entry.ID), nil, nil), http.StatusNotFound)

	expectStatus(t, "publish",
		env.do(t, adminTok, http.MethodPost, fmt.Sprintf("/api/admin/changelog/%d/publish", entry.ID), nil, &entry), http.StatusOK)
	if entry.PublishedAt == nil {
		t.Fatal("publishing should set publishedAt")
	}

	expectStatus(t, "public list", env.do(t, "", http.MethodGet, "/api/changelog", nil, &public), http.StatusOK)
	if len(public) != 1 || public[0].ID != entry.ID {
		t.Fatalf("public changelog = %+v", public)
	}

	resp, err := http.Get(env.server.URL + "/changelog.rss")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/rss+xml; charset=utf-8" {
		t.Errorf("rss: %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	expectStatus(t, "readyz", env.do(t, "", http.MethodGet, "/readyz", nil, nil), http.StatusOK)
}
