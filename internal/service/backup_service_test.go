package service

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
)

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.newTrack(t, "go-basics", 50, 30)
	entry, err := env.changelog.CreateEntry(env.admin, ChangelogInput{Title: "Launch", Body: "Hello", Type: models.ChangelogFeature})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.changelog.Publish(env.admin, entry.ID); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	backup, err := NewBackupService(env.db, logger.NewNop()).Export(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(backup.Tracks) != 1 || len(backup.Tracks[0].Lessons) != 2 || len(backup.Changelog) != 1 {
		t.Fatalf("backup = %d tracks, %d changelog", len(backup.Tracks), len(backup.Changelog))
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil || raw["version"] != BackupVersion {
		t.Fatalf("export is not versioned JSON: %v", err)
	}
	data := buf.String()

	target, err := database.Initialize(filepath.Join(t.TempDir(), "target.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()
	restore := NewBackupService(target, logger.NewNop())

	summary, err := restore.Import(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if summary.TracksCreated != 1 || summary.LessonsCreated != 2 || summary.ChangelogCreated != 1 {
		t.Errorf("first import = %+v", summary)
	}

	st := repository.NewStore(target)
	track, err := st.Tracks.GetTrackBySlug("go-basics")
	if err != nil || track == nil {
		t.Fatalf("imported track missing: %v", err)
	}
	if track.TotalLessons != 2 {
		t.Errorf("imported track total lessons = %d, want 2", track.TotalLessons)
	}

	summary, err = restore.Import(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if summary.TracksUpdated != 1 || summary.LessonsUpdated != 2 || summary.ChangelogSkipped != 1 || summary.TracksCreated != 0 {
		t.Errorf("second import = %+v, want updates only", summary)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewBackupService(env.db, logger.NewNop()).Import(strings.NewReader(`{"version":"9.9"}`))
	if err == nil {
		t.Error("Import() should reject an unknown version")
	}
}
