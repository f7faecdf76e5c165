package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestStartupStatusProgress(t *testing.T) {
	s := NewStartupStatus(StepDatabase, StepMigrations, StepBlockedTerms, StepServices)

	s.CompleteStep(StepDatabase)
	if got := s.snapshot().Progress; got != 25 {
		t.Errorf("progress after one step = %d, want 25", got)
	}
	s.CompleteStep(StepDatabase)
	if got := s.snapshot().Progress; got != 25 {
		t.Errorf("completing a step twice changed progress to %d", got)
	}
	s.CompleteStep("unknown step")
	s.CompleteStep(StepMigrations)
	if got := s.snapshot().Progress; got != 50 {
		t.Errorf("progress = %d, want 50", got)
	}
	if s.IsReady() {
		t.Error("status should not be ready before MarkReady")
	}

	s.MarkReady()
	snap := s.snapshot()
	if !snap.Ready || snap.Progress != 100 || snap.Current != StepServerReady {
		t.Errorf("after MarkReady: %+v", snap)
	}
}

func TestReadyz(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	ready := NewStartupStatus(StepDatabase)
	ready.CompleteStep(StepDatabase)
	ready.MarkReady()

	tests := []struct {
		name       string
		status     *StartupStatus
		db         Pinger
		wantStatus int
		wantError  string
	}{
		{"starting", NewStartupStatus(StepDatabase), ok, http.StatusServiceUnavailable, ""},
		{"ready", ready, ok, http.StatusOK, ""},
		{"ready without database", ready, nil, http.StatusOK, ""},
		{"database down", ready, down, http.StatusServiceUnavailable, "database unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Readyz(tt.status, tt.db)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body startupSnapshot
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if body.Ready != (tt.wantStatus == http.StatusOK) {
				t.Errorf("ready = %v", body.Ready)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() == "" {
		t.Errorf("Healthz: %d %q", rec.Code, rec.Body.String())
	}
}
