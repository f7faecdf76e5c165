package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// StartupStatus tracks the initialization progress
type StartupStatus struct {
	mu       sync.RWMutex
	Ready    bool          `json:"ready"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// Startup step names used by the server
const (
	StepDatabase     = "Database connection"
	StepMigrations   = "Running migrations"
	StepBlockedTerms = "Seeding blocked terms"
	StepServices     = "Initializing services"
	StepServerReady  = "Server ready"
)

// NewStartupStatus creates a tracker over the named steps
func NewStartupStatus(steps ...string) *StartupStatus {
	s := &StartupStatus{Current: "Initializing..."}
	for _, name := range steps {
		s.Steps = append(s.Steps, StartupStep{Name: name})
	}
	return s
}

var startupStatus = NewStartupStatus(StepDatabase, StepMigrations, StepBlockedTerms, StepServices, StepServerReady)

// SetCurrentStep updates the current initialization step
func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Steps {
		if s.Steps[i].Name == stepName {
			s.Steps[i].Completed = true
			break
		}
	}

	completed := 0
	for _, step := range s.Steps {
		if step.Completed {
			completed++
		}
	}
	if len(s.Steps) > 0 {
		s.Progress = (completed * 100) / len(s.Steps)
	}
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ready = true
	s.Current = StepServerReady
	s.Progress = 100
}

// IsReady returns whether the server is fully initialized
func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Ready
}

type startupSnapshot struct {
	Ready    bool          `json:"ready"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
	Error    string        `json:"error,omitempty"`
}

func (s *StartupStatus) snapshot() startupSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return startupSnapshot{
		Ready:    s.Ready,
		Current:  s.Current,
		Progress: s.Progress,
		Steps:    append([]StartupStep(nil), s.Steps...),
	}
}

// SetCurrentStep updates the server's current initialization step
func SetCurrentStep(step string) { startupStatus.SetCurrentStep(step) }

// CompleteStep marks one of the server's startup steps done
func CompleteStep(stepName string) { startupStatus.CompleteStep(stepName) }

// MarkReady marks the server as fully initialized
func MarkReady() { startupStatus.MarkReady() }

// IsReady returns whether the server is fully initialized
func IsReady() bool { return startupStatus.IsReady() }

// Pinger checks a backing store. *database.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports liveness
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness: every startup step done and the database
// reachable. It answers 503 with the step list until then.
func Readyz(status *StartupStatus, db Pinger) http.HandlerFunc {
	if status == nil {
		status = startupStatus
	}
	return func(w http.ResponseWriter, r *http.Request) {
		snap := status.snapshot()
		if !snap.Ready {
			writeJSON(w, http.StatusServiceUnavailable, snap)
			return
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				snap.Ready = false
				snap.Error = "database unreachable"
				writeJSON(w, http.StatusServiceUnavailable, snap)
				return
			}
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
