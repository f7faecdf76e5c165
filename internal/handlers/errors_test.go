package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"learnhub/internal/logger"
	"learnhub/internal/service"
	"learnhub/internal/validation"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: track %q", service.ErrNotFound, "go"), http.StatusNotFound},
		{"not authenticated", service.ErrNotAuthenticated, http.StatusUnauthorized},
		{"expired session", service.ErrSessionExpired, http.StatusUnauthorized},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"invalid input", fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest},
		{"validation", validation.ValidationError{Field: "slug", Message: "slug is required"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("create: %w", validation.ValidationError{Field: "title"}), http.StatusBadRequest},
		{"invalid vote", service.ErrInvalidVote, http.StatusBadRequest},
		{"slug taken", service.ErrSlugTaken, http.StatusConflict},
		{"premium", service.ErrPremiumRequired, http.StatusPaymentRequired},
		{"blocked", service.ErrBlockedContent, http.StatusUnprocessableEntity},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRespondWithErrorWritesJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, logger.NewNop(), "Invalid slug", validation.ValidationError{Field: "slug", Message: "slug is required"})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body errorBody
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "slug is required" || body.Field != "slug" {
		t.Errorf("body = %+v", body)
	}
}

func TestRespondWithErrorHidesInternalErrors(t *testing.T) {
	log, logs := observedLogger()
	recorder := httptest.NewRecorder()

	respondWithError(recorder, log, "Failed to load stats", errors.New("boom"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", recorder.Code)
	}
	if strings.Contains(recorder.Body.String(), "boom") {
		t.Errorf("internal error leaked to client: %s", recorder.Body.String())
	}

	entries := logs.FilterMessage("Failed to load stats").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected one error log, got %v", entries)
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Errorf("logged error = %v, want boom", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"body":"hello"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"body":"hi","extra":1}`, true},
		{"malformed", `{"body":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var in replyRequest
			err := decodeJSON(httptest.NewRecorder(), req, &in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, service.ErrInvalidInput) {
				t.Errorf("decodeJSON() error should wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}
