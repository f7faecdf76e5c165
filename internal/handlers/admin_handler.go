package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/service"
)

// TermBlocker adds words to the discussion moderation list.
// *database.DB satisfies it.
type TermBlocker interface {
	AddBlockedTerm(term string) error
}

// AdminHandler handles the back-office API. Every route is wrapped in
// RequireAdmin and the services check the role again.
type AdminHandler struct {
	content     *service.ContentService
	changelog   *service.ChangelogService
	users       *service.UserService
	enrollments *service.EnrollmentService
	backup      *service.BackupService
	terms       TermBlocker
	log         *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(content *service.ContentService, changelog *service.ChangelogService, users *service.UserService, enrollments *service.EnrollmentService, backup *service.BackupService, terms TermBlocker, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		content:     content,
		changelog:   changelog,
		users:       users,
		enrollments: enrollments,
		backup:      backup,
		terms:       terms,
		log:         log,
	}
}

func (h *AdminHandler) CreateTrack(w http.ResponseWriter, r *http.Request) {
	var in models.Track
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid track body", err)
		return
	}
	track, err := h.content.CreateTrack(GetUserFromContext(r.Context()), &in)
	if err != nil {
		respondWithError(w, h.log, "Failed to create track", err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

func (h *AdminHandler) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid track id", err)
		return
	}
	var in models.Track
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid track body", err)
		return
	}
	track, err := h.content.UpdateTrack(GetUserFromContext(r.Context()), id, &in)
	if err != nil {
		respondWithError(w, h.log, "Failed to update track", err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (h *AdminHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var in models.Lesson
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid lesson body", err)
		return
	}
	lesson, err := h.content.CreateLesson(GetUserFromContext(r.Context()), &in)
	if err != nil {
		respondWithError(w, h.log, "Failed to create lesson", err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

func (h *AdminHandler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid lesson id", err)
		return
	}
	var in models.Lesson
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid lesson body", err)
		return
	}
	lesson, err := h.content.UpdateLesson(GetUserFromContext(r.Context()), id, &in)
	if err != nil {
		respondWithError(w, h.log, "Failed to update lesson", err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

// ListChangelog returns every entry, drafts and archived ones included
func (h *AdminHandler) ListChangelog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.changelog.ListEntries(GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.log, "Failed to list changelog", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) CreateChangelog(w http.ResponseWriter, r *http.Request) {
	var in service.ChangelogInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid changelog body", err)
		return
	}
	entry, err := h.changelog.CreateEntry(GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.log, "Failed to create changelog entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *AdminHandler) UpdateChangelog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid changelog id", err)
		return
	}
	var in service.ChangelogInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid changelog body", err)
		return
	}
	entry, err := h.changelog.UpdateEntry(GetUserFromContext(r.Context()), id, in)
	if err != nil {
		respondWithError(w, h.log, "Failed to update changelog entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type changelogTransition func(actor *models.User, id int64) (*models.ChangelogEntry, error)

func (h *AdminHandler) transition(name string, apply changelogTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondWithError(w, h.log, "Invalid changelog id", err)
			return
		}
		entry, err := apply(GetUserFromContext(r.Context()), id)
		if err != nil {
			respondWithError(w, h.log, "Failed to "+name+" changelog entry", err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// PublishChangelog makes an entry public; publishedAt is set only once
func (h *AdminHandler) PublishChangelog(w http.ResponseWriter, r *http.Request) {
	h.transition("publish", h.changelog.Publish)(w, r)
}

func (h *AdminHandler) ArchiveChangelog(w http.ResponseWriter, r *http.Request) {
	h.transition("archive", h.changelog.Archive)(w, r)
}

// ResolveChangelog closes an issue or maintenance entry
func (h *AdminHandler) ResolveChangelog(w http.ResponseWriter, r *http.Request) {
	h.transition("resolve", h.changelog.ResolveIssue)(w, r)
}

type tierRequest struct {
	Tier models.SubscriptionTier `json:"tier"`
}

func (h *AdminHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid user id", err)
		return
	}
	var in tierRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid tier body", err)
		return
	}
	if err := h.users.SetSubscriptionTier(GetUserFromContext(r.Context()), id, in.Tier); err != nil {
		respondWithError(w, h.log, "Failed to set subscription tier", err)
		return
	}
	h.respondUser(w, id)
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid user id", err)
		return
	}
	var in roleRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid role body", err)
		return
	}
	if err := h.users.SetRole(GetUserFromContext(r.Context()), id, in.Role); err != nil {
		respondWithError(w, h.log, "Failed to set role", err)
		return
	}
	h.respondUser(w, id)
}

func (h *AdminHandler) respondUser(w http.ResponseWriter, id int64) {
	user, err := h.users.GetUser(id)
	if err != nil {
		respondWithError(w, h.log, "Failed to load user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type experienceRequest struct {
	Points int `json:"points"`
}

// GrantExperience awards bonus points to a user
func (h *AdminHandler) GrantExperience(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid user id", err)
		return
	}
	var in experienceRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid experience body", err)
		return
	}
	if in.Points <= 0 {
		respondWithError(w, h.log, "Invalid experience body", fmt.Errorf("%w: points must be positive", service.ErrInvalidInput))
		return
	}
	result, err := h.users.AddExperience(r.Context(), id, in.Points)
	if err != nil {
		respondWithError(w, h.log, "Failed to grant experience", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RecomputeProgress recalculates a user's percentage in a track, for
// example after lessons were unpublished.
func (h *AdminHandler) RecomputeProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid user id", err)
		return
	}
	trackID, err := pathID(r, "trackId")
	if err != nil {
		respondWithError(w, h.log, "Invalid track id", err)
		return
	}
	result, err := h.enrollments.RecomputeTrackProgress(r.Context(), userID, trackID)
	if err != nil {
		respondWithError(w, h.log, "Failed to recompute progress", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type blockedTermRequest struct {
	Term string `json:"term"`
}

func (h *AdminHandler) AddBlockedTerm(w http.ResponseWriter, r *http.Request) {
	var in blockedTermRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid blocked term body", err)
		return
	}
	term := strings.TrimSpace(in.Term)
	if term == "" || strings.ContainsAny(term, " \t\n") {
		respondWithError(w, h.log, "Invalid blocked term", fmt.Errorf("%w: term must be a single word", service.ErrInvalidInput))
		return
	}
	if err := h.terms.AddBlockedTerm(term); err != nil {
		respondWithError(w, h.log, "Failed to add blocked term", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportContent downloads the content backup as JSON
func (h *AdminHandler) ExportContent(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	filename := fmt.Sprintf("learnhub_content_%s.json", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if _, err := h.backup.Export(w); err != nil {
		respondWithError(w, h.log, "Failed to export content", err)
		return
	}
	h.log.Info("Content exported", "admin_id", user.ID)
}

// ImportContent restores a content backup posted as the request body
func (h *AdminHandler) ImportContent(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	summary, err := h.backup.Import(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		respondWithError(w, h.log, "Failed to import content", err)
		return
	}
	h.log.Info("Content imported", "admin_id", user.ID)
	writeJSON(w, http.StatusOK, summary)
}
