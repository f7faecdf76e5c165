package handlers

import (
	"net/http"

	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/security"
	"learnhub/internal/service"
)

// UserHandler serves the signed-in user's own profile and dashboard
type UserHandler struct {
	users        *service.UserService
	achievements *service.AchievementService
	enrollments  *service.EnrollmentService
	csrf         *security.CSRFGenerator
	log          *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, achievements *service.AchievementService, enrollments *service.EnrollmentService, csrf *security.CSRFGenerator, log *logger.Logger) *UserHandler {
	return &UserHandler{
		users:        users,
		achievements: achievements,
		enrollments:  enrollments,
		csrf:         csrf,
		log:          log,
	}
}

// Me returns the caller. Cookie sessions also receive their CSRF token in
// the X-CSRF-Token response header.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if sessionID := GetSessionIDFromContext(r.Context()); sessionID != "" {
		if token, err := h.csrf.GenerateToken(sessionID); err == nil {
			w.Header().Set(security.CSRFHeader, token)
		}
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe edits the caller's profile
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	var in models.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid profile update", err)
		return
	}
	updated, err := h.users.UpdateProfile(user.ID, in)
	if err != nil {
		respondWithError(w, h.log, "Failed to update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Stats returns the caller's dashboard numbers
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	stats, err := h.users.GetStats(user.ID)
	if err != nil {
		respondWithError(w, h.log, "Failed to load stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *UserHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	achievements, err := h.achievements.ListAchievements(user.ID)
	if err != nil {
		respondWithError(w, h.log, "Failed to load achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

// Notifications lists the caller's notifications; ?unread=true filters to
// unread ones.
func (h *UserHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.achievements.ListNotifications(user.ID, unreadOnly)
	if err != nil {
		respondWithError(w, h.log, "Failed to load notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *UserHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid notification id", err)
		return
	}
	if err := h.achievements.MarkNotificationRead(user.ID, id); err != nil {
		respondWithError(w, h.log, "Failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Enrollments(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	enrollments, err := h.enrollments.ListEnrollments(user.ID)
	if err != nil {
		respondWithError(w, h.log, "Failed to load enrollments", err)
		return
	}
	if enrollments == nil {
		enrollments = []*models.EnrollmentWithTrack{}
	}
	writeJSON(w, http.StatusOK, enrollments)
}
