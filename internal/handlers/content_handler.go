package handlers

import (
	"net/http"

	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/service"
)

// ContentHandler serves tracks and lessons and records learner progress
type ContentHandler struct {
	content     *service.ContentService
	enrollments *service.EnrollmentService
	progress    *service.ProgressService
	log         *logger.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(content *service.ContentService, enrollments *service.EnrollmentService, progress *service.ProgressService, log *logger.Logger) *ContentHandler {
	return &ContentHandler{
		content:     content,
		enrollments: enrollments,
		progress:    progress,
		log:         log,
	}
}

// ListTracks lists tracks, filtered by ?category=, ?difficulty= and ?tag=.
// Admins may pass ?all=true to include unpublished tracks.
func (h *ContentHandler) ListTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TrackFilter{
		Category:           q.Get("category"),
		Difficulty:         models.Difficulty(q.Get("difficulty")),
		Tag:                q.Get("tag"),
		IncludeUnpublished: q.Get("all") == "true",
	}
	tracks, err := h.content.ListTracks(GetUserFromContext(r.Context()), filter)
	if err != nil {
		respondWithError(w, h.log, "Failed to list tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (h *ContentHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.content.ListCategories()
	if err != nil {
		respondWithError(w, h.log, "Failed to list categories", err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *ContentHandler) GetTrack(w http.ResponseWriter, r *http.Request) {
	track, err := h.content.GetTrack(GetUserFromContext(r.Context()), r.PathValue("slug"))
	if err != nil {
		respondWithError(w, h.log, "Failed to get track", err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (h *ContentHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.content.ListLessons(GetUserFromContext(r.Context()), r.PathValue("slug"))
	if err != nil {
		respondWithError(w, h.log, "Failed to list lessons", err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *ContentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.enrollments.Enroll(r.Context(), GetUserFromContext(r.Context()), r.PathValue("slug"))
	if err != nil {
		respondWithError(w, h.log, "Failed to enroll", err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *ContentHandler) TrackProgress(w http.ResponseWriter, r *http.Request) {
	view, err := h.enrollments.GetTrackProgress(GetUserFromContext(r.Context()), r.PathValue("slug"))
	if err != nil {
		respondWithError(w, h.log, "Failed to get track progress", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetLesson returns a lesson with navigation. Premium lessons come back
// locked, without their content, for free users.
func (h *ContentHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	view, err := h.content.GetLesson(GetUserFromContext(r.Context()), r.PathValue("slug"))
	if err != nil {
		respondWithError(w, h.log, "Failed to get lesson", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// lessonID resolves the {slug} path value to a lesson the caller can see
func (h *ContentHandler) lessonID(r *http.Request) (int64, error) {
	view, err := h.content.GetLesson(GetUserFromContext(r.Context()), r.PathValue("slug"))
	if err != nil {
		return 0, err
	}
	return view.Lesson.ID, nil
}

func (h *ContentHandler) StartLesson(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	lessonID, err := h.lessonID(r)
	if err != nil {
		respondWithError(w, h.log, "Failed to start lesson", err)
		return
	}
	result, err := h.progress.StartLesson(r.Context(), user.ID, lessonID)
	if err != nil {
		respondWithError(w, h.log, "Failed to start lesson", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type progressRequest struct {
	Status    models.ProgressStatus `json:"status"`
	TimeSpent int                   `json:"timeSpent"`
	Score     *int                  `json:"score"`
}

// RecordProgress stores the caller's progress on a lesson and returns
// everything the update changed: experience, streak, track percentage and
// new achievements.
func (h *ContentHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	var in progressRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid progress body", err)
		return
	}
	lessonID, err := h.lessonID(r)
	if err != nil {
		respondWithError(w, h.log, "Failed to record progress", err)
		return
	}
	result, err := h.progress.RecordProgress(r.Context(), user.ID, lessonID, in.Status, in.TimeSpent, in.Score)
	if err != nil {
		respondWithError(w, h.log, "Failed to record progress", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type quizRequest struct {
	Answers   []int `json:"answers"`
	TimeSpent int   `json:"timeSpent"`
}

func (h *ContentHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	var in quizRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid quiz body", err)
		return
	}
	lessonID, err := h.lessonID(r)
	if err != nil {
		respondWithError(w, h.log, "Failed to submit quiz", err)
		return
	}
	result, err := h.progress.SubmitQuiz(r.Context(), user.ID, lessonID, in.Answers, in.TimeSpent)
	if err != nil {
		respondWithError(w, h.log, "Failed to submit quiz", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type codeRequest struct {
	Code      string `json:"code"`
	TimeSpent int    `json:"timeSpent"`
}

func (h *ContentHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	var in codeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid code body", err)
		return
	}
	lessonID, err := h.lessonID(r)
	if err != nil {
		respondWithError(w, h.log, "Failed to submit code", err)
		return
	}
	result, err := h.progress.SubmitCode(r.Context(), user.ID, lessonID, in.Code, in.TimeSpent)
	if err != nil {
		respondWithError(w, h.log, "Failed to submit code", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
