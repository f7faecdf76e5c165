package handlers

import (
	"net/http"

	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/service"
)

// DiscussionHandler serves the discussion board
type DiscussionHandler struct {
	discussions *service.DiscussionService
	log         *logger.Logger
}

// NewDiscussionHandler creates a new discussion handler
func NewDiscussionHandler(discussions *service.DiscussionService, log *logger.Logger) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions, log: log}
}

// ListDiscussions accepts ?track=, ?lesson= (ids), ?tag=, ?sort=recent|top
// and ?limit=.
func (h *DiscussionHandler) ListDiscussions(w http.ResponseWriter, r *http.Request) {
	var filter models.DiscussionFilter
	trackID, err := queryInt(r, "track", 0)
	if err != nil {
		respondWithError(w, h.log, "Invalid discussion filter", err)
		return
	}
	lessonID, err := queryInt(r, "lesson", 0)
	if err != nil {
		respondWithError(w, h.log, "Invalid discussion filter", err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		respondWithError(w, h.log, "Invalid discussion filter", err)
		return
	}
	filter.TrackID = int64(trackID)
	filter.LessonID = int64(lessonID)
	filter.Tag = r.URL.Query().Get("tag")
	filter.Sort = r.URL.Query().Get("sort")

	discussions, err := h.discussions.ListDiscussions(filter)
	if err != nil {
		respondWithError(w, h.log, "Failed to list discussions", err)
		return
	}
	writeJSON(w, http.StatusOK, discussions)
}

func (h *DiscussionHandler) CreateDiscussion(w http.ResponseWriter, r *http.Request) {
	var in service.DiscussionInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid discussion body", err)
		return
	}
	d, err := h.discussions.CreateDiscussion(GetUserFromContext(r.Context()), in)
	if err != nil {
		respondWithError(w, h.log, "Failed to create discussion", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDiscussion returns the thread with its replies and counts the view
func (h *DiscussionHandler) GetDiscussion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid discussion id", err)
		return
	}
	thread, err := h.discussions.GetDiscussion(id)
	if err != nil {
		respondWithError(w, h.log, "Failed to get discussion", err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

type replyRequest struct {
	Body string `json:"body"`
}

func (h *DiscussionHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid discussion id", err)
		return
	}
	var in replyRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.log, "Invalid reply body", err)
		return
	}
	reply, err := h.discussions.Reply(GetUserFromContext(r.Context()), id, in.Body)
	if err != nil {
		respondWithError(w, h.log, "Failed to reply", err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

type voteRequest struct {
	VoteType models.VoteType `json:"voteType"`
}

func (h *DiscussionHandler) vote(entity models.VoteEntity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondWithError(w, h.log, "Invalid vote target", err)
			return
		}
		var in voteRequest
		if err := decodeJSON(w, r, &in); err != nil {
			respondWithError(w, h.log, "Invalid vote body", err)
			return
		}
		result, err := h.discussions.Vote(GetUserFromContext(r.Context()), entity, id, in.VoteType)
		if err != nil {
			respondWithError(w, h.log, "Failed to vote", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// VoteDiscussion casts or flips the caller's vote on a discussion
func (h *DiscussionHandler) VoteDiscussion(w http.ResponseWriter, r *http.Request) {
	h.vote(models.VoteEntityDiscussion)(w, r)
}

// VoteReply casts or flips the caller's vote on a reply
func (h *DiscussionHandler) VoteReply(w http.ResponseWriter, r *http.Request) {
	h.vote(models.VoteEntityReply)(w, r)
}

func (h *DiscussionHandler) MarkSolution(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid reply id", err)
		return
	}
	reply, err := h.discussions.MarkSolution(GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.log, "Failed to mark solution", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
