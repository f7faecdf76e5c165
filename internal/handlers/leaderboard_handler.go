package handlers

import (
	"fmt"
	"net/http"

	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
	"learnhub/internal/service"
)

// LeaderboardHandler serves global and per-track rankings
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
	content     *service.ContentService
	log         *logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(lb *service.LeaderboardService, content *service.ContentService, log *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: lb, content: content, log: log}
}

// query reads ?scope=, ?track= (a track slug) and ?period= with global and
// all-time as defaults.
func (h *LeaderboardHandler) query(r *http.Request) (leaderboard.Query, error) {
	q := r.URL.Query()
	lq := leaderboard.Query{
		Scope:  leaderboard.Scope(q.Get("scope")),
		Period: leaderboard.Period(q.Get("period")),
	}
	if lq.Scope == "" {
		lq.Scope = leaderboard.ScopeGlobal
	}
	if lq.Period == "" {
		lq.Period = leaderboard.PeriodAllTime
	}
	if lq.Scope == leaderboard.ScopeTrack {
		slug := q.Get("track")
		if slug == "" {
			return lq, fmt.Errorf("%w: track scope requires ?track=", service.ErrInvalidInput)
		}
		track, err := h.content.GetTrack(GetUserFromContext(r.Context()), slug)
		if err != nil {
			return lq, err
		}
		lq.TrackID = track.ID
	}
	return lq, nil
}

// GetLeaderboard returns the ranked entries; ?limit= caps the page
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	lq, err := h.query(r)
	if err != nil {
		respondWithError(w, h.log, "Invalid leaderboard query", err)
		return
	}
	if lq.Limit, err = queryInt(r, "limit", service.DefaultLeaderboardLimit); err != nil {
		respondWithError(w, h.log, "Invalid leaderboard query", err)
		return
	}
	if lq.Limit > service.MaxLeaderboardLimit {
		lq.Limit = service.MaxLeaderboardLimit
	}

	entries, err := h.leaderboard.GetLeaderboard(r.Context(), lq)
	if err != nil {
		respondWithError(w, h.log, "Failed to load leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":   lq.Scope,
		"period":  lq.Period,
		"entries": entries,
	})
}

// GetRank returns the caller's rank on the requested board. The rank is
// null when the caller is outside the ranked window.
func (h *LeaderboardHandler) GetRank(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	lq, err := h.query(r)
	if err != nil {
		respondWithError(w, h.log, "Invalid leaderboard query", err)
		return
	}
	rank, err := h.leaderboard.GetUserRank(r.Context(), user.ID, lq.Scope, lq.TrackID, lq.Period)
	if err != nil {
		respondWithError(w, h.log, "Failed to load rank", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":  lq.Scope,
		"period": lq.Period,
		"rank":   rank,
	})
}
