package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

// SnapshotLoader reads the rows a leaderboard is computed from
type SnapshotLoader interface {
	Load(ctx context.Context, trackID int64) (*leaderboard.Snapshot, error)
}

// LeaderboardService serves memoized leaderboards and drops them whenever
// experience or progress changes.
type LeaderboardService struct {
	snapshots SnapshotLoader
	cache     leaderboard.Cache
	log       *logger.Logger
	now       func() time.Time

	mu        sync.RWMutex
	listeners []func(ctx context.Context)
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(snapshots SnapshotLoader, cache leaderboard.Cache, log *logger.Logger) *LeaderboardService {
	return &LeaderboardService{
		snapshots: snapshots,
		cache:     cache,
		log:       log,
		now:       time.Now,
	}
}

// GetLeaderboard returns the ranked entries for q. A zero limit means the
// default page size.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, q leaderboard.Query) ([]leaderboard.Entry, error) {
	if q.Limit == 0 {
		q.Limit = DefaultLeaderboardLimit
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if q.Scope == leaderboard.ScopeGlobal {
		q.TrackID = 0
	}

	key := q.Key()
	entries, version, ok, err := s.cache.Get(ctx, key)
	cacheable := err == nil
	if err != nil {
		s.log.Warn("Leaderboard cache read failed", "key", key, "error", err)
	}
	if ok {
		return entries, nil
	}

	snap, err := s.snapshots.Load(ctx, q.TrackID)
	if err != nil {
		return nil, err
	}
	entries = leaderboard.Compute(snap, q, s.now())
	if entries == nil {
		entries = []leaderboard.Entry{}
	}

	if cacheable {
		if err := s.cache.Set(ctx, key, version, entries); err != nil {
			s.log.Warn("Leaderboard cache write failed", "key", key, "error", err)
		}
	}
	return entries, nil
}

// GetUserRank ranks userID within the top RankWindow entries of the given
// board. It returns nil when the user falls outside that window.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID int64, scope leaderboard.Scope, trackID int64, period leaderboard.Period) (*int, error) {
	entries, err := s.GetLeaderboard(ctx, leaderboard.Query{
		Scope:   scope,
		TrackID: trackID,
		Period:  period,
		Limit:   leaderboard.RankWindow,
	})
	if err != nil {
		return nil, err
	}
	return leaderboard.RankOf(entries, userID), nil
}

// GetUserGlobalRank is the user's all-time global rank, or nil beyond the
// rank window.
func (s *LeaderboardService) GetUserGlobalRank(ctx context.Context, userID int64) (*int, error) {
	return s.GetUserRank(ctx, userID, leaderboard.ScopeGlobal, 0, leaderboard.PeriodAllTime)
}

// GetUserTrackRank is the user's rank among a track's enrollees
func (s *LeaderboardService) GetUserTrackRank(ctx context.Context, userID, trackID int64, period leaderboard.Period) (*int, error) {
	return s.GetUserRank(ctx, userID, leaderboard.ScopeTrack, trackID, period)
}

// OnChange registers fn to run after every invalidation
func (s *LeaderboardService) OnChange(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Invalidate drops every memoized board and notifies listeners. Call it
// after the transaction that changed scores has committed.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Error("Leaderboard cache invalidation failed", "error", err)
	}

	s.mu.RLock()
	listeners := append([]func(context.Context){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx)
	}
}
