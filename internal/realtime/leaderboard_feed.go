package realtime

import (
	"context"

	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
)

const (
	TypeLeaderboardSnapshot = "leaderboard.snapshot"
	TypeLeaderboardChanged  = "leaderboard.changed"

	// FeedSize is how many entries each leaderboard message carries
	FeedSize = 10
)

// TopFetcher returns the current global all-time top entries
type TopFetcher func(ctx context.Context, limit int) ([]leaderboard.Entry, error)

// LeaderboardFeed broadcasts the refreshed top of the global board after
// every score change. Bursts of changes collapse into one refresh.
type LeaderboardFeed struct {
	hub     *Hub
	fetch   TopFetcher
	pending chan struct{}
	log     *logger.Logger
}

// NewLeaderboardFeed creates a feed and makes it the hub's welcome message
func NewLeaderboardFeed(hub *Hub, fetch TopFetcher, log *logger.Logger) *LeaderboardFeed {
	f := &LeaderboardFeed{
		hub:     hub,
		fetch:   fetch,
		pending: make(chan struct{}, 1),
		log:     log,
	}
	hub.SetWelcome(f.Snapshot)
	return f
}

// Notify schedules a refresh. It never blocks.
func (f *LeaderboardFeed) Notify(context.Context) {
	select {
	case f.pending <- struct{}{}:
	default:
	}
}

// Snapshot is the current top of the board
func (f *LeaderboardFeed) Snapshot(ctx context.Context) (Message, error) {
	entries, err := f.fetch(ctx, FeedSize)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeLeaderboardSnapshot, Data: entries}, nil
}

// Run broadcasts refreshes until ctx is cancelled
func (f *LeaderboardFeed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.pending:
			if f.hub.Count() == 0 {
				continue
			}
			entries, err := f.fetch(ctx, FeedSize)
			if err != nil {
				f.log.Warn("Failed to refresh leaderboard feed", "error", err)
				continue
			}
			f.hub.Broadcast(Message{Type: TypeLeaderboardChanged, Data: entries})
		}
	}
}
