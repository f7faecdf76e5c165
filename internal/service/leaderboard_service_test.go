package service

import (
	"context"
	"testing"
	"time"

	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
)

// snapshotFunc adapts a function to SnapshotLoader
type snapshotFunc func(ctx context.Context, trackID int64) (*leaderboard.Snapshot, error)

func (f snapshotFunc) Load(ctx context.Context, trackID int64) (*leaderboard.Snapshot, error) {
	return f(ctx, trackID)
}

func globalAllTime() leaderboard.Query {
	return leaderboard.Query{Scope: leaderboard.ScopeGlobal, Period: leaderboard.PeriodAllTime}
}

func TestLeaderboardIgnoresBoardComputedBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	xp := int64(100)
	var svc *LeaderboardService
	loads := 0

	loader := snapshotFunc(func(ctx context.Context, _ int64) (*leaderboard.Snapshot, error) {
		loads++
		snap := &leaderboard.Snapshot{Users: []leaderboard.UserRow{{ID: 1, Username: "ada", Level: 2, Experience: xp}}}
		if loads == 1 {
			// A lesson completion commits while this snapshot is in flight.
			xp = 500
			svc.Invalidate(ctx)
		}
		return snap, nil
	})
	svc = NewLeaderboardService(loader, leaderboard.NewMemoryCache(time.Hour), logger.NewNop())

	first, err := svc.GetLeaderboard(ctx, globalAllTime())
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || first[0].Score != 100 {
		t.Fatalf("first board = %+v", first)
	}

	second, err := svc.GetLeaderboard(ctx, globalAllTime())
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].Score != 500 {
		t.Errorf("score after invalidation = %+v, want 500", second)
	}
	if loads != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}

	if _, err := svc.GetLeaderboard(ctx, globalAllTime()); err != nil {
		t.Fatal(err)
	}
	if loads != 2 {
		t.Errorf("board computed after the invalidation should be cached, loads = %d", loads)
	}
}

func TestGetUserGlobalRankOutsideWindow(t *testing.T) {
	ctx := context.Background()
	n := leaderboard.RankWindow + 5
	snap := &leaderboard.Snapshot{}
	for i := 1; i <= n; i++ {
		// Lower ids score higher, so the last user ranks last.
		snap.Users = append(snap.Users, leaderboard.UserRow{ID: int64(i), Level: 1, Experience: int64(10 * (n - i + 1))})
	}
	loader := snapshotFunc(func(context.Context, int64) (*leaderboard.Snapshot, error) { return snap, nil })
	svc := NewLeaderboardService(loader, leaderboard.NewMemoryCache(time.Minute), logger.NewNop())

	tests := []struct {
		name   string
		userID int64
		want   int
	}{
		{"leader", 1, 1},
		{"last inside window", int64(leaderboard.RankWindow), leaderboard.RankWindow},
		{"first outside window", int64(leaderboard.RankWindow + 1), 0},
		{"last overall", int64(n), 0},
		{"unknown user", int64(n + 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank, err := svc.GetUserGlobalRank(ctx, tt.userID)
			if err != nil {
				t.Fatalf("GetUserGlobalRank() error = %v", err)
			}
			if tt.want == 0 {
				if rank != nil {
					t.Errorf("rank = %d, want nil", *rank)
				}
				return
			}
			if rank == nil || *rank != tt.want {
				t.Errorf("rank = %v, want %d", rank, tt.want)
			}
		})
	}
}
