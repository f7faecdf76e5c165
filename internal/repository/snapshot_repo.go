package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"learnhub/internal/database"
	"learnhub/internal/leaderboard"
	"learnhub/internal/models"
)

// SnapshotRepository loads the rows the leaderboard ranks
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a snapshot loader on db's pool
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db.Sqlx()}
}

// Load reads users, enrollments and completions concurrently. A non-zero
// trackID restricts enrollments and completions to that track.
func (r *SnapshotRepository) Load(ctx context.Context, trackID int64) (*leaderboard.Snapshot, error) {
	snap := &leaderboard.Snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		query := `
			SELECT id, username, display_name, avatar_url, level, experience
			FROM users
			ORDER BY id ASC
		`
		if err := r.db.SelectContext(ctx, &snap.Users, query); err != nil {
			return fmt.Errorf("failed to load leaderboard users: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		query := "SELECT user_id, track_id, progress FROM enrollments"
		var args []interface{}
		if trackID > 0 {
			query += " WHERE track_id = ?"
			args = append(args, trackID)
		}
		if err := r.db.SelectContext(ctx, &snap.Enrollments, r.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to load leaderboard enrollments: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		query := `
			SELECT p.user_id, p.track_id, p.lesson_id, l.experience_points, p.completed_at
			FROM progress p
			JOIN lessons l ON l.id = p.lesson_id
			WHERE p.status = ? AND p.completed_at IS NOT NULL`
		args := []interface{}{models.StatusCompleted}
		if trackID > 0 {
			query += " AND p.track_id = ?"
			args = append(args, trackID)
		}
		if err := r.db.SelectContext(ctx, &snap.Completions, r.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to load leaderboard completions: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
