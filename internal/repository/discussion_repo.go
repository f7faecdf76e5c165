package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// DiscussionRepository handles discussions, replies and votes
type DiscussionRepository struct {
	db database.DBTX
}

// NewDiscussionRepository creates a new discussion repository
func NewDiscussionRepository(db database.DBTX) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

const discussionColumns = `
	d.id, d.user_id, u.username, d.track_id, d.lesson_id, d.title, d.body, d.tags,
	d.upvotes, d.downvotes, d.reply_count, d.view_count, d.is_solved,
	d.created_at, d.updated_at`

func scanDiscussion(row rowScanner) (*models.Discussion, error) {
	d := &models.Discussion{}
	var trackID, lessonID sql.NullInt64
	var tags string
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Author,
		&trackID,
		&lessonID,
		&d.Title,
		&d.Body,
		&tags,
		&d.Upvotes,
		&d.Downvotes,
		&d.ReplyCount,
		&d.ViewCount,
		&d.IsSolved,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if trackID.Valid {
		d.TrackID = &trackID.Int64
	}
	if lessonID.Valid {
		d.LessonID = &lessonID.Int64
	}
	d.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags for discussion %d: %w", d.ID, err)
		}
	}
	return d, nil
}

func nullableID(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// CreateDiscussion inserts a discussion with zeroed counters
func (r *DiscussionRepository) CreateDiscussion(d *models.Discussion) (*models.Discussion, error) {
	tags, err := encodeList(d.Tags)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO discussions (user_id, track_id, lesson_id, title, body, tags,
			upvotes, downvotes, reply_count, view_count, is_solved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, 0, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		d.UserID, nullableID(d.TrackID), nullableID(d.LessonID), d.Title, d.Body, tags,
		false, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discussion: %w", err)
	}
	d.ID = id
	return d, nil
}

// GetDiscussion retrieves a discussion by ID
func (r *DiscussionRepository) GetDiscussion(id int64) (*models.Discussion, error) {
	query := "SELECT " + discussionColumns + " FROM discussions d JOIN users u ON u.id = d.user_id WHERE d.id = ?"
	d, err := scanDiscussion(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discussion: %w", err)
	}
	return d, nil
}

// ListDiscussions returns discussions matching filter. Sort "top" orders by
// net votes, anything else by newest first.
func (r *DiscussionRepository) ListDiscussions(filter models.DiscussionFilter) ([]*models.Discussion, error) {
	query := "SELECT " + discussionColumns + " FROM discussions d JOIN users u ON u.id = d.user_id WHERE 1 = 1"
	var args []interface{}
	if filter.TrackID > 0 {
		query += " AND d.track_id = ?"
		args = append(args, filter.TrackID)
	}
	if filter.LessonID > 0 {
		query += " AND d.lesson_id = ?"
		args = append(args, filter.LessonID)
	}
	if filter.Sort == "top" {
		query += " ORDER BY (d.upvotes - d.downvotes) DESC, d.created_at DESC, d.id DESC"
	} else {
		query += " ORDER BY d.created_at DESC, d.id DESC"
	}
	if filter.Limit > 0 && filter.Tag == "" {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list discussions: %w", err)
	}
	defer rows.Close()

	var discussions []*models.Discussion
	for rows.Next() {
		d, err := scanDiscussion(rows)
		if err != nil {
			return nil, err
		}
		if filter.Tag != "" && !hasTag(d.Tags, filter.Tag) {
			continue
		}
		discussions = append(discussions, d)
		if filter.Limit > 0 && len(discussions) == filter.Limit {
			break
		}
	}
	return discussions, rows.Err()
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IncrementViewCount adds one to a discussion's view counter
func (r *DiscussionRepository) IncrementViewCount(id int64) error {
	_, err := r.db.Exec("UPDATE discussions SET view_count = view_count + 1 WHERE id = ?", id)
	return err
}

// IncrementReplyCount adds one to a discussion's reply counter
func (r *DiscussionRepository) IncrementReplyCount(id int64, now time.Time) error {
	_, err := r.db.Exec("UPDATE discussions SET reply_count = reply_count + 1, updated_at = ? WHERE id = ?", now, id)
	return err
}

// AdjustVotes atomically shifts the vote counters of a discussion or reply
func (r *DiscussionRepository) AdjustVotes(entity models.VoteEntity, id int64, upDelta, downDelta int) error {
	table := "discussions"
	if entity == models.VoteEntityReply {
		table = "discussion_replies"
	}
	query := "UPDATE " + table + " SET upvotes = upvotes + ?, downvotes = downvotes + ? WHERE id = ?"
	_, err := r.db.Exec(query, upDelta, downDelta, id)
	return err
}

// CreateReply inserts a reply
func (r *DiscussionRepository) CreateReply(reply *models.DiscussionReply) (*models.DiscussionReply, error) {
	query := `
		INSERT INTO discussion_replies (discussion_id, user_id, body, upvotes, downvotes, is_solution, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, reply.DiscussionID, reply.UserID, reply.Body, false, reply.CreatedAt, reply.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}
	reply.ID = id
	return reply, nil
}

const replyColumns = `
	r.id, r.discussion_id, r.user_id, u.username, r.body, r.upvotes, r.downvotes,
	r.is_solution, r.created_at, r.updated_at`

func scanReply(row rowScanner) (*models.DiscussionReply, error) {
	reply := &models.DiscussionReply{}
	err := row.Scan(
		&reply.ID,
		&reply.DiscussionID,
		&reply.UserID,
		&reply.Author,
		&reply.Body,
		&reply.Upvotes,
		&reply.Downvotes,
		&reply.IsSolution,
		&reply.CreatedAt,
		&reply.UpdatedAt,
	)
	return reply, err
}

// GetReply retrieves a reply by ID
func (r *DiscussionRepository) GetReply(id int64) (*models.DiscussionReply, error) {
	query := "SELECT " + replyColumns + " FROM discussion_replies r JOIN users u ON u.id = r.user_id WHERE r.id = ?"
	reply, err := scanReply(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reply: %w", err)
	}
	return reply, nil
}

// ListReplies returns a discussion's replies, solution first then oldest first
func (r *DiscussionRepository) ListReplies(discussionID int64) ([]*models.DiscussionReply, error) {
	query := "SELECT " + replyColumns + ` FROM discussion_replies r JOIN users u ON u.id = r.user_id
		WHERE r.discussion_id = ?
		ORDER BY r.is_solution DESC, r.created_at ASC, r.id ASC`
	rows, err := r.db.Query(query, discussionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	defer rows.Close()

	replies := []*models.DiscussionReply{}
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}

// MarkSolution flags a reply as the accepted answer and the discussion as solved
func (r *DiscussionRepository) MarkSolution(discussionID, replyID int64, now time.Time) error {
	if _, err := r.db.Exec("UPDATE discussion_replies SET is_solution = ? WHERE discussion_id = ?", false, discussionID); err != nil {
		return err
	}
	if _, err := r.db.Exec("UPDATE discussion_replies SET is_solution = ?, updated_at = ? WHERE id = ?", true, now, replyID); err != nil {
		return err
	}
	_, err := r.db.Exec("UPDATE discussions SET is_solved = ?, updated_at = ? WHERE id = ?", true, now, discussionID)
	return err
}

// GetVote retrieves a user's vote on an entity
func (r *DiscussionRepository) GetVote(userID int64, entity models.VoteEntity, entityID int64) (*models.DiscussionVote, error) {
	query := `
		SELECT id, user_id, entity_type, entity_id, vote_type, created_at
		FROM discussion_votes
		WHERE user_id = ? AND entity_type = ? AND entity_id = ?
	`
	v := &models.DiscussionVote{}
	err := r.db.QueryRow(query, userID, entity, entityID).Scan(&v.ID, &v.UserID, &v.EntityType, &v.EntityID, &v.VoteType, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return v, nil
}

// CreateVote inserts a vote
func (r *DiscussionRepository) CreateVote(v *models.DiscussionVote) (*models.DiscussionVote, error) {
	query := `
		INSERT INTO discussion_votes (user_id, entity_type, entity_id, vote_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, v.UserID, v.EntityType, v.EntityID, v.VoteType, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create vote: %w", err)
	}
	v.ID = id
	return v, nil
}

// UpdateVoteType flips the direction of an existing vote
func (r *DiscussionRepository) UpdateVoteType(id int64, voteType models.VoteType) error {
	_, err := r.db.Exec("UPDATE discussion_votes SET vote_type = ? WHERE id = ?", voteType, id)
	return err
}

// CountVotes returns the number of vote rows held on an entity
func (r *DiscussionRepository) CountVotes(entity models.VoteEntity, entityID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM discussion_votes WHERE entity_type = ? AND entity_id = ?", entity, entityID).Scan(&count)
	return count, err
}
