package service

import (
	"fmt"
	"strings"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
	"learnhub/internal/validation"
)

const (
	defaultDiscussionLimit = 20
	maxDiscussionLimit     = 100
	maxDiscussionTags      = 5
)

// DiscussionInput is a new discussion thread
type DiscussionInput struct {
	TrackID  *int64   `json:"trackId"`
	LessonID *int64   `json:"lessonId"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
}

// VoteResult is an entity's counters after a vote
type VoteResult struct {
	EntityType models.VoteEntity `json:"entityType"`
	EntityID   int64             `json:"entityId"`
	VoteType   models.VoteType   `json:"voteType"`
	Upvotes    int               `json:"upvotes"`
	Downvotes  int               `json:"downvotes"`
}

// DiscussionService handles the discussion board
type DiscussionService struct {
	db    *database.DB
	store *repository.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewDiscussionService creates a new discussion service
func NewDiscussionService(db *database.DB, log *logger.Logger) *DiscussionService {
	return &DiscussionService{
		db:    db,
		store: repository.NewStore(db),
		log:   log,
		now:   time.Now,
	}
}

// moderate rejects text containing blocked terms
func (s *DiscussionService) moderate(texts ...string) error {
	found, err := s.db.FindBlockedTerms(strings.Join(texts, " "))
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return fmt.Errorf("%w: %s", ErrBlockedContent, strings.Join(found, ", "))
	}
	return nil
}

func normalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if len(t) > 30 {
			return nil, validation.ValidationError{Field: "tags", Message: "tags must be at most 30 characters"}
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxDiscussionTags {
		return nil, validation.ValidationError{Field: "tags", Message: fmt.Sprintf("at most %d tags", maxDiscussionTags)}
	}
	return out, nil
}

// CreateDiscussion opens a thread, optionally attached to a track or lesson
func (s *DiscussionService) CreateDiscussion(user *models.User, in DiscussionInput) (*models.Discussion, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if err := validation.ValidateRequired("title", in.Title, 200); err != nil {
		return nil, err
	}
	if err := validation.ValidateRequired("body", in.Body, 10000); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	if in.LessonID != nil {
		lesson, err := s.store.Lessons.GetLessonByID(*in.LessonID)
		if err != nil {
			return nil, err
		}
		if lesson == nil {
			return nil, fmt.Errorf("%w: lesson %d", ErrNotFound, *in.LessonID)
		}
		in.TrackID = &lesson.TrackID
	} else if in.TrackID != nil {
		track, err := s.store.Tracks.GetTrackByID(*in.TrackID)
		if err != nil {
			return nil, err
		}
		if track == nil {
			return nil, fmt.Errorf("%w: track %d", ErrNotFound, *in.TrackID)
		}
	}

	if err := s.moderate(in.Title, in.Body, strings.Join(tags, " ")); err != nil {
		return nil, err
	}

	now := s.now()
	d, err := s.store.Discussions.CreateDiscussion(&models.Discussion{
		UserID:    user.ID,
		Author:    user.Username,
		TrackID:   in.TrackID,
		LessonID:  in.LessonID,
		Title:     in.Title,
		Body:      in.Body,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Discussion created", "discussion_id", d.ID, "user_id", user.ID)
	return d, nil
}

// ListDiscussions returns threads matching filter
func (s *DiscussionService) ListDiscussions(filter models.DiscussionFilter) ([]*models.Discussion, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultDiscussionLimit
	}
	filter.Limit = min(filter.Limit, maxDiscussionLimit)
	filter.Tag = strings.ToLower(strings.TrimSpace(filter.Tag))
	if filter.Sort != "top" {
		filter.Sort = "recent"
	}

	discussions, err := s.store.Discussions.ListDiscussions(filter)
	if err != nil {
		return nil, err
	}
	if discussions == nil {
		discussions = []*models.Discussion{}
	}
	return discussions, nil
}

// GetDiscussion returns a thread with its replies and counts the view
func (s *DiscussionService) GetDiscussion(id int64) (*models.DiscussionThread, error) {
	if err := s.store.Discussions.IncrementViewCount(id); err != nil {
		return nil, fmt.Errorf("failed to count view: %w", err)
	}
	d, err := s.store.Discussions.GetDiscussion(id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: discussion %d", ErrNotFound, id)
	}
	replies, err := s.store.Discussions.ListReplies(id)
	if err != nil {
		return nil, err
	}
	return &models.DiscussionThread{Discussion: d, Replies: replies}, nil
}

// Reply answers a discussion and notifies its author
func (s *DiscussionService) Reply(user *models.User, discussionID int64, body string) (*models.DiscussionReply, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	body = strings.TrimSpace(body)
	if err := validation.ValidateRequired("body", body, 10000); err != nil {
		return nil, err
	}
	if err := s.moderate(body); err != nil {
		return nil, err
	}

	var reply *models.DiscussionReply
	err := s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		d, err := st.Discussions.GetDiscussion(discussionID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("%w: discussion %d", ErrNotFound, discussionID)
		}

		now := s.now()
		reply, err = st.Discussions.CreateReply(&models.DiscussionReply{
			DiscussionID: discussionID,
			UserID:       user.ID,
			Author:       user.Username,
			Body:         body,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		if err := st.Discussions.IncrementReplyCount(discussionID, now); err != nil {
			return fmt.Errorf("failed to count reply: %w", err)
		}
		if d.UserID != user.ID {
			_, err = st.Notifications.CreateNotification(d.UserID, models.NotificationDiscussionReply,
				"New reply to "+d.Title, user.Username+" replied to your discussion.", now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Vote records the user's single vote on a discussion or reply. Voting the
// same way twice changes nothing; voting the other way flips the vote and
// moves one count between the counters. Votes cannot be withdrawn.
func (s *DiscussionService) Vote(user *models.User, entity models.VoteEntity, entityID int64, voteType models.VoteType) (*VoteResult, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	if entity != models.VoteEntityDiscussion && entity != models.VoteEntityReply {
		return nil, fmt.Errorf("%w: unknown entity %q", ErrInvalidVote, entity)
	}
	if voteType != models.VoteUp && voteType != models.VoteDown {
		return nil, fmt.Errorf("%w: unknown vote type %q", ErrInvalidVote, voteType)
	}

	result := &VoteResult{EntityType: entity, EntityID: entityID, VoteType: voteType}
	err := s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if err := voteTargetExists(st, entity, entityID); err != nil {
			return err
		}

		existing, err := st.Discussions.GetVote(user.ID, entity, entityID)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			_, err = st.Discussions.CreateVote(&models.DiscussionVote{
				UserID:     user.ID,
				EntityType: entity,
				EntityID:   entityID,
				VoteType:   voteType,
				CreatedAt:  s.now(),
			})
			if err != nil {
				return err
			}
			up, down := 0, 0
			if voteType == models.VoteUp {
				up = 1
			} else {
				down = 1
			}
			err = st.Discussions.AdjustVotes(entity, entityID, up, down)
		case existing.VoteType != voteType:
			if err := st.Discussions.UpdateVoteType(existing.ID, voteType); err != nil {
				return err
			}
			if voteType == models.VoteUp {
				err = st.Discussions.AdjustVotes(entity, entityID, 1, -1)
			} else {
				err = st.Discussions.AdjustVotes(entity, entityID, -1, 1)
			}
		}
		if err != nil {
			return err
		}

		result.Upvotes, result.Downvotes, err = voteCounts(st, entity, entityID)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: concurrent vote, retry", ErrInvalidVote)
		}
		return nil, err
	}
	return result, nil
}

func voteTargetExists(st *repository.Store, entity models.VoteEntity, id int64) error {
	up, _, err := voteCounts(st, entity, id)
	if up < 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
	}
	return err
}

// voteCounts returns the counters of a discussion or reply, or -1 counts
// when it does not exist.
func voteCounts(st *repository.Store, entity models.VoteEntity, id int64) (int, int, error) {
	if entity == models.VoteEntityReply {
		reply, err := st.Discussions.GetReply(id)
		if err != nil || reply == nil {
			return -1, -1, err
		}
		return reply.Upvotes, reply.Downvotes, nil
	}
	d, err := st.Discussions.GetDiscussion(id)
	if err != nil || d == nil {
		return -1, -1, err
	}
	return d.Upvotes, d.Downvotes, nil
}

// MarkSolution accepts a reply as the answer. Only the discussion's author
// or an admin may do this.
func (s *DiscussionService) MarkSolution(user *models.User, replyID int64) (*models.DiscussionReply, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	reply, err := s.store.Discussions.GetReply(replyID)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: reply %d", ErrNotFound, replyID)
	}
	d, err := s.store.Discussions.GetDiscussion(reply.DiscussionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: discussion %d", ErrNotFound, reply.DiscussionID)
	}
	if d.UserID != user.ID && !user.IsAdmin() {
		return nil, ErrForbidden
	}

	err = s.db.WithTx(func(tx *database.Tx) error {
		return repository.NewStore(tx).Discussions.MarkSolution(d.ID, reply.ID, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark solution: %w", err)
	}
	reply.IsSolution = true
	return reply, nil
}
