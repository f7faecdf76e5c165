package models

import "time"

// VoteType is the direction of a vote
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// VoteEntity names the kind of thing being voted on
type VoteEntity string

const (
	VoteEntityDiscussion VoteEntity = "discussion"
	VoteEntityReply      VoteEntity = "reply"
)

// Discussion is a forum thread, optionally attached to a track or lesson
type Discussion struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Author     string    `json:"author"`
	TrackID    *int64    `json:"trackId,omitempty"`
	LessonID   *int64    `json:"lessonId,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tags       []string  `json:"tags"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
	ReplyCount int       `json:"replyCount"`
	ViewCount  int       `json:"viewCount"`
	IsSolved   bool      `json:"isSolved"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DiscussionReply is an answer within a discussion
type DiscussionReply struct {
	ID           int64     `json:"id"`
	DiscussionID int64     `json:"discussionId"`
	UserID       int64     `json:"userId"`
	Author       string    `json:"author"`
	Body         string    `json:"body"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	IsSolution   bool      `json:"isSolution"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DiscussionVote is the one vote a user holds on an entity
type DiscussionVote struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"userId"`
	EntityType VoteEntity `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	VoteType   VoteType   `json:"voteType"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// DiscussionFilter narrows discussion listings
type DiscussionFilter struct {
	TrackID  int64
	LessonID int64
	Tag      string
	Sort     string // "recent" or "top"
	Limit    int
}

// DiscussionThread is a discussion with its replies
type DiscussionThread struct {
	Discussion *Discussion        `json:"discussion"`
	Replies    []*DiscussionReply `json:"replies"`
}
