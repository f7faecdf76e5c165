package models

import "time"

// AchievementType categorises achievements
type AchievementType string

const (
	AchievementFirstLesson     AchievementType = "first-lesson"
	AchievementLevelUp         AchievementType = "level-up"
	AchievementStreak          AchievementType = "streak"
	AchievementTrackCompletion AchievementType = "track-completion"
	AchievementFirstEnrollment AchievementType = "first-enrollment"
)

// Achievement is an append-only award. (UserID, Type, AwardKey) is unique.
type Achievement struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	Type        AchievementType `json:"type"`
	AwardKey    string          `json:"awardKey"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	EarnedAt    time.Time       `json:"earnedAt"`
}

// NotificationKind categorises notifications
type NotificationKind string

const (
	NotificationLevelUp         NotificationKind = "level-up"
	NotificationTrackCompleted  NotificationKind = "track-completed"
	NotificationAchievement     NotificationKind = "achievement"
	NotificationDiscussionReply NotificationKind = "discussion-reply"
)

// Notification is a message shown to one user
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}
