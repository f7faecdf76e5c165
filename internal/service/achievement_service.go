package service

import (
	"fmt"

	"learnhub/internal/database"
	"learnhub/internal/models"
	"learnhub/internal/repository"
)

const defaultNotificationLimit = 50

// AchievementService exposes earned achievements and notifications. Awards
// themselves are granted inside the transactions that earn them.
type AchievementService struct {
	store *repository.Store
}

// NewAchievementService creates a new achievement service
func NewAchievementService(db *database.DB) *AchievementService {
	return &AchievementService{store: repository.NewStore(db)}
}

// ListAchievements returns a user's achievements, newest first
func (s *AchievementService) ListAchievements(userID int64) ([]*models.Achievement, error) {
	achievements, err := s.store.Achievements.ListUserAchievements(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	if achievements == nil {
		achievements = []*models.Achievement{}
	}
	return achievements, nil
}

// ListNotifications returns a user's notifications, newest first
func (s *AchievementService) ListNotifications(userID int64, unreadOnly bool) ([]*models.Notification, error) {
	notifications, err := s.store.Notifications.ListUserNotifications(userID, unreadOnly, defaultNotificationLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}

// MarkNotificationRead marks one of the user's notifications as read
func (s *AchievementService) MarkNotificationRead(userID, notificationID int64) error {
	ok, err := s.store.Notifications.MarkRead(notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification %d", ErrNotFound, notificationID)
	}
	return nil
}
