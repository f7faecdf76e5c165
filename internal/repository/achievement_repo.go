package repository

import (
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// AchievementRepository stores achievements and notifications
type AchievementRepository struct {
	db database.DBTX
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(db database.DBTX) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// HasAchievement reports whether the (user, type, key) award exists
func (r *AchievementRepository) HasAchievement(userID int64, achievementType models.AchievementType, awardKey string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM achievements
		WHERE user_id = ? AND achievement_type = ? AND award_key = ?
	`
	var count int
	if err := r.db.QueryRow(query, userID, achievementType, awardKey).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check achievement: %w", err)
	}
	return count > 0, nil
}

// CreateAchievementIfAbsent inserts the achievement unless the user already holds the same
// (type, key) award, in which case it returns nil. A duplicate never fails the
// statement, so callers inside a transaction can keep going.
func (r *AchievementRepository) CreateAchievementIfAbsent(a *models.Achievement) (*models.Achievement, error) {
	query := r.db.GetDialect().IgnoreConflicts(`
		INSERT INTO achievements (user_id, achievement_type, award_key, title, description, earned_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	result, err := r.db.Exec(query, a.UserID, a.Type, a.AwardKey, a.Title, a.Description, a.EarnedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	err = r.db.QueryRow(`
		SELECT id FROM achievements
		WHERE user_id = ? AND achievement_type = ? AND award_key = ?
	`, a.UserID, a.Type, a.AwardKey).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read achievement id: %w", err)
	}
	return a, nil
}

// ListUserAchievements returns a user's achievements, newest first
func (r *AchievementRepository) ListUserAchievements(userID int64) ([]*models.Achievement, error) {
	query := `
		SELECT id, user_id, achievement_type, award_key, title, description, earned_at
		FROM achievements
		WHERE user_id = ?
		ORDER BY earned_at DESC, id DESC
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*models.Achievement
	for rows.Next() {
		a := &models.Achievement{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.AwardKey, &a.Title, &a.Description, &a.EarnedAt); err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// CountUserAchievements returns how many achievements a user holds
func (r *AchievementRepository) CountUserAchievements(userID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM achievements WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

// NotificationRepository stores per-user notifications
type NotificationRepository struct {
	db database.DBTX
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db database.DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts an unread notification
func (r *NotificationRepository) CreateNotification(userID int64, kind models.NotificationKind, title, message string, now time.Time) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, kind, title, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, userID, kind, title, message, false, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &models.Notification{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: now,
	}, nil
}

// ListUserNotifications returns a user's notifications, newest first
func (r *NotificationRepository) ListUserNotifications(userID int64, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += " AND is_read = ?"
		args = append(args, false)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one of the user's notifications read. It reports whether
// the notification exists and belongs to the user.
func (r *NotificationRepository) MarkRead(id, userID int64) (bool, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?", id, userID).Scan(&count); err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	_, err := r.db.Exec("UPDATE notifications SET is_read = ? WHERE id = ?", true, id)
	return err == nil, err
}
