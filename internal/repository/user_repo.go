package repository

import (
	"database/sql"
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, external_id, email, username, display_name, avatar_url, bio,
	website_url, github_url, twitter_url, role, subscription_tier,
	level, experience, streak_days, last_active_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var lastActive sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&user.Username,
		&user.DisplayName,
		&user.AvatarURL,
		&user.Bio,
		&user.WebsiteURL,
		&user.GitHubURL,
		&user.TwitterURL,
		&user.Role,
		&user.SubscriptionTier,
		&user.Level,
		&user.Experience,
		&user.StreakDays,
		&lastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastActive.Valid {
		user.LastActiveDate = &lastActive.Time
	}
	return user, nil
}

func (r *UserRepository) getOne(where string, arg interface{}) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where
	user, err := scanUser(r.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new user. The first user ever created becomes admin.
func (r *UserRepository) CreateUser(u *models.User) (*models.User, error) {
	var userCount int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	if userCount == 0 {
		u.Role = models.RoleAdmin
	} else if u.Role == "" {
		u.Role = models.RoleStudent
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = models.TierFree
	}
	if u.Level < 1 {
		u.Level = 1
	}

	query := `
		INSERT INTO users (external_id, email, username, display_name, avatar_url, bio,
			website_url, github_url, twitter_url, role, subscription_tier,
			level, experience, streak_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		u.ExternalID, u.Email, u.Username, u.DisplayName, u.AvatarURL, u.Bio,
		u.WebsiteURL, u.GitHubURL, u.TwitterURL, u.Role, u.SubscriptionTier,
		u.Level, u.Experience, u.StreakDays, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = id
	return u, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(id int64) (*models.User, error) {
	return r.getOne("id = ?", id)
}

// GetUserByExternalID retrieves a user by identity provider subject
func (r *UserRepository) GetUserByExternalID(externalID string) (*models.User, error) {
	return r.getOne("external_id = ?", externalID)
}

// GetUserByUsername retrieves a user by username
func (r *UserRepository) GetUserByUsername(username string) (*models.User, error) {
	return r.getOne("username = ?", username)
}

// UsernameExists reports whether a username is taken
func (r *UserRepository) UsernameExists(username string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// UpdateIdentity refreshes fields owned by the identity provider
func (r *UserRepository) UpdateIdentity(id int64, email, avatarURL string, now time.Time) error {
	query := `UPDATE users SET email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, email, avatarURL, now, id)
	return err
}

// UpdateProfile updates the user-editable profile fields
func (r *UserRepository) UpdateProfile(id int64, p models.ProfileUpdate, now time.Time) error {
	query := `
		UPDATE users
		SET display_name = ?, bio = ?, website_url = ?, github_url = ?, twitter_url = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, p.DisplayName, p.Bio, p.WebsiteURL, p.GitHubURL, p.TwitterURL, now, id)
	return err
}

// AddExperience atomically adds points to a user's experience
func (r *UserRepository) AddExperience(id int64, points int, now time.Time) error {
	query := `UPDATE users SET experience = experience + ?, updated_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, points, now, id)
	return err
}

// RaiseLevel sets the level only if it is higher than the stored one
func (r *UserRepository) RaiseLevel(id int64, level int) error {
	query := `UPDATE users SET level = ? WHERE id = ? AND level < ?`
	_, err := r.db.Exec(query, level, id, level)
	return err
}

// UpdateStreak stores the streak counter and last activity time
func (r *UserRepository) UpdateStreak(id int64, streakDays int, lastActive time.Time) error {
	query := `UPDATE users SET streak_days = ?, last_active_date = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, streakDays, lastActive, lastActive, id)
	return err
}

// SetRole changes a user's role
func (r *UserRepository) SetRole(id int64, role models.Role, now time.Time) error {
	_, err := r.db.Exec(`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, now, id)
	return err
}

// SetSubscriptionTier changes a user's subscription tier
func (r *UserRepository) SetSubscriptionTier(id int64, tier models.SubscriptionTier, now time.Time) error {
	_, err := r.db.Exec(`UPDATE users SET subscription_tier = ?, updated_at = ? WHERE id = ?`, tier, now, id)
	return err
}

// CountUsers returns the number of users
func (r *UserRepository) CountUsers() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
