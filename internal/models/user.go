package models

import "time"

// Role is the capability level of a user account
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// SubscriptionTier controls access to premium content
type SubscriptionTier string

const (
	TierFree SubscriptionTier = "free"
	TierPaid SubscriptionTier = "paid"
)

// Valid reports whether t is a known tier
func (t SubscriptionTier) Valid() bool {
	return t == TierFree || t == TierPaid
}

// User is a learner or administrator, mapped from an external identity
type User struct {
	ID               int64            `json:"id"`
	ExternalID       string           `json:"-"`
	Email            string           `json:"email"`
	Username         string           `json:"username"`
	DisplayName      string           `json:"displayName"`
	AvatarURL        string           `json:"avatarUrl"`
	Bio              string           `json:"bio"`
	WebsiteURL       string           `json:"websiteUrl"`
	GitHubURL        string           `json:"githubUrl"`
	TwitterURL       string           `json:"twitterUrl"`
	Role             Role             `json:"role"`
	SubscriptionTier SubscriptionTier `json:"subscriptionTier"`
	Level            int              `json:"level"`
	Experience       int64            `json:"experience"`
	StreakDays       int              `json:"streakDays"`
	LastActiveDate   *time.Time       `json:"lastActiveDate,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPremium reports whether the user may open premium content
func (u *User) HasPremium() bool {
	return u.SubscriptionTier == TierPaid
}

// ProfileUpdate holds the user-editable profile fields
type ProfileUpdate struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	WebsiteURL  string `json:"websiteUrl"`
	GitHubURL   string `json:"githubUrl"`
	TwitterURL  string `json:"twitterUrl"`
}

// Session represents an authenticated browser session
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
