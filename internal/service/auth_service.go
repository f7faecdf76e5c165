package service

import (
	"context"
	"fmt"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/identity"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
	"learnhub/internal/security"
)

// AuthService turns external identities into users and browser sessions
type AuthService struct {
	store           *repository.Store
	users           *UserService
	verifier        *identity.Verifier
	mailer          Mailer
	log             *logger.Logger
	sessionDuration time.Duration
	now             func() time.Time
}

// NewAuthService creates a new auth service. A nil verifier disables bearer
// authentication.
func NewAuthService(db *database.DB, users *UserService, verifier *identity.Verifier, mailer Mailer, sessionDuration time.Duration, log *logger.Logger) *AuthService {
	return &AuthService{
		store:           repository.NewStore(db),
		users:           users,
		verifier:        verifier,
		mailer:          mailer,
		log:             log,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
}

// Login maps an OAuth identity to a user and opens a session. New users get
// a welcome email.
func (s *AuthService) Login(ctx context.Context, id identity.Identity) (*models.Session, *models.User, error) {
	existing, err := s.store.Users.GetUserByExternalID(id.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup user: %w", err)
	}

	user, err := s.users.EnsureUser(id)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	session, err := s.store.Sessions.CreateSession(security.GenerateSessionID(), user.ID, now.Add(s.sessionDuration), now)
	if err != nil {
		return nil, nil, err
	}

	if existing == nil && s.mailer != nil && user.Email != "" {
		if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.DisplayName); err != nil {
			s.log.Warn("Failed to send welcome email", "user_id", user.ID, "error", err)
		}
	}
	return session, user, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(sessionID string) (*models.User, error) {
	session, err := s.store.Sessions.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if !s.now().Before(session.ExpiresAt) {
		_ = s.store.Sessions.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	user, err := s.store.Users.GetUserByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// AuthenticateBearer verifies an identity provider token and returns its
// user, creating the user on first contact.
func (s *AuthService) AuthenticateBearer(token string) (*models.User, error) {
	if s.verifier == nil || !s.verifier.Enabled() {
		return nil, ErrNotAuthenticated
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return s.users.EnsureUser(id)
}

// Logout invalidates a session
func (s *AuthService) Logout(sessionID string) error {
	if err := s.store.Sessions.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	n, err := s.store.Sessions.DeleteExpiredSessions(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}
