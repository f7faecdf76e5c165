package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/identity"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
	"learnhub/internal/username"
	"learnhub/internal/validation"
)

const usernameAttempts = 10

// UserService handles profiles, experience and streaks
type UserService struct {
	db          *database.DB
	store       *repository.Store
	leaderboard *LeaderboardService
	log         *logger.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewUserService creates a new user service. loc sets the calendar used for
// streak day boundaries.
func NewUserService(db *database.DB, leaderboard *LeaderboardService, loc *time.Location, log *logger.Logger) *UserService {
	if loc == nil {
		loc = time.Local
	}
	return &UserService{
		db:          db,
		store:       repository.NewStore(db),
		leaderboard: leaderboard,
		log:         log,
		loc:         loc,
		now:         time.Now,
	}
}

func requireAdmin(actor *models.User) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func invalidateScores(ctx context.Context, lb *LeaderboardService) {
	if lb != nil {
		lb.Invalidate(ctx)
	}
}

// EnsureUser maps an external identity to a user, creating the user on
// first contact. Provider-owned fields are refreshed on later logins.
func (s *UserService) EnsureUser(id identity.Identity) (*models.User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, ErrNotAuthenticated
	}

	user, err := s.store.Users.GetUserByExternalID(id.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if (id.Email != "" && id.Email != user.Email) || (id.AvatarURL != "" && id.AvatarURL != user.AvatarURL) {
			email := firstNonEmpty(id.Email, user.Email)
			avatar := firstNonEmpty(id.AvatarURL, user.AvatarURL)
			if err := s.store.Users.UpdateIdentity(user.ID, email, avatar, s.now()); err != nil {
				return nil, fmt.Errorf("failed to refresh identity: %w", err)
			}
			user.Email, user.AvatarURL = email, avatar
		}
		return user, nil
	}

	base := username.FromEmail(id.Email)
	if base == "" {
		if base, err = username.Generate(); err != nil {
			return nil, fmt.Errorf("failed to generate username: %w", err)
		}
	}

	for attempt := 0; attempt < usernameAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = username.WithSuffix(base, attempt+1)
		}
		taken, err := s.store.Users.UsernameExists(candidate)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		now := s.now()
		created, err := s.store.Users.CreateUser(&models.User{
			ExternalID:  id.Subject,
			Email:       id.Email,
			Username:    candidate,
			DisplayName: firstNonEmpty(strings.TrimSpace(id.Name), candidate),
			AvatarURL:   id.AvatarURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err == nil {
			s.log.Info("Created user", "user_id", created.ID, "username", created.Username, "role", created.Role)
			return created, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, err
		}
		// Lost a race: either the subject was created concurrently or the
		// username was just taken.
		if existing, lookupErr := s.store.Users.GetUserByExternalID(id.Subject); lookupErr == nil && existing != nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("failed to allocate a username for %q", base)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetUser returns a user by id
func (s *UserService) GetUser(userID int64) (*models.User, error) {
	user, err := s.store.Users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return user, nil
}

// GetUserByUsername returns a user by handle
func (s *UserService) GetUserByUsername(name string) (*models.User, error) {
	user, err := s.store.Users.GetUserByUsername(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, name)
	}
	return user, nil
}

// UpdateProfile validates and stores the editable profile fields
func (s *UserService) UpdateProfile(userID int64, p models.ProfileUpdate) (*models.User, error) {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Bio = strings.TrimSpace(p.Bio)
	if err := validation.ValidateName(p.DisplayName); err != nil {
		return nil, err
	}
	if len([]rune(p.Bio)) > 500 {
		return nil, validation.ValidationError{Field: "bio", Message: "bio must be at most 500 characters"}
	}
	for field, raw := range map[string]string{"websiteUrl": p.WebsiteURL, "githubUrl": p.GitHubURL, "twitterUrl": p.TwitterURL} {
		if err := validation.ValidateOptionalURL(field, raw); err != nil {
			return nil, err
		}
	}

	if _, err := s.GetUser(userID); err != nil {
		return nil, err
	}
	if err := s.store.Users.UpdateProfile(userID, p, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetUser(userID)
}

// AddExperience adds points to a user and reports whether they levelled up
func (s *UserService) AddExperience(ctx context.Context, userID int64, points int) (*ExperienceResult, error) {
	var result *ExperienceResult
	err := s.db.WithTx(func(tx *database.Tx) error {
		var err error
		result, err = addExperience(repository.NewStore(tx), userID, points, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	invalidateScores(ctx, s.leaderboard)
	return result, nil
}

// UpdateStreak applies today's activity to the user's daily streak and
// awards a streak achievement when a milestone is reached.
func (s *UserService) UpdateStreak(userID int64) (*StreakResult, error) {
	var result *StreakResult
	err := s.db.WithTx(func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		user, err := st.Users.GetUserByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		now := s.now()
		if result, err = applyStreak(st, user, now, s.loc); err != nil {
			return err
		}
		if result.Milestone > 0 {
			_, err = grantAchievement(st, userID, streakAward(result.Milestone), now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetStats summarises a user's learning activity
func (s *UserService) GetStats(userID int64) (*models.UserStats, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	completedLessons, err := s.store.Progress.CountCompleted(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	timeSpent, err := s.store.Progress.SumTimeSpent(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum time spent: %w", err)
	}
	enrolled, completed, err := s.store.Enrollments.CountUserEnrollments(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}
	achievements, err := s.store.Achievements.CountUserAchievements(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count achievements: %w", err)
	}

	return &models.UserStats{
		CompletedLessons:      completedLessons,
		TotalTimeSpent:        timeSpent,
		EnrolledTracks:        enrolled,
		CompletedTracks:       completed,
		Achievements:          achievements,
		Level:                 user.Level,
		Experience:            user.Experience,
		ExperienceToNextLevel: ExperienceToNextLevel(user.Level, user.Experience),
		StreakDays:            user.StreakDays,
	}, nil
}

// SetRole changes a user's role. Only admins may do this.
func (s *UserService) SetRole(actor *models.User, userID int64, role models.Role) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.setRole(userID, role)
}

// PromoteByUsername grants the admin role from a trusted context such as
// the admin CLI.
func (s *UserService) PromoteByUsername(name string) (*models.User, error) {
	user, err := s.GetUserByUsername(name)
	if err != nil {
		return nil, err
	}
	if err := s.setRole(user.ID, models.RoleAdmin); err != nil {
		return nil, err
	}
	user.Role = models.RoleAdmin
	return user, nil
}

func (s *UserService) setRole(userID int64, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, err := s.GetUser(userID); err != nil {
		return err
	}
	if err := s.store.Users.SetRole(userID, role, s.now()); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	s.log.Info("Changed user role", "user_id", userID, "role", role)
	return nil
}

// SetSubscriptionTier changes a user's tier. Only admins may do this.
func (s *UserService) SetSubscriptionTier(actor *models.User, userID int64, tier models.SubscriptionTier) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown subscription tier %q", ErrInvalidInput, tier)
	}
	if _, err := s.GetUser(userID); err != nil {
		return err
	}
	if err := s.store.Users.SetSubscriptionTier(userID, tier, s.now()); err != nil {
		return fmt.Errorf("failed to set subscription tier: %w", err)
	}
	return nil
}
