package service

import (
	"fmt"
	"time"

	"learnhub/internal/models"
	"learnhub/internal/repository"
)

// ExperiencePerLevel is the experience needed to gain one level.
const ExperiencePerLevel = 100

// streakMilestones award an achievement when the streak lands on them exactly.
var streakMilestones = []int{7, 30, 100}

// LevelForExperience is the canonical level formula: floor(xp/100) + 1.
func LevelForExperience(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/ExperiencePerLevel) + 1
}

// ExperienceToNextLevel is how much experience separates xp from the next
// level above level.
func ExperienceToNextLevel(level int, xp int64) int64 {
	remaining := int64(level)*ExperiencePerLevel - xp
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExperienceResult reports the outcome of adding experience
type ExperienceResult struct {
	LeveledUp     bool  `json:"leveledUp"`
	NewLevel      int   `json:"newLevel"`
	NewExperience int64 `json:"newExperience"`
}

// addExperience atomically adds points and raises the stored level when the
// new total earns one. Level never goes down.
func addExperience(st *repository.Store, userID int64, points int, now time.Time) (*ExperienceResult, error) {
	if points < 0 {
		return nil, fmt.Errorf("%w: experience points must not be negative", ErrInvalidInput)
	}
	if err := st.Users.AddExperience(userID, points, now); err != nil {
		return nil, fmt.Errorf("failed to add experience: %w", err)
	}
	user, err := st.Users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	newLevel := LevelForExperience(user.Experience)
	result := &ExperienceResult{
		LeveledUp:     newLevel > user.Level,
		NewLevel:      max(newLevel, user.Level),
		NewExperience: user.Experience,
	}
	if !result.LeveledUp {
		return result, nil
	}

	if err := st.Users.RaiseLevel(userID, newLevel); err != nil {
		return nil, fmt.Errorf("failed to raise level: %w", err)
	}
	_, err = st.Notifications.CreateNotification(userID, models.NotificationLevelUp,
		fmt.Sprintf("Level %d reached", newLevel),
		fmt.Sprintf("You now have %d experience points.", user.Experience),
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to notify level up: %w", err)
	}
	return result, nil
}

// StreakResult reports the outcome of a streak update
type StreakResult struct {
	StreakDays int  `json:"streakDays"`
	Changed    bool `json:"changed"`
	Milestone  int  `json:"milestone,omitempty"`
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// nextStreak applies the daily streak rule using calendar days in loc.
func nextStreak(current int, lastActive *time.Time, now time.Time, loc *time.Location) int {
	if lastActive == nil {
		return 1
	}
	today := dayOf(now, loc)
	switch dayOf(*lastActive, loc) {
	case today:
		return current
	case today.AddDate(0, 0, -1):
		return current + 1
	}
	return 1
}

func applyStreak(st *repository.Store, user *models.User, now time.Time, loc *time.Location) (*StreakResult, error) {
	streak := nextStreak(user.StreakDays, user.LastActiveDate, now, loc)
	if err := st.Users.UpdateStreak(user.ID, streak, now); err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	result := &StreakResult{StreakDays: streak, Changed: streak != user.StreakDays}
	if result.Changed {
		for _, m := range streakMilestones {
			if streak == m {
				result.Milestone = m
			}
		}
	}
	user.StreakDays = streak
	user.LastActiveDate = &now
	return result, nil
}

// award describes an achievement and the key that makes it unique per user.
type award struct {
	kind        models.AchievementType
	key         string
	title       string
	description string
}

func firstLessonAward() award {
	return award{models.AchievementFirstLesson, "first-lesson", "First Steps", "Completed your first lesson."}
}

func firstEnrollmentAward() award {
	return award{models.AchievementFirstEnrollment, "first-enrollment", "Enrolled", "Joined your first track."}
}

func levelAward(level int) award {
	return award{
		models.AchievementLevelUp,
		fmt.Sprintf("level-%d", level),
		fmt.Sprintf("Level %d", level),
		fmt.Sprintf("Reached level %d.", level),
	}
}

func streakAward(days int) award {
	return award{
		models.AchievementStreak,
		fmt.Sprintf("streak-%d", days),
		fmt.Sprintf("%d-Day Streak", days),
		fmt.Sprintf("Completed lessons %d days in a row.", days),
	}
}

func trackAward(track *models.Track) award {
	return award{
		models.AchievementTrackCompletion,
		fmt.Sprintf("track-%d", track.ID),
		"Finished " + track.Title,
		fmt.Sprintf("Completed every lesson in %s.", track.Title),
	}
}

// grantAchievement inserts the award unless the user already holds it. It
// returns nil when nothing new was granted.
func grantAchievement(st *repository.Store, userID int64, a award, now time.Time) (*models.Achievement, error) {
	held, err := st.Achievements.HasAchievement(userID, a.kind, a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to check achievement: %w", err)
	}
	if held {
		return nil, nil
	}

	// A concurrent grant may still land between the check and the insert.
	achievement, err := st.Achievements.CreateAchievementIfAbsent(&models.Achievement{
		UserID:      userID,
		Type:        a.kind,
		AwardKey:    a.key,
		Title:       a.title,
		Description: a.description,
		EarnedAt:    now,
	})
	if err != nil || achievement == nil {
		return nil, err
	}

	_, err = st.Notifications.CreateNotification(userID, models.NotificationAchievement,
		"Achievement unlocked: "+a.title, a.description, now)
	if err != nil {
		return nil, fmt.Errorf("failed to notify achievement: %w", err)
	}
	return achievement, nil
}
