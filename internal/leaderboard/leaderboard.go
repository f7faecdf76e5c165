// Package leaderboard ranks users from a point-in-time snapshot of users,
// enrollments and lesson completions. Nothing here touches storage.
package leaderboard

import (
	"fmt"
	"sort"
	"time"
)

// Scope selects which users compete
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeTrack  Scope = "track"
)

// Period selects which completions count
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all-time"
)

// ProgressWeight multiplies enrollment progress in the track all-time score.
const ProgressWeight = 10

// RankWindow is how many entries are ranked when looking up one user's rank.
const RankWindow = 1000

// Query describes one leaderboard request
type Query struct {
	Scope   Scope
	TrackID int64
	Period  Period
	Limit   int
}

// Validate checks the query is well formed
func (q Query) Validate() error {
	switch q.Scope {
	case ScopeGlobal:
	case ScopeTrack:
		if q.TrackID <= 0 {
			return fmt.Errorf("track scope requires a track id")
		}
	default:
		return fmt.Errorf("unknown scope %q", q.Scope)
	}
	switch q.Period {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
	default:
		return fmt.Errorf("unknown period %q", q.Period)
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// Key identifies the query for caching
func (q Query) Key() string {
	trackID := q.TrackID
	if q.Scope == ScopeGlobal {
		trackID = 0
	}
	return fmt.Sprintf("%s:%d:%s:%d", q.Scope, trackID, q.Period, q.Limit)
}

// UserRow is the part of a user the leaderboard needs
type UserRow struct {
	ID          int64  `db:"id"`
	Username    string `db:"username"`
	DisplayName string `db:"display_name"`
	AvatarURL   string `db:"avatar_url"`
	Level       int    `db:"level"`
	Experience  int64  `db:"experience"`
}

// EnrollmentRow is one user's progress on a track
type EnrollmentRow struct {
	UserID   int64 `db:"user_id"`
	TrackID  int64 `db:"track_id"`
	Progress int   `db:"progress"`
}

// CompletionRow is one completed lesson and the experience it is worth
type CompletionRow struct {
	UserID           int64     `db:"user_id"`
	TrackID          int64     `db:"track_id"`
	LessonID         int64     `db:"lesson_id"`
	ExperiencePoints int       `db:"experience_points"`
	CompletedAt      time.Time `db:"completed_at"`
}

// Snapshot holds everything Compute reads. Users must be ordered by id.
type Snapshot struct {
	Users       []UserRow
	Enrollments []EnrollmentRow
	Completions []CompletionRow
}

// Entry is one ranked row
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Level       int    `json:"level"`
	Score       int64  `json:"score"`
	Progress    int    `json:"progress,omitempty"`
}

// WindowStart returns the earliest completion time counted for period.
// Weekly is a rolling seven days; monthly starts at the first of the
// current calendar month in now's location. All-time has no window.
func WindowStart(period Period, now time.Time) (time.Time, bool) {
	switch period {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), true
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

// Compute ranks the snapshot for q. Scores are sorted descending with ties
// kept in snapshot order, and only the first q.Limit entries are returned
// (all of them when q.Limit is zero).
func Compute(s *Snapshot, q Query, now time.Time) []Entry {
	if s == nil {
		return nil
	}

	start, windowed := WindowStart(q.Period, now)
	inScope := func(c CompletionRow) bool {
		if q.Scope == ScopeTrack && c.TrackID != q.TrackID {
			return false
		}
		return !windowed || !c.CompletedAt.Before(start)
	}

	// One pass over completions builds the user -> points index.
	earned := make(map[int64]int64)
	for _, c := range s.Completions {
		if inScope(c) {
			earned[c.UserID] += int64(c.ExperiencePoints)
		}
	}

	var entries []Entry
	switch q.Scope {
	case ScopeTrack:
		progress := make(map[int64]int)
		for _, e := range s.Enrollments {
			if e.TrackID == q.TrackID {
				progress[e.UserID] = e.Progress
			}
		}
		for _, u := range s.Users {
			p, enrolled := progress[u.ID]
			if !enrolled {
				continue
			}
			score := earned[u.ID]
			if !windowed {
				score += int64(p) * ProgressWeight
			}
			entry := newEntry(u, score)
			entry.Progress = p
			entries = append(entries, entry)
		}
	default:
		for _, u := range s.Users {
			score := u.Experience
			if windowed {
				score = earned[u.ID]
			}
			entries = append(entries, newEntry(u, score))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RankOf returns the rank of userID in entries, or nil when absent.
func RankOf(entries []Entry, userID int64) *int {
	for _, e := range entries {
		if e.UserID == userID {
			rank := e.Rank
			return &rank
		}
	}
	return nil
}

func newEntry(u UserRow, score int64) Entry {
	return Entry{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Level:       u.Level,
		Score:       score,
	}
}
