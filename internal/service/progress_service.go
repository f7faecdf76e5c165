package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
)

// QuizPassingScore is the minimum quiz score that completes a lesson.
const QuizPassingScore = 70

// ProgressResult reports everything a progress update changed
type ProgressResult struct {
	Progress     *models.Progress      `json:"progress"`
	Completed    bool                  `json:"completed"`
	Experience   *ExperienceResult     `json:"experience,omitempty"`
	Streak       *StreakResult         `json:"streak,omitempty"`
	Track        *TrackProgress        `json:"track,omitempty"`
	Achievements []*models.Achievement `json:"achievements"`
}

// QuizResult is a graded quiz submission
type QuizResult struct {
	Score   int             `json:"score"`
	Passed  bool            `json:"passed"`
	Correct []bool          `json:"correct"`
	Result  *ProgressResult `json:"result"`
}

// CodeResult is a run code submission
type CodeResult struct {
	Run    *RunResult      `json:"run"`
	Result *ProgressResult `json:"result"`
}

// ProgressService records lesson progress and runs the completion cascade
type ProgressService struct {
	db          *database.DB
	enrollments *EnrollmentService
	leaderboard *LeaderboardService
	runner      CodeRunner
	log         *logger.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(db *database.DB, enrollments *EnrollmentService, leaderboard *LeaderboardService, runner CodeRunner, loc *time.Location, log *logger.Logger) *ProgressService {
	if runner == nil {
		runner = StubRunner{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &ProgressService{
		db:          db,
		enrollments: enrollments,
		leaderboard: leaderboard,
		runner:      runner,
		log:         log,
		loc:         loc,
		now:         time.Now,
	}
}

type progressUpdate struct {
	status    models.ProgressStatus
	timeSpent int
	score     *int
	code      *string
	answers   *string
	// keepCompleted stops a completed lesson from being moved back to an
	// earlier status.
	keepCompleted bool
}

type cascade struct {
	result        *ProgressResult
	track         *models.Track
	scoresChanged bool
}

// RecordProgress upserts the user's progress on a lesson. The first
// transition into completed awards the lesson's experience, advances the
// streak, recomputes the enrollment and grants achievements, all in one
// transaction.
func (s *ProgressService) RecordProgress(ctx context.Context, userID, lessonID int64, status models.ProgressStatus, timeSpent int, score *int) (*ProgressResult, error) {
	return s.apply(ctx, userID, lessonID, progressUpdate{status: status, timeSpent: timeSpent, score: score})
}

// StartLesson marks a lesson in progress unless it is already completed
func (s *ProgressService) StartLesson(ctx context.Context, userID, lessonID int64) (*ProgressResult, error) {
	return s.apply(ctx, userID, lessonID, progressUpdate{status: models.StatusInProgress, keepCompleted: true})
}

// SubmitQuiz grades answers against the lesson's questions. A score of at
// least QuizPassingScore completes the lesson.
func (s *ProgressService) SubmitQuiz(ctx context.Context, userID, lessonID int64, answers []int, timeSpent int) (*QuizResult, error) {
	lesson, err := repository.NewLessonRepository(s.db).GetLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
	}
	if lesson.Type != models.LessonQuiz || len(lesson.Questions) == 0 {
		return nil, fmt.Errorf("%w: lesson %d is not a quiz", ErrInvalidInput, lessonID)
	}
	if len(answers) != len(lesson.Questions) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidInput, len(lesson.Questions), len(answers))
	}

	score, correct := GradeQuiz(lesson.Questions, answers)
	status := models.StatusInProgress
	if score >= QuizPassingScore {
		status = models.StatusCompleted
	}

	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	encoded := string(raw)

	result, err := s.apply(ctx, userID, lessonID, progressUpdate{
		status:        status,
		timeSpent:     timeSpent,
		score:         &score,
		answers:       &encoded,
		keepCompleted: true,
	})
	if err != nil {
		return nil, err
	}
	return &QuizResult{Score: score, Passed: status == models.StatusCompleted, Correct: correct, Result: result}, nil
}

// GradeQuiz returns round(100 * earned / total points) and which answers
// were right.
func GradeQuiz(questions []models.QuizQuestion, answers []int) (int, []bool) {
	correct := make([]bool, len(questions))
	var earned, total int
	for i, q := range questions {
		points := max(q.Points, 1)
		total += points
		if i < len(answers) && answers[i] == q.CorrectAnswer {
			correct[i] = true
			earned += points
		}
	}
	if total == 0 {
		return 0, correct
	}
	return int(math.Round(100 * float64(earned) / float64(total))), correct
}

// SubmitCode runs the code against the lesson's tests. Passing every test
// completes the lesson.
func (s *ProgressService) SubmitCode(ctx context.Context, userID, lessonID int64, code string, timeSpent int) (*CodeResult, error) {
	lesson, err := repository.NewLessonRepository(s.db).GetLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
	}
	if lesson.Type != models.LessonCoding && lesson.Type != models.LessonProject {
		return nil, fmt.Errorf("%w: lesson %d does not accept code", ErrInvalidInput, lessonID)
	}

	run, err := s.runner.Run(ctx, lesson, code)
	if err != nil {
		return nil, fmt.Errorf("failed to run code: %w", err)
	}
	score := int(math.Round(100 * float64(run.Passed) / float64(max(run.Total, 1))))
	status := models.StatusInProgress
	if run.AllPassed() {
		status = models.StatusCompleted
	}

	result, err := s.apply(ctx, userID, lessonID, progressUpdate{
		status:        status,
		timeSpent:     timeSpent,
		score:         &score,
		code:          &code,
		keepCompleted: true,
	})
	if err != nil {
		return nil, err
	}
	return &CodeResult{Run: run, Result: result}, nil
}

func (s *ProgressService) apply(ctx context.Context, userID, lessonID int64, u progressUpdate) (*ProgressResult, error) {
	if !u.status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, u.status)
	}
	if u.timeSpent < 0 {
		return nil, fmt.Errorf("%w: time spent must not be negative", ErrInvalidInput)
	}
	if u.score != nil && (*u.score < 0 || *u.score > 100) {
		return nil, fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidInput)
	}

	var c *cascade
	err := s.db.WithTx(func(tx *database.Tx) error {
		var err error
		c, err = s.record(repository.NewStore(tx), userID, lessonID, u, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if c.scoresChanged {
		invalidateScores(ctx, s.leaderboard)
	}
	if c.result.Track != nil && c.result.Track.JustCompleted && s.enrollments != nil {
		s.enrollments.sendCertificate(ctx, userID, c.track, c.result.Track.Enrollment.CertificateID)
	}
	return c.result, nil
}

func (s *ProgressService) record(st *repository.Store, userID, lessonID int64, u progressUpdate, now time.Time) (*cascade, error) {
	user, err := st.Users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	lesson, err := st.Lessons.GetLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil || !visible(lesson.IsPublished, user) {
		return nil, fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
	}
	track, err := st.Tracks.GetTrackByID(lesson.TrackID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, fmt.Errorf("%w: track %d", ErrNotFound, lesson.TrackID)
	}
	if requiresPremium(track, lesson) && !user.HasPremium() && !user.IsAdmin() {
		return nil, ErrPremiumRequired
	}

	existing, err := st.Progress.GetProgress(userID, lessonID)
	if err != nil {
		return nil, err
	}
	status := u.status
	if u.keepCompleted && existing.IsCompleted() {
		status = models.StatusCompleted
	}
	var completedAt *time.Time
	if status == models.StatusCompleted {
		completedAt = &now
	}
	// completed_at is written once, so it alone decides whether this is the
	// first completion.
	transition := status == models.StatusCompleted && (existing == nil || existing.CompletedAt == nil)

	var progress *models.Progress
	if existing == nil {
		progress, err = st.Progress.CreateProgress(&models.Progress{
			UserID:      userID,
			LessonID:    lessonID,
			TrackID:     lesson.TrackID,
			Status:      status,
			Score:       u.score,
			TimeSpent:   u.timeSpent,
			Attempts:    1,
			CompletedAt: completedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	} else {
		err = st.Progress.RecordAttempt(existing.ID, status, u.score, u.timeSpent, completedAt, now)
		if err == nil {
			progress, err = st.Progress.GetProgress(userID, lessonID)
		}
	}
	if err != nil {
		return nil, err
	}

	if u.code != nil || u.answers != nil {
		code, answers := progress.SubmittedCode, progress.QuizAnswers
		if u.code != nil {
			code = *u.code
		}
		if u.answers != nil {
			answers = *u.answers
		}
		if err := st.Progress.SaveSubmission(progress.ID, code, answers); err != nil {
			return nil, fmt.Errorf("failed to save submission: %w", err)
		}
		progress.SubmittedCode, progress.QuizAnswers = code, answers
	}

	enrollment, enrolled, err := ensureEnrollment(st, userID, track.ID, now)
	if err != nil {
		return nil, err
	}

	c := &cascade{
		result:        &ProgressResult{Progress: progress, Completed: transition, Achievements: []*models.Achievement{}},
		track:         track,
		scoresChanged: enrolled,
	}
	grant := func(a award) error {
		achievement, err := grantAchievement(st, userID, a, now)
		if achievement != nil {
			c.result.Achievements = append(c.result.Achievements, achievement)
		}
		return err
	}

	if !transition {
		if err := st.Enrollments.UpdateProgress(enrollment.ID, enrollment.Progress, u.timeSpent, enrollment.StreakCount, now); err != nil {
			return nil, err
		}
		// Starting a lesson can be the user's first contact with the track.
		if enrolled {
			if err := grant(firstEnrollmentAward()); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	c.scoresChanged = true

	if c.result.Experience, err = addExperience(st, userID, lesson.ExperiencePoints, now); err != nil {
		return nil, err
	}
	if c.result.Experience.LeveledUp {
		if err := grant(levelAward(c.result.Experience.NewLevel)); err != nil {
			return nil, err
		}
	}

	if c.result.Streak, err = applyStreak(st, user, now, s.loc); err != nil {
		return nil, err
	}
	if m := c.result.Streak.Milestone; m > 0 {
		if err := grant(streakAward(m)); err != nil {
			return nil, err
		}
	}

	if err := grant(firstLessonAward()); err != nil {
		return nil, err
	}

	trackProgress, trackAchievements, err := recomputeTrackProgress(st, enrollment, track, u.timeSpent, c.result.Streak.StreakDays, now)
	if err != nil {
		return nil, err
	}
	c.result.Track = trackProgress
	c.result.Achievements = append(c.result.Achievements, trackAchievements...)

	if enrolled {
		if err := grant(firstEnrollmentAward()); err != nil {
			return nil, err
		}
	}
	return c, nil
}
