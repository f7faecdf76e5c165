package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				UserID:    1,
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			result := session.IsExpired()
			if result != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", result, tt.want)
			}
		})
	}
}

func TestLessonPublicCopy(t *testing.T) {
	lesson := &Lesson{
		Slug: "loops",
		Questions: []QuizQuestion{
			{Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Explanation: "arithmetic"},
		},
		TestCases: []TestCase{
			{Input: "1", ExpectedOutput: "1"},
			{Input: "2", ExpectedOutput: "4", Hidden: true},
		},
	}

	public := lesson.PublicCopy()

	if public.Questions[0].CorrectAnswer != -1 || public.Questions[0].Explanation != "" {
		t.Errorf("answer leaked: %+v", public.Questions[0])
	}
	if len(public.TestCases) != 1 || public.TestCases[0].Hidden {
		t.Errorf("hidden test cases leaked: %+v", public.TestCases)
	}
	if lesson.Questions[0].CorrectAnswer != 1 || len(lesson.TestCases) != 2 {
		t.Error("PublicCopy must not modify the original lesson")
	}
}

func TestEnumValidity(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
		want  bool
	}{
		{"student role", RoleStudent.Valid(), true},
		{"unknown role", Role("owner").Valid(), false},
		{"paid tier", TierPaid.Valid(), true},
		{"unknown tier", SubscriptionTier("gold").Valid(), false},
		{"completed status", StatusCompleted.Valid(), true},
		{"unknown status", ProgressStatus("done").Valid(), false},
		{"maintenance type", ChangelogMaintenance.Valid(), true},
		{"unknown type", ChangelogType("rumour").Valid(), false},
		{"empty severity", SeverityNone.Valid(), true},
		{"unknown severity", Severity("apocalyptic").Valid(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.valid != tt.want {
				t.Errorf("Valid() = %v, want %v", tt.valid, tt.want)
			}
		})
	}
}

func TestUserCapabilities(t *testing.T) {
	u := &User{Role: RoleStudent, SubscriptionTier: TierFree}
	if u.IsAdmin() || u.HasPremium() {
		t.Errorf("free student: admin=%v premium=%v", u.IsAdmin(), u.HasPremium())
	}
	u.Role, u.SubscriptionTier = RoleAdmin, TierPaid
	if !u.IsAdmin() || !u.HasPremium() {
		t.Errorf("paid admin: admin=%v premium=%v", u.IsAdmin(), u.HasPremium())
	}
}
