package username

import (
	"regexp"
	"testing"
)

var handlePattern = regexp.MustCompile(`^[a-z]+-[a-z]+-\d{4}$`)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		handle, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if !handlePattern.MatchString(handle) {
			t.Errorf("Generate() = %q, want adjective-noun-NNNN", handle)
		}
		if len(handle) > maxLength {
			t.Errorf("Generate() = %q is longer than %d", handle, maxLength)
		}
		seen[handle] = true
	}
	if len(seen) < 2 {
		t.Error("Generate() should not return the same handle every time")
	}
}

func TestFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"ada@example.com", "ada"},
		{"Ada.Lovelace@example.com", "ada-lovelace"},
		{"grace+newsletter@example.com", "grace"},
		{"x@example.com", ""},
		{"..__..@example.com", ""},
		{"", ""},
		{"a_very_long_local_part_that_keeps_going@example.com", "a_very_long_local_part_th"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := FromEmail(tt.email); got != tt.want {
				t.Errorf("FromEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestWithSuffix(t *testing.T) {
	if got := WithSuffix("ada", 2); got != "ada-2" {
		t.Errorf("WithSuffix() = %q, want ada-2", got)
	}
	long := "abcdefghijklmnopqrstuvwxyzabcd"
	if got := WithSuffix(long, 12); len(got) > maxLength {
		t.Errorf("WithSuffix() = %q exceeds max length", got)
	}
}
