package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	slugRegex     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,29}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateName checks if a display name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	if utf8.RuneCountInString(name) > 80 {
		return ValidationError{Field: "name", Message: "name must be at most 80 characters"}
	}
	return nil
}

// ValidateSlug checks a URL slug: lowercase words joined by single hyphens
func ValidateSlug(slug string) error {
	if slug == "" {
		return ValidationError{Field: "slug", Message: "slug is required"}
	}
	if len(slug) > 120 || !slugRegex.MatchString(slug) {
		return ValidationError{Field: "slug", Message: "slug must be lowercase letters, digits and single hyphens"}
	}
	return nil
}

// ValidateUsername checks a public handle
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ValidationError{Field: "username", Message: "username must be 3-30 lowercase letters, digits, '-' or '_'"}
	}
	return nil
}

// ValidateRequired checks that a text field is present and not too long
func ValidateRequired(field, value string, maxLen int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, maxLen)}
	}
	return nil
}

// ValidateRange checks that an integer lies within [min, max]
func ValidateRange(field string, value, min, max int) error {
	if value < min || value > max {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s must be between %d and %d", field, min, max)}
	}
	return nil
}

// ValidateOptionalURL accepts an empty string or an absolute http(s) URL
func ValidateOptionalURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: field, Message: "must be an http or https URL"}
	}
	return nil
}
