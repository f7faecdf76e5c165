// Package username derives public handles for new accounts.
package username

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

var adjectives = []string{
	"happy", "sunny", "brave", "bright", "cool", "swift", "clever", "jolly",
	"mighty", "super", "wild", "lucky", "magic", "bold", "cosmic", "dynamic",
	"eager", "gentle", "lively", "merry", "noble", "quick", "royal", "snappy",
	"curious", "steady", "keen", "patient", "tidy", "witty",
}

var nouns = []string{
	"dragon", "tiger", "eagle", "dolphin", "panda", "lion", "wolf", "bear",
	"fox", "hawk", "phoenix", "rocket", "ninja", "wizard", "knight", "robot",
	"astronaut", "explorer", "ranger", "captain", "comet", "compiler", "gopher",
	"parser", "kernel", "lambda", "pixel", "vector", "byte", "thread",
}

const maxLength = 30

// Generate returns a random handle in the format "adjective-noun-NNNN"
func Generate() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", adjective, noun, n.Int64()), nil
}

// FromEmail turns the local part of an email into a handle. It returns ""
// when nothing usable remains.
func FromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	local, _, _ = strings.Cut(local, "+")

	var b strings.Builder
	lastDash := true
	for _, r := range local {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastDash = false
		case r == '_':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	handle := strings.Trim(b.String(), "-_")
	if len(handle) > maxLength-5 {
		handle = strings.Trim(handle[:maxLength-5], "-_")
	}
	if len(handle) < 3 {
		return ""
	}
	return handle
}

// WithSuffix appends a numeric suffix for retrying a taken handle
func WithSuffix(handle string, n int) string {
	suffix := fmt.Sprintf("-%d", n)
	if len(handle)+len(suffix) > maxLength {
		handle = strings.TrimRight(handle[:maxLength-len(suffix)], "-_")
	}
	return handle + suffix
}

// randomElement picks a random element from a string slice
func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}

	return slice[num.Int64()], nil
}
