package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSlugTaken        = errors.New("slug already taken")
	ErrPremiumRequired  = errors.New("premium subscription required")
	ErrInvalidVote      = errors.New("invalid vote")
	ErrBlockedContent   = errors.New("content contains blocked terms")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
)
