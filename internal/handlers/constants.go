package handlers

import "time"

const (
	oauthStateCookie    = "oauth_state"
	oauthProviderCookie = "oauth_provider"
	oauthReturnCookie   = "oauth_return"
	oauthCookiePath     = "/auth/"
	oauthCookieTTL      = 10 * time.Minute

	// maxBodyBytes caps JSON request bodies; lessons carry the largest ones.
	maxBodyBytes = 1 << 20

	ErrInvalidJSON           = "Invalid JSON body"
	ErrUnauthorized          = "Authentication required"
	ErrForbiddenMsg          = "You do not have permission to do that"
	ErrInternalServerError   = "Internal server error"
	ErrInvalidCSRF           = "Invalid CSRF token"
	ErrTooManyRequests       = "Too many requests, slow down"
	ErrProviderNotConfigured = "OAuth provider not configured"
)
