package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"learnhub/internal/security"
)

// StartOAuth initiates the OAuth flow for a provider
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.providers[providerKey]
	if !ok {
		writeMessage(w, http.StatusBadRequest, ErrProviderNotConfigured)
		return
	}

	state := security.GenerateSessionID()
	http.SetCookie(w, security.TempCookie(r, oauthStateCookie, state, oauthCookiePath, oauthCookieTTL))
	http.SetCookie(w, security.TempCookie(r, oauthProviderCookie, providerKey, oauthCookiePath, oauthCookieTTL))
	if ret := safeReturnPath(r.URL.Query().Get("return")); ret != "" {
		http.SetCookie(w, security.TempCookie(r, oauthReturnCookie, ret, oauthCookiePath, oauthCookieTTL))
	}

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	options := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	for key, value := range provider.AuthParams {
		options = append(options, oauth2.SetAuthURLParam(key, value))
	}

	http.Redirect(w, r, config.AuthCodeURL(state, options...), http.StatusFound)
}

// OAuthCallback handles the OAuth provider callback. The user is created on
// first login and a session cookie is issued.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.providers[providerKey]
	if !ok {
		writeMessage(w, http.StatusBadRequest, ErrProviderNotConfigured)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if code == "" {
		writeMessage(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		writeMessage(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	if providerCookie, err := r.Cookie(oauthProviderCookie); err == nil && providerCookie.Value != providerKey {
		writeMessage(w, http.StatusBadRequest, "OAuth provider mismatch")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("OAuth code exchange failed", "provider", providerKey, "error", err)
		writeMessage(w, http.StatusBadRequest, "Failed to exchange OAuth code")
		return
	}

	id, err := provider.FetchIdentity(ctx, token)
	if err != nil {
		h.log.Warn("OAuth userinfo failed", "provider", providerKey, "error", err)
		writeMessage(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch %s profile", provider.Label))
		return
	}

	returnTo := "/"
	if cookie, err := r.Cookie(oauthReturnCookie); err == nil {
		if ret := safeReturnPath(cookie.Value); ret != "" {
			returnTo = ret
		}
	}

	// Clear temporary OAuth cookies
	for _, name := range []string{oauthStateCookie, oauthProviderCookie, oauthReturnCookie} {
		http.SetCookie(w, security.DeleteCookie(r, name, oauthCookiePath))
	}

	session, user, err := h.authService.Login(r.Context(), id)
	if err != nil {
		respondWithError(w, h.log, "OAuth login failed", err)
		return
	}
	h.log.Info("User logged in", "user_id", user.ID, "provider", providerKey)

	http.SetCookie(w, security.SessionCookie(r, session.ID, session.ExpiresAt))
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

func (h *AuthHandler) oauthRedirectURL(r *http.Request, providerKey string) string {
	baseURL := strings.TrimSpace(h.oauthRedirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return fmt.Sprintf("%s/auth/%s/callback", strings.TrimRight(baseURL, "/"), providerKey)
}

// safeReturnPath accepts only same-site absolute paths.
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	return p
}
