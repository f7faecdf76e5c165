package handlers

import (
	"context"
	"net/http"

	"learnhub/internal/identity"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/security"
)

// SessionIssuer turns a verified identity into a server session.
// *service.AuthService satisfies it.
type SessionIssuer interface {
	Login(ctx context.Context, id identity.Identity) (*models.Session, *models.User, error)
	Logout(sessionID string) error
}

// AuthHandler handles OAuth login and logout
type AuthHandler struct {
	authService          SessionIssuer
	providers            map[string]*identity.Provider
	oauthRedirectBaseURL string
	log                  *logger.Logger
}

// NewAuthHandler creates a new auth handler. Providers without client
// credentials are ignored.
func NewAuthHandler(authService SessionIssuer, providers []*identity.Provider, oauthRedirectBaseURL string, log *logger.Logger) *AuthHandler {
	byName := make(map[string]*identity.Provider, len(providers))
	for _, p := range providers {
		if p.Configured() {
			byName[p.Name] = p
		}
	}
	return &AuthHandler{
		authService:          authService,
		providers:            byName,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		log:                  log,
	}
}

type providerView struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ListProviders returns the configured login providers
func (h *AuthHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	views := make([]providerView, 0, len(h.providers))
	for _, name := range []string{"google", "github"} {
		p, ok := h.providers[name]
		if !ok {
			continue
		}
		views = append(views, providerView{Name: p.Name, Label: p.Label, URL: "/auth/" + p.Name + "/start"})
	}
	writeJSON(w, http.StatusOK, views)
}

// Logout deletes the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(security.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.Logout(cookie.Value); err != nil {
			h.log.Warn("Failed to delete session", "error", err)
		}
	}
	http.SetCookie(w, security.DeleteCookie(r, security.SessionCookieName, "/"))
	w.WriteHeader(http.StatusNoContent)
}
