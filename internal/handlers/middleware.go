package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"learnhub/internal/identity"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/security"
	"learnhub/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	SessionContextKey ContextKey = "session"
)

// Authenticator resolves the caller of a request. *service.AuthService
// satisfies it.
type Authenticator interface {
	ValidateSession(sessionID string) (*models.User, error)
	AuthenticateBearer(token string) (*models.User, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	auth    Authenticator
	csrf    *security.CSRFGenerator
	limiter *security.RateLimiter
	log     *logger.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(auth Authenticator, csrf *security.CSRFGenerator, limiter *security.RateLimiter, log *logger.Logger) *Middleware {
	return &Middleware{auth: auth, csrf: csrf, limiter: limiter, log: log}
}

// authenticate returns the caller, or nil for an anonymous request. A bearer
// token takes precedence over the session cookie; sessionID is empty for
// bearer requests.
func (m *Middleware) authenticate(w http.ResponseWriter, r *http.Request) (user *models.User, sessionID string, err error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := identity.BearerToken(header)
		if !ok {
			return nil, "", service.ErrNotAuthenticated
		}
		user, err := m.auth.AuthenticateBearer(token)
		return user, "", err
	}

	cookie, err := r.Cookie(security.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, "", nil
	}
	user, err = m.auth.ValidateSession(cookie.Value)
	if err != nil {
		// Clear invalid cookie
		http.SetCookie(w, security.DeleteCookie(r, security.SessionCookieName, "/"))
		return nil, "", err
	}
	return user, cookie.Value, nil
}

func withUser(r *http.Request, user *models.User, sessionID string) *http.Request {
	ctx := context.WithValue(r.Context(), UserContextKey, user)
	if sessionID != "" {
		ctx = context.WithValue(ctx, SessionContextKey, sessionID)
	}
	return r.WithContext(ctx)
}

// OptionalAuth attaches the caller when credentials are present and valid and
// otherwise serves the request anonymously.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := m.authenticate(w, r)
		if err != nil || user == nil {
			next(w, r)
			return
		}
		next(w, withUser(r, user, sessionID))
	}
}

// RequireAuth is middleware that requires a valid session or bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := m.authenticate(w, r)
		if err != nil && !isAuthError(err) {
			respondWithError(w, m.log, "Authentication failed", err)
			return
		}
		if user == nil {
			writeMessage(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		next(w, withUser(r, user, sessionID))
	}
}

// RequireAdmin requires an authenticated admin
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			writeMessage(w, http.StatusForbidden, ErrForbiddenMsg)
			return
		}
		next(w, r)
	})
}

func isAuthError(err error) bool {
	return errors.Is(err, service.ErrNotAuthenticated) ||
		errors.Is(err, service.ErrSessionNotFound) ||
		errors.Is(err, service.ErrSessionExpired)
}

// CSRFProtect validates the CSRF header on state-changing requests made with
// the session cookie. Bearer requests carry no ambient credentials and pass.
// It must run inside RequireAuth.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(w, r)
			return
		}
		sessionID := GetSessionIDFromContext(r.Context())
		if sessionID == "" {
			next(w, r)
			return
		}
		if !m.csrf.ValidateToken(sessionID, r.Header.Get(security.CSRFHeader)) {
			m.log.Warn("CSRF validation failed", "path", r.URL.Path, "ip", security.GetClientIP(r))
			writeMessage(w, http.StatusForbidden, ErrInvalidCSRF)
			return
		}
		next(w, r)
	}
}

// RateLimit throttles a route per user, or per client IP when anonymous
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + security.GetClientIP(r)
		if user := GetUserFromContext(r.Context()); user != nil {
			key = "user:" + strconv.FormatInt(user.ID, 10)
		}
		if !m.limiter.Allow(key) {
			w.Header().Set("Retry-After", "60")
			writeMessage(w, http.StatusTooManyRequests, ErrTooManyRequests)
			return
		}
		next(w, r)
	}
}

// RequestLogger logs each request with its status, size and duration
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionIDFromContext returns the cookie session of the request, or ""
// for bearer-authenticated and anonymous requests.
func GetSessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionContextKey).(string)
	return id
}
