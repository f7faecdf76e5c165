package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/security"
	"learnhub/internal/service"
)

type fakeAuth struct {
	sessions map[string]*models.User
	tokens   map[string]*models.User
}

func (f *fakeAuth) ValidateSession(id string) (*models.User, error) {
	if u, ok := f.sessions[id]; ok {
		return u, nil
	}
	return nil, service.ErrSessionNotFound
}

func (f *fakeAuth) AuthenticateBearer(token string) (*models.User, error) {
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	return nil, service.ErrNotAuthenticated
}

var (
	student = &models.User{ID: 2, Username: "ada", Role: models.RoleStudent}
	admin   = &models.User{ID: 1, Username: "root", Role: models.RoleAdmin}
)

func newTestMiddleware(rate int) *Middleware {
	auth := &fakeAuth{
		sessions: map[string]*models.User{"sess-ada": student, "sess-root": admin},
		tokens:   map[string]*models.User{"tok-ada": student},
	}
	return NewMiddleware(auth, security.NewCSRFGenerator("test-secret"), security.NewRateLimiter(rate, time.Minute), logger.NewNop())
}

// echoUser writes the authenticated username, or "anonymous"
func echoUser(w http.ResponseWriter, r *http.Request) {
	name := "anonymous"
	if u := GetUserFromContext(r.Context()); u != nil {
		name = u.Username
	}
	w.Write([]byte(name))
}

func withSession(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: id})
	return req
}

func TestRequireAuth(t *testing.T) {
	m := newTestMiddleware(10)
	handler := m.RequireAuth(echoUser)

	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
		wantBody   string
	}{
		{"anonymous", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"session cookie", func(r *http.Request) { withSession(r, "sess-ada") }, http.StatusOK, "ada"},
		{"unknown session", func(r *http.Request) { withSession(r, "nope") }, http.StatusUnauthorized, ""},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok-ada") }, http.StatusOK, "ada"},
		{"bad bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") }, http.StatusUnauthorized, ""},
		{"non-bearer scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireAuthClearsInvalidCookie(t *testing.T) {
	m := newTestMiddleware(10)
	rec := httptest.NewRecorder()
	m.RequireAuth(echoUser)(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/me", nil), "stale"))

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the stale session cookie to be cleared")
	}
}

func TestOptionalAuth(t *testing.T) {
	m := newTestMiddleware(10)
	handler := m.OptionalAuth(echoUser)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("anonymous: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/tracks", nil), "expired"))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("invalid session should fall back to anonymous: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	m := newTestMiddleware(10)
	handler := m.RequireAdmin(echoUser)

	rec := httptest.NewRecorder()
	handler(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/admin/tracks", nil), "sess-ada"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("student: status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/admin/tracks", nil), "sess-root"))
	if rec.Code != http.StatusOK || rec.Body.String() != "root" {
		t.Errorf("admin: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tracks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}
}

func TestCSRFProtect(t *testing.T) {
	m := newTestMiddleware(10)
	handler := m.RequireAuth(m.CSRFProtect(echoUser))
	token, err := m.csrf.GenerateToken("sess-ada")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		method     string
		setup      func(*http.Request)
		wantStatus int
	}{
		{"cookie GET needs no token", http.MethodGet, func(r *http.Request) { withSession(r, "sess-ada") }, http.StatusOK},
		{"cookie POST without token", http.MethodPost, func(r *http.Request) { withSession(r, "sess-ada") }, http.StatusForbidden},
		{"cookie POST with wrong token", http.MethodPost, func(r *http.Request) {
			withSession(r, "sess-ada")
			r.Header.Set(security.CSRFHeader, "deadbeef")
		}, http.StatusForbidden},
		{"cookie POST with token", http.MethodPost, func(r *http.Request) {
			withSession(r, "sess-ada")
			r.Header.Set(security.CSRFHeader, token)
		}, http.StatusOK},
		{"token of another session", http.MethodPost, func(r *http.Request) {
			withSession(r, "sess-root")
			r.Header.Set(security.CSRFHeader, token)
		}, http.StatusForbidden},
		{"bearer POST is exempt", http.MethodPost, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer tok-ada")
		}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/discussions", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	m := newTestMiddleware(2)
	handler := m.RequireAuth(m.RateLimit(echoUser))

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/discussions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("tok-ada"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := send("tok-ada"); code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", code)
	}
}

func TestRateLimitAnonymousUsesClientIP(t *testing.T) {
	m := newTestMiddleware(1)
	handler := m.RateLimit(echoUser)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	if send("10.0.0.1") != http.StatusOK || send("10.0.0.2") != http.StatusOK {
		t.Fatal("first request per IP should pass")
	}
	if send("10.0.0.1") != http.StatusTooManyRequests {
		t.Error("second request from the same IP should be limited")
	}
}

func TestRequestLogger(t *testing.T) {
	log, logs := observedLogger()
	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTeapot, "short and stout")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/status", nil))

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "GET" || fields["path"] != "/api/status" {
		t.Errorf("fields = %v", fields)
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v (%T), want 418", fields["status"], fields["status"])
	}
	if fields["bytes"].(int64) == 0 {
		t.Error("bytes field should count the body")
	}
}

func TestSafeReturnPath(t *testing.T) {
	tests := map[string]string{
		"/tracks/go":         "/tracks/go",
		"":                   "",
		"https://evil.test/": "",
		"//evil.test":        "",
		`/\evil.test`:        "",
		"relative":           "",
	}
	for in, want := range tests {
		if got := safeReturnPath(in); got != want {
			t.Errorf("safeReturnPath(%q) = %q, want %q", in, got, want)
		}
	}
}
