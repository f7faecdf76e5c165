package security

import (
	"crypto/tls"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCSRFTokens(t *testing.T) {
	g := NewCSRFGenerator("secret")

	token, err := g.GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !g.ValidateToken("session-1", token) {
		t.Error("token should validate for its own session")
	}
	if g.ValidateToken("session-2", token) {
		t.Error("token should not validate for another session")
	}
	if NewCSRFGenerator("other").ValidateToken("session-1", token) {
		t.Error("token should not validate under another secret")
	}
	if _, err := g.GenerateToken(""); err != ErrNoSession {
		t.Errorf("GenerateToken(\"\") error = %v, want ErrNoSession", err)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request inside the window should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("bucket should refill after the window")
	}

	now = now.Add(5 * time.Minute)
	rl.evict()
	if len(rl.visitors) != 0 {
		t.Errorf("evict() left %d visitors", len(rl.visitors))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.7:5555", "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionCookieSecureFlag(t *testing.T) {
	plain := httptest.NewRequest("GET", "http://example.com/", nil)
	if SessionCookie(plain, "id", time.Now()).Secure {
		t.Error("plain HTTP request should not get a Secure cookie")
	}

	proxied := httptest.NewRequest("GET", "http://example.com/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	if !SessionCookie(proxied, "id", time.Now()).Secure {
		t.Error("X-Forwarded-Proto https should set Secure")
	}

	direct := httptest.NewRequest("GET", "https://example.com/", nil)
	direct.TLS = &tls.ConnectionState{}
	c := SessionCookie(direct, "id", time.Now())
	if !c.Secure || !c.HttpOnly || c.Name != SessionCookieName {
		t.Errorf("SessionCookie() = %+v", c)
	}
}
