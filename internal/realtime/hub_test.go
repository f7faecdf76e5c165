package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
)

type frame struct {
	Type string              `json:"type"`
	Data []leaderboard.Entry `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("bad frame %s: %v", data, err)
	}
	return f
}

func TestLeaderboardFeed(t *testing.T) {
	hub := NewHub(nil, logger.NewNop())
	var calls atomic.Int64
	fetch := func(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
		n := calls.Add(1)
		if limit != FeedSize {
			t.Errorf("fetch limit = %d, want %d", limit, FeedSize)
		}
		return []leaderboard.Entry{{Rank: 1, UserID: 7, Username: "ada", Score: 100 * n}}, nil
	}
	feed := NewLeaderboardFeed(hub, fetch, logger.NewNop())

	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	conn := dial(t, srv)

	welcome := readFrame(t, conn)
	if welcome.Type != TypeLeaderboardSnapshot {
		t.Fatalf("first frame type = %q, want %q", welcome.Type, TypeLeaderboardSnapshot)
	}
	if len(welcome.Data) != 1 || welcome.Data[0].Username != "ada" {
		t.Errorf("welcome data = %+v", welcome.Data)
	}

	feed.Notify(ctx)
	changed := readFrame(t, conn)
	if changed.Type != TypeLeaderboardChanged {
		t.Fatalf("frame type = %q, want %q", changed.Type, TypeLeaderboardChanged)
	}
	if len(changed.Data) != 1 || changed.Data[0].Score != 200 {
		t.Errorf("changed data = %+v, want refreshed score 200", changed.Data)
	}
}

func TestNotifyCoalesces(t *testing.T) {
	hub := NewHub(nil, logger.NewNop())
	feed := NewLeaderboardFeed(hub, func(context.Context, int) ([]leaderboard.Entry, error) {
		return nil, errors.New("unused")
	}, logger.NewNop())

	for i := 0; i < 5; i++ {
		feed.Notify(context.Background())
	}
	if got := len(feed.pending); got != 1 {
		t.Errorf("pending refreshes = %d, want 1", got)
	}
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil, logger.NewNop())
	hub.Broadcast(Message{Type: "noop"})
	if hub.Count() != 0 {
		t.Errorf("Count() = %d, want 0", hub.Count())
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", []string{"https://learn.example"}, "", "api.example", true},
		{"allowed origin", []string{"https://learn.example"}, "https://learn.example", "api.example", true},
		{"same host", []string{"https://learn.example"}, "https://api.example", "api.example", true},
		{"foreign origin", []string{"https://learn.example"}, "https://evil.example", "api.example", false},
		{"wildcard", []string{"*"}, "https://evil.example", "api.example", true},
		{"empty list", nil, "https://evil.example", "api.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/leaderboard", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(r); got != tt.want {
				t.Errorf("originChecker() = %v, want %v", got, tt.want)
			}
		})
	}
}
