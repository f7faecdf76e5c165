package handlers

import "net/http"

// Router bundles every handler the API serves
type Router struct {
	Middleware  *Middleware
	Auth        *AuthHandler
	User        *UserHandler
	Content     *ContentHandler
	Leaderboard *LeaderboardHandler
	Discussion  *DiscussionHandler
	Changelog   *ChangelogHandler
	Admin       *AdminHandler

	Startup *StartupStatus
	DB      Pinger
	// LiveFeed upgrades /ws/leaderboard; nil disables the route.
	LiveFeed http.Handler
}

// Routes registers the API on a new ServeMux
func (rt *Router) Routes() *http.ServeMux {
	m := rt.Middleware
	// authed wraps a mutating route: authentication then CSRF
	authed := func(h http.HandlerFunc) http.HandlerFunc { return m.RequireAuth(m.CSRFProtect(h)) }
	limited := func(h http.HandlerFunc) http.HandlerFunc { return authed(m.RateLimit(h)) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return m.RequireAdmin(m.CSRFProtect(h)) }

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", Healthz)
	mux.HandleFunc("GET /readyz", Readyz(rt.Startup, rt.DB))

	// Auth
	mux.HandleFunc("GET /auth/providers", rt.Auth.ListProviders)
	mux.HandleFunc("GET /auth/{provider}/start", rt.Auth.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", rt.Auth.OAuthCallback)
	mux.HandleFunc("POST /auth/logout", m.OptionalAuth(m.CSRFProtect(rt.Auth.Logout)))

	// Current user
	mux.HandleFunc("GET /api/me", m.RequireAuth(rt.User.Me))
	mux.HandleFunc("PUT /api/me", authed(rt.User.UpdateMe))
	mux.HandleFunc("GET /api/me/stats", m.RequireAuth(rt.User.Stats))
	mux.HandleFunc("GET /api/me/achievements", m.RequireAuth(rt.User.Achievements))
	mux.HandleFunc("GET /api/me/notifications", m.RequireAuth(rt.User.Notifications))
	mux.HandleFunc("POST /api/me/notifications/{id}/read", authed(rt.User.MarkNotificationRead))
	mux.HandleFunc("GET /api/me/enrollments", m.RequireAuth(rt.User.Enrollments))

	// Tracks and lessons
	mux.HandleFunc("GET /api/tracks", m.OptionalAuth(rt.Content.ListTracks))
	mux.HandleFunc("GET /api/categories", rt.Content.ListCategories)
	mux.HandleFunc("GET /api/tracks/{slug}", m.OptionalAuth(rt.Content.GetTrack))
	mux.HandleFunc("GET /api/tracks/{slug}/lessons", m.OptionalAuth(rt.Content.ListLessons))
	mux.HandleFunc("POST /api/tracks/{slug}/enroll", authed(rt.Content.Enroll))
	mux.HandleFunc("GET /api/tracks/{slug}/progress", m.RequireAuth(rt.Content.TrackProgress))
	mux.HandleFunc("GET /api/lessons/{slug}", m.OptionalAuth(rt.Content.GetLesson))
	mux.HandleFunc("POST /api/lessons/{slug}/start", authed(rt.Content.StartLesson))
	mux.HandleFunc("POST /api/lessons/{slug}/progress", authed(rt.Content.RecordProgress))
	mux.HandleFunc("POST /api/lessons/{slug}/quiz", authed(rt.Content.SubmitQuiz))
	mux.HandleFunc("POST /api/lessons/{slug}/code", authed(rt.Content.SubmitCode))

	// Leaderboard
	mux.HandleFunc("GET /api/leaderboard", m.OptionalAuth(rt.Leaderboard.GetLeaderboard))
	mux.HandleFunc("GET /api/leaderboard/rank", m.RequireAuth(rt.Leaderboard.GetRank))
	if rt.LiveFeed != nil {
		mux.Handle("GET /ws/leaderboard", rt.LiveFeed)
	}

	// Discussions
	mux.HandleFunc("GET /api/discussions", rt.Discussion.ListDiscussions)
	mux.HandleFunc("POST /api/discussions", limited(rt.Discussion.CreateDiscussion))
	mux.HandleFunc("GET /api/discussions/{id}", rt.Discussion.GetDiscussion)
	mux.HandleFunc("POST /api/discussions/{id}/replies", limited(rt.Discussion.Reply))
	mux.HandleFunc("POST /api/discussions/{id}/vote", limited(rt.Discussion.VoteDiscussion))
	mux.HandleFunc("POST /api/replies/{id}/vote", limited(rt.Discussion.VoteReply))
	mux.HandleFunc("POST /api/replies/{id}/solution", authed(rt.Discussion.MarkSolution))

	// Changelog and status
	mux.HandleFunc("GET /api/changelog", rt.Changelog.ListChangelog)
	mux.HandleFunc("GET /api/changelog/{id}", m.OptionalAuth(rt.Changelog.GetEntry))
	mux.HandleFunc("GET /changelog.rss", rt.Changelog.RSS)
	mux.HandleFunc("GET /api/status", rt.Changelog.Status)

	// Admin
	mux.HandleFunc("POST /api/admin/tracks", admin(rt.Admin.CreateTrack))
	mux.HandleFunc("PUT /api/admin/tracks/{id}", admin(rt.Admin.UpdateTrack))
	mux.HandleFunc("POST /api/admin/lessons", admin(rt.Admin.CreateLesson))
	mux.HandleFunc("PUT /api/admin/lessons/{id}", admin(rt.Admin.UpdateLesson))
	mux.HandleFunc("GET /api/admin/changelog", admin(rt.Admin.ListChangelog))
	mux.HandleFunc("POST /api/admin/changelog", admin(rt.Admin.CreateChangelog))
	mux.HandleFunc("PUT /api/admin/changelog/{id}", admin(rt.Admin.UpdateChangelog))
	mux.HandleFunc("POST /api/admin/changelog/{id}/publish", admin(rt.Admin.PublishChangelog))
	mux.HandleFunc("POST /api/admin/changelog/{id}/archive", admin(rt.Admin.ArchiveChangelog))
	mux.HandleFunc("POST /api/admin/changelog/{id}/resolve", admin(rt.Admin.ResolveChangelog))
	mux.HandleFunc("PUT /api/admin/users/{id}/tier", admin(rt.Admin.SetTier))
	mux.HandleFunc("PUT /api/admin/users/{id}/role", admin(rt.Admin.SetRole))
	mux.HandleFunc("POST /api/admin/users/{id}/experience", admin(rt.Admin.GrantExperience))
	mux.HandleFunc("POST /api/admin/users/{id}/tracks/{trackId}/recompute", admin(rt.Admin.RecomputeProgress))
	mux.HandleFunc("POST /api/admin/blocked-terms", admin(rt.Admin.AddBlockedTerm))
	mux.HandleFunc("GET /api/admin/backup", admin(rt.Admin.ExportContent))
	mux.HandleFunc("POST /api/admin/backup", admin(rt.Admin.ImportContent))

	return mux
}
