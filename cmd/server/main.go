package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/handlers"
	"learnhub/internal/identity"
	"learnhub/internal/leaderboard"
	"learnhub/internal/logger"
	"learnhub/internal/realtime"
	"learnhub/internal/repository"
	"learnhub/internal/security"
	"learnhub/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// Initialize database with config (supports sqlite, postgres, mysql)
	handlers.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established", "type", cfg.DatabaseType)
	handlers.CompleteStep(handlers.StepDatabase)

	handlers.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Migrations completed successfully")
	handlers.CompleteStep(handlers.StepMigrations)

	handlers.SetCurrentStep(handlers.StepBlockedTerms)
	if n, err := db.SeedBlockedTerms(cfg.BlockedTermsURL); err != nil {
		log.Warn("Failed to seed blocked terms", "error", err)
	} else if n > 0 {
		log.Info("Seeded blocked terms", "count", n)
	}
	handlers.CompleteStep(handlers.StepBlockedTerms)

	handlers.SetCurrentStep(handlers.StepServices)
	cache, err := leaderboardCache(ctx, cfg, log)
	if err != nil {
		return err
	}

	mailer, err := service.NewEmailService(ctx, cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	loc := cfg.Location()
	verifier := identity.NewVerifier(cfg.IdentityJWTSecret, cfg.IdentityJWTIssuer)
	if !verifier.Enabled() {
		log.Warn("IDENTITY_JWT_SECRET not set: bearer authentication disabled")
	}

	lb := service.NewLeaderboardService(repository.NewSnapshotRepository(db), cache, log)
	users := service.NewUserService(db, lb, loc, log)
	authService := service.NewAuthService(db, users, verifier, mailer, cfg.SessionDuration, log)
	content := service.NewContentService(db, log)
	enrollments := service.NewEnrollmentService(db, lb, mailer, log)
	progress := service.NewProgressService(db, enrollments, lb, service.StubRunner{}, loc, log)
	discussions := service.NewDiscussionService(db, log)
	changelog := service.NewChangelogService(db, service.NewHostSampler(cfg.StatusDiskPath), log)
	achievements := service.NewAchievementService(db)
	backup := service.NewBackupService(db, log)

	hub := realtime.NewHub(cfg.CorsOrigins, log)
	defer hub.Close()
	feed := realtime.NewLeaderboardFeed(hub, func(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
		return lb.GetLeaderboard(ctx, leaderboard.Query{
			Scope:  leaderboard.ScopeGlobal,
			Period: leaderboard.PeriodAllTime,
			Limit:  limit,
		})
	}, log)
	lb.OnChange(feed.Notify)

	providers := []*identity.Provider{
		identity.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret),
		identity.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret),
	}

	csrf := security.NewCSRFGenerator(cfg.CSRFSecret)
	limiter := security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	router := &handlers.Router{
		Middleware:  handlers.NewMiddleware(authService, csrf, limiter, log),
		Auth:        handlers.NewAuthHandler(authService, providers, cfg.OAuthRedirectBaseURL, log),
		User:        handlers.NewUserHandler(users, achievements, enrollments, csrf, log),
		Content:     handlers.NewContentHandler(content, enrollments, progress, log),
		Leaderboard: handlers.NewLeaderboardHandler(lb, content, log),
		Discussion:  handlers.NewDiscussionHandler(discussions, log),
		Changelog:   handlers.NewChangelogHandler(changelog, cfg.AppBaseURL, log),
		Admin:       handlers.NewAdminHandler(content, changelog, users, enrollments, backup, db, log),
		DB:          db,
		LiveFeed:    hub,
	}
	handlers.CompleteStep(handlers.StepServices)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(handlers.RequestLogger(log))
	if len(cfg.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", security.CSRFHeader},
			ExposedHeaders:   []string{security.CSRFHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Mount("/", router.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", "http://localhost"+server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		feed.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleanupExpiredSessions(gctx, authService, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	handlers.CompleteStep(handlers.StepServerReady)
	handlers.MarkReady()

	return g.Wait()
}

// leaderboardCache uses Redis when REDIS_ADDR is set so every replica shares
// one memoized board, and an in-process cache otherwise.
func leaderboardCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (leaderboard.Cache, error) {
	if cfg.RedisAddr == "" {
		return leaderboard.NewMemoryCache(cfg.LeaderboardCacheTTL), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Info("Leaderboard cache backed by redis", "addr", cfg.RedisAddr)
	return leaderboard.NewRedisCache(client, "learnhub:leaderboard", cfg.LeaderboardCacheTTL), nil
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(ctx context.Context, authService *service.AuthService, log *logger.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authService.CleanupExpiredSessions()
			if err != nil {
				log.Error("Error cleaning up expired sessions", "error", err)
				continue
			}
			log.Debug("Expired sessions cleaned up", "count", n)
		}
	}
}
