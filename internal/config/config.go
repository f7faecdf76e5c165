package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort      string        `yaml:"port"`
	DatabaseType    string        `yaml:"database_type"`
	DatabasePath    string        `yaml:"db_path"`
	DatabaseURL     string        `yaml:"database_url"`
	MigrationsPath  string        `yaml:"migrations_path"`
	SessionDuration time.Duration `yaml:"session_duration"`
	Timezone        string        `yaml:"timezone"`
	LogMode         string        `yaml:"log_mode"`

	// Identity provider tokens
	IdentityJWTSecret string `yaml:"identity_jwt_secret"`
	IdentityJWTIssuer string `yaml:"identity_jwt_issuer"`

	// OAuth login
	GoogleClientID       string `yaml:"google_client_id"`
	GoogleClientSecret   string `yaml:"google_client_secret"`
	GitHubClientID       string `yaml:"github_client_id"`
	GitHubClientSecret   string `yaml:"github_client_secret"`
	OAuthRedirectBaseURL string `yaml:"oauth_redirect_base_url"`

	CSRFSecret  string   `yaml:"csrf_secret"`
	CorsOrigins []string `yaml:"cors_origins"`

	RedisAddr           string        `yaml:"redis_addr"`
	LeaderboardCacheTTL time.Duration `yaml:"leaderboard_cache_ttl"`

	SESRegion    string `yaml:"ses_region"`
	SESFromEmail string `yaml:"ses_from_email"`
	SESFromName  string `yaml:"ses_from_name"`
	AppBaseURL   string `yaml:"app_base_url"`

	StatusDiskPath  string `yaml:"status_disk_path"`
	BlockedTermsURL string `yaml:"blocked_terms_url"`

	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by LEARNHUB_CONFIG, and environment variables. Environment variables
// take precedence over the YAML file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("LEARNHUB_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			// Config is loaded before the logger exists.
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	return &Config{
		ServerPort:          "8080",
		DatabaseType:        "sqlite",
		DatabasePath:        "./learnhub.db",
		SessionDuration:     7 * 24 * time.Hour,
		Timezone:            "Local",
		LogMode:             "development",
		IdentityJWTIssuer:   "learnhub-identity",
		CSRFSecret:          "change-me-in-production",
		LeaderboardCacheTTL: 30 * time.Second,
		SESRegion:           "us-east-1",
		SESFromName:         "LearnHub",
		AppBaseURL:          "http://localhost:8080",
		StatusDiskPath:      "/",
		RateLimitRequests:   120,
		RateLimitWindow:     time.Minute,
	}
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.DatabaseType = getEnv("DATABASE_TYPE", c.DatabaseType)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.MigrationsPath = getEnv("MIGRATIONS_PATH", c.MigrationsPath)
	c.SessionDuration = getEnvDuration("SESSION_DURATION", c.SessionDuration)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.LogMode = getEnv("LOG_MODE", c.LogMode)

	c.IdentityJWTSecret = getEnv("IDENTITY_JWT_SECRET", c.IdentityJWTSecret)
	c.IdentityJWTIssuer = getEnv("IDENTITY_JWT_ISSUER", c.IdentityJWTIssuer)

	c.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.GitHubClientID = getEnv("GITHUB_CLIENT_ID", c.GitHubClientID)
	c.GitHubClientSecret = getEnv("GITHUB_CLIENT_SECRET", c.GitHubClientSecret)
	c.OAuthRedirectBaseURL = getEnv("OAUTH_REDIRECT_BASE_URL", c.OAuthRedirectBaseURL)

	c.CSRFSecret = getEnv("CSRF_SECRET", c.CSRFSecret)
	if origins := parseCSV(os.Getenv("CORS_ORIGINS")); len(origins) > 0 {
		c.CorsOrigins = origins
	}

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.LeaderboardCacheTTL = getEnvDuration("LEADERBOARD_CACHE_TTL", c.LeaderboardCacheTTL)

	c.SESRegion = getEnv("SES_REGION", c.SESRegion)
	c.SESFromEmail = getEnv("SES_FROM_EMAIL", c.SESFromEmail)
	c.SESFromName = getEnv("SES_FROM_NAME", c.SESFromName)
	c.AppBaseURL = getEnv("APP_BASE_URL", c.AppBaseURL)

	c.StatusDiskPath = getEnv("STATUS_DISK_PATH", c.StatusDiskPath)
	c.BlockedTermsURL = getEnv("BLOCKED_TERMS_URL", c.BlockedTermsURL)

	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_REQUESTS")); err == nil && n > 0 {
		c.RateLimitRequests = n
	}
	c.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimitWindow)
}

// Location resolves the configured timezone used for streak day boundaries.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			items = append(items, value)
		}
	}
	return items
}
