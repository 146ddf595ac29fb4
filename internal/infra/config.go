package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Public platform identity. Tenant subdomains are bound under PlatformDomain.
	PlatformDomain string

	// API auth + worker dispatch.
	APIAuthSecret string
	WorkerBaseURL string

	// GitHub App used for tenant repositories.
	GitHubOrg           string
	GitHubAppID         string
	GitHubAppPrivateKey string
	GitHubBaseURL       string

	// Vercel hosting.
	VercelAPIToken string
	VercelTeamID   string
	VercelBaseURL  string

	// Namecheap registrar.
	NamecheapAPIUser  string
	NamecheapAPIKey   string
	NamecheapClientIP string
	NamecheapBaseURL  string

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	// Jobs stuck in running longer than this are swept to failed.
	StaleJobAfter time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. An .env file is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		PlatformDomain:      getEnv("PLATFORM_DOMAIN", "hostforge.app"),
		APIAuthSecret:       os.Getenv("API_AUTH_SECRET"),
		WorkerBaseURL:       getEnv("WORKER_BASE_URL", "http://localhost:8081"),
		GitHubOrg:           os.Getenv("GITHUB_ORG"),
		GitHubAppID:         os.Getenv("GITHUB_APP_ID"),
		GitHubAppPrivateKey: os.Getenv("GITHUB_APP_PRIVATE_KEY"),
		GitHubBaseURL:       getEnv("GITHUB_BASE_URL", "https://api.github.com"),
		VercelAPIToken:      os.Getenv("VERCEL_API_TOKEN"),
		VercelTeamID:        os.Getenv("VERCEL_TEAM_ID"),
		VercelBaseURL:       getEnv("VERCEL_BASE_URL", "https://api.vercel.com"),
		NamecheapAPIUser:    os.Getenv("NAMECHEAP_API_USER"),
		NamecheapAPIKey:     os.Getenv("NAMECHEAP_API_KEY"),
		NamecheapClientIP:   os.Getenv("NAMECHEAP_CLIENT_IP"),
		NamecheapBaseURL:    getEnv("NAMECHEAP_BASE_URL", "https://api.namecheap.com/xml.response"),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		StaleJobAfter:       time.Minute * time.Duration(getEnvInt("STALE_JOB_MINUTES", 30)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
