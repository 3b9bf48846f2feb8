// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting for the starter-kit backend. All values
// are env-overridable; defaults keep a local run working with nothing but a
// GITHUB_TOKEN and GEMINI_API_KEY.
type Config struct {
	// HTTP server.
	Port              int
	RouteTimeout      time.Duration // budget for the starter-kit route
	RetrievalTimeout  time.Duration // budget for vector retrieval
	LLMTimeout        time.Duration // budget for a single LLM call
	CORSOrigin        string
	RateLimitPerSec   int
	RateLimitBurst    int
	LogLevel          string

	// GitHub endpoints and auth.
	GitHubGraphQLURL string
	GitHubAPIURL     string
	GitHubRawURL     string
	GitHubToken      string

	// Gemini.
	GeminiBaseURL string
	GeminiAPIKey  string
	EmbedModel    string
	LLMModel      string

	// Repo pack cache.
	RepoCacheMax     int
	CollectionPrefix string

	// Hints cache.
	HintsCacheTTL time.Duration

	// Optional external stores.
	DatabaseURL string
	RedisAddr   string
}

// FromEnv builds a Config from the process environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:             envInt("PORT", 8080),
		RouteTimeout:     envSeconds("STARTER_KIT_ROUTE_TIMEOUT_SECS", 10),
		RetrievalTimeout: envSeconds("RETRIEVAL_TIMEOUT_SECS", 3),
		LLMTimeout:       envSeconds("LLM_TIMEOUT_SECS", 6),
		CORSOrigin:       os.Getenv("CORS_ORIGIN"),
		RateLimitPerSec:  envInt("RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:   envInt("RATE_LIMIT_BURST", 20),
		LogLevel:         envString("LOG_LEVEL", "info"),

		GitHubGraphQLURL: envString("GITHUB_GRAPHQL_URL", "https://api.github.com/graphql"),
		GitHubAPIURL:     envString("GITHUB_API_URL", "https://api.github.com"),
		GitHubRawURL:     envString("GITHUB_RAW_URL", "https://raw.githubusercontent.com"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),

		GeminiBaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		EmbedModel:    envString("EMBED_MODEL", "text-embedding-004"),
		LLMModel:      envString("LLM_MODEL", "gemini-1.5-flash"),

		RepoCacheMax:     envInt("REPO_CACHE_MAX", 20),
		CollectionPrefix: envString("COLLECTION_PREFIX", "firstfix"),

		HintsCacheTTL: envSeconds("HINTS_CACHE_TTL", 3600),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT %d out of range", cfg.Port)
	}
	if cfg.RepoCacheMax <= 0 {
		return Config{}, fmt.Errorf("REPO_CACHE_MAX must be positive")
	}
	if strings.Contains(cfg.LLMModel, "embedding") {
		return Config{}, fmt.Errorf("LLM_MODEL %q looks like an embeddings model; set a text model such as gemini-1.5-flash", cfg.LLMModel)
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
