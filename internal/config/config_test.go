package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.RouteTimeout != 10*time.Second {
		t.Fatalf("expected 10s route timeout, got %s", cfg.RouteTimeout)
	}
	if cfg.RetrievalTimeout != 3*time.Second {
		t.Fatalf("expected 3s retrieval timeout, got %s", cfg.RetrievalTimeout)
	}
	if cfg.LLMTimeout != 6*time.Second {
		t.Fatalf("expected 6s llm timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.RepoCacheMax != 20 {
		t.Fatalf("expected repo cache max 20, got %d", cfg.RepoCacheMax)
	}
	if cfg.EmbedModel != "text-embedding-004" || cfg.LLMModel != "gemini-1.5-flash" {
		t.Fatalf("unexpected model defaults: %q %q", cfg.EmbedModel, cfg.LLMModel)
	}
	if cfg.HintsCacheTTL != time.Hour {
		t.Fatalf("expected 1h hints ttl, got %s", cfg.HintsCacheTTL)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STARTER_KIT_ROUTE_TIMEOUT_SECS", "30")
	t.Setenv("REPO_CACHE_MAX", "5")
	t.Setenv("GITHUB_GRAPHQL_URL", "http://localhost:1234/graphql")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.RouteTimeout != 30*time.Second {
		t.Fatalf("expected 30s route timeout, got %s", cfg.RouteTimeout)
	}
	if cfg.RepoCacheMax != 5 {
		t.Fatalf("expected repo cache max 5, got %d", cfg.RepoCacheMax)
	}
	if cfg.GitHubGraphQLURL != "http://localhost:1234/graphql" {
		t.Fatalf("unexpected graphql url %q", cfg.GitHubGraphQLURL)
	}
}

func TestFromEnvRejectsEmbeddingModelForText(t *testing.T) {
	t.Setenv("LLM_MODEL", "text-embedding-004")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for embeddings model in LLM_MODEL")
	}
}

func TestFromEnvInvalidIntFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected fallback port 8080, got %d", cfg.Port)
	}
}
