package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_BACKEND", "")
	t.Setenv("CANDIDATE_MULTIPLIER", "")
	t.Setenv("RERANK_MIN_SCORE", "")
	t.Setenv("SEARCH_TIMEOUT", "")
	t.Setenv("EMBED_RETRY_MAX_ATTEMPTS", "")
	t.Setenv("EMBED_RETRY_BACKOFF", "")

	cfg := Load()
	if cfg.RetrievalBackend != BackendPostgres {
		t.Fatalf("expected default backend postgres, got %q", cfg.RetrievalBackend)
	}
	if cfg.CandidateMultiplier != 3 {
		t.Fatalf("expected default candidate multiplier 3, got %d", cfg.CandidateMultiplier)
	}
	if cfg.Rerank.MinScore != 0.6 || !cfg.Rerank.Enabled {
		t.Fatalf("unexpected rerank defaults: %+v", cfg.Rerank)
	}
	if cfg.SearchTimeout != 30*time.Second {
		t.Fatalf("expected default search timeout 30s, got %s", cfg.SearchTimeout)
	}
	if cfg.EmbedRetryAttempts != 3 || cfg.EmbedRetryBackoff != time.Second {
		t.Fatalf("unexpected embed retry defaults: %d %s", cfg.EmbedRetryAttempts, cfg.EmbedRetryBackoff)
	}
	if cfg.NATSSubject != "evidence.search" {
		t.Fatalf("expected default subject evidence.search, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_BACKEND", "Qdrant")
	t.Setenv("SEMANTIC_WEIGHT", "0.7")
	t.Setenv("RERANK_ENABLED", "false")
	t.Setenv("RERANK_WEIGHT_RECENCY", "0.2")
	t.Setenv("EMBED_CACHE_TTL", "15m")
	t.Setenv("FILTER_BY_MESH", "true")

	cfg := Load()
	if cfg.RetrievalBackend != BackendQdrant {
		t.Fatalf("expected backend override, got %q", cfg.RetrievalBackend)
	}
	if cfg.SemanticWeight != 0.7 {
		t.Fatalf("expected semantic weight 0.7, got %v", cfg.SemanticWeight)
	}
	if cfg.Rerank.Enabled || cfg.Rerank.Weights.Recency != 0.2 {
		t.Fatalf("unexpected rerank overrides: %+v", cfg.Rerank)
	}
	if cfg.EmbedCacheTTL != 15*time.Minute || !cfg.FilterByMeSH {
		t.Fatalf("unexpected overrides: ttl=%s mesh=%v", cfg.EmbedCacheTTL, cfg.FilterByMeSH)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RERANK_MIN_SCORE", "high")
	t.Setenv("SEARCH_TIMEOUT", "soon")
	t.Setenv("MAX_RESULTS_LIMIT", "many")

	cfg := Load()
	if cfg.Rerank.MinScore != 0.6 || cfg.SearchTimeout != 30*time.Second || cfg.MaxResultsLimit != 50 {
		t.Fatalf("expected defaults for malformed values, got %v %s %d", cfg.Rerank.MinScore, cfg.SearchTimeout, cfg.MaxResultsLimit)
	}
}

func TestLoadWithOverlayAppliesRerankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	content := `
rerank:
  min_score: 0.5
  weights:
    base: 0.5
    entity_overlap: 0.3
  affinities:
    safety:
      preferred: ["cohort", "pharmacovigilance"]
      mismatched: ["animal"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("EVIDENCE_CONFIG", path)
	t.Setenv("RERANK_WEIGHT_RECENCY", "")

	cfg, err := LoadWithOverlay()
	if err != nil {
		t.Fatalf("LoadWithOverlay() error = %v", err)
	}
	if cfg.Rerank.MinScore != 0.5 || cfg.Rerank.Weights.Base != 0.5 || cfg.Rerank.Weights.EntityOverlap != 0.3 {
		t.Fatalf("expected overlay values, got %+v", cfg.Rerank)
	}
	if cfg.Rerank.Weights.Recency != 0.05 {
		t.Fatalf("expected untouched keys to keep env defaults, got %v", cfg.Rerank.Weights.Recency)
	}
	if !cfg.Rerank.Enabled {
		t.Fatalf("expected enabled flag to survive overlay")
	}
	safety, ok := cfg.Rerank.Affinities["safety"]
	if !ok || len(safety.Preferred) != 2 || safety.Mismatched[0] != "animal" {
		t.Fatalf("unexpected affinities: %+v", cfg.Rerank.Affinities)
	}
}

func TestApplyFileRejectsOutOfRangeFloor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rerank:\n  min_score: 1.5\n"), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	cfg := Load()
	if err := cfg.ApplyFile(path); err == nil {
		t.Fatalf("expected error for min_score above 1")
	}
}
