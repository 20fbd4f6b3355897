package ports

import (
	"context"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

// Embedder builds the query vector sent to the retrieval backend.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache memoizes query vectors by exact query text.
type EmbeddingCache interface {
	Get(key string) ([]float32, bool)
	Put(key string, vector []float32)
}

// RetrievalBackend executes the hybrid semantic + full-text scan and returns
// rows already fused with Reciprocal Rank Fusion.
type RetrievalBackend interface {
	SearchEvidence(ctx context.Context, queryText string, queryVector []float32, opts domain.RetrievalOptions) ([]domain.EvidenceRecord, error)
}

// SearchObserver receives one observation per finished evidence search.
type SearchObserver interface {
	ObserveEvidenceSearch(result *domain.EvidenceSearchResult)
}
