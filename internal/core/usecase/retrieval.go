package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/ports"
)

// HybridRetriever embeds the query once and issues a single backend call.
type HybridRetriever struct {
	embedder ports.Embedder
	cache    ports.EmbeddingCache
	backend  ports.RetrievalBackend
}

// NewHybridRetriever accepts a nil cache, in which case every call embeds.
func NewHybridRetriever(
	embedder ports.Embedder,
	cache ports.EmbeddingCache,
	backend ports.RetrievalBackend,
) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		cache:    cache,
		backend:  backend,
	}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, queryText string, opts domain.RetrievalOptions) ([]domain.EvidenceRecord, error) {
	vector, err := r.embed(ctx, queryText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}

	records, err := r.backend.SearchEvidence(ctx, queryText, vector, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("search evidence: %w", err)
		}
		return nil, domain.WrapError(domain.ErrRetrievalFailed, "search evidence", err)
	}
	return records, nil
}

func (r *HybridRetriever) embed(ctx context.Context, queryText string) ([]float32, error) {
	if r.cache != nil {
		if vector, ok := r.cache.Get(queryText); ok {
			return vector, nil
		}
	}
	vector, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty embedding for query")
	}
	if r.cache != nil {
		r.cache.Put(queryText, vector)
	}
	return vector, nil
}
