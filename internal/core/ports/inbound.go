package ports

import (
	"context"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

// EvidenceSearcher is the inbound contract for literature-grounded evidence search.
type EvidenceSearcher interface {
	Search(ctx context.Context, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error)
}

// QueryAnalyzer exposes the pure, I/O-free query analysis steps.
type QueryAnalyzer interface {
	IsMedicalQuery(text string) bool
	Understand(text string) domain.QueryUnderstanding
}
