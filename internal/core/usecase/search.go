package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/ports"
)

const (
	defaultMaxResults          = 8
	defaultMaxResultsLimit     = 50
	defaultCandidateMultiplier = 3
	defaultSearchTimeout       = 30 * time.Second
	noEvidenceFloor            = 5
)

// SearchSettings tunes retrieval and reranking for every request.
type SearchSettings struct {
	DefaultMaxResults   int
	MaxResultsLimit     int
	CandidateMultiplier int
	Timeout             time.Duration

	SemanticWeight float64
	FullTextWeight float64
	RecencyWeight  float64
	EvidenceBoost  float64
	FilterByMeSH   bool

	RerankEnabled      bool
	MinContextualScore float64
}

func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		DefaultMaxResults:   defaultMaxResults,
		MaxResultsLimit:     defaultMaxResultsLimit,
		CandidateMultiplier: defaultCandidateMultiplier,
		Timeout:             defaultSearchTimeout,
		SemanticWeight:      1.0,
		FullTextWeight:      1.0,
		RecencyWeight:       0.1,
		EvidenceBoost:       0.2,
		RerankEnabled:       true,
		MinContextualScore:  DefaultMinContextualScore,
	}
}

type EvidenceSearchUseCase struct {
	retriever *HybridRetriever
	reranker  *ContextualReranker
	settings  SearchSettings
	logger    *slog.Logger
	observer  ports.SearchObserver
	now       func() time.Time
}

func NewEvidenceSearchUseCase(
	retriever *HybridRetriever,
	reranker *ContextualReranker,
	settings SearchSettings,
	logger *slog.Logger,
	observer ports.SearchObserver,
) *EvidenceSearchUseCase {
	if settings.DefaultMaxResults <= 0 {
		settings.DefaultMaxResults = defaultMaxResults
	}
	if settings.MaxResultsLimit <= 0 {
		settings.MaxResultsLimit = defaultMaxResultsLimit
	}
	if settings.DefaultMaxResults > settings.MaxResultsLimit {
		settings.DefaultMaxResults = settings.MaxResultsLimit
	}
	if settings.CandidateMultiplier <= 0 {
		settings.CandidateMultiplier = 1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultSearchTimeout
	}
	if reranker == nil {
		reranker = NewContextualReranker()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EvidenceSearchUseCase{
		retriever: retriever,
		reranker:  reranker,
		settings:  settings,
		logger:    logger,
		observer:  observer,
		now:       time.Now,
	}
}

// IsMedicalQuery and Understand make the use case a ports.QueryAnalyzer.
func (uc *EvidenceSearchUseCase) IsMedicalQuery(text string) bool {
	return IsMedicalQuery(text)
}

func (uc *EvidenceSearchUseCase) Understand(text string) domain.QueryUnderstanding {
	return Understand(text)
}

// Search runs one request through classification, understanding, retrieval,
// reranking and synthesis. Only malformed requests return an error; backend
// failures end in the error state with an empty evidence set.
func (uc *EvidenceSearchUseCase) Search(ctx context.Context, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
	started := uc.now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evidence search", fmt.Errorf("query is required"))
	}
	maxResults, minLevel, err := uc.normalizeRequest(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evidence search", err)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.settings.Timeout)
	defer cancel()

	state := domain.StateIdle
	transition := func(next domain.SearchState) {
		uc.logger.Debug("evidence_search_state", "from", state, "to", next)
		state = next
	}
	finish := func(result *domain.EvidenceSearchResult) (*domain.EvidenceSearchResult, error) {
		result.State = state
		result.SearchTimeMs = uc.now().Sub(started).Milliseconds()
		if uc.observer != nil {
			uc.observer.ObserveEvidenceSearch(result)
		}
		return result, nil
	}

	transition(domain.StateClassifying)
	if !IsMedicalQuery(query) {
		transition(domain.StateNonMedical)
		uc.logger.Debug("evidence_search_skipped", "reason", "non_medical", "query_length", len(query))
		return finish(emptySearchResult(true))
	}

	transition(domain.StateUnderstanding)
	understanding := Understand(query)

	transition(domain.StateRetrieving)
	opts := uc.retrievalOptions(understanding, req, maxResults, minLevel)
	candidates, err := uc.retriever.Retrieve(ctx, understanding.SemanticQuery, opts)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		transition(domain.StateError)
		uc.logger.Error("evidence_search_failed",
			"query", query,
			"match_count", opts.MatchCount,
			"min_evidence_level", opts.MinEvidenceLevel,
			"study_types", opts.StudyTypes,
			"mesh_terms", opts.MeSHTerms,
			"min_year", opts.MinYear,
			"retrieval_unavailable", domain.IsKind(err, domain.ErrRetrievalUnavailable),
			"error", err,
		)
		result := emptySearchResult(false)
		if req.IncludeUnderstanding {
			result.Understanding = &understanding
		}
		return finish(result)
	}

	transition(domain.StateReranking)
	ranked, stats := uc.reranker.RerankWithin(candidates, BoundsOf(candidates), understanding, uc.settings.MinContextualScore, uc.settings.RerankEnabled)
	ranked = slices.DeleteFunc(ranked, func(r domain.EvidenceRecord) bool { return !citable(r) })
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	transition(domain.StateSynthesizing)
	evidence := Synthesize(ranked)

	transition(domain.StateComplete)
	result := &domain.EvidenceSearchResult{
		Success:              true,
		ShouldUseEvidence:    len(evidence.Citations) > 0,
		Citations:            evidence.Citations,
		Summary:              Summarize(evidence.Citations),
		FormattedContext:     evidence.FormattedContext,
		SystemPromptAddition: evidence.SystemPromptAddition,
		RerankingStats:       stats,
	}
	if req.IncludeUnderstanding {
		result.Understanding = &understanding
	}
	uc.logger.Info("evidence_search_completed",
		"candidates", len(candidates),
		"citations", len(evidence.Citations),
		"primary_intent", understanding.PrimaryIntent,
		"duration_ms", uc.now().Sub(started).Milliseconds(),
	)
	return finish(result)
}

func (uc *EvidenceSearchUseCase) normalizeRequest(req domain.EvidenceSearchRequest) (int, int, error) {
	maxResults := req.MaxResults
	switch {
	case maxResults < 0:
		return 0, 0, fmt.Errorf("maxResults must be positive")
	case maxResults == 0:
		maxResults = uc.settings.DefaultMaxResults
	case maxResults > uc.settings.MaxResultsLimit:
		maxResults = uc.settings.MaxResultsLimit
	}

	minLevel := req.MinEvidenceLevel
	if minLevel == 0 {
		minLevel = noEvidenceFloor
	}
	if minLevel < 1 || minLevel > 5 {
		return 0, 0, fmt.Errorf("minEvidenceLevel must be between 1 and 5")
	}
	if req.MinYear < 0 {
		return 0, 0, fmt.Errorf("minYear must not be negative")
	}
	return maxResults, minLevel, nil
}

func (uc *EvidenceSearchUseCase) retrievalOptions(understanding domain.QueryUnderstanding, req domain.EvidenceSearchRequest, maxResults, minLevel int) domain.RetrievalOptions {
	opts := domain.RetrievalOptions{
		MatchCount:       maxResults * uc.settings.CandidateMultiplier,
		SemanticWeight:   uc.settings.SemanticWeight,
		FullTextWeight:   uc.settings.FullTextWeight,
		RecencyWeight:    uc.settings.RecencyWeight,
		EvidenceBoost:    uc.settings.EvidenceBoost,
		MinEvidenceLevel: minLevel,
		MinYear:          req.MinYear,
	}
	studyTypes := make([]string, 0, len(req.StudyTypes))
	for _, studyType := range req.StudyTypes {
		if studyType = strings.TrimSpace(studyType); studyType != "" {
			studyTypes = append(studyTypes, studyType)
		}
	}
	if len(studyTypes) > 0 {
		opts.StudyTypes = studyTypes
	}
	if uc.settings.FilterByMeSH && len(understanding.MeSHTerms) > 0 {
		opts.MeSHTerms = append([]string(nil), understanding.MeSHTerms...)
	}
	return opts
}

func emptySearchResult(success bool) *domain.EvidenceSearchResult {
	evidence := domain.EmptyEvidenceContext()
	return &domain.EvidenceSearchResult{
		Success:              success,
		ShouldUseEvidence:    false,
		Citations:            evidence.Citations,
		Summary:              Summarize(evidence.Citations),
		FormattedContext:     evidence.FormattedContext,
		SystemPromptAddition: evidence.SystemPromptAddition,
		RerankingStats:       domain.RerankingStats{SignalsUsed: []string{}},
	}
}
