package domain

// RetrievalOptions is the parameter set of one retrieval backend call.
type RetrievalOptions struct {
	MatchCount       int      `json:"match_count"`
	SemanticWeight   float64  `json:"semantic_weight"`
	FullTextWeight   float64  `json:"full_text_weight"`
	RecencyWeight    float64  `json:"recency_weight"`
	EvidenceBoost    float64  `json:"evidence_boost"`
	MinEvidenceLevel int      `json:"min_evidence_level"`
	StudyTypes       []string `json:"filter_study_types,omitempty"`
	MeSHTerms        []string `json:"filter_mesh_terms,omitempty"`
	MinYear          int      `json:"min_year,omitempty"`
}

// SearchState is a node of the evidence search state machine.
type SearchState string

const (
	StateIdle          SearchState = "idle"
	StateClassifying   SearchState = "classifying"
	StateNonMedical    SearchState = "non_medical"
	StateUnderstanding SearchState = "understanding"
	StateRetrieving    SearchState = "retrieving"
	StateReranking     SearchState = "reranking"
	StateSynthesizing  SearchState = "synthesizing"
	StateComplete      SearchState = "complete"
	StateError         SearchState = "error"
)

func (s SearchState) Terminal() bool {
	return s == StateNonMedical || s == StateComplete || s == StateError
}

type EvidenceSearchRequest struct {
	Query                string   `json:"query"`
	MaxResults           int      `json:"maxResults,omitempty"`
	MinEvidenceLevel     int      `json:"minEvidenceLevel,omitempty"`
	StudyTypes           []string `json:"studyTypes,omitempty"`
	MinYear              int      `json:"minYear,omitempty"`
	IncludeUnderstanding bool     `json:"includeUnderstanding,omitempty"`
}

type EvidenceSearchResult struct {
	Success           bool               `json:"success"`
	ShouldUseEvidence bool               `json:"shouldUseEvidence"`
	Citations         []EvidenceCitation `json:"citations"`
	Summary           EvidenceSummary    `json:"summary"`
	SearchTimeMs      int64              `json:"searchTimeMs"`

	State                SearchState         `json:"state"`
	FormattedContext     string              `json:"formattedContext"`
	SystemPromptAddition string              `json:"systemPromptAddition"`
	RerankingStats       RerankingStats      `json:"rerankingStats"`
	Understanding        *QueryUnderstanding `json:"understanding,omitempty"`
}

// Context returns the synthesis artifact carried by the result.
func (r EvidenceSearchResult) Context() EvidenceContext {
	return EvidenceContext{
		Citations:            r.Citations,
		FormattedContext:     r.FormattedContext,
		SystemPromptAddition: r.SystemPromptAddition,
	}
}
