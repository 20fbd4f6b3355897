package domain

// EvidenceRecord is a raw retrieval hit as returned by the retrieval backend.
// Empty strings and zero numbers stand for absent nullable fields.
type EvidenceRecord struct {
	ID                 string   `json:"id"`
	Content            string   `json:"content"`
	ContentWithContext string   `json:"content_with_context,omitempty"`
	Title              string   `json:"title"`
	Journal            string   `json:"journal,omitempty"`
	PublicationYear    int      `json:"publication_year,omitempty"`
	DOI                string   `json:"doi,omitempty"`
	Authors            []string `json:"authors,omitempty"`
	EvidenceLevel      int      `json:"evidence_level"`
	StudyType          string   `json:"study_type,omitempty"`
	SampleSize         int      `json:"sample_size,omitempty"`
	MeSHTerms          []string `json:"mesh_terms,omitempty"`
	MajorMeSHTerms     []string `json:"major_mesh_terms,omitempty"`
	ChemicalNames      []string `json:"chemical_names,omitempty"`
	SectionType        string   `json:"section_type,omitempty"`
	PMID               string   `json:"pmid,omitempty"`
	Score              float64  `json:"score"`
}

// EvidenceCitation is the stable output unit consumed by prompt builders and UIs.
type EvidenceCitation struct {
	Index         int      `json:"index"`
	PMID          string   `json:"pmid,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	Title         string   `json:"title"`
	Journal       string   `json:"journal,omitempty"`
	Year          int      `json:"year,omitempty"`
	Authors       []string `json:"authors"`
	EvidenceLevel int      `json:"evidenceLevel"`
	StudyType     string   `json:"studyType,omitempty"`
	SampleSize    int      `json:"sampleSize,omitempty"`
	MeSHTerms     []string `json:"meshTerms"`
	URL           *string  `json:"url"`
	Snippet       string   `json:"snippet"`
	Score         float64  `json:"score"`
}

// EvidenceContext bundles the citations with the text blocks built from them.
type EvidenceContext struct {
	Citations            []EvidenceCitation `json:"citations"`
	FormattedContext     string             `json:"formattedContext"`
	SystemPromptAddition string             `json:"systemPromptAddition"`
}

// EmptyEvidenceContext is the canonical "no evidence" value shared by every
// exit path that produces no citations.
func EmptyEvidenceContext() EvidenceContext {
	return EvidenceContext{Citations: []EvidenceCitation{}}
}

type RerankingStats struct {
	InitialCount           int      `json:"initialCount"`
	RerankedCount          int      `json:"rerankedCount"`
	AverageContextualScore float64  `json:"averageContextualScore"`
	SignalsUsed            []string `json:"signalsUsed"`
}

type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type EvidenceSummary struct {
	TotalSources         int             `json:"totalSources"`
	HighestEvidenceLevel int             `json:"highestEvidenceLevel"`
	StudyTypeCounts      StudyTypeCounts `json:"studyTypeCounts"`
	YearRange            *YearRange      `json:"yearRange"`
}
