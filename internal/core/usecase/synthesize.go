package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

const (
	snippetLimit        = 300
	snippetEllipsis     = "..."
	maxListedAuthors    = 3
	maxListedMeSHTerms  = 5
	citationDelimiter   = "\n\n---\n\n"
	unknownJournal      = "Unknown Journal"
	unknownStudyTypeKey = "Unknown"
)

var evidenceLevelLabels = map[int]string{
	1: "Systematic Review / Meta-Analysis",
	2: "Randomized Controlled Trial",
	3: "Cohort / Case-Control Study",
	4: "Case Series / Case Report",
	5: "Expert Opinion / Narrative Review",
}

const citationRules = `## Evidence citation rules
You have access to the peer-reviewed sources listed below. When you use them:
1. Every factual claim drawn from a source must carry an inline marker such as [1] or [1,2].
2. Direct quotations must be enclosed in quotation marks and cited.
3. Give more weight to evidence level 1 and 2 sources than to level 4 and 5 sources, and say so when only weak evidence is available.
4. If sources disagree, flag the conflict explicitly and cite each side.
5. Do not invent citations or cite sources that are not listed.`

func EvidenceLevelLabel(level int) string {
	if label, ok := evidenceLevelLabels[level]; ok {
		return label
	}
	return "Unknown"
}

// CitationURL prefers the PubMed resolver, then the DOI resolver. An empty
// string means no resolvable URL.
func CitationURL(pmid, doi string) string {
	if pmid = strings.TrimSpace(pmid); pmid != "" {
		return "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}
	if doi = strings.TrimSpace(doi); doi != "" {
		return "https://doi.org/" + doi
	}
	return ""
}

// buildSnippet cuts content at snippetLimit runes and appends the ellipsis
// exactly when the raw content was longer. Whitespace is trimmed after the
// cut so it never hides a truncation.
func buildSnippet(content string) string {
	snippet, truncated := truncateRunes(content, snippetLimit)
	snippet = strings.TrimSpace(snippet)
	if truncated {
		return snippet + snippetEllipsis
	}
	return snippet
}

// citable reports whether a record has the id and title a citation needs.
func citable(record domain.EvidenceRecord) bool {
	return strings.TrimSpace(record.ID) != "" && strings.TrimSpace(record.Title) != ""
}

// Synthesize turns ranked records into citations numbered 1..N in the given
// order. Records without an id or title are skipped.
func Synthesize(records []domain.EvidenceRecord) domain.EvidenceContext {
	out := domain.EmptyEvidenceContext()
	for _, record := range records {
		if !citable(record) {
			continue
		}
		content := record.Content
		if strings.TrimSpace(content) == "" {
			content = record.ContentWithContext
		}
		out.Citations = append(out.Citations, domain.EvidenceCitation{
			Index:         len(out.Citations) + 1,
			PMID:          record.PMID,
			DOI:           record.DOI,
			Title:         strings.TrimSpace(record.Title),
			Journal:       record.Journal,
			Year:          record.PublicationYear,
			Authors:       nonNilStrings(record.Authors),
			EvidenceLevel: record.EvidenceLevel,
			StudyType:     record.StudyType,
			SampleSize:    record.SampleSize,
			MeSHTerms:     nonNilStrings(record.MeSHTerms),
			Snippet:       buildSnippet(content),
			Score:         record.Score,
		})
		if url := CitationURL(record.PMID, record.DOI); url != "" {
			out.Citations[len(out.Citations)-1].URL = &url
		}
	}
	if len(out.Citations) == 0 {
		return out
	}

	blocks := make([]string, 0, len(out.Citations))
	for _, citation := range out.Citations {
		blocks = append(blocks, formatCitationBlock(citation))
	}
	out.FormattedContext = strings.Join(blocks, citationDelimiter)
	out.SystemPromptAddition = buildSystemPromptAddition(out.Citations)
	return out
}

func formatCitationBlock(c domain.EvidenceCitation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s\n", c.Index, c.Title)
	fmt.Fprintf(&b, "Source: %s\n", sourceLine(c))
	if len(c.Authors) > 0 {
		authors := c.Authors
		suffix := ""
		if len(authors) > maxListedAuthors {
			authors = authors[:maxListedAuthors]
			suffix = " et al."
		}
		fmt.Fprintf(&b, "Authors: %s%s\n", strings.Join(authors, ", "), suffix)
	}
	fmt.Fprintf(&b, "Evidence Level: %d (%s)\n", c.EvidenceLevel, EvidenceLevelLabel(c.EvidenceLevel))
	if c.StudyType != "" {
		fmt.Fprintf(&b, "Study Type: %s\n", c.StudyType)
	}
	if c.SampleSize > 0 {
		fmt.Fprintf(&b, "Sample Size: n=%d\n", c.SampleSize)
	}
	if len(c.MeSHTerms) > 0 {
		terms := c.MeSHTerms
		if len(terms) > maxListedMeSHTerms {
			terms = terms[:maxListedMeSHTerms]
		}
		fmt.Fprintf(&b, "MeSH Terms: %s\n", strings.Join(terms, ", "))
	}
	b.WriteString("\n")
	b.WriteString(c.Snippet)
	return b.String()
}

func sourceLine(c domain.EvidenceCitation) string {
	journal := strings.TrimSpace(c.Journal)
	if journal == "" {
		journal = unknownJournal
	}
	if c.Year > 0 {
		return journal + " (" + strconv.Itoa(c.Year) + ")"
	}
	return journal
}

func buildSystemPromptAddition(citations []domain.EvidenceCitation) string {
	var b strings.Builder
	b.WriteString(citationRules)
	b.WriteString("\n\nAvailable sources:\n")
	for i, c := range citations {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s | %s | Level %d", c.Index, c.Title, sourceLine(c), c.EvidenceLevel)
	}
	return b.String()
}

// Summarize computes the response summary over the final citation set.
func Summarize(citations []domain.EvidenceCitation) domain.EvidenceSummary {
	summary := domain.EvidenceSummary{
		TotalSources:    len(citations),
		StudyTypeCounts: domain.StudyTypeCounts{},
	}
	for _, c := range citations {
		if c.EvidenceLevel > 0 && (summary.HighestEvidenceLevel == 0 || c.EvidenceLevel < summary.HighestEvidenceLevel) {
			summary.HighestEvidenceLevel = c.EvidenceLevel
		}
		studyType := strings.TrimSpace(c.StudyType)
		if studyType == "" {
			studyType = unknownStudyTypeKey
		}
		summary.StudyTypeCounts = summary.StudyTypeCounts.Add(studyType)
		if c.Year <= 0 {
			continue
		}
		if summary.YearRange == nil {
			summary.YearRange = &domain.YearRange{Min: c.Year, Max: c.Year}
			continue
		}
		if c.Year < summary.YearRange.Min {
			summary.YearRange.Min = c.Year
		}
		if c.Year > summary.YearRange.Max {
			summary.YearRange.Max = c.Year
		}
	}
	return summary
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

