package usecase

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

func TestSynthesizeEmptyInputIsCanonicalNoEvidence(t *testing.T) {
	ctx := Synthesize(nil)
	if ctx.Citations == nil || len(ctx.Citations) != 0 {
		t.Fatalf("expected empty non-nil citations, got %#v", ctx.Citations)
	}
	if ctx.FormattedContext != "" || ctx.SystemPromptAddition != "" {
		t.Fatalf("expected empty text blocks")
	}
}

func TestSynthesizeAssignsDenseIndicesAndDropsMalformed(t *testing.T) {
	records := []domain.EvidenceRecord{
		{ID: "a", Title: "First", Content: "one", EvidenceLevel: 1, Score: 0.9},
		{ID: "", Title: "Missing id", Content: "skip", EvidenceLevel: 2, Score: 0.8},
		{ID: "b", Title: "Second", Content: "two", EvidenceLevel: 2, Score: 0.7},
		{ID: "c", Title: "  ", Content: "skip", EvidenceLevel: 3, Score: 0.6},
		{ID: "d", Title: "Third", Content: "three", EvidenceLevel: 3, Score: 0.5},
	}

	ctx := Synthesize(records)
	if len(ctx.Citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(ctx.Citations))
	}
	for i, citation := range ctx.Citations {
		if citation.Index != i+1 {
			t.Fatalf("expected index %d, got %d", i+1, citation.Index)
		}
		if i > 0 && citation.Score > ctx.Citations[i-1].Score {
			t.Fatalf("expected non-increasing scores by index")
		}
	}
	if ctx.Citations[2].Title != "Third" {
		t.Fatalf("unexpected third citation: %s", ctx.Citations[2].Title)
	}
}

func TestSynthesizeCitationURLs(t *testing.T) {
	ctx := Synthesize([]domain.EvidenceRecord{
		{ID: "1", Title: "PMID only", PMID: "123456", EvidenceLevel: 1},
		{ID: "2", Title: "DOI only", DOI: "10.1000/xyz", EvidenceLevel: 1},
		{ID: "3", Title: "Both", PMID: "42", DOI: "10.1/abc", EvidenceLevel: 1},
		{ID: "4", Title: "Neither", EvidenceLevel: 1},
	})

	if ctx.Citations[0].URL == nil || *ctx.Citations[0].URL != "https://pubmed.ncbi.nlm.nih.gov/123456/" {
		t.Fatalf("unexpected pmid url: %v", ctx.Citations[0].URL)
	}
	if ctx.Citations[1].URL == nil || *ctx.Citations[1].URL != "https://doi.org/10.1000/xyz" {
		t.Fatalf("unexpected doi url: %v", ctx.Citations[1].URL)
	}
	if ctx.Citations[2].URL == nil || *ctx.Citations[2].URL != "https://pubmed.ncbi.nlm.nih.gov/42/" {
		t.Fatalf("expected pmid to win over doi, got %v", ctx.Citations[2].URL)
	}
	if ctx.Citations[3].URL != nil {
		t.Fatalf("expected nil url, got %s", *ctx.Citations[3].URL)
	}

	raw, err := json.Marshal(ctx.Citations[3])
	if err != nil {
		t.Fatalf("marshal citation: %v", err)
	}
	if !strings.Contains(string(raw), `"url":null`) {
		t.Fatalf("expected null url in json, got %s", raw)
	}
}

func TestSynthesizeSnippetLength(t *testing.T) {
	long := strings.Repeat("é", 301)
	exact := strings.Repeat("x", 300)
	ctx := Synthesize([]domain.EvidenceRecord{
		{ID: "long", Title: "Long", Content: long, EvidenceLevel: 1},
		{ID: "exact", Title: "Exact", Content: exact, EvidenceLevel: 1},
		{ID: "short", Title: "Short", Content: "brief", EvidenceLevel: 1},
	})

	for _, citation := range ctx.Citations {
		if n := utf8.RuneCountInString(citation.Snippet); n > 303 {
			t.Fatalf("%s: snippet too long: %d", citation.Title, n)
		}
	}
	if !strings.HasSuffix(ctx.Citations[0].Snippet, "...") || utf8.RuneCountInString(ctx.Citations[0].Snippet) != 303 {
		t.Fatalf("expected truncated snippet with ellipsis, got %d runes", utf8.RuneCountInString(ctx.Citations[0].Snippet))
	}
	if ctx.Citations[1].Snippet != exact {
		t.Fatalf("expected 300-char content unchanged")
	}
	if ctx.Citations[2].Snippet != "brief" {
		t.Fatalf("unexpected short snippet: %q", ctx.Citations[2].Snippet)
	}
}

func TestSynthesizeSnippetEllipsisFollowsRawLength(t *testing.T) {
	padded := strings.Repeat("a", 299) + "    "
	ctx := Synthesize([]domain.EvidenceRecord{
		{ID: "padded", Title: "Padded", Content: padded, EvidenceLevel: 2},
		{ID: "spaced", Title: "Spaced", Content: "  aspirin lowers stroke risk  ", EvidenceLevel: 2},
	})
	if want := strings.Repeat("a", 299) + "..."; ctx.Citations[0].Snippet != want {
		t.Fatalf("expected ellipsis for 303-char source, got %q", ctx.Citations[0].Snippet)
	}
	if ctx.Citations[1].Snippet != "aspirin lowers stroke risk" {
		t.Fatalf("expected short content trimmed without ellipsis, got %q", ctx.Citations[1].Snippet)
	}
}

func TestSynthesizeFormattedContext(t *testing.T) {
	ctx := Synthesize([]domain.EvidenceRecord{
		{
			ID:              "a",
			Title:           "Aspirin in pregnancy",
			Journal:         "BMJ",
			PublicationYear: 2021,
			Authors:         []string{"Smith J", "Doe A", "Lee K", "Roe P"},
			EvidenceLevel:   1,
			StudyType:       "Meta-Analysis",
			SampleSize:      12000,
			MeSHTerms:       []string{"Aspirin", "Pregnancy", "Female", "Humans", "Risk", "Preeclampsia"},
			Content:         "Low-dose aspirin reduced preeclampsia.",
		},
		{ID: "b", Title: "Case report", EvidenceLevel: 4, Content: "Single patient."},
	})

	want := "[1] Aspirin in pregnancy\n" +
		"Source: BMJ (2021)\n" +
		"Authors: Smith J, Doe A, Lee K et al.\n" +
		"Evidence Level: 1 (Systematic Review / Meta-Analysis)\n" +
		"Study Type: Meta-Analysis\n" +
		"Sample Size: n=12000\n" +
		"MeSH Terms: Aspirin, Pregnancy, Female, Humans, Risk\n" +
		"\n" +
		"Low-dose aspirin reduced preeclampsia." +
		"\n\n---\n\n" +
		"[2] Case report\n" +
		"Source: Unknown Journal\n" +
		"Evidence Level: 4 (Case Series / Case Report)\n" +
		"\n" +
		"Single patient."
	if ctx.FormattedContext != want {
		t.Fatalf("unexpected formatted context:\n%s", ctx.FormattedContext)
	}

	if !strings.Contains(ctx.SystemPromptAddition, "[1,2]") {
		t.Fatalf("expected citation marker rule in system prompt addition")
	}
	if !strings.Contains(ctx.SystemPromptAddition, "[1] Aspirin in pregnancy | BMJ (2021) | Level 1") {
		t.Fatalf("expected source index line, got:\n%s", ctx.SystemPromptAddition)
	}
	if !strings.HasSuffix(ctx.SystemPromptAddition, "[2] Case report | Unknown Journal | Level 4") {
		t.Fatalf("expected second source index line last")
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]domain.EvidenceCitation{
		{Index: 1, EvidenceLevel: 2, StudyType: "RCT", Year: 2019},
		{Index: 2, EvidenceLevel: 1, StudyType: "Meta-Analysis", Year: 2022},
		{Index: 3, EvidenceLevel: 4, StudyType: "RCT"},
		{Index: 4, EvidenceLevel: 3},
	})

	if summary.TotalSources != 4 || summary.HighestEvidenceLevel != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.StudyTypeCounts.Get("RCT") != 2 || summary.StudyTypeCounts.Get("Unknown") != 1 {
		t.Fatalf("unexpected study type counts: %+v", summary.StudyTypeCounts)
	}
	if summary.YearRange == nil || summary.YearRange.Min != 2019 || summary.YearRange.Max != 2022 {
		t.Fatalf("unexpected year range: %+v", summary.YearRange)
	}

	raw, err := json.Marshal(summary.StudyTypeCounts)
	if err != nil {
		t.Fatalf("marshal counts: %v", err)
	}
	if string(raw) != `{"Meta-Analysis":1,"RCT":2,"Unknown":1}` {
		t.Fatalf("unexpected counts json: %s", raw)
	}

	empty := Summarize(nil)
	if empty.YearRange != nil || empty.HighestEvidenceLevel != 0 || empty.TotalSources != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}
