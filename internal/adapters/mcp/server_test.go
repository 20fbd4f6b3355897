package mcpadapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/usecase"
)

type searcherFake struct {
	result *domain.EvidenceSearchResult
	err    error
	got    domain.EvidenceSearchRequest
}

func (f *searcherFake) Search(_ context.Context, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
	f.got = req
	return f.result, f.err
}

type analyzerFake struct{}

func (analyzerFake) IsMedicalQuery(text string) bool { return usecase.IsMedicalQuery(text) }

func (analyzerFake) Understand(text string) domain.QueryUnderstanding { return usecase.Understand(text) }

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool content, got %+v", result)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestEvidenceSearchToolReturnsPromptAndContext(t *testing.T) {
	searcher := &searcherFake{result: &domain.EvidenceSearchResult{
		Success:              true,
		ShouldUseEvidence:    true,
		State:                domain.StateComplete,
		FormattedContext:     "[1] Aspirin in pregnancy",
		SystemPromptAddition: "Cite sources as [n].",
	}}
	srv := NewServer(searcher, analyzerFake{}, "test")

	result, err := srv.handleEvidenceSearch(context.Background(), callTool(ToolEvidenceSearch, map[string]any{
		"query":              "is aspirin safe in pregnancy",
		"max_results":        float64(4),
		"min_evidence_level": float64(2),
		"study_types":        []any{"RCT", "Meta-Analysis"},
	}))
	if err != nil {
		t.Fatalf("handleEvidenceSearch() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "Cite sources as [n].") || !strings.Contains(text, "[1] Aspirin in pregnancy") {
		t.Fatalf("unexpected tool text: %q", text)
	}
	if searcher.got.MaxResults != 4 || searcher.got.MinEvidenceLevel != 2 || len(searcher.got.StudyTypes) != 2 {
		t.Fatalf("unexpected request: %+v", searcher.got)
	}
}

func TestEvidenceSearchToolRequiresQuery(t *testing.T) {
	srv := NewServer(&searcherFake{}, analyzerFake{}, "test")
	result, err := srv.handleEvidenceSearch(context.Background(), callTool(ToolEvidenceSearch, map[string]any{}))
	if err != nil {
		t.Fatalf("handleEvidenceSearch() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestEvidenceSearchToolHidesInternalErrors(t *testing.T) {
	srv := NewServer(&searcherFake{err: errors.New("dial tcp: connection refused")}, analyzerFake{}, "test")
	result, _ := srv.handleEvidenceSearch(context.Background(), callTool(ToolEvidenceSearch, map[string]any{"query": "statins"}))
	if !result.IsError || strings.Contains(resultText(t, result), "refused") {
		t.Fatalf("expected generic tool error, got %+v", result)
	}
}

func TestEvidenceSearchToolExplainsEmptyStates(t *testing.T) {
	srv := NewServer(&searcherFake{result: &domain.EvidenceSearchResult{Success: true, State: domain.StateNonMedical}}, analyzerFake{}, "test")
	result, _ := srv.handleEvidenceSearch(context.Background(), callTool(ToolEvidenceSearch, map[string]any{"query": "weather"}))
	if !strings.Contains(resultText(t, result), "not medical") {
		t.Fatalf("unexpected non-medical text: %q", resultText(t, result))
	}
}

func TestUnderstandToolReturnsJSON(t *testing.T) {
	srv := NewServer(&searcherFake{}, analyzerFake{}, "test")
	result, err := srv.handleUnderstand(context.Background(), callTool(ToolUnderstand, map[string]any{"query": "metformin dose for type 2 diabetes"}))
	if err != nil {
		t.Fatalf("handleUnderstand() error = %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, `"primaryIntent": "dosing"`) {
		t.Fatalf("expected dosing intent in understanding, got %s", text)
	}
}
