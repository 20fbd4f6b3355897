// Package mcpadapter exposes evidence search as an MCP tool so agent hosts
// can ground their answers in cited literature.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/ports"
)

const (
	ToolEvidenceSearch = "evidence_search"
	ToolUnderstand     = "understand_query"
)

type Server struct {
	searcher ports.EvidenceSearcher
	analyzer ports.QueryAnalyzer
	mcp      *server.MCPServer
}

func NewServer(searcher ports.EvidenceSearcher, analyzer ports.QueryAnalyzer, version string) *Server {
	s := &Server{
		searcher: searcher,
		analyzer: analyzer,
		mcp:      server.NewMCPServer("clinical-evidence-engine", version, server.WithToolCapabilities(false)),
	}
	s.mcp.AddTool(evidenceSearchTool(), s.handleEvidenceSearch)
	s.mcp.AddTool(understandTool(), s.handleUnderstand)
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func evidenceSearchTool() mcp.Tool {
	return mcp.NewTool(ToolEvidenceSearch,
		mcp.WithDescription("Search peer-reviewed medical literature for a clinical question. "+
			"Returns numbered sources and citation instructions to append to the system prompt."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Clinical question in natural language.")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of citations (default 8).")),
		mcp.WithNumber("min_evidence_level", mcp.Description("Worst acceptable evidence level, 1 (meta-analysis) to 5 (expert opinion).")),
		mcp.WithArray("study_types", mcp.WithStringItems(), mcp.Description("Restrict to these study types.")),
		mcp.WithNumber("min_year", mcp.Description("Earliest publication year.")),
	)
}

func understandTool() mcp.Tool {
	return mcp.NewTool(ToolUnderstand,
		mcp.WithDescription("Extract clinical intent, entities and MeSH terms from a question without searching."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Clinical question in natural language.")),
	)
}

func (s *Server) handleEvidenceSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.searcher.Search(ctx, domain.EvidenceSearchRequest{
		Query:            query,
		MaxResults:       request.GetInt("max_results", 0),
		MinEvidenceLevel: request.GetInt("min_evidence_level", 0),
		StudyTypes:       request.GetStringSlice("study_types", nil),
		MinYear:          request.GetInt("min_year", 0),
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError("evidence search failed"), nil
	}
	return mcp.NewToolResultText(renderSearchResult(result)), nil
}

func (s *Server) handleUnderstand(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query = strings.TrimSpace(query)
	if !s.analyzer.IsMedicalQuery(query) {
		return mcp.NewToolResultText("The question is not medical; no clinical understanding was extracted."), nil
	}
	payload, err := json.MarshalIndent(s.analyzer.Understand(query), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode understanding: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func renderSearchResult(result *domain.EvidenceSearchResult) string {
	if !result.ShouldUseEvidence {
		switch result.State {
		case domain.StateNonMedical:
			return "The question is not medical; answer without literature citations."
		case domain.StateError:
			return "The literature search is temporarily unavailable; answer without citations and say so."
		default:
			return "No sufficiently relevant evidence was found for this question."
		}
	}

	var b strings.Builder
	b.WriteString(result.SystemPromptAddition)
	b.WriteString("\n\n")
	b.WriteString(result.FormattedContext)
	return b.String()
}
