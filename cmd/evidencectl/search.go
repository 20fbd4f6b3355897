package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/resilience"
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Search the evidence corpus for a clinical question",
	Long: `Search classifies the question, retrieves candidates with hybrid RRF,
reranks them against the query's clinical context and prints the citations.

With --nats the request goes to a running worker pool instead of the
in-process pipeline.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of citations (0 uses the configured default)")
	searchCmd.Flags().Int("min-level", 0, "worst acceptable evidence level, 1-5")
	searchCmd.Flags().StringSlice("study-type", nil, "restrict to study types (repeatable)")
	searchCmd.Flags().Int("min-year", 0, "earliest publication year")
	searchCmd.Flags().Bool("understanding", false, "include the query understanding in the result")
	searchCmd.Flags().Bool("json", false, "output the full result as JSON")
	searchCmd.Flags().Bool("nats", false, "send the request to workers over NATS")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	maxResults, _ := cmd.Flags().GetInt("max-results")
	minLevel, _ := cmd.Flags().GetInt("min-level")
	studyTypes, _ := cmd.Flags().GetStringSlice("study-type")
	minYear, _ := cmd.Flags().GetInt("min-year")
	withUnderstanding, _ := cmd.Flags().GetBool("understanding")
	asJSON, _ := cmd.Flags().GetBool("json")
	overNATS, _ := cmd.Flags().GetBool("nats")

	req := domain.EvidenceSearchRequest{
		Query:                strings.Join(args, " "),
		MaxResults:           maxResults,
		MinEvidenceLevel:     minLevel,
		StudyTypes:           studyTypes,
		MinYear:              minYear,
		IncludeUnderstanding: withUnderstanding,
	}

	var (
		result *domain.EvidenceSearchResult
		err    error
	)
	if overNATS {
		result, err = searchOverNATS(cmd, req)
	} else {
		result, err = searchInProcess(cmd, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printSearchResult(out, result)
	return nil
}

func searchInProcess(cmd *cobra.Command, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
	app, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return nil, err
	}
	defer app.Close()
	return app.SearchUC.Search(cmd.Context(), req)
}

func searchOverNATS(cmd *cobra.Command, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)
	retryCfg := resilience.NATSRequestConfig()
	retryCfg.Logger = logger
	noRetryConnect := false
	transport, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		RetryOnFailedConnect: &noRetryConnect,
		ResilienceExecutor:   resilience.NewExecutor(retryCfg),
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}
	defer transport.Close()

	reply, err := transport.Request(cmd.Context(), req)
	if err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("worker replied %s: %s (request %s)", reply.Error, reply.Message, reply.RequestID)
	}
	return reply.Result, nil
}

func printSearchResult(w io.Writer, result *domain.EvidenceSearchResult) {
	fmt.Fprintf(w, "state: %s  sources: %d  time: %dms\n", result.State, len(result.Citations), result.SearchTimeMs)
	if !result.ShouldUseEvidence {
		fmt.Fprintln(w, "no evidence to cite")
		return
	}
	stats := result.RerankingStats
	fmt.Fprintf(w, "reranked %d -> %d (avg contextual score %.2f)\n\n", stats.InitialCount, stats.RerankedCount, stats.AverageContextualScore)
	for _, c := range result.Citations {
		fmt.Fprintf(w, "[%d] %s\n", c.Index, c.Title)
		meta := []string{fmt.Sprintf("level %d", c.EvidenceLevel)}
		if c.StudyType != "" {
			meta = append(meta, c.StudyType)
		}
		if c.Journal != "" {
			meta = append(meta, c.Journal)
		}
		if c.Year > 0 {
			meta = append(meta, fmt.Sprintf("%d", c.Year))
		}
		fmt.Fprintf(w, "    %s  score %.3f\n", strings.Join(meta, " | "), c.Score)
		if c.URL != nil {
			fmt.Fprintf(w, "    %s\n", *c.URL)
		}
	}
}
