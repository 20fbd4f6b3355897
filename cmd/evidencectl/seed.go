package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/ports"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/chunking"
)

var seedCmd = &cobra.Command{
	Use:   "seed <records.jsonl|->",
	Short: "Embed evidence records and upsert them into the Qdrant collection",
	Long: `Seed reads one evidence record per line (JSON, the same field names the
retrieval backend returns), splits long content into overlapping passages,
embeds each passage with the configured embedding model and upserts the batch
into Qdrant with dense and sparse vectors. Requires RETRIEVAL_BACKEND=qdrant.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().Int("batch-size", 64, "passages per upsert request")
	seedCmd.Flags().Int("passage-size", 1200, "maximum passage length in characters")
	seedCmd.Flags().Int("passage-overlap", 150, "characters shared by consecutive passages")
	rootCmd.AddCommand(seedCmd)
}

// evidenceIndexer is the write side of the Qdrant evidence index.
type evidenceIndexer interface {
	IndexEvidence(ctx context.Context, records []domain.EvidenceRecord, vectors [][]float32) error
}

func runSeed(cmd *cobra.Command, args []string) error {
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	passageSize, _ := cmd.Flags().GetInt("passage-size")
	passageOverlap, _ := cmd.Flags().GetInt("passage-overlap")
	splitter := chunking.NewPassageSplitter(passageSize, passageOverlap)

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open records: %w", err)
		}
		defer f.Close()
		in = f
	}

	app, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Index == nil {
		return fmt.Errorf("seed requires the qdrant retrieval backend, got %q", app.Config.RetrievalBackend)
	}

	total, err := seedRecords(cmd.Context(), in, splitter, app.Embedder, app.Index, batchSize)
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d passages\n", total)
	return err
}

// seedRecords streams JSONL records into the index in batches and returns
// how many passages were written before the first error.
func seedRecords(ctx context.Context, in io.Reader, splitter *chunking.PassageSplitter, embedder ports.Embedder, index evidenceIndexer, batchSize int) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		records []domain.EvidenceRecord
		vectors [][]float32
		total   int
		line    int
	)
	flush := func() error {
		if len(records) == 0 {
			return nil
		}
		if err := index.IndexEvidence(ctx, records, vectors); err != nil {
			return err
		}
		total += len(records)
		records, vectors = records[:0], vectors[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var record domain.EvidenceRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return total, fmt.Errorf("line %d: decode record: %w", line, err)
		}
		if record.ID == "" || strings.TrimSpace(record.Content) == "" {
			return total, fmt.Errorf("line %d: record needs id and content", line)
		}
		if record.EvidenceLevel < 1 || record.EvidenceLevel > 5 {
			// Unknown grading ranks as expert opinion.
			record.EvidenceLevel = 5
		}
		for _, passage := range splitter.Passages(record) {
			vector, err := embedder.EmbedQuery(ctx, passage.Content)
			if err != nil {
				return total, fmt.Errorf("line %d: embed %s: %w", line, passage.ID, err)
			}
			records = append(records, passage)
			vectors = append(vectors, vector)
			if len(records) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read records: %w", err)
	}
	return total, flush()
}
