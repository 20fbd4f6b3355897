package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

const DefaultSearchFunction = "hybrid_search_evidence"

// errMalformedRow marks a row whose array columns cannot be decoded. Such
// rows are skipped; the rest of the batch is still returned.
var errMalformedRow = errors.New("malformed evidence row")

var functionNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// EvidenceRepository calls the hybrid search SQL function that owns the
// vector + full-text scan and RRF fusion. It never touches tables directly.
type EvidenceRepository struct {
	db     *sql.DB
	query  string
	logger *slog.Logger
}

type RepositoryOption func(*EvidenceRepository)

// WithLogger sets the logger that reports skipped rows.
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *EvidenceRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewEvidenceRepository(db *sql.DB, function string, opts ...RepositoryOption) (*EvidenceRepository, error) {
	function = strings.TrimSpace(function)
	if function == "" {
		function = DefaultSearchFunction
	}
	if !functionNamePattern.MatchString(function) {
		return nil, fmt.Errorf("invalid search function name %q", function)
	}
	repo := &EvidenceRepository{db: db, query: buildSearchQuery(function), logger: slog.Default()}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func buildSearchQuery(function string) string {
	return fmt.Sprintf(`
SELECT id, content, content_with_context, title, journal, publication_year, doi,
	COALESCE(to_jsonb(authors), '[]'::jsonb),
	evidence_level, study_type, sample_size,
	COALESCE(to_jsonb(mesh_terms), '[]'::jsonb),
	COALESCE(to_jsonb(major_mesh_terms), '[]'::jsonb),
	COALESCE(to_jsonb(chemical_names), '[]'::jsonb),
	section_type, pmid, score
FROM %s(
	query_text => $1,
	query_embedding => $2::vector,
	match_count => $3,
	full_text_weight => $4,
	semantic_weight => $5,
	recency_weight => $6,
	evidence_boost => $7,
	min_evidence_level => $8,
	filter_study_types => $9::text[],
	filter_mesh_terms => $10::text[],
	min_year => $11
)
`, function)
}

func (r *EvidenceRepository) SearchEvidence(ctx context.Context, queryText string, queryVector []float32, opts domain.RetrievalOptions) ([]domain.EvidenceRecord, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}

	var minYear any
	if opts.MinYear > 0 {
		minYear = opts.MinYear
	}

	rows, err := r.db.QueryContext(ctx, r.query,
		queryText,
		formatVector(queryVector),
		opts.MatchCount,
		opts.FullTextWeight,
		opts.SemanticWeight,
		opts.RecencyWeight,
		opts.EvidenceBoost,
		opts.MinEvidenceLevel,
		formatTextArray(opts.StudyTypes),
		formatTextArray(opts.MeSHTerms),
		minYear,
	)
	if err != nil {
		return nil, fmt.Errorf("call hybrid search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.EvidenceRecord, 0, opts.MatchCount)
	for rows.Next() {
		record, err := scanEvidenceRecord(rows)
		if errors.Is(err, errMalformedRow) {
			r.logger.Warn("evidence_row_skipped", "id", record.ID, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hybrid search rows: %w", err)
	}
	return out, nil
}

func (r *EvidenceRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanEvidenceRecord(rows *sql.Rows) (domain.EvidenceRecord, error) {
	var (
		id, content, contentWithContext, title, journal sql.NullString
		doi, studyType, sectionType, pmid               sql.NullString
		year, level, sampleSize                         sql.NullInt64
		score                                           sql.NullFloat64
		authorsRaw, meshRaw, majorRaw, chemicalsRaw     []byte
	)
	if err := rows.Scan(
		&id, &content, &contentWithContext, &title, &journal, &year, &doi,
		&authorsRaw, &level, &studyType, &sampleSize,
		&meshRaw, &majorRaw, &chemicalsRaw,
		&sectionType, &pmid, &score,
	); err != nil {
		return domain.EvidenceRecord{}, fmt.Errorf("scan evidence row: %w", err)
	}

	record := domain.EvidenceRecord{
		ID:                 id.String,
		Content:            content.String,
		ContentWithContext: contentWithContext.String,
		Title:              title.String,
		Journal:            journal.String,
		PublicationYear:    int(year.Int64),
		DOI:                doi.String,
		EvidenceLevel:      int(level.Int64),
		StudyType:          studyType.String,
		SampleSize:         int(sampleSize.Int64),
		SectionType:        sectionType.String,
		PMID:               pmid.String,
		Score:              score.Float64,
	}
	columns := []struct {
		dst  *[]string
		raw  []byte
		name string
	}{
		{&record.Authors, authorsRaw, "authors"},
		{&record.MeSHTerms, meshRaw, "mesh_terms"},
		{&record.MajorMeSHTerms, majorRaw, "major_mesh_terms"},
		{&record.ChemicalNames, chemicalsRaw, "chemical_names"},
	}
	for _, col := range columns {
		values, err := decodeTextArray(col.raw, col.name)
		if err != nil {
			return domain.EvidenceRecord{ID: record.ID}, fmt.Errorf("%w %s: %v", errMalformedRow, record.ID, err)
		}
		*col.dst = values
	}
	return record, nil
}

func decodeTextArray(raw []byte, column string) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", column, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// formatVector renders a pgvector text literal.
func formatVector(embedding []float32) string {
	parts := make([]string, 0, len(embedding))
	for _, v := range embedding {
		parts = append(parts, strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// formatTextArray renders a Postgres text[] literal, or nil for no filter.
func formatTextArray(values []string) any {
	if len(values) == 0 {
		return nil
	}
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted = append(quoted, `"`+v+`"`)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}
