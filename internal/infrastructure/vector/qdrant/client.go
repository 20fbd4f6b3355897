package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// EvidenceIndex serves the retrieval RPC contract from a Qdrant collection
// holding a named dense vector and a named sparse (BM25-style) vector per
// evidence chunk. Fusion happens client side.
type EvidenceIndex struct {
	baseURL    string
	collection string
	httpClient *http.Client
	rrfK       int
	now        func() time.Time

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Option func(*EvidenceIndex)

func WithRRFK(k int) Option {
	return func(c *EvidenceIndex) {
		if k > 0 {
			c.rrfK = k
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *EvidenceIndex) {
		if now != nil {
			c.now = now
		}
	}
}

func New(baseURL, collection string, opts ...Option) *EvidenceIndex {
	c := &EvidenceIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		rrfK:       defaultRRFK,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EvidenceIndex) SearchEvidence(ctx context.Context, queryText string, queryVector []float32, opts domain.RetrievalOptions) ([]domain.EvidenceRecord, error) {
	limit := opts.MatchCount
	if limit <= 0 {
		limit = 10
	}
	filter := buildEvidenceFilter(opts)

	var semantic []domain.EvidenceRecord
	if opts.SemanticWeight > 0 {
		hits, err := c.query(ctx, queryVector, denseVectorName, limit, filter)
		if err != nil {
			return nil, fmt.Errorf("dense query: %w", err)
		}
		semantic = hits
	}

	var lexical []domain.EvidenceRecord
	sparse := encodeSparseQuery(queryText)
	if opts.FullTextWeight > 0 && len(sparse.Indices) > 0 {
		hits, err := c.query(ctx, sparse, sparseVectorName, limit, filter)
		if err != nil {
			return nil, fmt.Errorf("sparse query: %w", err)
		}
		lexical = hits
	}

	fused := fuseEvidenceRRF(semantic, lexical, fusionParams{
		k:              c.rrfK,
		semanticWeight: opts.SemanticWeight,
		fullTextWeight: opts.FullTextWeight,
		recencyWeight:  opts.RecencyWeight,
		evidenceBoost:  opts.EvidenceBoost,
		currentYear:    c.now().Year(),
	})
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

func (c *EvidenceIndex) query(ctx context.Context, query any, using string, limit int, filter map[string]any) ([]domain.EvidenceRecord, error) {
	reqBody := map[string]any{
		"query":        query,
		"using":        using,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		reqBody["filter"] = filter
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, statusError("query", resp)
	}

	var queryResp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	out := make([]domain.EvidenceRecord, 0, len(queryResp.Result.Points))
	for _, p := range queryResp.Result.Points {
		record := recordFromPayload(p.Payload)
		if record.ID == "" {
			record.ID = fmt.Sprintf("%v", p.ID)
		}
		record.Score = p.Score
		out = append(out, record)
	}
	return out, nil
}

// buildEvidenceFilter maps the RPC filters onto a Qdrant must-filter.
func buildEvidenceFilter(opts domain.RetrievalOptions) map[string]any {
	must := make([]map[string]any, 0, 4)
	if opts.MinEvidenceLevel >= 1 && opts.MinEvidenceLevel < 5 {
		must = append(must, map[string]any{
			"key":   "evidence_level",
			"range": map[string]any{"lte": opts.MinEvidenceLevel},
		})
	}
	if len(opts.StudyTypes) > 0 {
		must = append(must, map[string]any{
			"key":   "study_type",
			"match": map[string]any{"any": opts.StudyTypes},
		})
	}
	if len(opts.MeSHTerms) > 0 {
		must = append(must, map[string]any{
			"key":   "mesh_terms",
			"match": map[string]any{"any": opts.MeSHTerms},
		})
	}
	if opts.MinYear > 0 {
		must = append(must, map[string]any{
			"key":   "publication_year",
			"range": map[string]any{"gte": opts.MinYear},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

// IndexEvidence upserts evidence records with their dense vectors. It backs
// corpus seeding tools; the search path never writes.
func (c *EvidenceIndex) IndexEvidence(ctx context.Context, records []domain.EvidenceRecord, vectors [][]float32) error {
	if len(records) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("records/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(records))
	for i, record := range records {
		id := record.ID
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte("evidence:"+record.ID)).String()
		}
		points = append(points, point{
			ID: id,
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseRecord(record),
			},
			Payload: payloadFromRecord(record),
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("upsert", resp)
	}
	return nil
}

func (c *EvidenceIndex) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError("ensure collection", resp)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *EvidenceIndex) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

// Ping checks that the collection exists.
func (c *EvidenceIndex) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("ping", resp)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
}
