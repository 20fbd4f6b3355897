package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/resilience"
)

const embedOperation = "ollama_embed"

var errEmptyEmbedding = errors.New("empty embedding result")

type Options struct {
	// EmbedRPS caps outbound embed calls per second; zero disables throttling.
	EmbedRPS   float64
	EmbedBurst int
	Timeout    time.Duration
	Executor   *resilience.Executor
}

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL, embedModel string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.EmbeddingConfig())
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.EmbedRPS > 0 {
		burst := opts.EmbedBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.EmbedRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		executor:   opts.Executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// EmbedQuery returns the embedding of one query text. Transient failures are
// retried by the client's executor; once retries are exhausted the error is
// reported as domain.ErrProviderUnavailable.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.client.executor.Execute(ctx, embedOperation, func(ctx context.Context) error {
		if err := e.client.limiter.Wait(ctx); err != nil {
			return err
		}
		out, err := e.client.embed(ctx, text)
		if err != nil {
			return err
		}
		vector = out
		return nil
	}, classifyOllamaError)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrProviderUnavailable, "ollama embed", err)
	}
	return vector, nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": text,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: %w", errEmptyEmbedding)
	}
	return response.Embeddings[0], nil
}

// Ping checks that the embedding server answers; used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/api/tags", nil, nil, "ping")
}
