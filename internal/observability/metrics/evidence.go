package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

const namespace = "cee"

// evidenceCollectors records finished evidence searches. Both binaries
// register one set in their own registry.
type evidenceCollectors struct {
	service string

	searchesTotal      *prometheus.CounterVec
	searchDuration     *prometheus.HistogramVec
	citations          *prometheus.HistogramVec
	contextualScore    *prometheus.HistogramVec
	rerankDroppedTotal *prometheus.CounterVec
	breakerOpen        *prometheus.GaugeVec
}

func newEvidenceCollectors(registry *prometheus.Registry, service string) *evidenceCollectors {
	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "searches_total",
			Help:      "Total evidence searches by terminal state.",
		},
		[]string{"service", "state"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "search_duration_seconds",
			Help:      "Evidence search duration in seconds by terminal state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "state"},
	)
	citations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "citations",
			Help:      "Distribution of citations per completed evidence search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 50},
		},
		[]string{"service"},
	)
	contextualScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rerank",
			Name:      "average_contextual_score",
			Help:      "Average contextual score of reranking survivors.",
			Buckets:   []float64{0.5, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"service"},
	)
	rerankDroppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rerank",
			Name:      "dropped_total",
			Help:      "Candidates removed by the contextual score floor.",
		},
		[]string{"service"},
	)

	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker for an outbound operation is open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(searchesTotal, searchDuration, citations, contextualScore, rerankDroppedTotal, breakerOpen)

	return &evidenceCollectors{
		service:            service,
		searchesTotal:      searchesTotal,
		searchDuration:     searchDuration,
		citations:          citations,
		contextualScore:    contextualScore,
		rerankDroppedTotal: rerankDroppedTotal,
		breakerOpen:        breakerOpen,
	}
}

func (c *evidenceCollectors) observe(result *domain.EvidenceSearchResult) {
	if result == nil {
		return
	}
	state := string(result.State)
	if state == "" {
		state = "unknown"
	}
	c.searchesTotal.WithLabelValues(c.service, state).Inc()
	c.searchDuration.WithLabelValues(c.service, state).Observe(float64(result.SearchTimeMs) / 1000)

	if result.State != domain.StateComplete {
		return
	}
	c.citations.WithLabelValues(c.service).Observe(float64(len(result.Citations)))
	stats := result.RerankingStats
	if dropped := stats.InitialCount - stats.RerankedCount; dropped > 0 {
		c.rerankDroppedTotal.WithLabelValues(c.service).Add(float64(dropped))
	}
	if stats.RerankedCount > 0 && len(stats.SignalsUsed) > 0 {
		c.contextualScore.WithLabelValues(c.service).Observe(stats.AverageContextualScore)
	}
}

func (c *evidenceCollectors) setBreakerOpen(operation string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	c.breakerOpen.WithLabelValues(c.service, operation).Set(v)
}
