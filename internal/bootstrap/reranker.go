package bootstrap

import (
	"fmt"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/config"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/usecase"
)

var knownIntents = map[domain.Intent]struct{}{
	domain.IntentTreatment:  {},
	domain.IntentDiagnosis:  {},
	domain.IntentMechanism:  {},
	domain.IntentOutcome:    {},
	domain.IntentSafety:     {},
	domain.IntentDosing:     {},
	domain.IntentGuideline:  {},
	domain.IntentComparison: {},
}

// NewReranker builds the contextual reranker from configuration. Affinities
// named in the config replace the defaults for that intent only.
func NewReranker(cfg config.RerankConfig) (*usecase.ContextualReranker, error) {
	weights := usecase.RerankWeights{
		Base:            cfg.Weights.Base,
		EntityOverlap:   cfg.Weights.EntityOverlap,
		IntentMatch:     cfg.Weights.IntentMatch,
		EvidenceQuality: cfg.Weights.EvidenceQuality,
		Recency:         cfg.Weights.Recency,
	}
	for name, w := range map[string]float64{
		"base":             weights.Base,
		"entity_overlap":   weights.EntityOverlap,
		"intent_match":     weights.IntentMatch,
		"evidence_quality": weights.EvidenceQuality,
		"recency":          weights.Recency,
	} {
		if w < 0 {
			return nil, fmt.Errorf("rerank weight %s must not be negative", name)
		}
	}

	affinities := usecase.DefaultIntentAffinities()
	for rawIntent, affinity := range cfg.Affinities {
		intent := domain.Intent(strings.ToLower(strings.TrimSpace(rawIntent)))
		if _, ok := knownIntents[intent]; !ok {
			return nil, fmt.Errorf("unknown intent %q in rerank affinities", rawIntent)
		}
		affinities[intent] = usecase.StudyTypeAffinity{
			Preferred:  lowerAll(affinity.Preferred),
			Mismatched: lowerAll(affinity.Mismatched),
		}
	}

	return usecase.NewContextualReranker(
		usecase.WithRerankWeights(weights),
		usecase.WithIntentAffinities(affinities),
	), nil
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
