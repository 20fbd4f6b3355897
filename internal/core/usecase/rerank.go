package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

const (
	SignalBaseScore       = "base_score"
	SignalEntityOverlap   = "entity_overlap"
	SignalIntentMatch     = "intent_match"
	SignalEvidenceQuality = "evidence_quality"
	SignalRecency         = "recency"

	DefaultMinContextualScore = 0.6

	recencyHorizonYears = 20.0
	neutralIntentCredit = 0.5
)

var signalOrder = []string{
	SignalBaseScore,
	SignalEntityOverlap,
	SignalIntentMatch,
	SignalEvidenceQuality,
	SignalRecency,
}

// RerankWeights are relative; they are normalized by their sum.
type RerankWeights struct {
	Base            float64
	EntityOverlap   float64
	IntentMatch     float64
	EvidenceQuality float64
	Recency         float64
}

func DefaultRerankWeights() RerankWeights {
	return RerankWeights{
		Base:            0.40,
		EntityOverlap:   0.25,
		IntentMatch:     0.15,
		EvidenceQuality: 0.15,
		Recency:         0.05,
	}
}

func (w RerankWeights) values() [5]float64 {
	return [5]float64{w.Base, w.EntityOverlap, w.IntentMatch, w.EvidenceQuality, w.Recency}
}

// StudyTypeAffinity lists lowercase study-type fragments that align with or
// contradict an intent.
type StudyTypeAffinity struct {
	Preferred  []string
	Mismatched []string
}

func DefaultIntentAffinities() map[domain.Intent]StudyTypeAffinity {
	return map[domain.Intent]StudyTypeAffinity{
		domain.IntentTreatment: {
			Preferred:  []string{"meta-analysis", "systematic review", "randomized", "randomised", "rct", "controlled trial"},
			Mismatched: []string{"case report", "editorial", "in vitro", "animal"},
		},
		domain.IntentSafety: {
			Preferred:  []string{"meta-analysis", "systematic review", "cohort", "case-control", "randomized", "pharmacovigilance"},
			Mismatched: []string{"in vitro", "animal", "editorial"},
		},
		domain.IntentDiagnosis: {
			Preferred:  []string{"diagnostic", "cross-sectional", "cohort", "systematic review", "meta-analysis"},
			Mismatched: []string{"in vitro", "animal"},
		},
		domain.IntentMechanism: {
			Preferred:  []string{"review", "basic science", "in vitro", "animal", "experimental"},
			Mismatched: []string{"case report"},
		},
		domain.IntentOutcome: {
			Preferred:  []string{"cohort", "randomized", "meta-analysis", "systematic review", "registry"},
			Mismatched: []string{"in vitro", "animal"},
		},
		domain.IntentDosing: {
			Preferred:  []string{"pharmacokinetic", "dose-response", "dose finding", "randomized", "clinical trial"},
			Mismatched: []string{"in vitro", "editorial"},
		},
		domain.IntentGuideline: {
			Preferred:  []string{"guideline", "consensus", "systematic review", "meta-analysis"},
			Mismatched: []string{"case report", "in vitro", "animal"},
		},
		domain.IntentComparison: {
			Preferred:  []string{"randomized", "head-to-head", "comparative", "meta-analysis"},
			Mismatched: []string{"case report", "case series"},
		},
	}
}

type ContextualReranker struct {
	weights    RerankWeights
	affinities map[domain.Intent]StudyTypeAffinity
	now        func() time.Time
}

type RerankerOption func(*ContextualReranker)

func WithRerankWeights(weights RerankWeights) RerankerOption {
	return func(r *ContextualReranker) {
		r.weights = weights
	}
}

func WithIntentAffinities(affinities map[domain.Intent]StudyTypeAffinity) RerankerOption {
	return func(r *ContextualReranker) {
		if len(affinities) > 0 {
			r.affinities = affinities
		}
	}
}

func WithRerankClock(now func() time.Time) RerankerOption {
	return func(r *ContextualReranker) {
		if now != nil {
			r.now = now
		}
	}
}

func NewContextualReranker(opts ...RerankerOption) *ContextualReranker {
	r := &ContextualReranker{
		weights:    DefaultRerankWeights(),
		affinities: DefaultIntentAffinities(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	total := 0.0
	for _, w := range r.weights.values() {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		r.weights = DefaultRerankWeights()
	}
	return r
}

type scoredCandidate struct {
	record  domain.EvidenceRecord
	index   int
	signals [5]float64
	score   float64
}

// ScoreBounds are the fusion-score extremes the base signal is normalized
// against. They belong to the originally retrieved set so a candidate's
// contextual score does not depend on which other candidates survive.
type ScoreBounds struct {
	Min float64
	Max float64
}

// BoundsOf returns the min and max fusion score of candidates.
func BoundsOf(candidates []domain.EvidenceRecord) ScoreBounds {
	if len(candidates) == 0 {
		return ScoreBounds{}
	}
	b := ScoreBounds{Min: candidates[0].Score, Max: candidates[0].Score}
	for _, c := range candidates[1:] {
		b.Min = math.Min(b.Min, c.Score)
		b.Max = math.Max(b.Max, c.Score)
	}
	return b
}

// normalize maps v into [0,1]. A degenerate range maps any positive score
// to 1.
func (b ScoreBounds) normalize(v float64) float64 {
	span := b.Max - b.Min
	if span <= 0 {
		if v > 0 {
			return 1
		}
		return 0
	}
	return clamp01((v - b.Min) / span)
}

// Rerank scores candidates against bounds taken from candidates themselves.
// Callers that rerank a subset of a retrieved set use RerankWithin.
func (r *ContextualReranker) Rerank(candidates []domain.EvidenceRecord, understanding domain.QueryUnderstanding, minScore float64, enabled bool) ([]domain.EvidenceRecord, domain.RerankingStats) {
	return r.RerankWithin(candidates, BoundsOf(candidates), understanding, minScore, enabled)
}

// RerankWithin rescales candidates against the query understanding and drops
// those scoring below minScore. Each score is a function of the candidate,
// the understanding and bounds only, so removing a candidate never changes
// another's score.
func (r *ContextualReranker) RerankWithin(candidates []domain.EvidenceRecord, bounds ScoreBounds, understanding domain.QueryUnderstanding, minScore float64, enabled bool) ([]domain.EvidenceRecord, domain.RerankingStats) {
	stats := domain.RerankingStats{
		InitialCount: len(candidates),
		SignalsUsed:  []string{},
	}
	if !enabled {
		out := make([]domain.EvidenceRecord, len(candidates))
		copy(out, candidates)
		stats.RerankedCount = len(out)
		return out, stats
	}
	if len(candidates) == 0 {
		return []domain.EvidenceRecord{}, stats
	}

	entities := understanding.Entities.All()
	queryTokens := toTokenSet(understanding.KeywordQuery)
	currentYear := r.now().Year()
	weights := r.weights.values()
	totalWeight := 0.0
	for _, w := range weights {
		if w > 0 {
			totalWeight += w
		}
	}

	survivors := make([]scoredCandidate, 0, len(candidates))
	for i, record := range candidates {
		c := scoredCandidate{record: record, index: i}
		c.signals[0] = bounds.normalize(record.Score)
		c.signals[1] = entityOverlap(record, entities, queryTokens)
		c.signals[2] = r.intentMatch(record.StudyType, understanding.PrimaryIntent)
		c.signals[3] = evidenceQuality(record.EvidenceLevel)
		c.signals[4] = recency(record.PublicationYear, currentYear)

		sum := 0.0
		for k, signal := range c.signals {
			c.signals[k] = clamp01(signal)
			if weights[k] > 0 {
				sum += weights[k] * c.signals[k]
			}
		}
		c.score = clamp01(sum / totalWeight)
		if c.score < minScore {
			continue
		}
		survivors = append(survivors, c)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.score != b.score {
			return a.score > b.score
		}
		la, lb := effectiveEvidenceLevel(a.record.EvidenceLevel), effectiveEvidenceLevel(b.record.EvidenceLevel)
		if la != lb {
			return la < lb
		}
		if a.record.PublicationYear != b.record.PublicationYear {
			return a.record.PublicationYear > b.record.PublicationYear
		}
		return a.index < b.index
	})

	out := make([]domain.EvidenceRecord, 0, len(survivors))
	used := [5]bool{}
	total := 0.0
	for _, c := range survivors {
		record := c.record
		record.Score = c.score
		out = append(out, record)
		total += c.score
		for k, signal := range c.signals {
			if signal > 0 && weights[k] > 0 {
				used[k] = true
			}
		}
	}
	for k, name := range signalOrder {
		if used[k] {
			stats.SignalsUsed = append(stats.SignalsUsed, name)
		}
	}
	stats.RerankedCount = len(out)
	if len(out) > 0 {
		stats.AverageContextualScore = total / float64(len(out))
	}
	return out, stats
}

func entityOverlap(record domain.EvidenceRecord, entities []string, queryTokens map[string]struct{}) float64 {
	var b strings.Builder
	b.WriteString(record.Title)
	b.WriteByte(' ')
	b.WriteString(record.Content)
	for _, list := range [][]string{record.MeSHTerms, record.MajorMeSHTerms, record.ChemicalNames} {
		for _, term := range list {
			b.WriteByte(' ')
			b.WriteString(term)
		}
	}
	haystack := b.String()

	if len(entities) == 0 {
		return tokenOverlap(queryTokens, toTokenSet(haystack))
	}

	haystack = strings.ToLower(haystack)
	hits := 0
	for _, entity := range entities {
		if strings.Contains(haystack, strings.ToLower(entity)) {
			hits++
			continue
		}
		if heading := meshHeadingFor(entity); heading != "" && strings.Contains(haystack, strings.ToLower(heading)) {
			hits++
		}
	}
	return float64(hits) / float64(len(entities))
}

func (r *ContextualReranker) intentMatch(studyType string, intent domain.Intent) float64 {
	studyType = strings.ToLower(strings.TrimSpace(studyType))
	if studyType == "" || intent == domain.IntentGeneral {
		return neutralIntentCredit
	}
	affinity, ok := r.affinities[intent]
	if !ok {
		return neutralIntentCredit
	}
	for _, fragment := range affinity.Preferred {
		if strings.Contains(studyType, fragment) {
			return 1
		}
	}
	for _, fragment := range affinity.Mismatched {
		if strings.Contains(studyType, fragment) {
			return 0
		}
	}
	return neutralIntentCredit
}

// evidenceQuality maps level 1 to 1.0 down to level 5 at 0.2.
func evidenceQuality(level int) float64 {
	return float64(6-effectiveEvidenceLevel(level)) / 5
}

func effectiveEvidenceLevel(level int) int {
	if level < 1 || level > 5 {
		return 5
	}
	return level
}

func recency(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	age := float64(currentYear - year)
	if age < 0 {
		age = 0
	}
	v := 1 - age/recencyHorizonYears
	if v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
