package usecase

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

func fixedClock() time.Time {
	return time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
}

func newTestReranker(opts ...RerankerOption) *ContextualReranker {
	return NewContextualReranker(append([]RerankerOption{WithRerankClock(fixedClock)}, opts...)...)
}

func TestRerankMetaAnalysisOutranksCaseReports(t *testing.T) {
	understanding := Understand("is aspirin safe in pregnancy")
	candidates := []domain.EvidenceRecord{
		{ID: "case-1", Title: "Aspirin exposure in pregnancy: a case report", Content: "aspirin pregnancy", EvidenceLevel: 4, StudyType: "Case Report", PublicationYear: 2020, Score: 0.5},
		{ID: "case-2", Title: "Low-dose aspirin during pregnancy: case report", Content: "aspirin pregnancy", EvidenceLevel: 4, StudyType: "Case Report", PublicationYear: 2020, Score: 0.5},
		{ID: "meta", Title: "Aspirin use in pregnancy: a meta-analysis", Content: "aspirin pregnancy", EvidenceLevel: 1, StudyType: "Meta-Analysis", PublicationYear: 2020, Score: 0.5},
	}

	out, stats := newTestReranker().Rerank(candidates, understanding, DefaultMinContextualScore, true)
	if len(out) != 3 {
		t.Fatalf("expected all candidates to survive, got %d", len(out))
	}
	if out[0].ID != "meta" {
		t.Fatalf("expected meta-analysis first, got %s", out[0].ID)
	}
	if out[1].ID != "case-1" || out[2].ID != "case-2" {
		t.Fatalf("expected stable order for tied case reports, got %s, %s", out[1].ID, out[2].ID)
	}
	if stats.InitialCount != 3 || stats.RerankedCount != 3 {
		t.Fatalf("unexpected stats counts: %+v", stats)
	}
	want := []string{SignalBaseScore, SignalEntityOverlap, SignalIntentMatch, SignalEvidenceQuality, SignalRecency}
	if !reflect.DeepEqual(stats.SignalsUsed, want) {
		t.Fatalf("unexpected signals used: %#v", stats.SignalsUsed)
	}
}

func TestRerankDisabledReturnsCandidatesUnchanged(t *testing.T) {
	candidates := []domain.EvidenceRecord{
		{ID: "a", Title: "A", Score: 0.1, EvidenceLevel: 5},
		{ID: "b", Title: "B", Score: 0.9, EvidenceLevel: 1},
	}

	out, stats := newTestReranker().Rerank(candidates, Understand("aspirin"), 0.99, false)
	if !reflect.DeepEqual(out, candidates) {
		t.Fatalf("expected unchanged candidates, got %#v", out)
	}
	if len(stats.SignalsUsed) != 0 {
		t.Fatalf("expected no signals, got %#v", stats.SignalsUsed)
	}
	if stats.RerankedCount != 2 {
		t.Fatalf("expected reranked count 2, got %d", stats.RerankedCount)
	}
}

func TestRerankThresholdIsMonotone(t *testing.T) {
	understanding := Understand("statin therapy for heart failure")
	candidates := []domain.EvidenceRecord{
		{ID: "1", Title: "Statins in heart failure", Content: "statin therapy", EvidenceLevel: 1, StudyType: "Meta-Analysis", PublicationYear: 2024, Score: 0.9},
		{ID: "2", Title: "Heart failure registry", Content: "outcomes", EvidenceLevel: 3, StudyType: "Cohort", PublicationYear: 2015, Score: 0.6},
		{ID: "3", Title: "Unrelated editorial", Content: "general commentary", EvidenceLevel: 5, StudyType: "Editorial", PublicationYear: 1999, Score: 0.2},
		{ID: "4", Title: "Statin case report", Content: "statin myopathy", EvidenceLevel: 4, StudyType: "Case Report", PublicationYear: 2021, Score: 0.4},
	}

	reranker := newTestReranker()
	previous := len(candidates) + 1
	for _, threshold := range []float64{0, 0.3, 0.5, 0.6, 0.8, 0.95, 1.01} {
		out, _ := reranker.Rerank(candidates, understanding, threshold, true)
		if len(out) > previous {
			t.Fatalf("threshold %.2f grew the result set from %d to %d", threshold, previous, len(out))
		}
		for _, record := range out {
			if record.Score < threshold {
				t.Fatalf("threshold %.2f kept %s with score %.3f", threshold, record.ID, record.Score)
			}
		}
		for i := 1; i < len(out); i++ {
			if out[i].Score > out[i-1].Score {
				t.Fatalf("expected descending scores at threshold %.2f", threshold)
			}
		}
		previous = len(out)
	}
	if previous != 0 {
		t.Fatalf("expected empty result above the maximum score, got %d", previous)
	}
}

func TestRerankRemovingCandidateNeverRaisesOthers(t *testing.T) {
	understanding := Understand("aspirin for stroke prevention")
	candidates := []domain.EvidenceRecord{
		{ID: "low", Title: "Aspirin and stroke", EvidenceLevel: 2, StudyType: "RCT", PublicationYear: 2019, Score: 0.2},
		{ID: "mid", Title: "Stroke cohort", EvidenceLevel: 3, StudyType: "Cohort", PublicationYear: 2018, Score: 0.5},
		{ID: "top", Title: "Aspirin stroke meta-analysis", EvidenceLevel: 1, StudyType: "Meta-Analysis", PublicationYear: 2022, Score: 0.9},
	}
	reranker := newTestReranker()
	bounds := BoundsOf(candidates)
	full := scoresByID(reranker.RerankWithin(candidates, bounds, understanding, 0, true))

	for skip := range candidates {
		subset := make([]domain.EvidenceRecord, 0, len(candidates)-1)
		for i, c := range candidates {
			if i != skip {
				subset = append(subset, c)
			}
		}
		got := scoresByID(reranker.RerankWithin(subset, bounds, understanding, 0, true))
		for id, score := range got {
			if score > full[id]+1e-12 {
				t.Fatalf("removing %s raised %s: %.6f -> %.6f", candidates[skip].ID, id, full[id], score)
			}
		}
	}
}

func TestRerankWithoutTopCandidateKeepsMidBelowFloor(t *testing.T) {
	understanding := Understand("aspirin for stroke prevention")
	candidates := []domain.EvidenceRecord{
		{ID: "low", Title: "Aspirin and stroke", EvidenceLevel: 2, StudyType: "RCT", PublicationYear: 2019, Score: 0.2},
		{ID: "mid", Title: "Stroke cohort", EvidenceLevel: 3, StudyType: "Cohort", PublicationYear: 2018, Score: 0.5},
		{ID: "top", Title: "Aspirin stroke meta-analysis", EvidenceLevel: 1, StudyType: "Meta-Analysis", PublicationYear: 2022, Score: 0.9},
	}
	reranker := newTestReranker()
	bounds := BoundsOf(candidates)

	full, _ := reranker.RerankWithin(candidates, bounds, understanding, DefaultMinContextualScore, true)
	withoutTop, _ := reranker.RerankWithin(candidates[:2], bounds, understanding, DefaultMinContextualScore, true)
	kept := scoresByID(full, domain.RerankingStats{})
	for _, record := range withoutTop {
		if _, ok := kept[record.ID]; !ok {
			t.Fatalf("dropping the top candidate lifted %s over the floor (%.4f)", record.ID, record.Score)
		}
	}
}

func TestBoundsOf(t *testing.T) {
	if got := BoundsOf(nil); got != (ScoreBounds{}) {
		t.Fatalf("BoundsOf(nil) = %+v", got)
	}
	got := BoundsOf([]domain.EvidenceRecord{{Score: 0.4}, {Score: 0.1}, {Score: 0.7}})
	if got.Min != 0.1 || got.Max != 0.7 {
		t.Fatalf("unexpected bounds: %+v", got)
	}
	if v := got.normalize(0.9); v != 1 {
		t.Fatalf("scores above the bounds must clamp to 1, got %f", v)
	}
	if v := (ScoreBounds{Min: 0.3, Max: 0.3}).normalize(0.3); v != 1 {
		t.Fatalf("degenerate range with a positive score must map to 1, got %f", v)
	}
}

func TestRerankTieBreaksByLevelThenYearThenRank(t *testing.T) {
	reranker := newTestReranker(WithRerankWeights(RerankWeights{Base: 1}))
	candidates := []domain.EvidenceRecord{
		{ID: "old-l3", Title: "x", EvidenceLevel: 3, PublicationYear: 2001, Score: 0.7},
		{ID: "new-l3", Title: "x", EvidenceLevel: 3, PublicationYear: 2010, Score: 0.7},
		{ID: "l2", Title: "x", EvidenceLevel: 2, PublicationYear: 1990, Score: 0.7},
		{ID: "twin-a", Title: "x", EvidenceLevel: 4, PublicationYear: 2000, Score: 0.7},
		{ID: "twin-b", Title: "x", EvidenceLevel: 4, PublicationYear: 2000, Score: 0.7},
	}

	out, _ := reranker.Rerank(candidates, Understand(""), 0, true)
	got := make([]string, 0, len(out))
	for _, record := range out {
		got = append(got, record.ID)
	}
	want := []string{"l2", "new-l3", "old-l3", "twin-a", "twin-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestRerankStatsOnlyCountSurvivors(t *testing.T) {
	reranker := newTestReranker()
	candidates := []domain.EvidenceRecord{
		{ID: "keep", Title: "Metformin in type 2 diabetes", EvidenceLevel: 1, StudyType: "Systematic Review", Score: 1},
		{ID: "drop", Title: "Unrelated", EvidenceLevel: 5, StudyType: "Editorial", Score: 0},
	}

	out, stats := reranker.Rerank(candidates, Understand("metformin treatment for type 2 diabetes"), DefaultMinContextualScore, true)
	if len(out) != 1 || out[0].ID != "keep" {
		t.Fatalf("expected only the relevant candidate to survive, got %#v", out)
	}
	if math.Abs(stats.AverageContextualScore-out[0].Score) > 1e-12 {
		t.Fatalf("expected average over survivors %.4f, got %.4f", out[0].Score, stats.AverageContextualScore)
	}
	for _, signal := range stats.SignalsUsed {
		if signal == SignalRecency {
			t.Fatalf("recency must not be reported when no survivor has a year")
		}
	}
}

func TestRerankEmptyInput(t *testing.T) {
	out, stats := newTestReranker().Rerank(nil, Understand("aspirin"), DefaultMinContextualScore, true)
	if len(out) != 0 || stats.RerankedCount != 0 || stats.AverageContextualScore != 0 {
		t.Fatalf("expected empty output, got %d / %+v", len(out), stats)
	}
}

func TestEvidenceQualityAndRecencySignals(t *testing.T) {
	if evidenceQuality(1) != 1 || evidenceQuality(5) != 0.2 || evidenceQuality(0) != 0.2 {
		t.Fatalf("unexpected evidence quality endpoints")
	}
	for level := 1; level < 5; level++ {
		if evidenceQuality(level) <= evidenceQuality(level+1) {
			t.Fatalf("evidence quality must decrease with level %d", level)
		}
	}
	if recency(2026, 2026) != 1 || recency(2016, 2026) != 0.5 || recency(1990, 2026) != 0 || recency(0, 2026) != 0 {
		t.Fatalf("unexpected recency values")
	}
	if recency(2030, 2026) != 1 {
		t.Fatalf("future years must clamp to 1")
	}
}

func scoresByID(records []domain.EvidenceRecord, _ domain.RerankingStats) map[string]float64 {
	out := make(map[string]float64, len(records))
	for _, record := range records {
		out[record.ID] = record.Score
	}
	return out
}
