package usecase

import (
	"reflect"
	"testing"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

func TestUnderstandSafetyQuestion(t *testing.T) {
	u := Understand("is aspirin safe in pregnancy")

	if u.PrimaryIntent != domain.IntentSafety {
		t.Fatalf("expected primary intent safety, got %s", u.PrimaryIntent)
	}
	if !u.RequiresSafety || u.RequiresTreatment {
		t.Fatalf("unexpected requires flags: safety=%v treatment=%v", u.RequiresSafety, u.RequiresTreatment)
	}
	if !reflect.DeepEqual(u.Entities.Drugs, []string{"aspirin"}) {
		t.Fatalf("unexpected drugs: %#v", u.Entities.Drugs)
	}
	if !reflect.DeepEqual(u.Entities.Demographics, []string{"pregnancy"}) {
		t.Fatalf("unexpected demographics: %#v", u.Entities.Demographics)
	}
	if u.EntityQuery != "aspirin pregnancy" {
		t.Fatalf("unexpected entity query: %q", u.EntityQuery)
	}
	if !reflect.DeepEqual(u.MeSHTerms, []string{"Aspirin", "Pregnancy"}) {
		t.Fatalf("unexpected mesh terms: %#v", u.MeSHTerms)
	}
	if u.KeywordQuery != "aspirin safe pregnancy" {
		t.Fatalf("unexpected keyword query: %q", u.KeywordQuery)
	}
	if u.SemanticQuery != "is aspirin safe in pregnancy" {
		t.Fatalf("unexpected semantic query: %q", u.SemanticQuery)
	}
	if u.Complexity != domain.ComplexityModerate || u.Specificity != domain.LevelMedium {
		t.Fatalf("unexpected grades: complexity=%s specificity=%s", u.Complexity, u.Specificity)
	}
}

func TestUnderstandPrefersLongestEntityTerm(t *testing.T) {
	u := Understand("What is the best treatment for type 2 diabetes in elderly patients?")

	if !reflect.DeepEqual(u.Entities.Conditions, []string{"type 2 diabetes"}) {
		t.Fatalf("expected only the specific condition, got %#v", u.Entities.Conditions)
	}
	if u.PrimaryIntent != domain.IntentTreatment {
		t.Fatalf("expected treatment intent, got %s", u.PrimaryIntent)
	}
	if u.MeSHTerms[0] != "Diabetes Mellitus, Type 2" {
		t.Fatalf("unexpected first mesh term: %q", u.MeSHTerms[0])
	}
	if !reflect.DeepEqual(u.Specialties, []string{"endocrinology", "geriatrics"}) {
		t.Fatalf("unexpected specialties: %#v", u.Specialties)
	}
}

func TestUnderstandComparisonQuestion(t *testing.T) {
	u := Understand("metformin vs insulin for gestational diabetes")

	if u.PrimaryIntent != domain.IntentComparison {
		t.Fatalf("expected comparison intent, got %s", u.PrimaryIntent)
	}
	if u.QuestionType != domain.QuestionComparative {
		t.Fatalf("expected comparative question, got %s", u.QuestionType)
	}
	if u.EntityQuery != "gestational diabetes metformin insulin" {
		t.Fatalf("unexpected entity query: %q", u.EntityQuery)
	}
	if u.Specificity != domain.LevelHigh {
		t.Fatalf("expected high specificity, got %s", u.Specificity)
	}
}

func TestUnderstandSecondaryIntentsFollowPriority(t *testing.T) {
	u := Understand("what dose of warfarin is safe and effective for atrial fibrillation treatment")

	if u.PrimaryIntent != domain.IntentDosing {
		t.Fatalf("expected dosing to win, got %s", u.PrimaryIntent)
	}
	want := []domain.Intent{domain.IntentSafety, domain.IntentTreatment, domain.IntentOutcome}
	if !reflect.DeepEqual(u.SecondaryIntents, want) {
		t.Fatalf("unexpected secondary intents: %#v", u.SecondaryIntents)
	}
	if !u.RequiresDosing || !u.RequiresSafety || !u.RequiresTreatment || !u.RequiresOutcome {
		t.Fatalf("expected requires flags for every detected intent: %#v", u)
	}
	if u.RequiresMechanism || u.RequiresComparison {
		t.Fatalf("unexpected requires flags for undetected intents")
	}
}

func TestUnderstandUrgencyAndComplexity(t *testing.T) {
	high := Understand("sudden chest pain in elderly after aspirin, is this an emergency")
	if high.Urgency != domain.LevelHigh {
		t.Fatalf("expected high urgency, got %s", high.Urgency)
	}
	if high.Complexity != domain.ComplexityComplex {
		t.Fatalf("expected complex query, got %s", high.Complexity)
	}
	if !reflect.DeepEqual(high.Entities.Symptoms, []string{"chest pain"}) {
		t.Fatalf("expected chest pain without bare pain, got %#v", high.Entities.Symptoms)
	}

	medium := Understand("acute asthma management in children")
	if medium.Urgency != domain.LevelMedium {
		t.Fatalf("expected medium urgency, got %s", medium.Urgency)
	}
	if medium.PrimaryIntent != domain.IntentTreatment {
		t.Fatalf("expected treatment intent, got %s", medium.PrimaryIntent)
	}
}

func TestUnderstandMechanismIsCausal(t *testing.T) {
	u := Understand("how does metformin work")
	if u.PrimaryIntent != domain.IntentMechanism {
		t.Fatalf("expected mechanism intent, got %s", u.PrimaryIntent)
	}
	if u.QuestionType != domain.QuestionCausal {
		t.Fatalf("expected causal question, got %s", u.QuestionType)
	}
}

func TestUnderstandDegenerateInputReturnsDefaults(t *testing.T) {
	for _, text := range []string{"", "   ", "what's the weather today"} {
		u := Understand(text)
		if u.PrimaryIntent != domain.IntentGeneral {
			t.Fatalf("%q: expected general intent, got %s", text, u.PrimaryIntent)
		}
		if u.SecondaryIntents == nil || len(u.SecondaryIntents) != 0 {
			t.Fatalf("%q: expected empty secondary intents, got %#v", text, u.SecondaryIntents)
		}
		if u.Entities.Conditions == nil || u.Entities.Outcomes == nil || u.MeSHTerms == nil {
			t.Fatalf("%q: expected non-nil empty lists", text)
		}
		if u.Urgency != domain.LevelLow || u.Specificity != domain.LevelLow || u.Complexity != domain.ComplexitySimple {
			t.Fatalf("%q: expected lowest grades, got %s/%s/%s", text, u.Urgency, u.Specificity, u.Complexity)
		}
		if u.RequiresTreatment || u.RequiresSafety || u.RequiresDosing {
			t.Fatalf("%q: expected all requires flags false", text)
		}
		if u.EntityQuery != "" {
			t.Fatalf("%q: expected empty entity query, got %q", text, u.EntityQuery)
		}
	}
}

func TestUnderstandRequiresFlagsMatchIntents(t *testing.T) {
	queries := []string{
		"is aspirin safe in pregnancy",
		"guidelines for screening breast cancer with mammography",
		"mortality after coronary artery bypass compared to angioplasty",
		"how much vitamin d should postmenopausal women take",
	}
	for _, query := range queries {
		u := Understand(query)
		flags := map[domain.Intent]bool{
			domain.IntentTreatment:  u.RequiresTreatment,
			domain.IntentDiagnosis:  u.RequiresDiagnosis,
			domain.IntentMechanism:  u.RequiresMechanism,
			domain.IntentOutcome:    u.RequiresOutcome,
			domain.IntentSafety:     u.RequiresSafety,
			domain.IntentDosing:     u.RequiresDosing,
			domain.IntentGuideline:  u.RequiresGuideline,
			domain.IntentComparison: u.RequiresComparison,
		}
		for intent, flag := range flags {
			if flag != u.HasIntent(intent) {
				t.Fatalf("%q: requires flag for %s = %v, intents say %v", query, intent, flag, u.HasIntent(intent))
			}
		}
	}
}

func TestUnderstandIsDeterministic(t *testing.T) {
	query := "metformin vs insulin for gestational diabetes outcomes"
	if !reflect.DeepEqual(Understand(query), Understand(query)) {
		t.Fatalf("expected identical understanding for identical input")
	}
}

func TestUnderstandAttachedDoseUnitsMeanDosing(t *testing.T) {
	for _, q := range []string{
		"metformin 500mg twice a day in kidney disease",
		"vitamin d 1000 IU in older adults",
		"amoxicillin 5ml suspension for children",
		"levothyroxine 50mcg in pregnancy",
		"ibuprofen 2.5 mg/kg in infants",
	} {
		u := Understand(q)
		if u.PrimaryIntent != domain.IntentDosing || !u.RequiresDosing {
			t.Fatalf("%q: expected dosing, got primary=%s secondary=%v", q, u.PrimaryIntent, u.SecondaryIntents)
		}
	}
	if u := Understand("outcomes in type 2 diabetes"); u.RequiresDosing {
		t.Fatalf("a bare number must not read as a dose: %+v", u)
	}
}
