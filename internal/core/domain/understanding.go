package domain

// Intent is the clinical purpose behind a question.
type Intent string

const (
	IntentTreatment  Intent = "treatment"
	IntentDiagnosis  Intent = "diagnosis"
	IntentMechanism  Intent = "mechanism"
	IntentOutcome    Intent = "outcome"
	IntentSafety     Intent = "safety"
	IntentDosing     Intent = "dosing"
	IntentGuideline  Intent = "guideline"
	IntentComparison Intent = "comparison"
	IntentGeneral    Intent = "general"
)

type QuestionType string

const (
	QuestionFactual     QuestionType = "factual"
	QuestionComparative QuestionType = "comparative"
	QuestionCausal      QuestionType = "causal"
	QuestionProcedural  QuestionType = "procedural"
)

// Level grades specificity and urgency.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ClinicalEntities holds surface strings detected in a query, by category.
type ClinicalEntities struct {
	Conditions   []string `json:"conditions"`
	Drugs        []string `json:"drugs"`
	Procedures   []string `json:"procedures"`
	Symptoms     []string `json:"symptoms"`
	Tests        []string `json:"tests"`
	Anatomy      []string `json:"anatomy"`
	Demographics []string `json:"demographics"`
	Outcomes     []string `json:"outcomes"`
}

// Categories returns the category lists in a fixed order.
func (e ClinicalEntities) Categories() [][]string {
	return [][]string{
		e.Conditions, e.Drugs, e.Procedures, e.Symptoms,
		e.Tests, e.Anatomy, e.Demographics, e.Outcomes,
	}
}

// All returns every detected entity once, in category order.
func (e ClinicalEntities) All() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, category := range e.Categories() {
		for _, entity := range category {
			if _, ok := seen[entity]; ok {
				continue
			}
			seen[entity] = struct{}{}
			out = append(out, entity)
		}
	}
	return out
}

func (e ClinicalEntities) NonEmptyCategories() int {
	n := 0
	for _, category := range e.Categories() {
		if len(category) > 0 {
			n++
		}
	}
	return n
}

type QueryUnderstanding struct {
	PrimaryIntent    Intent           `json:"primaryIntent"`
	SecondaryIntents []Intent         `json:"secondaryIntents"`
	QuestionType     QuestionType     `json:"questionType"`
	Specificity      Level            `json:"specificity"`
	Entities         ClinicalEntities `json:"entities"`

	RequiresTreatment  bool `json:"requiresTreatment"`
	RequiresDiagnosis  bool `json:"requiresDiagnosis"`
	RequiresMechanism  bool `json:"requiresMechanism"`
	RequiresOutcome    bool `json:"requiresOutcome"`
	RequiresSafety     bool `json:"requiresSafety"`
	RequiresDosing     bool `json:"requiresDosing"`
	RequiresGuideline  bool `json:"requiresGuideline"`
	RequiresComparison bool `json:"requiresComparison"`

	SemanticQuery  string   `json:"semanticQuery"`
	KeywordQuery   string   `json:"keywordQuery"`
	EntityQuery    string   `json:"entityQuery"`
	MeSHTerms      []string `json:"meshTerms"`
	MedicalDomains []string `json:"medicalDomains"`
	Specialties    []string `json:"specialties"`

	Urgency    Level      `json:"urgency"`
	Complexity Complexity `json:"complexity"`
}

// HasIntent reports whether intent is the primary or one of the secondary intents.
func (u QueryUnderstanding) HasIntent(intent Intent) bool {
	if u.PrimaryIntent == intent {
		return true
	}
	for _, secondary := range u.SecondaryIntents {
		if secondary == intent {
			return true
		}
	}
	return false
}

// DefaultQueryUnderstanding is the fully populated zero state: empty lists,
// false flags, and the lowest grade for every scale.
func DefaultQueryUnderstanding() QueryUnderstanding {
	return QueryUnderstanding{
		PrimaryIntent:    IntentGeneral,
		SecondaryIntents: []Intent{},
		QuestionType:     QuestionFactual,
		Specificity:      LevelLow,
		Entities: ClinicalEntities{
			Conditions:   []string{},
			Drugs:        []string{},
			Procedures:   []string{},
			Symptoms:     []string{},
			Tests:        []string{},
			Anatomy:      []string{},
			Demographics: []string{},
			Outcomes:     []string{},
		},
		MeSHTerms:      []string{},
		MedicalDomains: []string{},
		Specialties:    []string{},
		Urgency:        LevelLow,
		Complexity:     ComplexitySimple,
	}
}
