package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

type intentRule struct {
	intent  domain.Intent
	pattern *regexp.Regexp
}

// intentRules are evaluated in priority order; the first hit becomes the
// primary intent and every later hit a secondary one.
var intentRules = []intentRule{
	{domain.IntentDosing, regexp.MustCompile(`(?i)(\b(?:doses?|dosage|dosing|how much|how many|how often|mg|mcg|milligrams?|micrograms?|units? of|titrat\w*|per day|daily amount|maximum dose)\b|\d+(?:[.,]\d+)?\s*(?:mg|mcg|µg|ug|g|ml|iu|units?|mmol|meq)\b)`)},
	{domain.IntentComparison, regexp.MustCompile(`(?i)(\bvs\.?(?:\s|$)|\bversus\b|\bcompared (?:to|with)\b|\bcomparison\b|\bbetter than\b|\bworse than\b|\bdifference between\b|\bsuperior to\b|\binferior to\b|\bor\b.+\bwhich\b)`)},
	{domain.IntentMechanism, regexp.MustCompile(`(?i)(\bmechanisms?\b|\bhow does\b.+\bwork\b|\bhow do\b.+\bwork\b|\bpathophysiology\b|\bpathways?\b|\bmode of action\b|\bwhy does\b|\bwhy do\b|\bbiological basis\b)`)},
	{domain.IntentSafety, regexp.MustCompile(`(?i)\b(safe|safety|side effects?|adverse|risks?|toxicity|toxic|contraindicat\w*|interactions?|harmful|dangerous|warnings?)\b`)},
	{domain.IntentDiagnosis, regexp.MustCompile(`(?i)(\bdiagnos\w*|\btest(?:s|ing)? for\b|\bscreening\b|\bdetect\w*|\bsigns of\b|\bsymptoms of\b|\bdifferential\b|\bsensitivity\b|\bspecificity\b)`)},
	{domain.IntentGuideline, regexp.MustCompile(`(?i)\b(guidelines?|recommendations?|recommended|protocols?|consensus|standard of care|best practices?|first-line|first line)\b`)},
	{domain.IntentTreatment, regexp.MustCompile(`(?i)\b(treat\w*|therap\w*|manage\w*|cure[sd]?|medications? for|drugs? for|interventions?|remed(?:y|ies))\b`)},
	{domain.IntentOutcome, regexp.MustCompile(`(?i)\b(outcomes?|prognosis|mortality|survival|life expectancy|recovery|effective\w*|efficacy|effects? of|long-term|results? of)\b`)},
}

var (
	proceduralPattern = regexp.MustCompile(`(?i)(\bhow (?:to|do i|should i|can i|do you)\b|\bsteps?\b|\bprocedure for\b)`)
	causalPattern     = regexp.MustCompile(`(?i)(\bwhy\b|\bcauses?\b|\bcaused by\b|\betiology\b|\baetiology\b|\bleads? to\b)`)

	highUrgencyPattern   = regexp.MustCompile(`(?i)(\bemergency\b|\blife-threatening\b|\burgent\w*|\bimmediately\b|\boverdose\w*|\banaphyla\w*|\bcardiac arrest\b|\bsuicid\w*|\bunconscious\b|\bcan'?t breathe\b)`)
	mediumUrgencyPattern = regexp.MustCompile(`(?i)\b(acute\w*|sudden\w*|severe\w*|rapid\w*|worsening|sharp|intense)\b`)
)

var entityCategories = []entityCategory{
	categoryConditions,
	categoryDrugs,
	categoryProcedures,
	categorySymptoms,
	categoryTests,
	categoryAnatomy,
	categoryDemographics,
	categoryOutcomes,
}

// Understand extracts intent, entities and query projections from text.
// It performs no I/O and never fails; degenerate input yields the default
// understanding with the projections filled in.
func Understand(text string) domain.QueryUnderstanding {
	out := domain.DefaultQueryUnderstanding()
	trimmed := strings.TrimSpace(text)
	out.SemanticQuery = trimmed
	out.KeywordQuery = keywordProjection(trimmed)
	if trimmed == "" {
		return out
	}

	meshSeen := make(map[string]struct{})
	domainSeen := make(map[string]struct{})
	specialtySeen := make(map[string]struct{})
	for _, category := range entityCategories {
		matches := matchCategory(trimmed, category)
		surfaces := make([]string, 0, len(matches))
		for _, match := range matches {
			surfaces = append(surfaces, match.surface)
			out.MeSHTerms = appendUnique(out.MeSHTerms, meshSeen, match.entry.mesh)
			if match.entry.domain == "" || match.entry.domain == "general" {
				continue
			}
			out.MedicalDomains = appendUnique(out.MedicalDomains, domainSeen, match.entry.domain)
			out.Specialties = appendUnique(out.Specialties, specialtySeen, domainSpecialties[match.entry.domain])
		}
		setCategory(&out.Entities, category, surfaces)
	}

	intents := detectIntents(trimmed)
	if len(intents) > 0 {
		out.PrimaryIntent = intents[0]
		out.SecondaryIntents = intents[1:]
	}
	out.RequiresTreatment = out.HasIntent(domain.IntentTreatment)
	out.RequiresDiagnosis = out.HasIntent(domain.IntentDiagnosis)
	out.RequiresMechanism = out.HasIntent(domain.IntentMechanism)
	out.RequiresOutcome = out.HasIntent(domain.IntentOutcome)
	out.RequiresSafety = out.HasIntent(domain.IntentSafety)
	out.RequiresDosing = out.HasIntent(domain.IntentDosing)
	out.RequiresGuideline = out.HasIntent(domain.IntentGuideline)
	out.RequiresComparison = out.HasIntent(domain.IntentComparison)

	out.QuestionType = questionType(trimmed, out)
	entities := out.Entities.All()
	out.EntityQuery = strings.Join(entities, " ")
	out.Specificity = specificity(len(entities))
	out.Urgency = urgency(trimmed)
	out.Complexity = complexity(out.Entities.NonEmptyCategories())
	return out
}

func detectIntents(text string) []domain.Intent {
	out := make([]domain.Intent, 0, 2)
	for _, rule := range intentRules {
		if rule.pattern.MatchString(text) {
			out = append(out, rule.intent)
		}
	}
	return out
}

func questionType(text string, u domain.QueryUnderstanding) domain.QuestionType {
	switch {
	case u.RequiresComparison:
		return domain.QuestionComparative
	case proceduralPattern.MatchString(text):
		return domain.QuestionProcedural
	case u.RequiresMechanism || causalPattern.MatchString(text):
		return domain.QuestionCausal
	default:
		return domain.QuestionFactual
	}
}

func specificity(distinctEntities int) domain.Level {
	switch {
	case distinctEntities >= 3:
		return domain.LevelHigh
	case distinctEntities >= 1:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

func urgency(text string) domain.Level {
	switch {
	case highUrgencyPattern.MatchString(text):
		return domain.LevelHigh
	case mediumUrgencyPattern.MatchString(text):
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

func complexity(nonEmptyCategories int) domain.Complexity {
	switch {
	case nonEmptyCategories >= 3:
		return domain.ComplexityComplex
	case nonEmptyCategories >= 1:
		return domain.ComplexityModerate
	default:
		return domain.ComplexitySimple
	}
}

func setCategory(entities *domain.ClinicalEntities, category entityCategory, surfaces []string) {
	switch category {
	case categoryConditions:
		entities.Conditions = surfaces
	case categoryDrugs:
		entities.Drugs = surfaces
	case categoryProcedures:
		entities.Procedures = surfaces
	case categorySymptoms:
		entities.Symptoms = surfaces
	case categoryTests:
		entities.Tests = surfaces
	case categoryAnatomy:
		entities.Anatomy = surfaces
	case categoryDemographics:
		entities.Demographics = surfaces
	case categoryOutcomes:
		entities.Outcomes = surfaces
	}
}
