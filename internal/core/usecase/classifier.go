package usecase

import (
	"regexp"
	"strings"
)

// medicalQueryPatterns are deliberately broad: the gate favors recall, and
// anything it lets through is filtered again by the reranker floor.
var medicalQueryPatterns = []*regexp.Regexp{
	// conditions
	regexp.MustCompile(`(?i)\b(diabet\w*|hypertensi\w*|cancers?|tumou?rs?|carcinoma\w*|asthma\w*|copd|pneumonia|infections?|sepsis|strokes?|dementia|alzheimer\w*|parkinson\w*|depress\w*|anxiety|schizophreni\w*|arthritis|obesity|covid\w*|influenza|hiv|aids|hepatitis|migraines?|epilep\w*|heart (?:attack|failure|disease)|myocardial infarction|atrial fibrillation|kidney disease|renal failure|cirrhosis|anaemia|anemia|osteoporosis|pregnan\w*|pre-?eclampsia|syndromes?|disorders?|diseases?|illness\w*|fractures?|allerg\w*|eczema|psoriasis|lupus|thrombo\w*|embolism)\b`),
	// treatment and procedure vocabulary
	regexp.MustCompile(`(?i)\b(treat\w*|therap\w*|medications?|medicines?|drugs?|doses?|dosage|dosing|prescri\w*|surgery|surgical|vaccin\w*|antibiotics?|chemotherapy|radiotherapy|transplant\w*|aspirin|ibuprofen|acetaminophen|paracetamol|metformin|insulin|statins?|warfarin|heparin|opioids?|steroids?|antidepressants?|pills?|tablets?|injections?|side effects?)\b`),
	// clinical process vocabulary
	regexp.MustCompile(`(?i)\b(diagnos\w*|symptoms?|prognosis|screening|clinical\w*|patients?|physicians?|doctors?|hospital\w*|icu|emergency room|biopsy|mri|ct scan|x-ray|ultrasound|blood tests?|lab(?:oratory)? results?|contraindicat\w*|adverse (?:events?|effects?)|complications?|mortality|morbidity|remission|relapse)\b`),
	// evidence and research vocabulary
	regexp.MustCompile(`(?i)\b(meta-?analys[ie]s|systematic reviews?|randomi[sz]ed|controlled trials?|rcts?|cohort|case-control|clinical trials?|evidence-based|placebo|efficacy|guidelines?|pubmed|peer-reviewed|epidemiolog\w*)\b`),
	// physiology and anatomy vocabulary
	regexp.MustCompile(`(?i)\b(heart|cardiac|lungs?|pulmonary|liver|hepatic|kidneys?|renal|brain|neuro\w*|blood pressure|cholesterol|glucose|hormones?|thyroid|immune|inflammat\w*|metabolism|metabolic|bones?|muscles?|nerves?|arter(?:y|ies)|veins?|intestin\w*|stomach|pancrea\w*|joints?|spine|spinal|blood)\b`),
	// specialty vocabulary
	regexp.MustCompile(`(?i)\b(cardiolog\w*|oncolog\w*|neurolog\w*|p(?:a)?ediatric\w*|geriatric\w*|obstetric\w*|gyn(?:a)?ecolog\w*|dermatolog\w*|psychiatr\w*|endocrinolog\w*|gastroenterolog\w*|nephrolog\w*|pulmonolog\w*|rheumatolog\w*|urolog\w*|orthop(?:a)?edic\w*|radiolog\w*|an(?:a)?esthesi\w*|hematolog\w*|infectious disease|internal medicine|primary care|nursing|pharmac\w*)\b`),
}

// IsMedicalQuery reports whether any medical vocabulary category matches text.
func IsMedicalQuery(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, pattern := range medicalQueryPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
