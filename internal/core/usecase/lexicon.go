package usecase

import (
	"regexp"
	"sort"
	"strings"
)

type entityCategory int

const (
	categoryConditions entityCategory = iota
	categoryDrugs
	categoryProcedures
	categorySymptoms
	categoryTests
	categoryAnatomy
	categoryDemographics
	categoryOutcomes
)

type lexiconEntry struct {
	terms  []string
	mesh   string
	domain string
}

var clinicalLexicon = map[entityCategory][]lexiconEntry{
	categoryConditions: {
		{terms: []string{"type 2 diabetes", "type ii diabetes"}, mesh: "Diabetes Mellitus, Type 2", domain: "endocrine"},
		{terms: []string{"type 1 diabetes"}, mesh: "Diabetes Mellitus, Type 1", domain: "endocrine"},
		{terms: []string{"diabetes"}, mesh: "Diabetes Mellitus", domain: "endocrine"},
		{terms: []string{"hypertension", "high blood pressure"}, mesh: "Hypertension", domain: "cardiovascular"},
		{terms: []string{"heart failure"}, mesh: "Heart Failure", domain: "cardiovascular"},
		{terms: []string{"heart attack", "myocardial infarction"}, mesh: "Myocardial Infarction", domain: "cardiovascular"},
		{terms: []string{"atrial fibrillation", "afib"}, mesh: "Atrial Fibrillation", domain: "cardiovascular"},
		{terms: []string{"deep vein thrombosis", "dvt"}, mesh: "Venous Thrombosis", domain: "cardiovascular"},
		{terms: []string{"stroke"}, mesh: "Stroke", domain: "neurological"},
		{terms: []string{"asthma"}, mesh: "Asthma", domain: "respiratory"},
		{terms: []string{"copd", "chronic obstructive pulmonary disease"}, mesh: "Pulmonary Disease, Chronic Obstructive", domain: "respiratory"},
		{terms: []string{"pneumonia"}, mesh: "Pneumonia", domain: "respiratory"},
		{terms: []string{"sepsis"}, mesh: "Sepsis", domain: "infectious"},
		{terms: []string{"covid-19", "covid", "sars-cov-2"}, mesh: "COVID-19", domain: "infectious"},
		{terms: []string{"influenza", "flu"}, mesh: "Influenza, Human", domain: "infectious"},
		{terms: []string{"hiv"}, mesh: "HIV Infections", domain: "infectious"},
		{terms: []string{"breast cancer"}, mesh: "Breast Neoplasms", domain: "oncology"},
		{terms: []string{"lung cancer"}, mesh: "Lung Neoplasms", domain: "oncology"},
		{terms: []string{"colorectal cancer"}, mesh: "Colorectal Neoplasms", domain: "oncology"},
		{terms: []string{"cancer", "tumor", "tumour"}, mesh: "Neoplasms", domain: "oncology"},
		{terms: []string{"depression", "major depressive disorder"}, mesh: "Depressive Disorder", domain: "mental_health"},
		{terms: []string{"anxiety"}, mesh: "Anxiety Disorders", domain: "mental_health"},
		{terms: []string{"alzheimer's disease", "alzheimer"}, mesh: "Alzheimer Disease", domain: "neurological"},
		{terms: []string{"dementia"}, mesh: "Dementia", domain: "neurological"},
		{terms: []string{"parkinson's disease", "parkinson"}, mesh: "Parkinson Disease", domain: "neurological"},
		{terms: []string{"migraine"}, mesh: "Migraine Disorders", domain: "neurological"},
		{terms: []string{"epilepsy"}, mesh: "Epilepsy", domain: "neurological"},
		{terms: []string{"obesity"}, mesh: "Obesity", domain: "endocrine"},
		{terms: []string{"chronic kidney disease", "ckd"}, mesh: "Renal Insufficiency, Chronic", domain: "renal"},
		{terms: []string{"osteoporosis"}, mesh: "Osteoporosis", domain: "musculoskeletal"},
		{terms: []string{"rheumatoid arthritis"}, mesh: "Arthritis, Rheumatoid", domain: "musculoskeletal"},
		{terms: []string{"preeclampsia", "pre-eclampsia"}, mesh: "Pre-Eclampsia", domain: "obstetric"},
		{terms: []string{"gestational diabetes"}, mesh: "Diabetes, Gestational", domain: "obstetric"},
		{terms: []string{"anemia", "anaemia"}, mesh: "Anemia", domain: "hematologic"},
	},
	categoryDrugs: {
		{terms: []string{"aspirin", "acetylsalicylic acid"}, mesh: "Aspirin", domain: "pharmacology"},
		{terms: []string{"ibuprofen"}, mesh: "Ibuprofen", domain: "pharmacology"},
		{terms: []string{"acetaminophen", "paracetamol"}, mesh: "Acetaminophen", domain: "pharmacology"},
		{terms: []string{"metformin"}, mesh: "Metformin", domain: "endocrine"},
		{terms: []string{"insulin"}, mesh: "Insulin", domain: "endocrine"},
		{terms: []string{"semaglutide"}, mesh: "Semaglutide", domain: "endocrine"},
		{terms: []string{"sglt2 inhibitor"}, mesh: "Sodium-Glucose Transporter 2 Inhibitors", domain: "endocrine"},
		{terms: []string{"levothyroxine"}, mesh: "Thyroxine", domain: "endocrine"},
		{terms: []string{"atorvastatin"}, mesh: "Atorvastatin", domain: "cardiovascular"},
		{terms: []string{"statin"}, mesh: "Hydroxymethylglutaryl-CoA Reductase Inhibitors", domain: "cardiovascular"},
		{terms: []string{"warfarin"}, mesh: "Warfarin", domain: "hematologic"},
		{terms: []string{"apixaban"}, mesh: "Apixaban", domain: "hematologic"},
		{terms: []string{"heparin"}, mesh: "Heparin", domain: "hematologic"},
		{terms: []string{"lisinopril"}, mesh: "Lisinopril", domain: "cardiovascular"},
		{terms: []string{"ace inhibitor"}, mesh: "Angiotensin-Converting Enzyme Inhibitors", domain: "cardiovascular"},
		{terms: []string{"beta blocker", "beta-blocker"}, mesh: "Adrenergic beta-Antagonists", domain: "cardiovascular"},
		{terms: []string{"amoxicillin"}, mesh: "Amoxicillin", domain: "infectious"},
		{terms: []string{"antibiotic"}, mesh: "Anti-Bacterial Agents", domain: "infectious"},
		{terms: []string{"vaccine"}, mesh: "Vaccines", domain: "infectious"},
		{terms: []string{"sertraline"}, mesh: "Sertraline", domain: "mental_health"},
		{terms: []string{"ssri"}, mesh: "Selective Serotonin Reuptake Inhibitors", domain: "mental_health"},
		{terms: []string{"prednisone"}, mesh: "Prednisone", domain: "pharmacology"},
		{terms: []string{"corticosteroid", "steroid"}, mesh: "Adrenal Cortex Hormones", domain: "pharmacology"},
		{terms: []string{"morphine"}, mesh: "Morphine", domain: "pharmacology"},
		{terms: []string{"opioid"}, mesh: "Analgesics, Opioid", domain: "pharmacology"},
		{terms: []string{"vitamin d"}, mesh: "Vitamin D", domain: "pharmacology"},
		{terms: []string{"folic acid"}, mesh: "Folic Acid", domain: "obstetric"},
	},
	categoryProcedures: {
		{terms: []string{"coronary artery bypass", "bypass surgery", "cabg"}, mesh: "Coronary Artery Bypass", domain: "cardiovascular"},
		{terms: []string{"angioplasty", "pci", "percutaneous coronary intervention"}, mesh: "Percutaneous Coronary Intervention", domain: "cardiovascular"},
		{terms: []string{"cesarean section", "c-section", "caesarean"}, mesh: "Cesarean Section", domain: "obstetric"},
		{terms: []string{"surgery"}, mesh: "Surgical Procedures, Operative", domain: "surgical"},
		{terms: []string{"chemotherapy"}, mesh: "Drug Therapy", domain: "oncology"},
		{terms: []string{"radiotherapy", "radiation therapy"}, mesh: "Radiotherapy", domain: "oncology"},
		{terms: []string{"dialysis"}, mesh: "Renal Dialysis", domain: "renal"},
		{terms: []string{"transplant", "transplantation"}, mesh: "Transplantation", domain: "surgical"},
		{terms: []string{"physical therapy", "physiotherapy"}, mesh: "Physical Therapy Modalities", domain: "musculoskeletal"},
		{terms: []string{"cognitive behavioral therapy", "cbt"}, mesh: "Cognitive Behavioral Therapy", domain: "mental_health"},
		{terms: []string{"vaccination", "immunization"}, mesh: "Vaccination", domain: "infectious"},
		{terms: []string{"intubation"}, mesh: "Intubation", domain: "critical_care"},
		{terms: []string{"colonoscopy"}, mesh: "Colonoscopy", domain: "gastrointestinal"},
		{terms: []string{"biopsy"}, mesh: "Biopsy", domain: "oncology"},
	},
	categorySymptoms: {
		{terms: []string{"chest pain"}, mesh: "Chest Pain", domain: "cardiovascular"},
		{terms: []string{"shortness of breath", "dyspnea", "dyspnoea"}, mesh: "Dyspnea", domain: "respiratory"},
		{terms: []string{"headache"}, mesh: "Headache", domain: "neurological"},
		{terms: []string{"pain"}, mesh: "Pain", domain: "general"},
		{terms: []string{"fever"}, mesh: "Fever", domain: "infectious"},
		{terms: []string{"cough"}, mesh: "Cough", domain: "respiratory"},
		{terms: []string{"fatigue"}, mesh: "Fatigue", domain: "general"},
		{terms: []string{"nausea"}, mesh: "Nausea", domain: "gastrointestinal"},
		{terms: []string{"vomiting"}, mesh: "Vomiting", domain: "gastrointestinal"},
		{terms: []string{"diarrhea", "diarrhoea"}, mesh: "Diarrhea", domain: "gastrointestinal"},
		{terms: []string{"dizziness", "vertigo"}, mesh: "Dizziness", domain: "neurological"},
		{terms: []string{"rash"}, mesh: "Exanthema", domain: "dermatologic"},
		{terms: []string{"edema", "oedema", "swelling"}, mesh: "Edema", domain: "general"},
		{terms: []string{"insomnia"}, mesh: "Sleep Initiation and Maintenance Disorders", domain: "mental_health"},
		{terms: []string{"palpitations"}, mesh: "Palpitations", domain: "cardiovascular"},
		{terms: []string{"bleeding", "hemorrhage", "haemorrhage"}, mesh: "Hemorrhage", domain: "hematologic"},
		{terms: []string{"seizure"}, mesh: "Seizures", domain: "neurological"},
		{terms: []string{"weight loss"}, mesh: "Weight Loss", domain: "general"},
	},
	categoryTests: {
		{terms: []string{"mri", "magnetic resonance imaging"}, mesh: "Magnetic Resonance Imaging", domain: "radiology"},
		{terms: []string{"ct scan", "computed tomography"}, mesh: "Tomography, X-Ray Computed", domain: "radiology"},
		{terms: []string{"x-ray", "radiograph"}, mesh: "Radiography", domain: "radiology"},
		{terms: []string{"ultrasound", "sonography"}, mesh: "Ultrasonography", domain: "radiology"},
		{terms: []string{"ecg", "ekg", "electrocardiogram"}, mesh: "Electrocardiography", domain: "cardiovascular"},
		{terms: []string{"echocardiogram", "echocardiography"}, mesh: "Echocardiography", domain: "cardiovascular"},
		{terms: []string{"hba1c", "a1c"}, mesh: "Glycated Hemoglobin", domain: "endocrine"},
		{terms: []string{"troponin"}, mesh: "Troponin", domain: "cardiovascular"},
		{terms: []string{"d-dimer"}, mesh: "Fibrin Fibrinogen Degradation Products", domain: "hematologic"},
		{terms: []string{"mammogram", "mammography"}, mesh: "Mammography", domain: "oncology"},
		{terms: []string{"pap smear"}, mesh: "Papanicolaou Test", domain: "obstetric"},
		{terms: []string{"psa"}, mesh: "Prostate-Specific Antigen", domain: "oncology"},
		{terms: []string{"lipid panel"}, mesh: "Lipids", domain: "cardiovascular"},
		{terms: []string{"creatinine"}, mesh: "Creatinine", domain: "renal"},
		{terms: []string{"blood test"}, mesh: "Hematologic Tests", domain: "general"},
	},
	categoryAnatomy: {
		{terms: []string{"heart"}, mesh: "Heart", domain: "cardiovascular"},
		{terms: []string{"lung"}, mesh: "Lung", domain: "respiratory"},
		{terms: []string{"liver"}, mesh: "Liver", domain: "gastrointestinal"},
		{terms: []string{"kidney"}, mesh: "Kidney", domain: "renal"},
		{terms: []string{"brain"}, mesh: "Brain", domain: "neurological"},
		{terms: []string{"stomach"}, mesh: "Stomach", domain: "gastrointestinal"},
		{terms: []string{"colon"}, mesh: "Colon", domain: "gastrointestinal"},
		{terms: []string{"pancreas"}, mesh: "Pancreas", domain: "endocrine"},
		{terms: []string{"thyroid"}, mesh: "Thyroid Gland", domain: "endocrine"},
		{terms: []string{"skin"}, mesh: "Skin", domain: "dermatologic"},
		{terms: []string{"bone"}, mesh: "Bone and Bones", domain: "musculoskeletal"},
		{terms: []string{"knee"}, mesh: "Knee Joint", domain: "musculoskeletal"},
		{terms: []string{"spine"}, mesh: "Spine", domain: "musculoskeletal"},
		{terms: []string{"artery", "arteries"}, mesh: "Arteries", domain: "cardiovascular"},
		{terms: []string{"breast"}, mesh: "Breast", domain: "oncology"},
		{terms: []string{"prostate"}, mesh: "Prostate", domain: "oncology"},
		{terms: []string{"uterus"}, mesh: "Uterus", domain: "obstetric"},
		{terms: []string{"eye"}, mesh: "Eye", domain: "ophthalmic"},
	},
	categoryDemographics: {
		{terms: []string{"pregnancy", "pregnant"}, mesh: "Pregnancy", domain: "obstetric"},
		{terms: []string{"breastfeeding", "lactation"}, mesh: "Breast Feeding", domain: "obstetric"},
		{terms: []string{"postmenopausal"}, mesh: "Postmenopause", domain: "obstetric"},
		{terms: []string{"newborn", "neonate", "infant"}, mesh: "Infant", domain: "pediatric"},
		{terms: []string{"children", "child", "pediatric", "paediatric"}, mesh: "Child", domain: "pediatric"},
		{terms: []string{"adolescent", "teenager"}, mesh: "Adolescent", domain: "pediatric"},
		{terms: []string{"elderly", "older adults", "geriatric"}, mesh: "Aged", domain: "geriatric"},
		{terms: []string{"women"}, mesh: "Women", domain: "general"},
		{terms: []string{"men"}, mesh: "Men", domain: "general"},
	},
	categoryOutcomes: {
		{terms: []string{"mortality", "death"}, mesh: "Mortality", domain: "general"},
		{terms: []string{"survival"}, mesh: "Survival", domain: "general"},
		{terms: []string{"quality of life"}, mesh: "Quality of Life", domain: "general"},
		{terms: []string{"hospitalization", "readmission"}, mesh: "Hospitalization", domain: "general"},
		{terms: []string{"recurrence", "relapse"}, mesh: "Recurrence", domain: "general"},
		{terms: []string{"remission"}, mesh: "Remission Induction", domain: "general"},
		{terms: []string{"cardiovascular events", "mace"}, mesh: "Cardiovascular Diseases", domain: "cardiovascular"},
		{terms: []string{"length of stay"}, mesh: "Length of Stay", domain: "general"},
		{terms: []string{"birth defects"}, mesh: "Congenital Abnormalities", domain: "obstetric"},
		{terms: []string{"miscarriage"}, mesh: "Abortion, Spontaneous", domain: "obstetric"},
		{terms: []string{"low birth weight", "birth weight"}, mesh: "Infant, Low Birth Weight", domain: "obstetric"},
	},
}

var domainSpecialties = map[string]string{
	"cardiovascular":   "cardiology",
	"endocrine":        "endocrinology",
	"respiratory":      "pulmonology",
	"infectious":       "infectious disease",
	"oncology":         "oncology",
	"mental_health":    "psychiatry",
	"neurological":     "neurology",
	"renal":            "nephrology",
	"musculoskeletal":  "rheumatology",
	"obstetric":        "obstetrics",
	"hematologic":      "hematology",
	"gastrointestinal": "gastroenterology",
	"pediatric":        "pediatrics",
	"geriatric":        "geriatrics",
	"dermatologic":     "dermatology",
	"pharmacology":     "clinical pharmacology",
	"radiology":        "radiology",
	"surgical":         "surgery",
	"critical_care":    "critical care",
	"ophthalmic":       "ophthalmology",
}

type compiledTerm struct {
	term    string
	pattern *regexp.Regexp
	entry   *lexiconEntry
}

// compiledLexicon holds per-category patterns ordered longest term first so
// that "breast cancer" is consumed before "cancer" can match inside it.
var compiledLexicon = compileLexicon(clinicalLexicon)

// meshBySurface maps every lexicon term to its MeSH heading.
var meshBySurface = func() map[string]string {
	out := make(map[string]string)
	for _, entries := range clinicalLexicon {
		for _, entry := range entries {
			for _, term := range entry.terms {
				out[term] = entry.mesh
			}
		}
	}
	return out
}()

func compileLexicon(lexicon map[entityCategory][]lexiconEntry) map[entityCategory][]compiledTerm {
	out := make(map[entityCategory][]compiledTerm, len(lexicon))
	for category, entries := range lexicon {
		terms := make([]compiledTerm, 0, len(entries)*2)
		for i := range entries {
			entry := &entries[i]
			for _, term := range entry.terms {
				terms = append(terms, compiledTerm{
					term:    term,
					pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `(?:s|es)?\b`),
					entry:   entry,
				})
			}
		}
		sort.SliceStable(terms, func(i, j int) bool {
			return len(terms[i].term) > len(terms[j].term)
		})
		out[category] = terms
	}
	return out
}

type entityMatch struct {
	surface string
	entry   *lexiconEntry
}

// matchCategory returns the entities of one category found in text, in the
// order they appear. Matched spans are blanked so shorter terms cannot
// re-match inside a longer one.
func matchCategory(text string, category entityCategory) []entityMatch {
	working := []byte(text)
	type positioned struct {
		start int
		match entityMatch
	}
	found := make([]positioned, 0)
	seen := make(map[string]struct{})

	for _, term := range compiledLexicon[category] {
		for _, loc := range term.pattern.FindAllIndex(working, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				working[i] = ' '
			}
			if _, ok := seen[term.term]; ok {
				continue
			}
			seen[term.term] = struct{}{}
			found = append(found, positioned{start: loc[0], match: entityMatch{surface: term.term, entry: term.entry}})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	out := make([]entityMatch, 0, len(found))
	for _, f := range found {
		out = append(out, f.match)
	}
	return out
}

func meshHeadingFor(entity string) string {
	return meshBySurface[strings.ToLower(entity)]
}
