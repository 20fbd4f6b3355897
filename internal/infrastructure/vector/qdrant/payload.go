package qdrant

import (
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

func recordFromPayload(payload map[string]any) domain.EvidenceRecord {
	return domain.EvidenceRecord{
		ID:                 getStringPayload(payload, "evidence_id"),
		Content:            getStringPayload(payload, "content"),
		ContentWithContext: getStringPayload(payload, "content_with_context"),
		Title:              getStringPayload(payload, "title"),
		Journal:            getStringPayload(payload, "journal"),
		PublicationYear:    getIntPayload(payload, "publication_year"),
		DOI:                getStringPayload(payload, "doi"),
		Authors:            getStringListPayload(payload, "authors"),
		EvidenceLevel:      getIntPayload(payload, "evidence_level"),
		StudyType:          getStringPayload(payload, "study_type"),
		SampleSize:         getIntPayload(payload, "sample_size"),
		MeSHTerms:          getStringListPayload(payload, "mesh_terms"),
		MajorMeSHTerms:     getStringListPayload(payload, "major_mesh_terms"),
		ChemicalNames:      getStringListPayload(payload, "chemical_names"),
		SectionType:        getStringPayload(payload, "section_type"),
		PMID:               getStringPayload(payload, "pmid"),
	}
}

func payloadFromRecord(record domain.EvidenceRecord) map[string]any {
	payload := map[string]any{
		"evidence_id":    record.ID,
		"content":        record.Content,
		"title":          record.Title,
		"evidence_level": record.EvidenceLevel,
	}
	putString := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	putInt := func(key string, value int) {
		if value > 0 {
			payload[key] = value
		}
	}
	putList := func(key string, values []string) {
		if len(values) > 0 {
			payload[key] = values
		}
	}
	putString("content_with_context", record.ContentWithContext)
	putString("journal", record.Journal)
	putString("doi", record.DOI)
	putString("study_type", record.StudyType)
	putString("section_type", record.SectionType)
	putString("pmid", record.PMID)
	putInt("publication_year", record.PublicationYear)
	putInt("sample_size", record.SampleSize)
	putList("authors", record.Authors)
	putList("mesh_terms", record.MeSHTerms)
	putList("major_mesh_terms", record.MajorMeSHTerms)
	putList("chemical_names", record.ChemicalNames)
	return payload
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		// PMIDs are sometimes stored as numbers.
		if typed == math.Trunc(typed) {
			return fmt.Sprintf("%.0f", typed)
		}
		return fmt.Sprintf("%v", typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0
	}
	switch typed := v.(type) {
	case float64:
		return int(typed)
	case int:
		return typed
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(typed), "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

func getStringListPayload(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
