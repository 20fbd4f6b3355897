package qdrant

import (
	"sort"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

const (
	defaultRRFK       = 60
	recencyHorizonYrs = 20.0
)

type fusionParams struct {
	k              int
	semanticWeight float64
	fullTextWeight float64
	recencyWeight  float64
	evidenceBoost  float64
	currentYear    int
}

type fusedRecord struct {
	record domain.EvidenceRecord
	score  float64
}

// fuseEvidenceRRF merges the dense and sparse rankings with weighted
// Reciprocal Rank Fusion, then adds the evidence-level and recency priors.
func fuseEvidenceRRF(semantic, lexical []domain.EvidenceRecord, p fusionParams) []domain.EvidenceRecord {
	if p.k <= 0 {
		p.k = defaultRRFK
	}

	acc := make(map[string]*fusedRecord, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))
	addList := func(records []domain.EvidenceRecord, weight float64) {
		for rank, record := range records {
			candidate, ok := acc[record.ID]
			if !ok {
				candidate = &fusedRecord{record: record}
				acc[record.ID] = candidate
				order = append(order, record.ID)
			}
			candidate.score += weight / float64(p.k+rank+1)
		}
	}
	addList(semantic, p.semanticWeight)
	addList(lexical, p.fullTextWeight)

	out := make([]domain.EvidenceRecord, 0, len(acc))
	for _, id := range order {
		c := acc[id]
		record := c.record
		record.Score = c.score +
			p.evidenceBoost*levelPrior(record.EvidenceLevel) +
			p.recencyWeight*recencyPrior(record.PublicationYear, p.currentYear)
		out = append(out, record)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func levelPrior(level int) float64 {
	if level < 1 || level > 5 {
		return 0
	}
	return float64(6-level) / 5
}

func recencyPrior(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	age := float64(currentYear - year)
	if age <= 0 {
		return 1
	}
	if v := 1 - age/recencyHorizonYrs; v > 0 {
		return v
	}
	return 0
}
