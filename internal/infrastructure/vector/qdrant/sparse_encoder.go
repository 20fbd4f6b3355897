package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	bm25K1         = 1.2
	titleBoost     = 1.5
	meshBoost      = 2.0
	maxSparseTerms = 256
)

// Words that carry no retrieval signal in clinical questions or abstracts.
var clinicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "should": {}, "than": {},
	"that": {}, "the": {}, "there": {}, "this": {}, "to": {}, "was": {}, "were": {},
	"what": {}, "when": {}, "which": {}, "who": {}, "why": {}, "with": {},
	"patients": {}, "patient": {}, "study": {}, "studies": {}, "results": {},
}

// encodeSparseRecord builds the lexical vector stored with an evidence point.
// Title, MeSH headings and chemical names weigh more than body text.
func encodeSparseRecord(record domain.EvidenceRecord) sparseVector {
	termFreq := make(map[uint32]float64, 96)
	body := record.Content
	if body == "" {
		body = record.ContentWithContext
	}
	appendTermFreq(termFreq, tokenizeClinical(body), 1.0)
	appendTermFreq(termFreq, tokenizeClinical(record.Title), titleBoost)
	for _, list := range [][]string{record.MeSHTerms, record.MajorMeSHTerms, record.ChemicalNames} {
		for _, term := range list {
			appendTermFreq(termFreq, tokenizeClinical(term), meshBoost)
		}
	}
	return termFreqToSparse(termFreq)
}

func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	appendTermFreq(termFreq, tokenizeClinical(query), 1.0)
	return termFreqToSparse(termFreq)
}

func appendTermFreq(dst map[uint32]float64, tokens []string, tokenWeight float64) {
	for _, token := range tokens {
		dst[hashToken(token)] += tokenWeight
	}
}

// termFreqToSparse saturates term frequencies BM25-style and keeps the
// heaviest maxSparseTerms terms. Indices come back sorted ascending.
func termFreqToSparse(tf map[uint32]float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		sort.Slice(indices, func(i, j int) bool {
			if tf[indices[i]] != tf[indices[j]] {
				return tf[indices[i]] > tf[indices[j]]
			}
			return indices[i] < indices[j]
		})
		indices = indices[:maxSparseTerms]
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		freq := tf[idx]
		weight := (freq * (bm25K1 + 1.0)) / (freq + bm25K1)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

// tokenizeClinical lowercases, splits on anything but letters and digits and
// drops stopwords. Hyphenated names ("covid-19", "sglt-2") also emit the
// joined form so "covid19" and "covid-19" meet.
func tokenizeClinical(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var (
		word     strings.Builder
		compound strings.Builder
		parts    int
	)
	emitWord := func() {
		if word.Len() == 0 {
			return
		}
		token := word.String()
		word.Reset()
		compound.WriteString(token)
		parts++
		if _, stop := clinicalStopwords[token]; !stop {
			out = append(out, token)
		}
	}
	emitCompound := func() {
		if parts > 1 {
			out = append(out, compound.String())
		}
		compound.Reset()
		parts = 0
	}

	for _, r := range s {
		r = unicode.ToLower(r)
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		case r == '-':
			emitWord()
		default:
			emitWord()
			emitCompound()
		}
	}
	emitWord()
	emitCompound()
	return out
}
