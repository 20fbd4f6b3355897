// Package chunking splits long evidence texts into overlapping passages so
// that each indexed point carries one retrievable excerpt.
package chunking

import (
	"fmt"
	"strings"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

type PassageSplitter struct {
	PassageSize int
	Overlap     int
}

func NewPassageSplitter(passageSize, overlap int) *PassageSplitter {
	if passageSize <= 0 {
		passageSize = 1200
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= passageSize {
		overlap = passageSize / 4
	}
	return &PassageSplitter{
		PassageSize: passageSize,
		Overlap:     overlap,
	}
}

// Split cuts text into rune windows of at most PassageSize. A window ends at
// the last sentence boundary in its second half when there is one.
func (s *PassageSplitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.PassageSize {
		return []string{string(runes)}
	}

	out := make([]string, 0, len(runes)/(s.PassageSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := start + s.PassageSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := sentenceBoundary(runes[start:end]); cut > s.PassageSize/2 {
			end = start + cut
		}
		if passage := strings.TrimSpace(string(runes[start:end])); passage != "" {
			out = append(out, passage)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// sentenceBoundary returns the index just past the last ". " style break, or 0.
func sentenceBoundary(window []rune) int {
	for i := len(window) - 2; i > 0; i-- {
		switch window[i] {
		case '.', '?', '!':
			if window[i+1] == ' ' || window[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return 0
}

// Passages expands a record into one record per passage. Short records come
// back unchanged. Passage IDs are "<id>#p<n>" and ContentWithContext carries
// the title so each excerpt stays interpretable on its own.
func (s *PassageSplitter) Passages(record domain.EvidenceRecord) []domain.EvidenceRecord {
	parts := s.Split(record.Content)
	if len(parts) <= 1 {
		return []domain.EvidenceRecord{record}
	}
	out := make([]domain.EvidenceRecord, 0, len(parts))
	for i, part := range parts {
		passage := record
		passage.ID = fmt.Sprintf("%s#p%d", record.ID, i+1)
		passage.Content = part
		if record.Title != "" {
			passage.ContentWithContext = record.Title + "\n\n" + part
		}
		out = append(out, passage)
	}
	return out
}
