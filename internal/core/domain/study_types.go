package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

type StudyTypeCount struct {
	StudyType string
	Count     int
}

// StudyTypeCounts is a tally keyed by study type, kept sorted by key so that
// iteration and JSON output are deterministic.
type StudyTypeCounts []StudyTypeCount

func (c StudyTypeCounts) Add(studyType string) StudyTypeCounts {
	i := sort.Search(len(c), func(i int) bool { return c[i].StudyType >= studyType })
	if i < len(c) && c[i].StudyType == studyType {
		c[i].Count++
		return c
	}
	c = append(c, StudyTypeCount{})
	copy(c[i+1:], c[i:])
	c[i] = StudyTypeCount{StudyType: studyType, Count: 1}
	return c
}

func (c StudyTypeCounts) Get(studyType string) int {
	i := sort.Search(len(c), func(i int) bool { return c[i].StudyType >= studyType })
	if i < len(c) && c[i].StudyType == studyType {
		return c[i].Count
	}
	return 0
}

func (c StudyTypeCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.StudyType)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(entry.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *StudyTypeCounts) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StudyTypeCounts, 0, len(raw))
	for studyType, count := range raw {
		out = append(out, StudyTypeCount{StudyType: studyType, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudyType < out[j].StudyType })
	*c = out
	return nil
}
