package question

import "strings"

// Record is one numbered question with its accepted answers. Records are
// finalized once emitted by a parser and are not mutated afterwards.
type Record struct {
	Number  int      `json:"question_number"`
	Text    string   `json:"question_text"`
	Answers []string `json:"answers"`
}

// Enriched is a Record with the fields added by the enrichment step.
type Enriched struct {
	Record
	IncorrectAnswers []string `json:"incorrect_answers"`
	Hint             string   `json:"hint"`
}

// New builds a Record, trimming the text and guaranteeing a non-nil answers
// slice so that an empty list serializes as [] rather than null.
func New(number int, text string, answers []string) Record {
	r := Record{Number: number, Text: strings.TrimSpace(text), Answers: answers}
	return r.Normalize()
}

// Normalize returns a copy with a non-nil Answers slice.
func (r Record) Normalize() Record {
	out := make([]string, len(r.Answers))
	copy(out, r.Answers)
	r.Answers = out
	return r
}

// Clone returns a deep copy of the list.
func Clone(list []Record) []Record {
	out := make([]Record, len(list))
	for i, r := range list {
		out[i] = r.Normalize()
	}
	return out
}

// Numbers returns the question numbers of list in order.
func Numbers(list []Record) []int {
	out := make([]int, 0, len(list))
	for _, r := range list {
		out = append(out, r.Number)
	}
	return out
}

// Index maps question number to position in list. When a number repeats the
// last position wins.
func Index(list []Record) map[int]int {
	idx := make(map[int]int, len(list))
	for i, r := range list {
		idx[r.Number] = i
	}
	return idx
}
