// Package reconcile merges the baseline question list parsed from the booklet
// with the current list published on the updates page.
package reconcile

import (
	"github.com/hyperifyio/civicsprep/internal/question"
)

// Report describes what a merge changed. Overridden holds baseline numbers
// replaced by a current record, in baseline order. Dropped holds numbers
// present only in the current list, in current order.
type Report struct {
	Overridden []int
	Dropped    []int
}

// Merge returns a list with the length and order of baseline. Each baseline
// record is replaced in full by the current record with the same number.
// Current records without a baseline counterpart are dropped.
func Merge(baseline, current []question.Record) []question.Record {
	out, _ := MergeReport(baseline, current)
	return out
}

// MergeReport is Merge that also reports the overrides and drops.
func MergeReport(baseline, current []question.Record) ([]question.Record, Report) {
	byNum := question.Index(current)
	rep := Report{Overridden: []int{}, Dropped: []int{}}
	inBaseline := make(map[int]bool, len(baseline))
	out := make([]question.Record, 0, len(baseline))
	for _, b := range baseline {
		inBaseline[b.Number] = true
		if i, ok := byNum[b.Number]; ok {
			out = append(out, current[i].Normalize())
			rep.Overridden = append(rep.Overridden, b.Number)
			continue
		}
		out = append(out, b.Normalize())
	}
	seen := make(map[int]bool, len(current))
	for _, c := range current {
		if inBaseline[c.Number] || seen[c.Number] {
			continue
		}
		seen[c.Number] = true
		rep.Dropped = append(rep.Dropped, c.Number)
	}
	return out, rep
}
