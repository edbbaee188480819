// Package pdfparse assembles numbered question records from cleaned booklet
// text. Lines are classified first and then fed through a small state machine
// that tracks the open question and, while inside an answer, which answer is
// being extended by wrapped lines.
package pdfparse

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/civicsprep/internal/classify"
	"github.com/hyperifyio/civicsprep/internal/question"
)

// Result is the parser output. Duplicates lists question numbers that were
// announced more than once, in the order the repeats were seen.
type Result struct {
	Questions  []question.Record
	Duplicates []int
}

// noAnswer marks that wrapped lines extend the question text.
const noAnswer = -1

// pending is the question currently being accumulated.
type pending struct {
	number    int
	textParts []string
	answers   []string
	// active is the index in answers extended by continuation lines, or
	// noAnswer when continuation lines belong to the question text.
	active int
}

func (p *pending) finalize() question.Record {
	answers := make([]string, 0, len(p.answers))
	for _, a := range p.answers {
		if s := strings.TrimSpace(a); s != "" {
			answers = append(answers, s)
		}
	}
	return question.Record{
		Number:  p.number,
		Text:    strings.TrimSpace(strings.Join(p.textParts, " ")),
		Answers: answers,
	}
}

type parser struct {
	open   *pending
	out    []question.Record
	byNum  map[int]int
	result Result
}

// Parse runs the state machine over text and returns the emitted records in
// the order their questions started.
func Parse(text string) Result {
	p := &parser{byNum: map[int]int{}}
	for _, line := range classify.Lines(text) {
		p.step(line)
	}
	p.emit()
	p.result.Questions = p.out
	if p.result.Questions == nil {
		p.result.Questions = []question.Record{}
	}
	return p.result
}

// Questions is Parse without the duplicate report.
func Questions(text string) []question.Record {
	return Parse(text).Questions
}

func (p *parser) step(line classify.Line) {
	switch line.Kind {
	case classify.SectionHeader, classify.SubsectionHeader:
		if p.open != nil {
			p.open.active = noAnswer
		}
	case classify.QuestionStart:
		p.emit()
		p.open = &pending{
			number:    line.Number,
			textParts: []string{line.Text},
			active:    noAnswer,
		}
	case classify.BulletAnswer:
		if p.open == nil {
			return
		}
		p.open.answers = append(p.open.answers, line.Text)
		p.open.active = len(p.open.answers) - 1
	case classify.PlainText:
		if p.open == nil || line.Blank() {
			return
		}
		if p.open.active != noAnswer {
			p.open.answers[p.open.active] += " " + line.Text
			return
		}
		p.open.textParts = append(p.open.textParts, line.Text)
	}
}

// emit finalizes the open question, if any. A number seen before replaces
// the earlier record in place so numbers stay unique in the output.
func (p *parser) emit() {
	if p.open == nil {
		return
	}
	rec := p.open.finalize()
	p.open = nil
	if i, ok := p.byNum[rec.Number]; ok {
		log.Warn().Int("number", rec.Number).Msg("question number repeated; keeping last occurrence")
		p.result.Duplicates = append(p.result.Duplicates, rec.Number)
		p.out[i] = rec
		return
	}
	p.byNum[rec.Number] = len(p.out)
	p.out = append(p.out, rec)
}
