// Package classify assigns each line of cleaned booklet text exactly one kind.
package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies what a line contributes to the question being assembled.
type Kind int

const (
	PlainText Kind = iota
	SectionHeader
	SubsectionHeader
	QuestionStart
	BulletAnswer
)

func (k Kind) String() string {
	switch k {
	case SectionHeader:
		return "section"
	case SubsectionHeader:
		return "subsection"
	case QuestionStart:
		return "question"
	case BulletAnswer:
		return "bullet"
	default:
		return "text"
	}
}

// Line is a classified line. Number is set only for QuestionStart. Text
// holds the question remainder, the bullet remainder, or the trimmed plain
// content; it is empty for headers and blank lines.
type Line struct {
	Kind   Kind
	Number int
	Text   string
}

// Blank reports whether the line carries no content.
func (l Line) Blank() bool { return l.Kind == PlainText && l.Text == "" }

var (
	subsectionRe = regexp.MustCompile(`^\s*[A-Z]:\s+.*$`)
	sectionRe    = regexp.MustCompile(`^[A-Z\s]+$`)
	questionRe   = regexp.MustCompile(`\b(\d+)\.\s+(\S.*)`)
	bulletRe     = regexp.MustCompile(`^\s*[▪\-*•]\s+(\S.*)$`) // ▪ - * • then whitespace
)

// Classify returns the kind of line. The checks run in a fixed order and the
// first match wins: subsection, section, question start, bullet, plain text.
func Classify(line string) Line {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)

	if subsectionRe.MatchString(line) {
		return Line{Kind: SubsectionHeader}
	}
	if trimmed != "" && sectionRe.MatchString(trimmed) {
		return Line{Kind: SectionHeader}
	}
	if m := questionRe.FindStringSubmatch(trimmed); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return Line{Kind: QuestionStart, Number: n, Text: strings.TrimSpace(m[2])}
		}
	}
	if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
		return Line{Kind: BulletAnswer, Text: strings.TrimSpace(m[1])}
	}
	return Line{Kind: PlainText, Text: trimmed}
}

// Lines splits text on newlines and classifies each line in order.
func Lines(text string) []Line {
	raw := strings.Split(text, "\n")
	out := make([]Line, 0, len(raw))
	for _, l := range raw {
		out = append(out, Classify(l))
	}
	return out
}
