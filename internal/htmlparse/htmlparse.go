// Package htmlparse reads the current question list from the "check for test
// updates" page. Questions are bold numbered headings inside one container
// element, each followed by a list of accepted answers.
package htmlparse

import (
	"bytes"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/civicsprep/internal/question"
)

// DefaultContainerID is the id of the accordion panel holding the questions.
const DefaultContainerID = "acc--content1"

var headingRe = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)

// Parser extracts questions from the subtree of the element whose id equals
// ContainerID. An empty ContainerID uses DefaultContainerID.
type Parser struct {
	ContainerID string
}

// Result holds the parsed records. Found is false when the container element
// is missing, which callers treat as "no current list available". Duplicates
// lists numbers that headed more than one question, in the order seen.
type Result struct {
	Questions  []question.Record
	Found      bool
	Duplicates []int
}

// Parse uses the default container id.
func Parse(doc []byte) Result {
	return Parser{}.Parse(doc)
}

// Parse returns the questions in document order. It never fails: an
// unparsable document or a missing container yields an empty result.
func (p Parser) Parse(doc []byte) Result {
	res := Result{Questions: []question.Record{}}
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return res
	}
	id := p.ContainerID
	if strings.TrimSpace(id) == "" {
		id = DefaultContainerID
	}
	container := d.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
	if container.Length() == 0 {
		return res
	}
	res.Found = true

	// A repeated number replaces the earlier record in place.
	byNum := map[int]int{}
	container.Find("p").Each(func(_ int, s *goquery.Selection) {
		n, text, ok := anchor(s.Get(0))
		if !ok {
			return
		}
		rec := question.New(n, text, answersAfter(s.Get(0)))
		if i, seen := byNum[n]; seen {
			log.Warn().Int("number", n).Msg("question number repeated on page; keeping last occurrence")
			res.Duplicates = append(res.Duplicates, n)
			res.Questions[i] = rec
			return
		}
		byNum[n] = len(res.Questions)
		res.Questions = append(res.Questions, rec)
	})
	return res
}

// answersAfter scans the element siblings following an anchor paragraph.
// The first list found supplies the answers. Reaching the next anchor means
// the question has none; the outer iteration visits that anchor itself.
func answersAfter(p *html.Node) []string {
	for sib := range elementSiblings(p) {
		if isList(sib) {
			return listItems(sib)
		}
		if sib.DataAtom == atom.P {
			if _, _, ok := anchor(sib); ok {
				break
			}
		}
	}
	return []string{}
}

// elementSiblings yields the element nodes after n, stopping when the
// consumer stops.
func elementSiblings(n *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		for s := n.NextSibling; s != nil; s = s.NextSibling {
			if s.Type != html.ElementNode {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// anchor reports whether p holds a bold "N. text" heading.
func anchor(p *html.Node) (int, string, bool) {
	if p == nil || p.DataAtom != atom.P {
		return 0, "", false
	}
	b := firstBold(p)
	if b == nil {
		return 0, "", false
	}
	m := headingRe.FindStringSubmatch(collapse(textOf(b)))
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, "", false
	}
	text := strings.TrimSpace(m[2])
	if text == "" {
		return 0, "", false
	}
	return n, text, true
}

func firstBold(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Strong || c.DataAtom == atom.B) {
			return c
		}
		if found := firstBold(c); found != nil {
			return found
		}
	}
	return nil
}

func isList(n *html.Node) bool {
	return n.DataAtom == atom.Ul || n.DataAtom == atom.Ol
}

// listItems returns the collapsed text of the direct li children. Items
// with no text are left out.
func listItems(list *html.Node) []string {
	out := []string{}
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		if s := collapse(textOf(c)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
		case html.ElementNode:
			switch cur.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				b.WriteByte(' ')
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapse trims and replaces whitespace runs, including non-breaking
// spaces, with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
