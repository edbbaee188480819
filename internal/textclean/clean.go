package textclean

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Default markers of the disclaimer block printed on the first page of the
// civics test booklet.
const (
	DefaultDisclaimerStart = "* If you are 65 years old or older"
	DefaultDisclaimerEnd   = "www.uscis.gov"
)

var (
	pageNumberRe = regexp.MustCompile(`(?m)^[ \t]*-\d+-[ \t]*$`)
	tabsRe       = regexp.MustCompile(`\t+`)
	defaultClean = WithMarkers(DefaultDisclaimerStart, DefaultDisclaimerEnd)
)

// Cleaner strips boilerplate from text extracted from the question booklet.
// Zero values for the markers fall back to the defaults above.
type Cleaner struct {
	// DisclaimerStart opens the block to remove. Whitespace inside it matches
	// any run of whitespace in the input.
	DisclaimerStart string
	// DisclaimerEnd is the line that closes the block.
	DisclaimerEnd string

	disclaimerRe *regexp.Regexp
}

// Clean removes the disclaimer block and page-number lines using the
// default markers and collapses tabs to single spaces.
func Clean(text string) string {
	return defaultClean.Clean(text)
}

// Clean applies the configured markers. It never fails; input without
// disclaimer or page markers is returned with only tabs collapsed.
func (c Cleaner) Clean(text string) string {
	text = norm.NFC.String(text)
	text = c.disclaimer().ReplaceAllString(text, "")
	text = pageNumberRe.ReplaceAllString(text, "")
	text = tabsRe.ReplaceAllString(text, " ")
	return text
}

func (c Cleaner) disclaimer() *regexp.Regexp {
	if c.disclaimerRe != nil {
		return c.disclaimerRe
	}
	start := c.DisclaimerStart
	if strings.TrimSpace(start) == "" {
		start = DefaultDisclaimerStart
	}
	end := c.DisclaimerEnd
	if strings.TrimSpace(end) == "" {
		end = DefaultDisclaimerEnd
	}
	return compileDisclaimer(start, end)
}

// WithMarkers returns a Cleaner with its disclaimer pattern compiled once.
func WithMarkers(start, end string) Cleaner {
	c := Cleaner{DisclaimerStart: start, DisclaimerEnd: end}
	c.disclaimerRe = c.disclaimer()
	return c
}

func compileDisclaimer(start, end string) *regexp.Regexp {
	fields := strings.Fields(start)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	pattern := `(?s)` + strings.Join(fields, `\s+`) + `.*?\n[ \t]*` + regexp.QuoteMeta(strings.TrimSpace(end)) + `\s*`
	return regexp.MustCompile(pattern)
}
