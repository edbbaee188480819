// Package pdftext extracts the linear text of a PDF page by page, one output
// line per line of text on the page.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// ExtractFile opens path and returns its text. See Extract.
func ExtractFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return ExtractBytes(b)
}

// ExtractBytes extracts text from an in-memory PDF.
func ExtractBytes(data []byte) (string, error) {
	return Extract(bytes.NewReader(data), int64(len(data)))
}

// Extract returns the text of every page, each trimmed, joined with a
// newline in page order. Lines inside a page are kept. Pages without text are
// skipped. A page that fails to decode is logged and skipped so one damaged
// page does not lose the rest.
func Extract(r io.ReaderAt, size int64) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pt, err := pageText(page)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("pdf page text failed; skipping")
			continue
		}
		if s := strings.TrimSpace(pt); s != "" {
			pages = append(pages, s)
		}
	}
	log.Debug().Int("pages", total).Int("with_text", len(pages)).Msg("pdf text extracted")
	return strings.Join(pages, "\n"), nil
}

// pageText rebuilds the page's lines from positioned glyphs. Glyphs are kept
// in content-stream order; a change of baseline starts a new line and a
// horizontal gap wider than a fraction of the font size becomes a space.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("decode page: %v", rec)
		}
	}()
	var b strings.Builder
	var prev pdf.Text
	for _, g := range page.Content().Text {
		if g.S == "" {
			continue
		}
		if prev.S != "" {
			size := math.Max(math.Max(prev.FontSize, g.FontSize), 1)
			switch {
			case math.Abs(g.Y-prev.Y) > size/2:
				b.WriteByte('\n')
			case g.X-(prev.X+prev.W) > size/5 && !endsInSpace(prev.S) && !startsWithSpace(g.S):
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
		prev = g
	}
	return b.String(), nil
}

func endsInSpace(s string) bool { return strings.HasSuffix(s, " ") }
func startsWithSpace(s string) bool { return strings.HasPrefix(s, " ") }
