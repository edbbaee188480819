// Package studyguide renders the final question list as a printable PDF.
package studyguide

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/civicsprep/internal/question"
)

// Options controls the rendered document.
type Options struct {
	Title string
	// ShowHints prints the hint under each question when present.
	ShowHints bool
	// ShowDistractors lists the incorrect answers after the accepted ones.
	ShowDistractors bool
}

// Render writes the study guide to w.
func Render(w io.Writer, list []question.Enriched, opts Options) error {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Civics Questions"
	}
	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("-%d-", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, q := range list {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 5.5, tr(fmt.Sprintf("%d. %s", q.Number, q.Text)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10.5)
		for _, a := range q.Answers {
			bullet(pdf, tr("- "+a))
		}
		if opts.ShowDistractors && len(q.IncorrectAnswers) > 0 {
			pdf.SetFont("Helvetica", "I", 9.5)
			bullet(pdf, tr("Not: "+strings.Join(q.IncorrectAnswers, "; ")))
		}
		if opts.ShowHints && strings.TrimSpace(q.Hint) != "" {
			pdf.SetFont("Helvetica", "I", 9.5)
			bullet(pdf, tr("Hint: "+q.Hint))
		}
		pdf.Ln(2.5)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render study guide: %w", err)
	}
	return pdf.Output(w)
}

func bullet(pdf *gofpdf.Fpdf, text string) {
	left, _, _, _ := pdf.GetMargins()
	pdf.SetX(left + 6)
	pdf.MultiCell(0, 5, text, "", "L", false)
}
