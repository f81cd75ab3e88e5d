// Package pdf renders a quiz into a printable A4 document.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"quizpad/internal/models"

	"github.com/go-pdf/fpdf"
)

const (
	marginLeft   = 50.0 // pt
	optionIndent = 20.0
	marginTop    = 50.0
	marginBottom = 50.0
)

// Render lays out the quiz title, each question and its lettered options.
// Long quizzes continue onto new pages.
func Render(topic string, questions []models.Question) ([]byte, error) {
	if strings.TrimSpace(topic) == "" {
		topic = models.DefaultExportName
	}

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetTitle("Quiz Topic: "+topic, true)
	doc.SetMargins(marginLeft, marginTop, marginLeft)
	doc.SetAutoPageBreak(true, marginBottom)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	width, _ := doc.GetPageSize()
	textWidth := width - 2*marginLeft

	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(textWidth, 20, tr("Quiz Topic: "+topic), "", "L", false)
	doc.Ln(20)

	doc.SetFont("Helvetica", "", 11)
	for i, q := range questions {
		doc.SetX(marginLeft)
		doc.MultiCell(textWidth, 15, tr(fmt.Sprintf("Q%d. %s", i+1, q.Text)), "", "L", false)
		doc.Ln(5)
		for j, opt := range q.Options {
			doc.SetX(marginLeft + optionIndent)
			doc.MultiCell(textWidth-optionIndent, 15, tr(fmt.Sprintf("%s. %s", optionLabel(j), opt)), "", "L", false)
		}
		doc.Ln(20)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func optionLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprint(i + 1)
}
