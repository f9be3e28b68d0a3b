package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

const (
	fontRegular = "DejaVuSans.ttf"
	fontBold    = "DejaVuSans-Bold.ttf"
)

type labels struct {
	title, assessment, score, status, submitted, question, answer, noAnswer, points string
}

var (
	labelsRU = labels{"Отчет по тестированию", "Сессия", "Результат", "Статус", "Отправлен", "Вопрос", "Ответ", "нет ответа", "Баллы"}
	labelsEN = labels{"Assessment report", "Session", "Score", "Status", "Submitted", "Question", "Answer", "no answer", "Points"}
)

// Generator формирует PDF-отчет по результату. Если в fontDir есть шрифты DejaVu,
// отчет пишется UTF-8 шрифтом с кириллицей, иначе встроенной Helvetica.
type Generator struct {
	fontDir string
}

func NewGenerator(fontDir string) *Generator {
	return &Generator{fontDir: fontDir}
}

func (g *Generator) hasFonts() bool {
	if g.fontDir == "" {
		return false
	}
	for _, name := range []string{fontRegular, fontBold} {
		if _, err := os.Stat(filepath.Join(g.fontDir, name)); err != nil {
			return false
		}
	}
	return true
}

// FileName имя файла отчета
func FileName(assessmentID string) string {
	return "report_" + assessmentID + ".pdf"
}

// PDF возвращает содержимое отчета
func (g *Generator) PDF(d model.ResultDetail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")

	family, l := "Helvetica", labelsEN
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if g.hasFonts() {
		pdf.AddUTF8Font("DejaVu", "", filepath.Join(g.fontDir, fontRegular))
		pdf.AddUTF8Font("DejaVu", "B", filepath.Join(g.fontDir, fontBold))
		family, l = "DejaVu", labelsRU
		tr = func(s string) string { return s }
	}

	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.MultiCell(0, 10, tr(l.title), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont(family, "", 12)
	info := fmt.Sprintf("%s: %s\n%s: %s / %s\n%s: %s\n",
		l.assessment, d.AssessmentID,
		l.score, points(d.Score), points(d.TotalPoints),
		l.status, d.Status)
	if !d.SubmittedAt.IsZero() {
		info += fmt.Sprintf("%s: %s\n", l.submitted, d.SubmittedAt.Format("02.01.2006 15:04"))
	}
	pdf.MultiCell(0, 8, tr(info), "", "L", false)
	pdf.Ln(4)

	for i, q := range d.Questions {
		pdf.SetFont(family, "B", 12)
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("%s %d:", l.question, i+1)), "", "L", false)

		pdf.SetFont(family, "", 12)
		pdf.MultiCell(0, 8, tr(q.Prompt), "", "L", false)
		pdf.Ln(2)

		answer := answerString(q.Answer)
		if answer == "" {
			answer = l.noAnswer
		}
		line := fmt.Sprintf("%s: %s\n%s: %s / %s\n", l.answer, answer, l.points, points(q.Earned), points(q.Points))
		pdf.MultiCell(0, 8, tr(line), "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func answerString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, answerString(p))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(x, ", ")
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func points(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
