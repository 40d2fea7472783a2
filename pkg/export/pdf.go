package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF renders the report as a single-page tabular PDF with the
// title and period above the category table and a totals line below.
func RenderPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if report.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, report.Title, "", 1, "C", false, 0, "")
	}
	if report.Period != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, report.Period, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	colWidth := 190.0 / float64(len(columns))
	pdf.SetFont("Arial", "B", 10)
	for _, header := range columns {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	total := 0
	pdf.SetFont("Arial", "", 9)
	for _, row := range report.Rows {
		pdf.CellFormat(colWidth, 7, row.Category, "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, 7, fmt.Sprintf("%d", row.Minutes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidth, 7, formatHours(row.Minutes), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		total += row.Minutes
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total: %d min (%s h)", total, formatHours(total)), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
