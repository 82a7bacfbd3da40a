package report

import (
	"fmt"
	"io"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/jung-kurt/gofpdf/v2"
)

const pdfTimeLayout = "02-Jan-2006 03:04 PM"

// WritePDF renders a printable report: summary, breakdown and receipt table
func WritePDF(w io.Writer, rep *Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Expense Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", rep.GeneratedAt.Format(pdfTimeLayout)), "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 6, fmt.Sprintf("Period: %s", period(rep.Filter)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Summary", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	s := rep.Summary
	pdf.CellFormat(95, 7, fmt.Sprintf("Total: $%s", s.TotalAmount.StringFixed(2)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Receipts: %d", s.Count), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Approved: $%s", s.ApprovedAmount.StringFixed(2)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Pending: $%s", s.PendingAmount.StringFixed(2)), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Rejected: $%s", s.RejectedAmount.StringFixed(2)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Average: $%s", s.Average.StringFixed(2)), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, fmt.Sprintf("By %s", rep.Dimension), "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(110, 7, "Group", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Receipts", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 7, "Total", "1", 1, "C", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, b := range rep.Breakdown {
		pdf.CellFormat(110, 6, tr(b.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", b.Count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "$"+b.Total.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Receipts", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	widths := []float64{22, 38, 32, 28, 22, 20, 28}
	for i, h := range csvHeader {
		ln := 0
		if i == len(csvHeader)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 7, h, "1", ln, "C", true, 0, "")
	}
	pdf.SetFont("Arial", "", 9)
	for _, r := range rep.Receipts {
		cells := row(r)
		for i, c := range cells {
			ln, align := 0, "L"
			if i == len(cells)-1 {
				ln = 1
			}
			if i == 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, tr(truncate(c, widths[i])), "1", ln, align, false, 0, "")
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return nil
}

func period(f Filter) string {
	switch {
	case f.From.IsZero() && f.To.IsZero():
		return "All dates"
	case f.From.IsZero():
		return "Up to " + f.To.Format(receipt.DateLayout)
	case f.To.IsZero():
		return "From " + f.From.Format(receipt.DateLayout)
	}
	return f.From.Format(receipt.DateLayout) + " to " + f.To.Format(receipt.DateLayout)
}

// truncate shortens s to roughly fit a cell of the given width in mm
func truncate(s string, width float64) string {
	limit := int(width / 1.9)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
