package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

var csvHeader = []string{"Date", "Store", "Category", "Subcategory", "Total", "Status", "Notes"}

// ContentType returns the MIME type and file extension of an export format
func ContentType(format string) (string, string, error) {
	switch format {
	case FormatCSV, "":
		return "text/csv; charset=utf-8", "csv", nil
	case FormatPDF:
		return "application/pdf", "pdf", nil
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", nil
	}
	return "", "", receipt.NewValidationError("format", fmt.Sprintf("unsupported export format %q", format))
}

// Write renders rep in the given format
func Write(w io.Writer, format string, rep *Report) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, rep.Receipts)
	case FormatPDF:
		return WritePDF(w, rep)
	case FormatXLSX:
		return WriteXLSX(w, rep)
	}
	_, _, err := ContentType(format)
	return err
}

func row(r *receipt.Receipt) []string {
	return []string{
		r.Date.Format(receipt.DateLayout),
		r.Store,
		r.Category,
		r.Subcategory,
		r.Total.StringFixed(2),
		string(r.Status),
		r.Notes(),
	}
}

// WriteCSV writes one row per receipt, in order, after the header row
func WriteCSV(w io.Writer, receipts []*receipt.Receipt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range receipts {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("writing csv row for receipt %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
