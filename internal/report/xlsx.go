package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	receiptsSheet = "Receipts"
	summarySheet  = "Summary"
)

// WriteXLSX writes a workbook with a Receipts sheet in CSV column order and a
// Summary sheet holding the headline figures and breakdown.
func WriteXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	rows := [][]any{toAny(csvHeader)}
	for _, r := range rep.Receipts {
		values := toAny(row(r))
		values[4], _ = r.Total.Round(2).Float64()
		rows = append(rows, values)
	}
	if err := writeRows(f, receiptsSheet, rows); err != nil {
		return err
	}

	s := rep.Summary
	summary := [][]any{
		{"Generated", rep.GeneratedAt.Format(pdfTimeLayout)},
		{"Period", period(rep.Filter)},
		{"Receipts", s.Count},
		{"Total", money(s.TotalAmount)},
		{"Approved", money(s.ApprovedAmount)},
		{"Pending", money(s.PendingAmount)},
		{"Rejected", money(s.RejectedAmount)},
		{"Average", money(s.Average)},
		{},
		{fmt.Sprintf("By %s", rep.Dimension), "Receipts", "Total"},
	}
	for _, b := range rep.Breakdown {
		summary = append(summary, []any{b.Label, b.Count, money(b.Total)})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, values := range rows {
		if len(values) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
