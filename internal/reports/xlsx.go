package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pressdesk/pressdesk/internal/inventory"
)

const (
	sheetSummary = "Summary"
	sheetUsage   = "Usage"
	sheetWaste   = "Waste"
)

// BuildWorkbook renders an inventory report into an XLSX workbook with a
// summary sheet and one sheet each for usage and waste.
func BuildWorkbook(report InventoryReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheetSummary); err != nil {
		return nil, err
	}

	summaryRows := [][]any{
		{"Metric", "Value"},
		{"Total inventory value", report.Analysis.TotalInventoryValue.StringFixed(2)},
		{"Usage costs", report.Analysis.UsageCosts.StringFixed(2)},
		{"Waste costs", report.Analysis.WasteCosts.StringFixed(2)},
	}
	if !report.Range.From.IsZero() {
		summaryRows = append(summaryRows, []any{"From", report.Range.From.Format("2006-01-02")})
	}
	if !report.Range.To.IsZero() {
		summaryRows = append(summaryRows, []any{"To", report.Range.To.Format("2006-01-02")})
	}
	if err := writeRows(f, sheetSummary, summaryRows); err != nil {
		return nil, err
	}

	if err := writeConsumptionSheet(f, sheetUsage, report.Usage); err != nil {
		return nil, err
	}
	if err := writeConsumptionSheet(f, sheetWaste, report.Waste); err != nil {
		return nil, err
	}
	return f, nil
}

func writeConsumptionSheet(f *excelize.File, name string, rows []inventory.MaterialUsage) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	out := [][]any{{"Material", "Sheets", "Cost"}}
	for _, row := range rows {
		out = append(out, []any{row.MaterialName, row.TotalSheets, row.TotalCost.StringFixed(2)})
	}
	return writeRows(f, name, out)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("reports: write row %d: %w", i+1, err)
		}
	}
	return nil
}
