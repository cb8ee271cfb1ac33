package reports

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressdesk/pressdesk/internal/inventory"
)

type stubInventory struct {
	usage    []inventory.MaterialUsage
	waste    []inventory.MaterialUsage
	analysis inventory.CostAnalysis
}

func (s stubInventory) UsageTrends(ctx context.Context, r inventory.DateRange) ([]inventory.MaterialUsage, error) {
	return s.usage, nil
}

func (s stubInventory) WasteCosts(ctx context.Context, r inventory.DateRange) ([]inventory.MaterialUsage, error) {
	return s.waste, nil
}

func (s stubInventory) CostAnalysis(ctx context.Context, r inventory.DateRange) (inventory.CostAnalysis, error) {
	return s.analysis, nil
}

func TestInventoryReportWorkbook(t *testing.T) {
	svc := NewService(stubInventory{
		usage: []inventory.MaterialUsage{
			{MaterialID: "m-1", MaterialName: "A4 80gsm", TotalSheets: 1200, TotalCost: decimal.RequireFromString("2400.00")},
		},
		waste: []inventory.MaterialUsage{
			{MaterialID: "m-1", MaterialName: "A4 80gsm", TotalSheets: 40, TotalCost: decimal.RequireFromString("80.00")},
		},
		analysis: inventory.CostAnalysis{
			TotalInventoryValue: decimal.RequireFromString("15000.00"),
			UsageCosts:          decimal.RequireFromString("2400.00"),
			WasteCosts:          decimal.RequireFromString("80.00"),
		},
	})

	report, err := svc.InventoryReport(context.Background(), inventory.DateRange{})
	require.NoError(t, err)

	f, err := BuildWorkbook(report)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.ElementsMatch(t, []string{sheetSummary, sheetUsage, sheetWaste}, f.GetSheetList())

	value, err := f.GetCellValue(sheetSummary, "B2")
	require.NoError(t, err)
	require.Equal(t, "15000.00", value)

	name, err := f.GetCellValue(sheetUsage, "A2")
	require.NoError(t, err)
	require.Equal(t, "A4 80gsm", name)

	cost, err := f.GetCellValue(sheetWaste, "C2")
	require.NoError(t, err)
	require.Equal(t, "80.00", cost)
}
