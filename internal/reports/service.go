package reports

import (
	"context"

	"github.com/pressdesk/pressdesk/internal/inventory"
)

// InventoryPort exposes the ledger projections the report builder consumes.
type InventoryPort interface {
	UsageTrends(ctx context.Context, r inventory.DateRange) ([]inventory.MaterialUsage, error)
	WasteCosts(ctx context.Context, r inventory.DateRange) ([]inventory.MaterialUsage, error)
	CostAnalysis(ctx context.Context, r inventory.DateRange) (inventory.CostAnalysis, error)
}

// InventoryReport bundles the three ledger projections for one date range.
type InventoryReport struct {
	Range    inventory.DateRange
	Usage    []inventory.MaterialUsage
	Waste    []inventory.MaterialUsage
	Analysis inventory.CostAnalysis
}

// Service assembles inventory reports.
type Service struct {
	inventory InventoryPort
}

// NewService builds Service.
func NewService(inv InventoryPort) *Service {
	return &Service{inventory: inv}
}

// InventoryReport gathers usage trends, waste costs and the cost analysis for
// the range. Read-only; never mutates material records.
func (s *Service) InventoryReport(ctx context.Context, r inventory.DateRange) (InventoryReport, error) {
	usage, err := s.inventory.UsageTrends(ctx, r)
	if err != nil {
		return InventoryReport{}, err
	}
	waste, err := s.inventory.WasteCosts(ctx, r)
	if err != nil {
		return InventoryReport{}, err
	}
	analysis, err := s.inventory.CostAnalysis(ctx, r)
	if err != nil {
		return InventoryReport{}, err
	}
	return InventoryReport{Range: r, Usage: usage, Waste: waste, Analysis: analysis}, nil
}
