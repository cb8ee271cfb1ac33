package inventory

import (
	"context"
	"time"
)

// DateRange bounds ledger queries. Zero values leave the range open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// UsageTrends aggregates usage movements per material over a date range.
// Read-only projection over the immutable movement log.
func (s *Service) UsageTrends(ctx context.Context, r DateRange) ([]MaterialUsage, error) {
	return s.repo.ConsumptionByMaterial(ctx, MovementTypeUsage, r.From, r.To)
}

// WasteCosts aggregates waste movements per material over a date range.
func (s *Service) WasteCosts(ctx context.Context, r DateRange) ([]MaterialUsage, error) {
	return s.repo.ConsumptionByMaterial(ctx, MovementTypeWaste, r.From, r.To)
}

// CostAnalysis reports the current value of active inventory together with
// usage and waste costs over the range.
func (s *Service) CostAnalysis(ctx context.Context, r DateRange) (CostAnalysis, error) {
	value, err := s.repo.ActiveInventoryValue(ctx)
	if err != nil {
		return CostAnalysis{}, err
	}
	usage, err := s.repo.ConsumptionCost(ctx, MovementTypeUsage, r.From, r.To)
	if err != nil {
		return CostAnalysis{}, err
	}
	waste, err := s.repo.ConsumptionCost(ctx, MovementTypeWaste, r.From, r.To)
	if err != nil {
		return CostAnalysis{}, err
	}
	return CostAnalysis{TotalInventoryValue: value, UsageCosts: usage, WasteCosts: waste}, nil
}

// ListMovements returns ledger entries for a material.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	if filter.MaterialID == "" {
		return nil, &ValidationError{Field: "material_id", Reason: "required"}
	}
	return s.repo.ListMovements(ctx, filter)
}
