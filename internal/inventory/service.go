package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pressdesk/pressdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMaterial(ctx context.Context, id string) (MaterialRecord, error)
	ListMaterials(ctx context.Context, filter MaterialFilter) ([]MaterialRecord, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	ConsumptionByMaterial(ctx context.Context, movementType MovementType, from, to time.Time) ([]MaterialUsage, error)
	ConsumptionCost(ctx context.Context, movementType MovementType, from, to time.Time) (decimal.Decimal, error)
	ActiveInventoryValue(ctx context.Context) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventPublisher makes threshold crossings observable to collaborators such as
// the notification subsystem.
type EventPublisher interface {
	PublishLowStockCrossed(ctx context.Context, evt LowStockCrossedEvent) error
}

// MetricsPort records domain-level counters.
type MetricsPort interface {
	MovementRecorded(movementType string)
	AlertTransition(status string)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MaxRetries bounds transparent retries on ErrBusy contention.
	MaxRetries int
	// RetryBackoff is the base delay between retries.
	RetryBackoff time.Duration
}

// Service coordinates material records, the adjustment engine and the
// movement ledger query surface.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	events     EventPublisher
	metrics    MetricsPort
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, events EventPublisher, metrics MetricsPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 25 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, events: events, metrics: metrics, logger: logger, maxRetries: retries, backoff: backoff}
}

// CreateMaterial registers a new inventory item. Opening stock, when present,
// is posted as an opening-balance correction so the movement ledger replays to
// the current stock from day one.
func (s *Service) CreateMaterial(ctx context.Context, input CreateMaterialInput) (MaterialRecord, error) {
	if input.MaterialName == "" {
		return MaterialRecord{}, &ValidationError{Field: "material_name", Reason: "required"}
	}
	if input.SheetsPerUnit <= 0 {
		return MaterialRecord{}, &ValidationError{Field: "sheets_per_unit", Reason: "must be greater than zero"}
	}
	if input.ThresholdSheets < 0 {
		return MaterialRecord{}, &ValidationError{Field: "threshold_sheets", Reason: "must not be negative"}
	}
	if input.UnitCost.IsNegative() {
		return MaterialRecord{}, &ValidationError{Field: "unit_cost", Reason: "must not be negative"}
	}
	openingSheets, err := ToSheets(input.InitialReams, input.InitialSheets, input.SheetsPerUnit)
	if err != nil {
		return MaterialRecord{}, err
	}

	now := time.Now().UTC()
	record := MaterialRecord{
		ID:                 uuid.New().String(),
		MaterialName:       input.MaterialName,
		Category:           input.Category,
		PaperSize:          input.PaperSize,
		PaperType:          input.PaperType,
		Grammage:           input.Grammage,
		SheetsPerUnit:      input.SheetsPerUnit,
		CurrentStockSheets: openingSheets,
		UnitCost:           input.UnitCost,
		ThresholdSheets:    input.ThresholdSheets,
		ReorderQuantity:    input.ReorderQuantity,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertMaterial(ctx, record); err != nil {
			return err
		}
		if openingSheets > 0 {
			movement := StockMovement{
				MaterialID:      record.ID,
				Type:            MovementTypeAdjustment,
				SubType:         "opening_balance",
				QuantitySheets:  openingSheets,
				UnitPriceAtTime: record.UnitCost,
				TotalCost:       record.UnitCost.Mul(decimal.NewFromInt(openingSheets)),
				ActorID:         input.ActorID,
				CreatedAt:       now,
			}
			if _, err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return MaterialRecord{}, err
	}

	s.recordAudit(ctx, input.ActorID, "inventory:create", record.ID, map[string]any{
		"material_name":  record.MaterialName,
		"opening_sheets": openingSheets,
	})
	return record, nil
}

// ApplyAdjustment applies a purchase/usage/waste/correction to a material and
// appends exactly one StockMovement in the same transaction. Contention on the
// material row is retried a bounded number of times before surfacing ErrBusy.
func (s *Service) ApplyAdjustment(ctx context.Context, input AdjustmentInput) (MaterialRecord, StockMovement, error) {
	if input.MaterialID == "" {
		return MaterialRecord{}, StockMovement{}, &ValidationError{Field: "material_id", Reason: "required"}
	}
	if !input.Type.Valid() {
		return MaterialRecord{}, StockMovement{}, &ValidationError{Field: "type", Reason: "unknown movement type"}
	}
	if input.QuantitySheets <= 0 {
		return MaterialRecord{}, StockMovement{}, ErrInvalidQuantity
	}
	if input.Type == MovementTypePurchase {
		if input.PurchaseTotalCost == nil || input.PurchaseTotalCost.IsNegative() {
			return MaterialRecord{}, StockMovement{}, ErrMissingCostContext
		}
	}
	if input.Type == MovementTypeAdjustment && input.Reason == "" {
		return MaterialRecord{}, StockMovement{}, ErrMissingReason
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return MaterialRecord{}, StockMovement{}, ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}
		record, movement, err := s.applyOnce(ctx, input)
		if err == nil {
			return record, movement, nil
		}
		if !errors.Is(err, ErrBusy) {
			return MaterialRecord{}, StockMovement{}, err
		}
		lastErr = err
		s.logger.Warn("adjustment contention, retrying",
			slog.String("material_id", input.MaterialID),
			slog.Int("attempt", attempt+1))
	}
	return MaterialRecord{}, StockMovement{}, lastErr
}

func (s *Service) applyOnce(ctx context.Context, input AdjustmentInput) (MaterialRecord, StockMovement, error) {
	now := time.Now().UTC()
	var (
		record   MaterialRecord
		movement StockMovement
		before   Classification
		after    Classification
	)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		record, err = tx.GetMaterialForUpdate(ctx, input.MaterialID)
		if err != nil {
			return err
		}
		if record.IntegrityHold {
			return ErrIntegrityHold
		}

		// The ledger must replay to the current stock before every write.
		ledgerSum, err := tx.SumMovements(ctx, record.ID)
		if err != nil {
			return err
		}
		if ledgerSum != record.CurrentStockSheets {
			if holdErr := tx.SetIntegrityHold(ctx, record.ID, true); holdErr != nil {
				return holdErr
			}
			s.logger.Error("ledger out of balance, halting writes",
				slog.String("material_id", record.ID),
				slog.Int64("ledger_sum", ledgerSum),
				slog.Int64("current_stock", record.CurrentStockSheets))
			return fmt.Errorf("%w: ledger=%d stock=%d", ErrLedgerOutOfBalance, ledgerSum, record.CurrentStockSheets)
		}

		before = Classify(record.CurrentStockSheets, record.ThresholdSheets)

		signed := input.Type.Signed(input.QuantitySheets, input.Direction)
		newStock := record.CurrentStockSheets + signed
		if newStock < 0 {
			return ErrInsufficientStock
		}

		newCost := record.UnitCost
		unitPrice := record.UnitCost
		if input.Type == MovementTypePurchase {
			total := *input.PurchaseTotalCost
			newCost = weightedAverageCost(record.CurrentStockSheets, record.UnitCost, input.QuantitySheets, total)
			unitPrice = total.Div(decimal.NewFromInt(input.QuantitySheets))
		}

		subType := input.SubType
		if input.Type == MovementTypeAdjustment && subType == "" {
			subType = input.Reason
		}

		movement = StockMovement{
			MaterialID:      record.ID,
			Type:            input.Type,
			SubType:         subType,
			QuantitySheets:  signed,
			UnitPriceAtTime: unitPrice,
			TotalCost:       unitPrice.Mul(decimal.NewFromInt(signed)),
			Notes:           input.Notes,
			ActorID:         input.ActorID,
			CreatedAt:       now,
		}
		if input.Type == MovementTypePurchase {
			movement.TotalCost = *input.PurchaseTotalCost
		}

		record.CurrentStockSheets = newStock
		record.UnitCost = newCost
		record.UpdatedAt = now
		if err := tx.UpdateStockAndCost(ctx, record.ID, newStock, newCost, now); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id

		after = Classify(newStock, record.ThresholdSheets)
		return nil
	})
	if err != nil {
		return MaterialRecord{}, StockMovement{}, err
	}

	if s.metrics != nil {
		s.metrics.MovementRecorded(string(input.Type))
	}
	s.recordAudit(ctx, input.ActorID, "inventory:"+string(input.Type), record.ID, map[string]any{
		"quantity_sheets": movement.QuantitySheets,
		"sub_type":        movement.SubType,
		"unit_cost":       record.UnitCost.String(),
	})

	if crossedInto(before, after) {
		if s.metrics != nil {
			s.metrics.AlertTransition(string(after.Status))
		}
		s.publishLowStock(ctx, record, after)
	}
	return record, movement, nil
}

// weightedAverageCost blends the existing cost basis with an incoming purchase.
// Exact decimal arithmetic: unit cost compounds across the item's lifetime.
func weightedAverageCost(currentStock int64, currentCost decimal.Decimal, purchaseQty int64, purchaseTotal decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(purchaseQty)
	if currentStock <= 0 {
		return purchaseTotal.Div(qty)
	}
	stock := decimal.NewFromInt(currentStock)
	return stock.Mul(currentCost).Add(purchaseTotal).Div(stock.Add(qty))
}

// GetMaterial returns a material record by id.
func (s *Service) GetMaterial(ctx context.Context, id string) (MaterialRecord, error) {
	if id == "" {
		return MaterialRecord{}, &ValidationError{Field: "material_id", Reason: "required"}
	}
	return s.repo.GetMaterial(ctx, id)
}

// ListMaterials lists material records.
func (s *Service) ListMaterials(ctx context.Context, filter MaterialFilter) ([]MaterialRecord, error) {
	return s.repo.ListMaterials(ctx, filter)
}

// DeactivateMaterial logically deletes a material. Records with movement
// history are never removed; inactive materials keep history but stop alerting.
func (s *Service) DeactivateMaterial(ctx context.Context, id string, actorID int64) error {
	if id == "" {
		return &ValidationError{Field: "material_id", Reason: "required"}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetMaterialForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.SetActive(ctx, id, false)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "inventory:deactivate", id, nil)
	return nil
}

// ListLowStock classifies active materials and returns those at or below
// their threshold. Materials without a configured threshold never appear.
func (s *Service) ListLowStock(ctx context.Context) ([]LowStockEntry, error) {
	materials, err := s.repo.ListMaterials(ctx, MaterialFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	entries := []LowStockEntry{}
	for _, m := range materials {
		c := Classify(m.CurrentStockSheets, m.ThresholdSheets)
		if c.Status == StockStatusHealthy {
			continue
		}
		entries = append(entries, LowStockEntry{
			Material:       m,
			Classification: c,
			Display:        ToDisplay(m.CurrentStockSheets, m.SheetsPerUnit),
		})
	}
	return entries, nil
}

// Reconcile replays the movement ledger for a material and verifies it sums to
// the current stock. A mismatch places the record under integrity hold; a
// clean replay releases any existing hold.
func (s *Service) Reconcile(ctx context.Context, materialID string) error {
	if materialID == "" {
		return &ValidationError{Field: "material_id", Reason: "required"}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetMaterialForUpdate(ctx, materialID)
		if err != nil {
			return err
		}
		ledgerSum, err := tx.SumMovements(ctx, materialID)
		if err != nil {
			return err
		}
		if ledgerSum != record.CurrentStockSheets {
			if holdErr := tx.SetIntegrityHold(ctx, materialID, true); holdErr != nil {
				return holdErr
			}
			s.logger.Error("reconciliation failed",
				slog.String("material_id", materialID),
				slog.Int64("ledger_sum", ledgerSum),
				slog.Int64("current_stock", record.CurrentStockSheets))
			return fmt.Errorf("%w: ledger=%d stock=%d", ErrLedgerOutOfBalance, ledgerSum, record.CurrentStockSheets)
		}
		if record.IntegrityHold {
			return tx.SetIntegrityHold(ctx, materialID, false)
		}
		return nil
	})
}

func (s *Service) publishLowStock(ctx context.Context, record MaterialRecord, c Classification) {
	if s.events == nil {
		return
	}
	evt := LowStockCrossedEvent{
		MaterialID:         record.ID,
		MaterialName:       record.MaterialName,
		Status:             c.Status,
		Percentage:         c.Percentage,
		CurrentStockSheets: record.CurrentStockSheets,
		ThresholdSheets:    record.ThresholdSheets,
		ReorderQuantity:    record.ReorderQuantity,
		OccurredAt:         time.Now().UTC(),
	}
	if err := s.events.PublishLowStockCrossed(ctx, evt); err != nil {
		s.logger.Error("publish low stock event", slog.Any("error", err),
			slog.String("material_id", record.ID))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "material",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err), slog.String("entity_id", entityID))
	}
}
