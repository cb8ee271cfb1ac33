package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypePurchase represents incoming stock bought from a supplier.
	MovementTypePurchase MovementType = "purchase"
	// MovementTypeUsage represents stock consumed by production.
	MovementTypeUsage MovementType = "usage"
	// MovementTypeWaste represents spoiled or discarded stock.
	MovementTypeWaste MovementType = "waste"
	// MovementTypeAdjustment reconciles recorded stock to a physical count.
	MovementTypeAdjustment MovementType = "adjustment"
)

// StockStatus classifies a material's stock level against its threshold.
type StockStatus string

const (
	StockStatusCritical StockStatus = "CRITICAL"
	StockStatusLow      StockStatus = "LOW"
	StockStatusHealthy  StockStatus = "HEALTHY"
)

// MaterialRecord is the single mutable inventory entity. Stock and unit cost
// change only through the adjustment engine, never by direct field edits.
type MaterialRecord struct {
	ID                 string
	MaterialName       string
	Category           string
	PaperSize          string
	PaperType          string
	Grammage           string
	SheetsPerUnit      int64
	CurrentStockSheets int64
	UnitCost           decimal.Decimal
	ThresholdSheets    int64
	ReorderQuantity    int64
	IsActive           bool
	IntegrityHold      bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StockMovement is one signed, permanently logged change to a material's stock.
type StockMovement struct {
	ID              int64
	MaterialID      string
	Type            MovementType
	SubType         string
	QuantitySheets  int64
	UnitPriceAtTime decimal.Decimal
	TotalCost       decimal.Decimal
	Notes           string
	ActorID         int64
	CreatedAt       time.Time
}

// DisplayStock is the reams+sheets view handed to presentation layers.
// It is derived from the sheet count and never stored.
type DisplayStock struct {
	Reams  int64 `json:"reams"`
	Sheets int64 `json:"sheets"`
}

// Classification pairs the derived status with the stock percentage.
type Classification struct {
	Status     StockStatus
	Percentage int64
}

// CreateMaterialInput describes a new inventory item.
type CreateMaterialInput struct {
	MaterialName    string
	Category        string
	PaperSize       string
	PaperType       string
	Grammage        string
	SheetsPerUnit   int64
	InitialReams    int64
	InitialSheets   int64
	UnitCost        decimal.Decimal
	ThresholdSheets int64
	ReorderQuantity int64
	ActorID         int64
}

// AdjustmentInput describes a stock adjustment request. QuantitySheets is
// always positive; the engine derives the sign from Type and Direction.
type AdjustmentInput struct {
	MaterialID        string
	Type              MovementType
	QuantitySheets    int64
	PurchaseTotalCost *decimal.Decimal
	// Direction applies to corrections only: +1 adds stock, -1 removes it.
	Direction int
	SubType   string
	Reason    string
	Notes     string
	ActorID   int64
}

// MaterialFilter narrows material listings.
type MaterialFilter struct {
	Category   string
	ActiveOnly bool
}

// MovementFilter narrows movement ledger queries.
type MovementFilter struct {
	MaterialID string
	Type       MovementType
	From       time.Time
	To         time.Time
	Limit      int
}

// MaterialUsage aggregates usage or waste per material over a date range.
type MaterialUsage struct {
	MaterialID   string
	MaterialName string
	TotalSheets  int64
	TotalCost    decimal.Decimal
}

// CostAnalysis summarises inventory value and consumption costs for a range.
type CostAnalysis struct {
	TotalInventoryValue decimal.Decimal
	UsageCosts          decimal.Decimal
	WasteCosts          decimal.Decimal
}

// LowStockEntry is one row of the low-stock listing.
type LowStockEntry struct {
	Material       MaterialRecord
	Classification Classification
	Display        DisplayStock
}

var (
	// ErrMaterialNotFound indicates an unknown material id.
	ErrMaterialNotFound = errors.New("inventory: material not found")
	// ErrInvalidQuantity indicates a non-positive sheet quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be a positive sheet count")
	// ErrInsufficientStock is terminal: the caller must correct the quantity.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrMissingCostContext indicates a purchase without a total cost.
	ErrMissingCostContext = errors.New("inventory: purchase requires total cost")
	// ErrMissingReason indicates a correction without a reason.
	ErrMissingReason = errors.New("inventory: correction requires a reason")
	// ErrBusy indicates write contention on the material row; safe to retry.
	ErrBusy = errors.New("inventory: material record busy")
	// ErrIntegrityHold blocks writes to a record pending manual audit.
	ErrIntegrityHold = errors.New("inventory: material is under integrity hold")
	// ErrLedgerOutOfBalance indicates the movement ledger no longer replays to
	// the current stock. Treated as a fatal integrity bug, never user error.
	ErrLedgerOutOfBalance = errors.New("inventory: movement ledger out of balance")
)

// ValidationError carries the field at fault so the boundary can report it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("inventory: invalid %s: %s", e.Field, e.Reason)
}

// Signed returns the movement quantity with the sign the ledger stores:
// positive for purchases and corrections-in, negative for usage, waste and
// corrections-out.
func (m MovementType) Signed(quantity int64, direction int) int64 {
	switch m {
	case MovementTypePurchase:
		return quantity
	case MovementTypeUsage, MovementTypeWaste:
		return -quantity
	case MovementTypeAdjustment:
		if direction < 0 {
			return -quantity
		}
		return quantity
	}
	return quantity
}

// Valid reports whether the movement type is one the engine accepts.
func (m MovementType) Valid() bool {
	switch m {
	case MovementTypePurchase, MovementTypeUsage, MovementTypeWaste, MovementTypeAdjustment:
		return true
	}
	return false
}
