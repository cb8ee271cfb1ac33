package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pressdesk/pressdesk/internal/platform/httpx"
	"github.com/pressdesk/pressdesk/internal/shared"
)

// Handler wires JSON endpoints for the inventory module. Authentication is an
// external collaborator; the actor id arrives via the X-Actor-ID header.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validate:    validator.New(),
		idempotency: idempotency,
	}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/low-stock", h.handleLowStock)
	r.Get("/usage-trends", h.handleUsageTrends)
	r.Get("/waste-costs", h.handleWasteCosts)
	r.Get("/cost-analysis", h.handleCostAnalysis)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDeactivate)
	r.Post("/{id}/adjustments", h.handleAdjustment)
	r.Get("/{id}/movements", h.handleMovements)
	r.Post("/{id}/reconcile", h.handleReconcile)
}

type createMaterialRequest struct {
	MaterialName    string          `json:"material_name" validate:"required"`
	Category        string          `json:"category"`
	PaperSize       string          `json:"paper_size"`
	PaperType       string          `json:"paper_type"`
	Grammage        string          `json:"grammage"`
	SheetsPerUnit   int64           `json:"sheets_per_unit" validate:"required,gt=0"`
	InitialReams    int64           `json:"initial_reams" validate:"gte=0"`
	InitialSheets   int64           `json:"initial_sheets" validate:"gte=0"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ThresholdSheets int64           `json:"threshold_sheets" validate:"gte=0"`
	ReorderQuantity int64           `json:"reorder_quantity" validate:"gte=0"`
}

type adjustmentRequest struct {
	Type              string           `json:"type" validate:"required,oneof=purchase usage waste adjustment"`
	QuantitySheets    int64            `json:"quantity_sheets" validate:"required,gt=0"`
	PurchaseTotalCost *decimal.Decimal `json:"purchase_total_cost,omitempty"`
	Direction         int              `json:"direction,omitempty" validate:"omitempty,oneof=-1 1"`
	SubType           string           `json:"sub_type"`
	Reason            string           `json:"reason"`
	Notes             string           `json:"notes"`
}

type materialView struct {
	ID                 string          `json:"id"`
	MaterialName       string          `json:"material_name"`
	Category           string          `json:"category,omitempty"`
	PaperSize          string          `json:"paper_size,omitempty"`
	PaperType          string          `json:"paper_type,omitempty"`
	Grammage           string          `json:"grammage,omitempty"`
	SheetsPerUnit      int64           `json:"sheets_per_unit"`
	CurrentStockSheets int64           `json:"current_stock_sheets"`
	DisplayStock       DisplayStock    `json:"display_stock"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	ThresholdSheets    int64           `json:"threshold_sheets"`
	ReorderQuantity    int64           `json:"reorder_quantity,omitempty"`
	StockStatus        StockStatus     `json:"stock_status"`
	StockPercentage    int64           `json:"stock_percentage"`
	IsActive           bool            `json:"is_active"`
	IntegrityHold      bool            `json:"integrity_hold,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type movementView struct {
	ID              int64           `json:"id"`
	MaterialID      string          `json:"material_id"`
	Type            MovementType    `json:"type"`
	SubType         string          `json:"sub_type,omitempty"`
	QuantitySheets  int64           `json:"quantity_sheets"`
	UnitPriceAtTime decimal.Decimal `json:"unit_price_at_time"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Notes           string          `json:"notes,omitempty"`
	ActorID         int64           `json:"actor_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toMaterialView(m MaterialRecord) materialView {
	c := Classify(m.CurrentStockSheets, m.ThresholdSheets)
	return materialView{
		ID:                 m.ID,
		MaterialName:       m.MaterialName,
		Category:           m.Category,
		PaperSize:          m.PaperSize,
		PaperType:          m.PaperType,
		Grammage:           m.Grammage,
		SheetsPerUnit:      m.SheetsPerUnit,
		CurrentStockSheets: m.CurrentStockSheets,
		DisplayStock:       ToDisplay(m.CurrentStockSheets, m.SheetsPerUnit),
		UnitCost:           m.UnitCost,
		ThresholdSheets:    m.ThresholdSheets,
		ReorderQuantity:    m.ReorderQuantity,
		StockStatus:        c.Status,
		StockPercentage:    c.Percentage,
		IsActive:           m.IsActive,
		IntegrityHold:      m.IntegrityHold,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toMovementView(mv StockMovement) movementView {
	return movementView{
		ID:              mv.ID,
		MaterialID:      mv.MaterialID,
		Type:            mv.Type,
		SubType:         mv.SubType,
		QuantitySheets:  mv.QuantitySheets,
		UnitPriceAtTime: mv.UnitPriceAtTime,
		TotalCost:       mv.TotalCost,
		Notes:           mv.Notes,
		ActorID:         mv.ActorID,
		CreatedAt:       mv.CreatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.service.CreateMaterial(r.Context(), CreateMaterialInput{
		MaterialName:    req.MaterialName,
		Category:        req.Category,
		PaperSize:       req.PaperSize,
		PaperType:       req.PaperType,
		Grammage:        req.Grammage,
		SheetsPerUnit:   req.SheetsPerUnit,
		InitialReams:    req.InitialReams,
		InitialSheets:   req.InitialSheets,
		UnitCost:        req.UnitCost,
		ThresholdSheets: req.ThresholdSheets,
		ReorderQuantity: req.ReorderQuantity,
		ActorID:         actorID(r),
	})
	if err != nil {
		h.logger.Error("create material", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMaterialView(record))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := MaterialFilter{
		Category:   r.URL.Query().Get("category"),
		ActiveOnly: r.URL.Query().Get("include_inactive") != "true",
	}
	materials, err := h.service.ListMaterials(r.Context(), filter)
	if err != nil {
		h.logger.Error("list materials", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	views := make([]materialView, 0, len(materials))
	for _, m := range materials {
		views = append(views, toMaterialView(m))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetMaterial(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMaterialView(record))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateMaterial(r.Context(), chi.URLParam(r, "id"), actorID(r)); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	materialID := chi.URLParam(r, "id")

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "inventory"); err != nil {
			RespondError(w, err)
			return
		}
	}

	record, movement, err := h.service.ApplyAdjustment(r.Context(), AdjustmentInput{
		MaterialID:        materialID,
		Type:              MovementType(req.Type),
		QuantitySheets:    req.QuantitySheets,
		PurchaseTotalCost: req.PurchaseTotalCost,
		Direction:         req.Direction,
		SubType:           req.SubType,
		Reason:            req.Reason,
		Notes:             req.Notes,
		ActorID:           actorID(r),
	})
	if err != nil {
		if idemKey != "" && h.idempotency != nil {
			_ = h.idempotency.Delete(r.Context(), idemKey)
		}
		h.logger.Error("apply adjustment", slog.Any("error", err),
			slog.String("material_id", materialID))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"material": toMaterialView(record),
		"movement": toMovementView(movement),
	})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{MaterialID: chi.URLParam(r, "id")}
	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		filter.Type = MovementType(t)
	}
	var err error
	if filter.From, filter.To, err = parseRange(q.Get("from"), q.Get("to")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	views := make([]movementView, 0, len(movements))
	for _, mv := range movements {
		views = append(views, toMovementView(mv))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListLowStock(r.Context())
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	type lowStockView struct {
		Material        materialView `json:"material"`
		StockStatus     StockStatus  `json:"stock_status"`
		StockPercentage int64        `json:"stock_percentage"`
		DisplayStock    DisplayStock `json:"display_stock"`
	}
	views := make([]lowStockView, 0, len(entries))
	for _, e := range entries {
		views = append(views, lowStockView{
			Material:        toMaterialView(e.Material),
			StockStatus:     e.Classification.Status,
			StockPercentage: e.Classification.Percentage,
			DisplayStock:    e.Display,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) handleUsageTrends(w http.ResponseWriter, r *http.Request) {
	h.respondConsumption(w, r, h.service.UsageTrends)
}

func (h *Handler) handleWasteCosts(w http.ResponseWriter, r *http.Request) {
	h.respondConsumption(w, r, h.service.WasteCosts)
}

func (h *Handler) respondConsumption(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, dr DateRange) ([]MaterialUsage, error)) {
	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rowsOut, err := query(r.Context(), DateRange{From: from, To: to})
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rowsOut)
}

func (h *Handler) handleCostAnalysis(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	analysis, err := h.service.CostAnalysis(r.Context(), DateRange{From: from, To: to})
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_inventory_value": analysis.TotalInventoryValue,
		"usage_costs":           analysis.UsageCosts,
		"waste_costs":           analysis.WasteCosts,
	})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Reconcile(r.Context(), id); err != nil {
		h.logger.Error("reconcile", slog.Any("error", err), slog.String("material_id", id))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "balanced"})
}

// parseRange parses optional from/to date parameters; "to" is extended to the
// end of its day so a single-day range covers the full day.
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return from, to, &ValidationError{Field: "from", Reason: "expected YYYY-MM-DD"}
		}
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return from, to, &ValidationError{Field: "to", Reason: "expected YYYY-MM-DD"}
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
