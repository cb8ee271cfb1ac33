package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pressdesk/pressdesk/internal/inventory"
	"github.com/pressdesk/pressdesk/internal/platform/httpx"
)

// Handler serves report downloads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory.xlsx", h.handleInventoryXLSX)
}

func (h *Handler) handleInventoryXLSX(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var dr inventory.DateRange
	var err error
	if fromStr := q.Get("from"); fromStr != "" {
		if dr.From, err = time.Parse("2006-01-02", fromStr); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from: expected YYYY-MM-DD")
			return
		}
	}
	if toStr := q.Get("to"); toStr != "" {
		if dr.To, err = time.Parse("2006-01-02", toStr); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to: expected YYYY-MM-DD")
			return
		}
		dr.To = dr.To.Add(24*time.Hour - time.Nanosecond)
	}

	report, err := h.service.InventoryReport(r.Context(), dr)
	if err != nil {
		h.logger.Error("build inventory report", slog.Any("error", err))
		inventory.RespondError(w, err)
		return
	}
	workbook, err := BuildWorkbook(report)
	if err != nil {
		h.logger.Error("render inventory workbook", slog.Any("error", err))
		inventory.RespondError(w, err)
		return
	}
	defer func() { _ = workbook.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory-report.xlsx"`)
	if err := workbook.Write(w); err != nil {
		h.logger.Error("write inventory workbook", slog.Any("error", err))
	}
}
