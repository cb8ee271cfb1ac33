package jobledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pressdesk/pressdesk/internal/platform/httpx"
)

// Handler wires JSON endpoints for job material edit history.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs jobledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers jobledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{jobID}/material-edits", h.handleRecordEdit)
	r.Get("/{jobID}/material-edits", h.handleListEdits)
}

type recordEditRequest struct {
	EditReason        string             `json:"edit_reason" validate:"required,min=5"`
	PreviousMaterials []MaterialSnapshot `json:"previous_materials"`
	NewMaterials      []MaterialSnapshot `json:"new_materials"`
}

type editEntryView struct {
	ID         int64             `json:"id"`
	JobID      string            `json:"job_id"`
	EditorID   int64             `json:"editor_id"`
	EditedAt   time.Time         `json:"edited_at"`
	EditReason string            `json:"edit_reason"`
	ChangeType ChangeType        `json:"change_type"`
	Previous   *MaterialSnapshot `json:"previous,omitempty"`
	New        *MaterialSnapshot `json:"new,omitempty"`
}

func toEntryView(e EditEntry) editEntryView {
	return editEntryView{
		ID:         e.ID,
		JobID:      e.JobID,
		EditorID:   e.EditorID,
		EditedAt:   e.EditedAt,
		EditReason: e.EditReason,
		ChangeType: e.ChangeType,
		Previous:   e.Previous,
		New:        e.New,
	}
}

func (h *Handler) handleRecordEdit(w http.ResponseWriter, r *http.Request) {
	var req recordEditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", err.Error(), "edit_reason")
		return
	}
	jobID := chi.URLParam(r, "jobID")
	entries, err := h.service.RecordEdit(r.Context(), jobID, editorID(r), req.EditReason, req.PreviousMaterials, req.NewMaterials)
	if err != nil {
		h.logger.Error("record job material edit", slog.Any("error", err), slog.String("job_id", jobID))
		respondError(w, err)
		return
	}
	views := make([]editEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toEntryView(e))
	}
	httpx.JSON(w, http.StatusCreated, views)
}

func (h *Handler) handleListEdits(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}
	entries, err := h.service.ListEdits(r.Context(), jobID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]editEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toEntryView(e))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func editorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
