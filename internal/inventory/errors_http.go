package inventory

import (
	"errors"
	"net/http"

	"github.com/pressdesk/pressdesk/internal/platform/httpx"
	"github.com/pressdesk/pressdesk/internal/shared"
)

// RespondError maps inventory domain errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", err.Error(), vErr.Field)
	case errors.Is(err, ErrMaterialNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrMissingCostContext),
		errors.Is(err, ErrMissingReason):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		// Terminal: the caller must correct the quantity, not retry.
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrBusy):
		httpx.Problem(w, http.StatusConflict, "Busy", "material record is contended, retry the request")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrIntegrityHold), errors.Is(err, ErrLedgerOutOfBalance):
		httpx.Problem(w, http.StatusServiceUnavailable, "Integrity Hold", "material ledger requires manual audit")
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
