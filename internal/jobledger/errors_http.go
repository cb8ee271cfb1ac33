package jobledger

import (
	"errors"
	"net/http"

	"github.com/pressdesk/pressdesk/internal/platform/httpx"
)

func respondError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", err.Error(), vErr.Field)
	case errors.Is(err, ErrJobNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
