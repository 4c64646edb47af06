package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/procurehub/procurehub/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Unknown errors are logged
// and reported as 500 without leaking their message.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr ValidationError
	switch {
	case errors.As(err, &verr):
		Fail(w, http.StatusBadRequest, verr.Error(), verr.Fields)
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, shared.ErrDuplicate):
		Fail(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, shared.ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, shared.ErrInvalidState):
		Fail(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error(), nil)
	default:
		if logger != nil {
			logger.Error("unhandled error", slog.Any("error", err))
		}
		Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil)
	}
}
