package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/repository"
	"wisefido-discharge-board/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// statusFor HTTP status of a service error
func statusFor(err error) int {
	switch {
	case errors.Is(err, discharge.ErrJustificationRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, discharge.ErrRequestNotPending),
		errors.Is(err, repository.ErrPendingRequestExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		writeJSON(w, status, Fail("internal error"))
		return
	}
	writeJSON(w, status, Fail(err.Error()))
}
