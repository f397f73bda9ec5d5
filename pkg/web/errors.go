package web

import (
	"encoding/json"
	"net/http"

	"github.com/divvun/pahkat-reposrv/pkg/errors"
	"github.com/divvun/pahkat-reposrv/pkg/index/status"
)

// apiError is the structured error body carried by every failure
// response.
type apiError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeError(w http.ResponseWriter, code int, id, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: apiError{ID: id, Message: message}})
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, status.ErrRepoNotFound), errors.Is(err, status.ErrPackageNotFound):
		writeError(w, http.StatusNotFound, "not_found", errMessage(err))
	case errors.Is(err, status.ErrPackageExists):
		writeError(w, http.StatusConflict, "conflict", errMessage(err))
	case errors.Is(err, status.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid_request", errMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, "backend_error", errMessage(err))
	}
}

// errMessage surfaces the immediate cause along with the taxonomy label.
func errMessage(err error) string {
	msg := err.Error()
	var e *errors.Error
	if errors.As(err, &e) {
		if cause := e.Unwrap(); cause != nil {
			msg += ": " + cause.Error()
		}
	}
	return msg
}
