package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pliu/engihub/internal/apperr"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Errors outside the taxonomy are
// logged and reported without detail. An aborted transaction keeps its code
// so clients know nothing was applied, but its cause stays in the log.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Code == apperr.CodeTransactionAborted {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		body := errorBody{Error: "INTERNAL", Message: "internal server error"}
		if e != nil {
			body = errorBody{Error: string(e.Code), Message: "operation rolled back"}
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, apperr.HTTPStatus(err), errorBody{Error: string(e.Code), Message: e.Message})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.InvalidInput("malformed request body")
	}
	return nil
}

// orEmpty keeps empty results as [] rather than null on the wire.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
