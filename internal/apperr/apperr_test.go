package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := InsufficientFunds("balance %d is below %d", 0, 1)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Error("expected codes to differ")
	}

	wrapped := fmt.Errorf("create task: %w", err)
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Error("expected match through fmt.Errorf wrapping")
	}
}

func TestAbortedUnwraps(t *testing.T) {
	err := Aborted(sql.ErrConnDone)
	if !errors.Is(err, ErrTransactionAborted) {
		t.Error("expected transaction aborted")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Error("expected cause to be reachable")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInsufficientFunds, http.StatusPaymentRequired},
		{ErrInvalidState, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrUnauthorized, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrTransactionAborted, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
