package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"libris-backend/internal/ledger"
	"libris-backend/internal/logger"
	"libris-backend/internal/security"
	"libris-backend/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}

// writeError maps a service/ledger failure onto a transport status. Every
// distinct error kind keeps its own status so clients can tell the
// precondition failures apart.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrBookNotFound),
		errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrLoanNotFound),
		errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrLoanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrBookUnavailable),
		errors.Is(err, ledger.ErrAlreadyReturned),
		errors.Is(err, ledger.ErrLoanOverdue),
		errors.Is(err, ledger.ErrRenewalLimitReached),
		errors.Is(err, ledger.ErrLoanConflict),
		errors.Is(err, service.ErrISBNTaken),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrBookHasOpenLoans):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrUserIneligible),
		errors.Is(err, service.ErrAccountDisabled):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrExpiredToken),
		errors.Is(err, security.ErrWrongTokenType):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
