package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"libris-backend/internal/service"
)

type LoanHandler struct {
	loanSvc service.LoanService
}

func NewLoanHandler(loanSvc service.LoanService) *LoanHandler {
	return &LoanHandler{loanSvc: loanSvc}
}

type borrowRequest struct {
	UserID int32 `json:"user_id"`
	BookID int32 `json:"book_id"`
	Days   int32 `json:"days"`
}

func (h *LoanHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.BookID <= 0 {
		writeBadRequest(w, "book_id is required")
		return
	}

	// Members may only borrow for themselves; staff may lend to anyone.
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}
	userID := req.UserID
	if !claims.Role.IsStaff() || userID == 0 {
		userID = claims.UserID
	}

	loan, err := h.loanSvc.Borrow(r.Context(), userID, req.BookID, req.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.loanSvc.Return(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *LoanHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.loanSvc.Renew(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.loanSvc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	// Members may only see their own loans.
	claims, _ := ClaimsFromContext(r.Context())
	if claims != nil && !claims.Role.IsStaff() && loan.UserID != claims.UserID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient permissions"})
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	userID := queryID(r, "user_id")
	bookID := queryID(r, "book_id")
	openOnly := r.URL.Query().Get("open") == "true"

	loans, total, err := h.loanSvc.List(r.Context(), userID, bookID, openOnly, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: loans, Total: total, Page: page})
}

func (h *LoanHandler) MyLoans(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}
	loans, err := h.loanSvc.ListUserLoans(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoanHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	loans, total, err := h.loanSvc.ListOverdue(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: loans, Total: total, Page: page})
}

func (h *LoanHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.loanSvc.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *LoanHandler) MarkFinePaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.loanSvc.MarkFinePaid(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LoanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.loanSvc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryID(r *http.Request, name string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 32)
	if err != nil || v <= 0 {
		return 0
	}
	return int32(v)
}
