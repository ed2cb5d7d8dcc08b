package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"payment-service/internal/domain"
	"payment-service/internal/errors"
	"payment-service/internal/service"
)

// AdminHandler exposes the operator-only transitions: cancel, reverse and a
// manual stale sweep.
type AdminHandler struct {
	transactionService *service.TransactionService
	staleThreshold     time.Duration
}

func NewAdminHandler(transactionService *service.TransactionService, staleThreshold time.Duration) *AdminHandler {
	return &AdminHandler{
		transactionService: transactionService,
		staleThreshold:     staleThreshold,
	}
}

func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errors.NewAppError(errors.Unauthorized, "admin role required"))
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id").WithDetails(err.Error()))
		return
	}

	if err := h.transactionService.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errors.NewAppError(errors.Unauthorized, "admin role required"))
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id").WithDetails(err.Error()))
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	reversal, err := h.transactionService.Reverse(r.Context(), id, body.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reversal)
}

// UpdateStatus forces a transaction into a new status. The move still runs
// through the transition table, so illegal jumps are rejected.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errors.NewAppError(errors.Unauthorized, "admin role required"))
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id").WithDetails(err.Error()))
		return
	}

	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	tx, err := h.transactionService.ForceStatus(r.Context(), id, domain.TransactionStatus(body.Status), body.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListPending returns transactions that have not reached a terminal status.
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errors.NewAppError(errors.Unauthorized, "admin role required"))
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	txs, err := h.transactionService.ListUnsettled(limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, txs)
}

func (h *AdminHandler) ProcessStale(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, errors.NewAppError(errors.Unauthorized, "admin role required"))
		return
	}

	swept, err := h.transactionService.SweepStale(r.Context(), h.staleThreshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"swept": swept})
}
