package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
	"payment-service/internal/errors"
	"payment-service/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

type CreateTransactionRequest struct {
	AccountID            string `json:"account_id"`
	BeneficiaryID        string `json:"beneficiary_id,omitempty"`
	Type                 string `json:"type"`
	Amount               string `json:"amount"`
	Description          string `json:"description,omitempty"`
	DestinationAccountID string `json:"destination_account_id,omitempty"`
	DeviceType           string `json:"device_type,omitempty"`
	DeviceID             string `json:"device_id,omitempty"`
	Location             string `json:"location,omitempty"`
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, authErr := userIDFromRequest(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid amount format").WithDetails(err.Error()))
		return
	}

	var beneficiaryID *uuid.UUID
	if req.BeneficiaryID != "" {
		id, err := uuid.Parse(req.BeneficiaryID)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidInput, "invalid beneficiary_id format").WithDetails(err.Error()))
			return
		}
		beneficiaryID = &id
	}

	createReq := &service.CreateTransactionRequest{
		AccountID:            req.AccountID,
		BeneficiaryID:        beneficiaryID,
		Type:                 domain.TransactionType(req.Type),
		Amount:               amount,
		Description:          req.Description,
		DestinationAccountID: req.DestinationAccountID,
		DeviceType:           req.DeviceType,
		DeviceID:             req.DeviceID,
		IPAddress:            r.RemoteAddr,
		UserAgent:            r.UserAgent(),
		Location:             req.Location,
	}

	tx, err := h.transactionService.Create(r.Context(), createReq, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, authErr := userIDFromRequest(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id").WithDetails(err.Error()))
		return
	}

	tx, err := h.transactionService.GetByID(id, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	userID, authErr := userIDFromRequest(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	tx, err := h.transactionService.GetByReference(mux.Vars(r)["reference"], userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// List returns the caller's transactions, optionally narrowed by type, a
// created-at range (from/to, RFC 3339) and a free-text search over
// description and reference.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, authErr := userIDFromRequest(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	filter, filterErr := filterFromQuery(r)
	if filterErr != nil {
		writeError(w, filterErr)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	txs, err := h.transactionService.ListForUser(userID, filter, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, txs)
}

func filterFromQuery(r *http.Request) (domain.TransactionFilter, *errors.AppError) {
	var filter domain.TransactionFilter

	if v := r.URL.Query().Get("type"); v != "" {
		t := domain.TransactionType(v)
		if !t.IsValid() {
			return filter, errors.NewAppErrorf(errors.InvalidInput, "unknown transaction type %q", v)
		}
		filter.Type = t
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.NewAppError(errors.InvalidInput, "invalid from timestamp").WithDetails(err.Error())
		}
		filter.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.NewAppError(errors.InvalidInput, "invalid to timestamp").WithDetails(err.Error())
		}
		filter.To = &t
	}
	filter.Search = r.URL.Query().Get("search")

	return filter, nil
}

func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, authErr := userIDFromRequest(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	summary, err := h.transactionService.SummaryForUser(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
