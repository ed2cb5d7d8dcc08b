package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-service/internal/config"
	"payment-service/internal/domain"
	"payment-service/internal/errors"
)

// CreateTransactionRequest is the caller-facing creation payload. The user id
// comes separately from the verified principal, never from the body.
type CreateTransactionRequest struct {
	AccountID            string
	BeneficiaryID        *uuid.UUID
	Type                 domain.TransactionType
	Amount               decimal.Decimal
	Description          string
	DestinationAccountID string
	DeviceType           string
	DeviceID             string
	IPAddress            string
	UserAgent            string
	Location             string
}

// Validator runs the business-rule checks in order, short-circuiting on the
// first failure. Reads the store for the daily counter, writes nothing.
type Validator struct {
	limits config.LimitsConfig
	repo   domain.TransactionRepository
	logger *slog.Logger
}

func NewValidator(limits config.LimitsConfig, repo domain.TransactionRepository, logger *slog.Logger) *Validator {
	return &Validator{
		limits: limits,
		repo:   repo,
		logger: logger,
	}
}

func (v *Validator) Validate(req *CreateTransactionRequest, userID uuid.UUID) error {
	if err := v.validateAmount(req.Amount); err != nil {
		return err
	}
	if err := v.validateType(req); err != nil {
		return err
	}
	if err := v.validateLimits(req); err != nil {
		return err
	}
	return v.validateDailyCount(userID)
}

func (v *Validator) validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.NewAppError(errors.ValidationFailed, "transaction amount must be greater than zero")
	}
	if amount.LessThan(v.limits.MinAmount) {
		return errors.NewAppErrorf(errors.ValidationFailed,
			"transaction amount must be at least %s", v.limits.MinAmount)
	}
	return nil
}

func (v *Validator) validateType(req *CreateTransactionRequest) error {
	if !req.Type.IsValid() {
		return errors.NewAppErrorf(errors.ValidationFailed, "unknown transaction type %q", req.Type)
	}
	if req.AccountID == "" {
		return errors.NewAppError(errors.ValidationFailed, "account id is required")
	}

	switch req.Type {
	case domain.TypeTransfer:
		if req.BeneficiaryID == nil {
			return errors.NewAppError(errors.ValidationFailed, "beneficiary id is required for transfers")
		}
		if req.DestinationAccountID == "" {
			return errors.NewAppError(errors.ValidationFailed, "destination account id is required for transfers")
		}
	case domain.TypeBillPayment:
		if req.Description == "" {
			return errors.NewAppError(errors.ValidationFailed, "description is required for bill payments")
		}
	}
	return nil
}

func (v *Validator) validateLimits(req *CreateTransactionRequest) error {
	switch req.Type {
	case domain.TypeTransfer:
		if req.Amount.GreaterThan(v.limits.MaxTransferAmount) {
			return errors.NewAppErrorf(errors.ValidationFailed,
				"transfer amount cannot exceed %s", v.limits.MaxTransferAmount)
		}
	case domain.TypeWithdrawal:
		if req.Amount.GreaterThan(v.limits.MaxWithdrawalAmount) {
			return errors.NewAppErrorf(errors.ValidationFailed,
				"withdrawal amount cannot exceed %s", v.limits.MaxWithdrawalAmount)
		}
	}
	return nil
}

func (v *Validator) validateDailyCount(userID uuid.UUID) error {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	count, err := v.repo.CountCompletedSince(userID, startOfDay)
	if err != nil {
		return err
	}
	if count >= int64(v.limits.MaxDailyTransactions) {
		v.logger.Warn("daily transaction limit reached", "user_id", userID, "count", count)
		return errors.NewAppErrorf(errors.ValidationFailed,
			"daily transaction limit of %d exceeded", v.limits.MaxDailyTransactions)
	}
	return nil
}
