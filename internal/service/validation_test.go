package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-service/internal/config"
	"payment-service/internal/domain"
	"payment-service/internal/errors"
	"payment-service/internal/repository"
)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MinAmount:            decimal.RequireFromString("1.00"),
		MaxTransferAmount:    decimal.RequireFromString("50000.00"),
		MaxWithdrawalAmount:  decimal.RequireFromString("10000.00"),
		MaxDailyTransactions: 3,
	}
}

func newTestValidator(repo domain.TransactionRepository) *Validator {
	return NewValidator(testLimits(), repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validTransferRequest() *CreateTransactionRequest {
	beneficiary := uuid.New()
	return &CreateTransactionRequest{
		AccountID:            "ACC-1",
		BeneficiaryID:        &beneficiary,
		Type:                 domain.TypeTransfer,
		Amount:               decimal.RequireFromString("500.00"),
		DestinationAccountID: "ACC-2",
	}
}

func assertValidationError(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok, "expected AppError, got %T", err)
	assert.Equal(t, errors.ValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Message, contains)
}

func TestValidateRejectsNonPositiveAmount(t *testing.T) {
	v := newTestValidator(repository.NewMemoryTransactionRepository())

	req := validTransferRequest()
	req.Amount = decimal.Zero
	assertValidationError(t, v.Validate(req, uuid.New()), "greater than zero")

	req.Amount = decimal.RequireFromString("-5.00")
	assertValidationError(t, v.Validate(req, uuid.New()), "greater than zero")
}

func TestValidateRejectsBelowMinimum(t *testing.T) {
	v := newTestValidator(repository.NewMemoryTransactionRepository())

	req := validTransferRequest()
	req.Amount = decimal.RequireFromString("0.50")
	assertValidationError(t, v.Validate(req, uuid.New()), "at least")
}

func TestValidateTransferRequiresBeneficiaryAndDestination(t *testing.T) {
	v := newTestValidator(repository.NewMemoryTransactionRepository())

	req := validTransferRequest()
	req.BeneficiaryID = nil
	assertValidationError(t, v.Validate(req, uuid.New()), "beneficiary")

	req = validTransferRequest()
	req.DestinationAccountID = ""
	assertValidationError(t, v.Validate(req, uuid.New()), "destination account")
}

func TestValidateBillPaymentRequiresDescription(t *testing.T) {
	v := newTestValidator(repository.NewMemoryTransactionRepository())

	req := &CreateTransactionRequest{
		AccountID: "ACC-1",
		Type:      domain.TypeBillPayment,
		Amount:    decimal.RequireFromString("20.00"),
	}
	assertValidationError(t, v.Validate(req, uuid.New()), "description")

	req.Description = "electricity"
	assert.NoError(t, v.Validate(req, uuid.New()))
}

func TestValidateCeilings(t *testing.T) {
	v := newTestValidator(repository.NewMemoryTransactionRepository())

	req := validTransferRequest()
	req.Amount = decimal.RequireFromString("50000.01")
	assertValidationError(t, v.Validate(req, uuid.New()), "transfer amount")

	withdrawal := &CreateTransactionRequest{
		AccountID: "ACC-1",
		Type:      domain.TypeWithdrawal,
		Amount:    decimal.RequireFromString("10000.01"),
	}
	assertValidationError(t, v.Validate(withdrawal, uuid.New()), "withdrawal amount")

	// deposits have no ceiling
	deposit := &CreateTransactionRequest{
		AccountID: "ACC-1",
		Type:      domain.TypeDeposit,
		Amount:    decimal.RequireFromString("1000000.00"),
	}
	assert.NoError(t, v.Validate(deposit, uuid.New()))
}

func TestValidateDailyCount(t *testing.T) {
	repo := repository.NewMemoryTransactionRepository()
	v := newTestValidator(repo)
	userID := uuid.New()

	// only COMPLETED transactions count toward the daily ceiling
	for i := 0; i < 3; i++ {
		tx := domain.NewTransaction(userID, "ACC-1", domain.TypeDeposit, decimal.RequireFromString("10.00"), decimal.Zero)
		require.NoError(t, repo.Create(tx))
		applied, err := repo.Transition(tx.ID, domain.StatusTransition{
			From: []domain.TransactionStatus{domain.StatusPending},
			To:   domain.StatusCompleted,
			At:   time.Now(),
		})
		require.NoError(t, err)
		require.True(t, applied)
	}

	req := &CreateTransactionRequest{
		AccountID: "ACC-1",
		Type:      domain.TypeDeposit,
		Amount:    decimal.RequireFromString("10.00"),
	}
	assertValidationError(t, v.Validate(req, userID), "daily transaction limit")

	// a different user is unaffected
	assert.NoError(t, v.Validate(req, uuid.New()))
}

func TestValidateChecksAmountBeforeType(t *testing.T) {
	v := newTestValidator(repository.NewMemoryTransactionRepository())

	// both amount and beneficiary are invalid; the amount check wins
	req := validTransferRequest()
	req.Amount = decimal.Zero
	req.BeneficiaryID = nil
	assertValidationError(t, v.Validate(req, uuid.New()), "greater than zero")
}
