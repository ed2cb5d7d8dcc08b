package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "ZAR"

type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	UserID               uuid.UUID         `json:"user_id"`
	AccountID            string            `json:"account_id"`
	BeneficiaryID        *uuid.UUID        `json:"beneficiary_id,omitempty"`
	DestinationAccountID string            `json:"destination_account_id,omitempty"`
	Type                 TransactionType   `json:"type"`
	Status               TransactionStatus `json:"status"`
	Amount               decimal.Decimal   `json:"amount"`
	Fee                  decimal.Decimal   `json:"fee"`
	TotalAmount          decimal.Decimal   `json:"total_amount"`
	Currency             string            `json:"currency"`
	Description          string            `json:"description,omitempty"`
	Reference            string            `json:"reference"`
	BalanceBefore        *decimal.Decimal  `json:"balance_before,omitempty"`
	BalanceAfter         *decimal.Decimal  `json:"balance_after,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`
	ReversalOf           *uuid.UUID        `json:"reversal_of,omitempty"`
	DeviceType           string            `json:"device_type,omitempty"`
	DeviceID             string            `json:"device_id,omitempty"`
	IPAddress            string            `json:"ip_address,omitempty"`
	UserAgent            string            `json:"user_agent,omitempty"`
	Location             string            `json:"location,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	FailedAt             *time.Time        `json:"failed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// NewTransaction builds a PENDING transaction with derived fields computed.
// The reference is assigned here and never changes afterwards.
func NewTransaction(userID uuid.UUID, accountID string, txType TransactionType, amount, fee decimal.Decimal) *Transaction {
	t := &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		AccountID: accountID,
		Type:      txType,
		Status:    StatusPending,
		Amount:    amount,
		Fee:       fee,
		Currency:  DefaultCurrency,
		Reference: GenerateReference(),
	}
	t.recomputeTotal()
	return t
}

// SetFee is the only mutator for the fee; it keeps the total consistent.
func (t *Transaction) SetFee(fee decimal.Decimal) {
	t.Fee = fee
	t.recomputeTotal()
}

func (t *Transaction) recomputeTotal() {
	t.TotalAmount = t.Amount.Add(t.Fee)
}

// RegenerateReference assigns a fresh reference. Only valid before the
// transaction has been persisted, as collision recovery during creation.
func (t *Transaction) RegenerateReference() {
	t.Reference = GenerateReference()
}

// GenerateReference produces the caller-visible correlation key,
// e.g. TXN1756713600000A1B2C3D4.
func GenerateReference() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return "TXN" + strconv.FormatInt(time.Now().UnixMilli(), 10) +
		strings.ToUpper(hex.EncodeToString(buf))
}
