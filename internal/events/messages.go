package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topics carrying the asynchronous settlement conversation with the ledger
// authority. Requests flow out keyed by transaction reference; responses are
// delivered at least once with no ordering guarantee across topics.
const (
	TopicBalanceCheckRequest      = "balance-check-request"
	TopicBalanceCheckResponse     = "balance-check-response"
	TopicDebitAccountRequest      = "debit-account-request"
	TopicCreditAccountRequest     = "credit-account-request"
	TopicAccountOperationResponse = "account-operation-response"
	TopicTransactionNotification  = "transaction-notification"
)

type BalanceCheckRequest struct {
	AccountID            string          `json:"account_id"`
	UserID               uuid.UUID       `json:"user_id"`
	RequiredAmount       decimal.Decimal `json:"required_amount"`
	TransactionReference string          `json:"transaction_reference"`
}

type BalanceCheckResponse struct {
	AccountID            string          `json:"account_id"`
	TransactionReference string          `json:"transaction_reference"`
	SufficientBalance    bool            `json:"sufficient_balance"`
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	Message              string          `json:"message,omitempty"`
}

type DebitAccountRequest struct {
	AccountID            string          `json:"account_id"`
	UserID               uuid.UUID       `json:"user_id"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
	Description          string          `json:"description,omitempty"`
}

type CreditAccountRequest struct {
	AccountID            string          `json:"account_id"`
	UserID               uuid.UUID       `json:"user_id"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
	Description          string          `json:"description,omitempty"`
}

type AccountOperationResponse struct {
	AccountID            string          `json:"account_id"`
	TransactionReference string          `json:"transaction_reference"`
	Success              bool            `json:"success"`
	NewBalance           decimal.Decimal `json:"new_balance"`
	Message              string          `json:"message,omitempty"`
}

type TransactionNotification struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	UserID        uuid.UUID       `json:"user_id"`
	AccountID     string          `json:"account_id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description,omitempty"`
	Reference     string          `json:"reference"`
	Timestamp     time.Time       `json:"timestamp"`
}
