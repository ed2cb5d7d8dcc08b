package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusTransition describes a conditional status update. The transition is
// applied only when the transaction's current status is in From; callers learn
// through the applied flag whether they won or lost the race.
type StatusTransition struct {
	From          []TransactionStatus
	To            TransactionStatus
	FailureReason string
	BalanceAfter  *decimal.Decimal
	At            time.Time
}

// TransactionFilter narrows a user's transaction listing. Zero values place
// no restriction.
type TransactionFilter struct {
	// Type restricts to one transaction type when non-empty.
	Type TransactionType
	// From and To bound created_at when set (inclusive).
	From *time.Time
	To   *time.Time
	// Search matches description or reference, case-insensitively.
	Search string
}

// TransactionSummary aggregates a user's transaction history.
type TransactionSummary struct {
	TotalTransactions     int64           `json:"total_transactions"`
	CompletedTransactions int64           `json:"completed_transactions"`
	FailedTransactions    int64           `json:"failed_transactions"`
	PendingTransactions   int64           `json:"pending_transactions"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalFees             decimal.Decimal `json:"total_fees"`
}

// TransactionRepository is the durable store for transactions. All writers
// racing for the same transaction must go through Transition so that exactly
// one terminal outcome lands.
type TransactionRepository interface {
	Create(tx *Transaction) error
	GetByID(id uuid.UUID) (*Transaction, error)
	GetByReference(reference string) (*Transaction, error)

	// Transition applies a conditional status update and reports whether it
	// took effect. A false return with a nil error means the guard rejected
	// the update (the transaction was not in an allowed From status).
	Transition(id uuid.UUID, t StatusTransition) (bool, error)

	// SetBalanceBefore records settlement evidence from a balance-check
	// response. It applies at most once per transaction, and only while the
	// transaction is non-terminal; a false return means the snapshot was
	// already recorded or the transaction has terminated. Callers gate
	// settlement release on the applied flag, which is what makes duplicate
	// response deliveries emit nothing.
	SetBalanceBefore(id uuid.UUID, balance decimal.Decimal) (bool, error)

	FindStale(statuses []TransactionStatus, before time.Time) ([]*Transaction, error)
	CountCompletedSince(userID uuid.UUID, since time.Time) (int64, error)
	ListByUser(userID uuid.UUID, filter TransactionFilter, limit, offset int) ([]*Transaction, error)
	ListByStatus(statuses []TransactionStatus, limit, offset int) ([]*Transaction, error)
	Summary(userID uuid.UUID) (*TransactionSummary, error)
}
