package domain

// TransactionType classifies a transaction.
type TransactionType string

const (
	TypeTransfer    TransactionType = "TRANSFER"
	TypeWithdrawal  TransactionType = "WITHDRAWAL"
	TypeDeposit     TransactionType = "DEPOSIT"
	TypeBillPayment TransactionType = "BILL_PAYMENT"
)

// IsDebit reports whether the type decreases the source account balance and
// therefore needs a balance check before settlement.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TypeTransfer, TypeWithdrawal, TypeBillPayment:
		return true
	}
	return false
}

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeTransfer, TypeWithdrawal, TypeDeposit, TypeBillPayment:
		return true
	}
	return false
}

// TransactionStatus is the state-machine position of a transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
	StatusReversed   TransactionStatus = "REVERSED"
)

// IsValid reports whether s is one of the known statuses.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

// IsTerminal reports whether no further financial mutation is permitted.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

// transitions is the single source of truth for legal status moves. Guard
// sets for conditional store updates are derived from it via
// TransitionSources. PENDING may complete or fail directly: a response can
// overtake the PENDING→PROCESSING write when the bus round-trips faster than
// the store.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusReversed},
}

var statusOrder = []TransactionStatus{
	StatusPending, StatusProcessing, StatusCompleted,
	StatusFailed, StatusCancelled, StatusReversed,
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which the table permits a move
// to the given status. Callers use the result as the guard set of a
// conditional store update, so an illegal move can never be applied.
func TransitionSources(to TransactionStatus) []TransactionStatus {
	var from []TransactionStatus
	for _, s := range statusOrder {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}
