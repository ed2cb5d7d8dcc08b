package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionComputesTotal(t *testing.T) {
	amount := decimal.RequireFromString("100.00")
	fee := decimal.RequireFromString("2.50")

	tx := NewTransaction(uuid.New(), "ACC-1", TypeWithdrawal, amount, fee)

	assert.Equal(t, StatusPending, tx.Status)
	assert.True(t, tx.TotalAmount.Equal(decimal.RequireFromString("102.50")))
	assert.Equal(t, DefaultCurrency, tx.Currency)
	assert.NotEqual(t, uuid.Nil, tx.ID)
}

func TestSetFeeRecomputesTotal(t *testing.T) {
	tx := NewTransaction(uuid.New(), "ACC-1", TypeTransfer, decimal.RequireFromString("200.00"), decimal.Zero)

	tx.SetFee(decimal.RequireFromString("1.00"))

	assert.True(t, tx.TotalAmount.Equal(decimal.RequireFromString("201.00")))
	assert.True(t, tx.TotalAmount.Equal(tx.Amount.Add(tx.Fee)))
}

func TestGenerateReferenceShape(t *testing.T) {
	ref := GenerateReference()

	require.True(t, strings.HasPrefix(ref, "TXN"))
	assert.GreaterOrEqual(t, len(ref), len("TXN")+13+8)
	assert.Equal(t, strings.ToUpper(ref), ref)
}

func TestGenerateReferenceIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := GenerateReference()
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestTypeIsDebit(t *testing.T) {
	assert.True(t, TypeTransfer.IsDebit())
	assert.True(t, TypeWithdrawal.IsDebit())
	assert.True(t, TypeBillPayment.IsDebit())
	assert.False(t, TypeDeposit.IsDebit())
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusReversed.IsTerminal())
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusCancelled, false},
		{StatusCompleted, StatusReversed, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusProcessing, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusReversed, StatusCompleted, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTransitionSourcesDerivedFromTable(t *testing.T) {
	cases := []struct {
		to   TransactionStatus
		from []TransactionStatus
	}{
		{StatusProcessing, []TransactionStatus{StatusPending}},
		{StatusCompleted, []TransactionStatus{StatusPending, StatusProcessing}},
		{StatusFailed, []TransactionStatus{StatusPending, StatusProcessing}},
		{StatusCancelled, []TransactionStatus{StatusPending}},
		{StatusReversed, []TransactionStatus{StatusCompleted}},
		{StatusPending, nil},
	}

	for _, c := range cases {
		assert.Equal(t, c.from, TransitionSources(c.to), "sources of %s", c.to)
	}

	// the source set and the table must agree move for move
	for _, to := range []TransactionStatus{StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusReversed} {
		for _, from := range TransitionSources(to) {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []TransactionStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusReversed} {
		assert.True(t, s.IsValid(), "%s", s)
	}
	assert.False(t, TransactionStatus("SETTLED").IsValid())
}
