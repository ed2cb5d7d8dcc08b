package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"payment-service/internal/domain"
)

func TestCalculateFee(t *testing.T) {
	cases := []struct {
		name   string
		txType domain.TransactionType
		amount string
		want   string
	}{
		{"transfer below cap", domain.TypeTransfer, "1000.00", "5.00"},
		{"transfer at cap boundary", domain.TypeTransfer, "5000.00", "25.00"},
		{"transfer capped", domain.TypeTransfer, "100000.00", "25.00"},
		{"small transfer", domain.TypeTransfer, "10.00", "0.05"},
		{"withdrawal flat", domain.TypeWithdrawal, "50.00", "2.00"},
		{"large withdrawal flat", domain.TypeWithdrawal, "9999.00", "2.00"},
		{"bill payment flat", domain.TypeBillPayment, "300.00", "1.00"},
		{"deposit free", domain.TypeDeposit, "200.00", "0"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fee := CalculateFee(c.txType, decimal.RequireFromString(c.amount))
			assert.True(t, fee.Equal(decimal.RequireFromString(c.want)),
				"got %s, want %s", fee, c.want)
		})
	}
}
