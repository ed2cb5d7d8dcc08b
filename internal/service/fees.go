package service

import (
	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
)

// Fee schedule. Changing these constants never touches already-persisted
// totals; fees are computed once at creation.
var (
	transferFeeRate = decimal.RequireFromString("0.005")
	transferFeeCap  = decimal.RequireFromString("25.00")
	withdrawalFee   = decimal.RequireFromString("2.00")
	billPaymentFee  = decimal.RequireFromString("1.00")
)

// CalculateFee returns the fee for a transaction of the given type and amount.
// Pure and deterministic.
func CalculateFee(txType domain.TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch txType {
	case domain.TypeTransfer:
		fee := amount.Mul(transferFeeRate).Round(2)
		if fee.GreaterThan(transferFeeCap) {
			return transferFeeCap
		}
		return fee
	case domain.TypeWithdrawal:
		return withdrawalFee
	case domain.TypeBillPayment:
		return billPaymentFee
	default:
		return decimal.Zero
	}
}
