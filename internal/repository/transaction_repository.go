package repository

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
	"payment-service/internal/errors"
)

const transactionColumns = `
	id, user_id, account_id, beneficiary_id, destination_account_id,
	type, status, amount, fee, total_amount, currency, description,
	reference, balance_before, balance_after, failure_reason, reversal_of,
	device_type, device_id, ip_address, user_agent, location,
	completed_at, failed_at, created_at, updated_at
`

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) Create(tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	now := time.Now()

	_, err := r.db.Exec(
		query,
		tx.ID,
		tx.UserID,
		tx.AccountID,
		uuidOrNil(tx.BeneficiaryID),
		nullIfEmpty(tx.DestinationAccountID),
		string(tx.Type),
		string(tx.Status),
		tx.Amount.String(),
		tx.Fee.String(),
		tx.TotalAmount.String(),
		tx.Currency,
		nullIfEmpty(tx.Description),
		tx.Reference,
		decimalOrNil(tx.BalanceBefore),
		decimalOrNil(tx.BalanceAfter),
		nullIfEmpty(tx.FailureReason),
		uuidOrNil(tx.ReversalOf),
		nullIfEmpty(tx.DeviceType),
		nullIfEmpty(tx.DeviceID),
		nullIfEmpty(tx.IPAddress),
		nullIfEmpty(tx.UserAgent),
		nullIfEmpty(tx.Location),
		tx.CompletedAt,
		tx.FailedAt,
		now,
		now,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "idx_transactions_reference" {
				r.logger.Warn("Duplicate transaction reference", "reference", tx.Reference)
				return errors.ErrDuplicateReference
			}
		}
		r.logger.Error("Failed to create transaction",
			"transaction_id", tx.ID,
			"reference", tx.Reference,
			"type", tx.Type,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.logger.Info("Transaction created", "transaction_id", tx.ID, "reference", tx.Reference)
	return nil
}

func (r *transactionRepository) GetByID(id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

func (r *transactionRepository) GetByReference(reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	return r.scanOne(r.db.QueryRow(query, reference))
}

// Transition is the linearization point for all concurrent writers. The
// status guard in the WHERE clause ensures exactly one of a racing pair
// (late response vs sweep, duplicate deliveries) takes effect.
func (r *transactionRepository) Transition(id uuid.UUID, t domain.StatusTransition) (bool, error) {
	query := `
		UPDATE transactions
		SET status = $1,
		    failure_reason = COALESCE(NULLIF($2, ''), failure_reason),
		    balance_after = COALESCE($3, balance_after),
		    completed_at = CASE WHEN $1 = 'COMPLETED' THEN $4 ELSE completed_at END,
		    failed_at = CASE WHEN $1 = 'FAILED' THEN $4 ELSE failed_at END,
		    updated_at = $4
		WHERE id = $5 AND status = ANY($6)
	`

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	res, err := r.db.Exec(query,
		string(t.To),
		t.FailureReason,
		decimalOrNil(t.BalanceAfter),
		at,
		id,
		pq.Array(statusStrings(t.From)),
	)
	if err != nil {
		r.logger.Error("Failed to transition transaction",
			"transaction_id", id, "to", t.To, "error", err)
		return false, errors.NewAppError(errors.InternalError, "failed to update transaction status").WithDetails(err.Error())
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewAppError(errors.InternalError, "failed to read transition result").WithDetails(err.Error())
	}

	applied := n > 0
	if applied {
		r.logger.Info("Transaction status updated", "transaction_id", id, "status", t.To)
	}
	return applied, nil
}

// SetBalanceBefore records the snapshot at most once. The balance_before
// guard is what keeps a redelivered balance-check response from releasing
// settlement a second time.
func (r *transactionRepository) SetBalanceBefore(id uuid.UUID, balance decimal.Decimal) (bool, error) {
	query := `
		UPDATE transactions
		SET balance_before = $1, updated_at = $2
		WHERE id = $3 AND status IN ('PENDING', 'PROCESSING') AND balance_before IS NULL
	`

	res, err := r.db.Exec(query, balance.String(), time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to record balance snapshot", "transaction_id", id, "error", err)
		return false, errors.NewAppError(errors.InternalError, "failed to record balance snapshot").WithDetails(err.Error())
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewAppError(errors.InternalError, "failed to read update result").WithDetails(err.Error())
	}
	return n > 0, nil
}

func (r *transactionRepository) FindStale(statuses []domain.TransactionStatus, before time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = ANY($1) AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(query, pq.Array(statusStrings(statuses)), before)
	if err != nil {
		r.logger.Error("Failed to query stale transactions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to query stale transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *transactionRepository) CountCompletedSince(userID uuid.UUID, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND status = 'COMPLETED' AND created_at >= $2
	`

	var count int64
	if err := r.db.QueryRow(query, userID, since).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "user_id", userID, "error", err)
		return 0, errors.NewAppError(errors.InternalError, "failed to count transactions").WithDetails(err.Error())
	}
	return count, nil
}

func (r *transactionRepository) ListByUser(userID uuid.UUID, filter domain.TransactionFilter, limit, offset int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(" AND (LOWER(description) LIKE $%d OR LOWER(reference) LIKE $%d)", len(args), len(args))
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *transactionRepository) ListByStatus(statuses []domain.TransactionStatus, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, pq.Array(statusStrings(statuses)), limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions by status", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions by status").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *transactionRepository) Summary(userID uuid.UUID) (*domain.TransactionSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'COMPLETED'),
		       COUNT(*) FILTER (WHERE status = 'FAILED'),
		       COUNT(*) FILTER (WHERE status IN ('PENDING', 'PROCESSING')),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0),
		       COALESCE(SUM(fee) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM transactions
		WHERE user_id = $1
	`

	var s domain.TransactionSummary
	var amountStr, feesStr string
	err := r.db.QueryRow(query, userID).Scan(
		&s.TotalTransactions,
		&s.CompletedTransactions,
		&s.FailedTransactions,
		&s.PendingTransactions,
		&amountStr,
		&feesStr,
	)
	if err != nil {
		r.logger.Error("Failed to build transaction summary", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to build transaction summary").WithDetails(err.Error())
	}

	if s.TotalAmount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to parse amount sum").WithDetails(err.Error())
	}
	if s.TotalFees, err = decimal.NewFromString(feesStr); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to parse fee sum").WithDetails(err.Error())
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *transactionRepository) scanOne(row rowScanner) (*domain.Transaction, error) {
	tx, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}
	return tx, nil
}

func (r *transactionRepository) scanAll(rows *sql.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan transaction").WithDetails(err.Error())
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to read transactions").WithDetails(err.Error())
	}
	return result, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var (
		beneficiaryID, reversalOf              sql.NullString
		destAccount, description, failReason   sql.NullString
		deviceType, deviceID, ipAddr           sql.NullString
		userAgent, location                    sql.NullString
		amountStr, feeStr, totalStr            string
		balanceBefore, balanceAfter            sql.NullString
		txType, txStatus                       string
		completedAt, failedAt                  sql.NullTime
	)

	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.AccountID,
		&beneficiaryID,
		&destAccount,
		&txType,
		&txStatus,
		&amountStr,
		&feeStr,
		&totalStr,
		&tx.Currency,
		&description,
		&tx.Reference,
		&balanceBefore,
		&balanceAfter,
		&failReason,
		&reversalOf,
		&deviceType,
		&deviceID,
		&ipAddr,
		&userAgent,
		&location,
		&completedAt,
		&failedAt,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(txStatus)

	if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, err
	}
	if tx.Fee, err = decimal.NewFromString(feeStr); err != nil {
		return nil, err
	}
	if tx.TotalAmount, err = decimal.NewFromString(totalStr); err != nil {
		return nil, err
	}
	if tx.BalanceBefore, err = parseNullDecimal(balanceBefore); err != nil {
		return nil, err
	}
	if tx.BalanceAfter, err = parseNullDecimal(balanceAfter); err != nil {
		return nil, err
	}
	if tx.BeneficiaryID, err = parseNullUUID(beneficiaryID); err != nil {
		return nil, err
	}
	if tx.ReversalOf, err = parseNullUUID(reversalOf); err != nil {
		return nil, err
	}

	tx.DestinationAccountID = destAccount.String
	tx.Description = description.String
	tx.FailureReason = failReason.String
	tx.DeviceType = deviceType.String
	tx.DeviceID = deviceID.String
	tx.IPAddress = ipAddr.String
	tx.UserAgent = userAgent.String
	tx.Location = location.String
	if completedAt.Valid {
		tx.CompletedAt = &completedAt.Time
	}
	if failedAt.Valid {
		tx.FailedAt = &failedAt.Time
	}

	return &tx, nil
}

func parseNullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullUUID(v sql.NullString) (*uuid.UUID, error) {
	if !v.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(v.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func statusStrings(statuses []domain.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func decimalOrNil(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}
