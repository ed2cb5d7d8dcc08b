package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
	"payment-service/internal/errors"
	"payment-service/internal/events"
	"payment-service/internal/metrics"
)

const maxReferenceRetries = 3

// Guard sets for conditional transitions come from the domain transition
// table, so the service can never apply a move the table forbids. Whichever
// writer lands first wins; the loser sees applied == false and backs off.
var (
	canComplete = domain.TransitionSources(domain.StatusCompleted)
	canFail     = domain.TransitionSources(domain.StatusFailed)
	canCancel   = domain.TransitionSources(domain.StatusCancelled)
	canReverse  = domain.TransitionSources(domain.StatusReversed)
	canProcess  = domain.TransitionSources(domain.StatusProcessing)
)

// TransactionService drives each transaction from acceptance to exactly one
// terminal outcome. It is called concurrently from creation requests, inbound
// bus deliveries and the stale sweeper; all mutations funnel through the
// repository's conditional transition.
type TransactionService struct {
	repo      domain.TransactionRepository
	validator *Validator
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewTransactionService(
	repo domain.TransactionRepository,
	validator *Validator,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Create validates and persists a new transaction, then starts settlement.
// Validation failures reject before anything is persisted. Emission failures
// fail this transaction only; the caller sees the publish error and the
// record ends FAILED rather than stuck.
func (s *TransactionService) Create(ctx context.Context, req *CreateTransactionRequest, userID uuid.UUID) (*domain.Transaction, error) {
	s.logger.Info("Processing transaction",
		"user_id", userID,
		"type", req.Type,
		"amount", req.Amount)

	if err := s.validator.Validate(req, userID); err != nil {
		return nil, err
	}

	fee := CalculateFee(req.Type, req.Amount)

	tx := domain.NewTransaction(userID, req.AccountID, req.Type, req.Amount, fee)
	tx.BeneficiaryID = req.BeneficiaryID
	tx.DestinationAccountID = req.DestinationAccountID
	tx.Description = req.Description
	tx.DeviceType = req.DeviceType
	tx.DeviceID = req.DeviceID
	tx.IPAddress = req.IPAddress
	tx.UserAgent = req.UserAgent
	tx.Location = req.Location

	if err := s.persistWithFreshReference(tx); err != nil {
		return nil, err
	}
	s.metrics.Created.WithLabelValues(string(tx.Type)).Inc()

	if err := s.startSettlement(ctx, tx); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(tx.ID)
	if err != nil {
		return nil, err
	}
	return current, nil
}

func (s *TransactionService) persistWithFreshReference(tx *domain.Transaction) error {
	for attempt := 0; ; attempt++ {
		err := s.repo.Create(tx)
		if err == nil {
			return nil
		}
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.DuplicateReference && attempt < maxReferenceRetries {
			s.logger.Warn("Reference collision, regenerating", "reference", tx.Reference)
			tx.RegenerateReference()
			continue
		}
		return err
	}
}

// startSettlement moves the transaction to PROCESSING and emits the first
// request of its settlement conversation. Debit types emit only the balance
// check here; their debit/credit requests follow once sufficiency is
// confirmed. Deposits have nothing to check and emit their credit directly.
func (s *TransactionService) startSettlement(ctx context.Context, tx *domain.Transaction) error {
	if tx.Type.IsDebit() {
		check := events.BalanceCheckRequest{
			AccountID:            tx.AccountID,
			UserID:               tx.UserID,
			RequiredAmount:       tx.TotalAmount,
			TransactionReference: tx.Reference,
		}
		if err := s.publisher.Publish(ctx, events.TopicBalanceCheckRequest, tx.Reference, check); err != nil {
			s.failTransaction(ctx, tx, "failed to emit balance check request: "+err.Error())
			s.metrics.PublishFailures.Inc()
			return err
		}
	}

	// A response racing ahead of this write may already have terminated the
	// transaction, in which case the guard rejects the move and that is fine.
	if _, err := s.repo.Transition(tx.ID, domain.StatusTransition{
		From: canProcess,
		To:   domain.StatusProcessing,
	}); err != nil {
		return err
	}

	if tx.Type == domain.TypeDeposit {
		credit := events.CreditAccountRequest{
			AccountID:            tx.AccountID,
			UserID:               tx.UserID,
			Amount:               tx.Amount,
			TransactionReference: tx.Reference,
			Description:          tx.Description,
		}
		if err := s.publisher.Publish(ctx, events.TopicCreditAccountRequest, tx.Reference, credit); err != nil {
			s.failTransaction(ctx, tx, "failed to emit credit request: "+err.Error())
			s.metrics.PublishFailures.Inc()
			return err
		}
	}

	s.logger.Info("Transaction processing", "transaction_id", tx.ID, "reference", tx.Reference)
	return nil
}

// ApplyBalanceCheckResponse records the pre-settlement balance snapshot and,
// when the balance is sufficient, releases the debit/credit requests. An
// insufficient balance terminates the transaction. Duplicate deliveries are
// no-ops past the first terminal transition.
func (s *TransactionService) ApplyBalanceCheckResponse(ctx context.Context, resp events.BalanceCheckResponse) {
	tx, err := s.repo.GetByReference(resp.TransactionReference)
	if err != nil {
		s.logger.Error("Balance check lookup failed", "reference", resp.TransactionReference, "error", err)
		return
	}
	if tx == nil {
		s.logger.Warn("Balance check response for unknown reference", "reference", resp.TransactionReference)
		s.metrics.UnmatchedResponses.Inc()
		return
	}
	if !tx.Type.IsDebit() {
		// only debit types ever ask for a balance check
		s.logger.Warn("Balance check response for non-debit transaction",
			"reference", resp.TransactionReference, "type", tx.Type)
		s.metrics.UnmatchedResponses.Inc()
		return
	}
	if tx.Status.IsTerminal() {
		return
	}

	if !resp.SufficientBalance {
		reason := "insufficient balance: " + resp.Message
		applied, err := s.repo.Transition(tx.ID, domain.StatusTransition{
			From:          canFail,
			To:            domain.StatusFailed,
			FailureReason: reason,
		})
		if err != nil {
			s.logger.Error("Failed to fail transaction", "transaction_id", tx.ID, "error", err)
			return
		}
		if applied {
			s.metrics.Failed.Inc()
			s.notify(ctx, tx, domain.StatusFailed)
			s.logger.Info("Transaction failed on balance check",
				"transaction_id", tx.ID, "reference", tx.Reference)
		}
		return
	}

	// The snapshot write applies at most once, so it doubles as the release
	// latch: a redelivered sufficient response sees applied == false and must
	// not emit the settlement requests again.
	applied, err := s.repo.SetBalanceBefore(tx.ID, resp.CurrentBalance)
	if err != nil {
		s.logger.Error("Failed to record balance snapshot", "transaction_id", tx.ID, "error", err)
		return
	}
	if !applied {
		return
	}
	s.emitSettlementRequests(ctx, tx)
}

func (s *TransactionService) emitSettlementRequests(ctx context.Context, tx *domain.Transaction) {
	debit := events.DebitAccountRequest{
		AccountID:            tx.AccountID,
		UserID:               tx.UserID,
		Amount:               tx.TotalAmount,
		TransactionReference: tx.Reference,
		Description:          tx.Description,
	}
	if err := s.publisher.Publish(ctx, events.TopicDebitAccountRequest, tx.Reference, debit); err != nil {
		s.metrics.PublishFailures.Inc()
		s.failTransaction(ctx, tx, "failed to emit debit request: "+err.Error())
		return
	}

	if tx.Type == domain.TypeTransfer {
		credit := events.CreditAccountRequest{
			AccountID:            tx.DestinationAccountID,
			UserID:               tx.UserID,
			Amount:               tx.Amount,
			TransactionReference: tx.Reference,
			Description:          tx.Description,
		}
		if err := s.publisher.Publish(ctx, events.TopicCreditAccountRequest, tx.Reference, credit); err != nil {
			s.metrics.PublishFailures.Inc()
			s.failTransaction(ctx, tx, "failed to emit credit request: "+err.Error())
		}
	}
}

// ApplyOperationResponse applies the terminal outcome of a settlement
// operation. Responses for already-terminal transactions are discarded, which
// is the defense against at-least-once redelivery.
func (s *TransactionService) ApplyOperationResponse(ctx context.Context, resp events.AccountOperationResponse) {
	tx, err := s.repo.GetByReference(resp.TransactionReference)
	if err != nil {
		s.logger.Error("Operation response lookup failed", "reference", resp.TransactionReference, "error", err)
		return
	}
	if tx == nil {
		s.logger.Warn("Operation response for unknown reference", "reference", resp.TransactionReference)
		s.metrics.UnmatchedResponses.Inc()
		return
	}
	if tx.Status.IsTerminal() {
		return
	}

	if resp.Success {
		balance := resp.NewBalance
		applied, err := s.repo.Transition(tx.ID, domain.StatusTransition{
			From:         canComplete,
			To:           domain.StatusCompleted,
			BalanceAfter: &balance,
		})
		if err != nil {
			s.logger.Error("Failed to complete transaction", "transaction_id", tx.ID, "error", err)
			return
		}
		if applied {
			s.metrics.Completed.Inc()
			s.notify(ctx, tx, domain.StatusCompleted)
			s.logger.Info("Transaction completed",
				"transaction_id", tx.ID, "reference", tx.Reference)
		}
		return
	}

	reason := "account operation failed: " + resp.Message
	applied, err := s.repo.Transition(tx.ID, domain.StatusTransition{
		From:          canFail,
		To:            domain.StatusFailed,
		FailureReason: reason,
	})
	if err != nil {
		s.logger.Error("Failed to fail transaction", "transaction_id", tx.ID, "error", err)
		return
	}
	if applied {
		s.metrics.Failed.Inc()
		s.notify(ctx, tx, domain.StatusFailed)
		s.logger.Info("Transaction failed",
			"transaction_id", tx.ID, "reference", tx.Reference, "reason", reason)
	}
}

// Cancel aborts a transaction that has not started settlement. Only PENDING
// transactions qualify; nothing was emitted downstream from that state, so no
// compensation is needed.
func (s *TransactionService) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if tx == nil {
		return errors.ErrTransactionNotFound
	}

	applied, err := s.repo.Transition(id, domain.StatusTransition{
		From: canCancel,
		To:   domain.StatusCancelled,
	})
	if err != nil {
		return err
	}
	if !applied {
		return errors.ErrNotPending
	}

	s.metrics.Cancelled.Inc()
	s.logger.Info("Transaction cancelled", "transaction_id", id)
	return nil
}

// Reverse marks a completed transaction REVERSED and spawns a new offsetting
// transaction that credits the original source account with the principal,
// fee-free. The reversal is driven through the normal settlement path.
//
// The offsetting transaction is persisted before the original is marked, so
// a persistence failure leaves the original COMPLETED and reversible. A crash
// between the two writes leaves a PENDING reversal for the sweeper to fail;
// the original stays COMPLETED either way.
func (s *TransactionService) Reverse(ctx context.Context, id uuid.UUID, reason string) (*domain.Transaction, error) {
	original, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, errors.ErrTransactionNotFound
	}
	if original.Status != domain.StatusCompleted {
		return nil, errors.ErrNotCompleted
	}

	if reason == "" {
		reason = "Transaction reversed"
	}
	reversal := domain.NewTransaction(original.UserID, original.AccountID, domain.TypeDeposit, original.Amount, decimal.Zero)
	reversal.Description = "REVERSAL: " + reason
	reversal.ReversalOf = &original.ID

	if err := s.persistWithFreshReference(reversal); err != nil {
		return nil, err
	}

	applied, err := s.repo.Transition(id, domain.StatusTransition{
		From: canReverse,
		To:   domain.StatusReversed,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// lost a race for the original; abandon our reversal before it settles
		if _, cancelErr := s.repo.Transition(reversal.ID, domain.StatusTransition{
			From: canCancel,
			To:   domain.StatusCancelled,
		}); cancelErr != nil {
			s.logger.Error("Failed to abandon reversal",
				"reversal_id", reversal.ID, "error", cancelErr)
		}
		return nil, errors.ErrNotCompleted
	}
	s.metrics.Reversed.Inc()
	s.metrics.Created.WithLabelValues(string(reversal.Type)).Inc()

	if err := s.startSettlement(ctx, reversal); err != nil {
		return nil, err
	}

	s.logger.Info("Transaction reversed",
		"transaction_id", id, "reversal_id", reversal.ID, "reversal_reference", reversal.Reference)

	current, err := s.repo.GetByID(reversal.ID)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// SweepStale force-fails transactions stuck non-terminal past the threshold.
// It uses the same guard as response application, so a sweep racing a late
// response yields exactly one winner.
func (s *TransactionService) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	// every status the table still allows to fail is sweepable
	cutoff := time.Now().Add(-olderThan)
	stale, err := s.repo.FindStale(canFail, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, tx := range stale {
		applied, err := s.repo.Transition(tx.ID, domain.StatusTransition{
			From:          canFail,
			To:            domain.StatusFailed,
			FailureReason: "transaction timed out",
		})
		if err != nil {
			s.logger.Error("Failed to sweep transaction", "transaction_id", tx.ID, "error", err)
			continue
		}
		if !applied {
			continue
		}
		swept++
		s.metrics.Swept.Inc()
		s.metrics.Failed.Inc()
		s.notify(ctx, tx, domain.StatusFailed)
		s.logger.Warn("Marked transaction as failed due to timeout",
			"transaction_id", tx.ID, "reference", tx.Reference)
	}

	if swept > 0 {
		s.logger.Info("Stale sweep finished", "swept", swept)
	}
	return swept, nil
}

// GetByID returns the transaction when it belongs to the user. Unknown ids
// and cross-user reads are indistinguishable to the caller.
func (s *TransactionService) GetByID(id, userID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil || tx.UserID != userID {
		return nil, errors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *TransactionService) GetByReference(reference string, userID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if tx == nil || tx.UserID != userID {
		return nil, errors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *TransactionService) ListForUser(userID uuid.UUID, filter domain.TransactionFilter, limit, offset int) ([]*domain.Transaction, error) {
	return s.repo.ListByUser(userID, filter, limit, offset)
}

// ListUnsettled returns transactions still awaiting a terminal outcome,
// newest first. Operator-facing.
func (s *TransactionService) ListUnsettled(limit, offset int) ([]*domain.Transaction, error) {
	return s.repo.ListByStatus(canFail, limit, offset)
}

func (s *TransactionService) SummaryForUser(userID uuid.UUID) (*domain.TransactionSummary, error) {
	return s.repo.Summary(userID)
}

// ForceStatus is the operator override for stuck transactions. It still goes
// through the transition table guard, so it cannot produce a move the table
// forbids, and REVERSED is excluded because reversals must spawn their
// offsetting transaction through Reverse.
func (s *TransactionService) ForceStatus(ctx context.Context, id uuid.UUID, to domain.TransactionStatus, reason string) (*domain.Transaction, error) {
	if !to.IsValid() {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "unknown status %q", to)
	}
	if to == domain.StatusReversed {
		return nil, errors.NewAppError(errors.InvalidState, "reversals must go through the reverse operation")
	}

	tx, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.ErrTransactionNotFound
	}

	from := domain.TransitionSources(to)
	if len(from) == 0 {
		return nil, errors.NewAppErrorf(errors.InvalidState, "no transition leads to %s", to)
	}

	applied, err := s.repo.Transition(id, domain.StatusTransition{
		From:          from,
		To:            to,
		FailureReason: reason,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errors.NewAppErrorf(errors.InvalidState,
			"cannot move transaction from %s to %s", tx.Status, to)
	}

	switch to {
	case domain.StatusCompleted:
		s.metrics.Completed.Inc()
	case domain.StatusFailed:
		s.metrics.Failed.Inc()
	case domain.StatusCancelled:
		s.metrics.Cancelled.Inc()
	}
	if to.IsTerminal() {
		s.notify(ctx, tx, to)
	}
	s.logger.Warn("Transaction status forced",
		"transaction_id", id, "from", tx.Status, "to", to, "reason", reason)

	return s.repo.GetByID(id)
}

// failTransaction is the catch-all conversion of a processing error into a
// FAILED outcome for that transaction only.
func (s *TransactionService) failTransaction(ctx context.Context, tx *domain.Transaction, reason string) {
	applied, err := s.repo.Transition(tx.ID, domain.StatusTransition{
		From:          canFail,
		To:            domain.StatusFailed,
		FailureReason: reason,
	})
	if err != nil {
		s.logger.Error("Failed to mark transaction failed",
			"transaction_id", tx.ID, "reason", reason, "error", err)
		return
	}
	if applied {
		s.metrics.Failed.Inc()
		s.notify(ctx, tx, domain.StatusFailed)
		s.logger.Error("Transaction failed", "transaction_id", tx.ID, "reason", reason)
	}
}

// notify publishes a transaction notification. Notification delivery is best
// effort and never affects the transaction outcome.
func (s *TransactionService) notify(ctx context.Context, tx *domain.Transaction, status domain.TransactionStatus) {
	n := events.TransactionNotification{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		AccountID:     tx.AccountID,
		Type:          string(tx.Type),
		Status:        string(status),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Description:   tx.Description,
		Reference:     tx.Reference,
		Timestamp:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, events.TopicTransactionNotification, tx.Reference, n); err != nil {
		s.metrics.PublishFailures.Inc()
		s.logger.Error("Failed to publish notification",
			"transaction_id", tx.ID, "error", err)
	}
}
