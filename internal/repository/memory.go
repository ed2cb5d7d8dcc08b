package repository

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
	"payment-service/internal/errors"
)

// MemoryTransactionRepository is an in-memory TransactionRepository with the
// same conditional-transition semantics as the postgres implementation. Used
// by unit tests and broker-less local runs.
type MemoryTransactionRepository struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*domain.Transaction
	byRef    map[string]uuid.UUID
}

func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		byID:  make(map[uuid.UUID]*domain.Transaction),
		byRef: make(map[string]uuid.UUID),
	}
}

func (r *MemoryTransactionRepository) Create(tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRef[tx.Reference]; exists {
		return errors.ErrDuplicateReference
	}

	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	cp := *tx
	r.byID[tx.ID] = &cp
	r.byRef[tx.Reference] = tx.ID
	return nil
}

func (r *MemoryTransactionRepository) GetByID(id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (r *MemoryTransactionRepository) GetByReference(reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRef[reference]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemoryTransactionRepository) Transition(id uuid.UUID, t domain.StatusTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.byID[id]
	if !ok {
		return false, nil
	}

	allowed := false
	for _, from := range t.From {
		if tx.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	tx.Status = t.To
	if t.FailureReason != "" {
		tx.FailureReason = t.FailureReason
	}
	if t.BalanceAfter != nil {
		b := *t.BalanceAfter
		tx.BalanceAfter = &b
	}
	switch t.To {
	case domain.StatusCompleted:
		tx.CompletedAt = &at
	case domain.StatusFailed:
		tx.FailedAt = &at
	}
	tx.UpdatedAt = at
	return true, nil
}

func (r *MemoryTransactionRepository) SetBalanceBefore(id uuid.UUID, balance decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.byID[id]
	if !ok || tx.Status.IsTerminal() || tx.BalanceBefore != nil {
		return false, nil
	}
	b := balance
	tx.BalanceBefore = &b
	tx.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryTransactionRepository) FindStale(statuses []domain.TransactionStatus, before time.Time) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range r.byID {
		if !tx.CreatedAt.Before(before) {
			continue
		}
		for _, s := range statuses {
			if tx.Status == s {
				cp := *tx
				result = append(result, &cp)
				break
			}
		}
	}
	return result, nil
}

func (r *MemoryTransactionRepository) CountCompletedSince(userID uuid.UUID, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, tx := range r.byID {
		if tx.UserID == userID && tx.Status == domain.StatusCompleted && !tx.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryTransactionRepository) ListByUser(userID uuid.UUID, filter domain.TransactionFilter, limit, offset int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Transaction
	for _, tx := range r.byID {
		if tx.UserID != userID || !matchesFilter(tx, filter) {
			continue
		}
		cp := *tx
		all = append(all, &cp)
	}
	return paginateNewestFirst(all, limit, offset), nil
}

func (r *MemoryTransactionRepository) ListByStatus(statuses []domain.TransactionStatus, limit, offset int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Transaction
	for _, tx := range r.byID {
		for _, s := range statuses {
			if tx.Status == s {
				cp := *tx
				all = append(all, &cp)
				break
			}
		}
	}
	return paginateNewestFirst(all, limit, offset), nil
}

func matchesFilter(tx *domain.Transaction, filter domain.TransactionFilter) bool {
	if filter.Type != "" && tx.Type != filter.Type {
		return false
	}
	if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && tx.CreatedAt.After(*filter.To) {
		return false
	}
	if filter.Search != "" {
		term := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(tx.Description), term) &&
			!strings.Contains(strings.ToLower(tx.Reference), term) {
			return false
		}
	}
	return true
}

// paginateNewestFirst sorts by created_at descending, matching the postgres
// ordering, then applies limit/offset.
func paginateNewestFirst(all []*domain.Transaction, limit, offset int) []*domain.Transaction {
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (r *MemoryTransactionRepository) Summary(userID uuid.UUID) (*domain.TransactionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &domain.TransactionSummary{
		TotalAmount: decimal.Zero,
		TotalFees:   decimal.Zero,
	}
	for _, tx := range r.byID {
		if tx.UserID != userID {
			continue
		}
		s.TotalTransactions++
		switch tx.Status {
		case domain.StatusCompleted:
			s.CompletedTransactions++
			s.TotalAmount = s.TotalAmount.Add(tx.Amount)
			s.TotalFees = s.TotalFees.Add(tx.Fee)
		case domain.StatusFailed:
			s.FailedTransactions++
		case domain.StatusPending, domain.StatusProcessing:
			s.PendingTransactions++
		}
	}
	return s, nil
}
