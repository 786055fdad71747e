package query

import (
	"context"
	"fmt"

	"github.com/vectra/vtu-backend/internal/domain/entity"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/repository"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

// TransactionQuery serves read-only transaction lookups for polling clients
type TransactionQuery struct {
	transactions repository.TransactionRepository
}

// NewTransactionQuery creates a transaction query
func NewTransactionQuery(transactions repository.TransactionRepository) *TransactionQuery {
	return &TransactionQuery{transactions: transactions}
}

// ByRequestID returns the transaction for an idempotency key
func (q *TransactionQuery) ByRequestID(ctx context.Context, requestID string) (*entity.Transaction, error) {
	return q.transactions.GetByRequestID(ctx, requestID)
}

// ByRequestIDForService returns the transaction only if it belongs to the
// given service type; a mismatch reads as not found.
func (q *TransactionQuery) ByRequestIDForService(ctx context.Context, requestID string, service valueobject.ServiceType) (*entity.Transaction, error) {
	txn, err := q.transactions.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if txn.Service != service {
		return nil, fmt.Errorf("no %s transaction %q: %w", service, requestID, domainErrors.ErrTransactionNotFound)
	}
	return txn, nil
}
