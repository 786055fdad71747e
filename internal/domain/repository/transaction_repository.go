package repository

import (
	"context"
	"time"

	"github.com/vectra/vtu-backend/internal/domain/entity"
)

// TransactionRepository defines the interface for transaction data access
type TransactionRepository interface {
	// Create persists a new transaction. If a row with the same request_id
	// already exists (including a concurrent creation losing the race on the
	// unique constraint), it returns the existing row together with
	// ErrDuplicateRequest instead of propagating the constraint violation.
	Create(ctx context.Context, txn *entity.Transaction) (*entity.Transaction, error)

	// GetByRequestID retrieves a transaction by its idempotency key
	GetByRequestID(ctx context.Context, requestID string) (*entity.Transaction, error)

	// Mutate runs fn on the transaction identified by requestID inside a
	// row-level lock and persists the result. All status changes go through
	// here so concurrent writers to the same row are serialized. If fn
	// returns an error nothing is persisted.
	Mutate(ctx context.Context, requestID string, fn func(*entity.Transaction) error) (*entity.Transaction, error)

	// ListStuckProcessing returns transactions still in PROCESSING whose last
	// change predates olderThan, for the reconciliation sweep.
	ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*entity.Transaction, error)
}
