package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vectra/vtu-backend/internal/domain/entity"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	domainRepo "github.com/vectra/vtu-backend/internal/domain/repository"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

const uniqueViolation = "23505"

const transactionColumns = `id, request_id, user_id, service, network, phone,
	amount, amount_charged, status, provider_reference, provider_status,
	provider_response, error_message, webhook_delivery_id, webhook_payload,
	webhook_received_at, refund_reference, created_at, updated_at`

type transactionRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a Postgres transaction repository
func NewTransactionRepository(pool *pgxpool.Pool) domainRepo.TransactionRepository {
	return &transactionRepositoryImpl{pool: pool}
}

func (r *transactionRepositoryImpl) Create(ctx context.Context, txn *entity.Transaction) (*entity.Transaction, error) {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.pool.Exec(ctx, query,
		txn.ID, txn.RequestID, txn.UserID, txn.Service.String(), txn.Network.String(), txn.Phone,
		txn.Amount, txn.AmountCharged, txn.Status.String(), txn.ProviderReference, txn.ProviderStatus,
		txn.ProviderResponse, txn.ErrorMessage, txn.WebhookDeliveryID, txn.WebhookPayload,
		txn.WebhookReceivedAt, txn.RefundReference, txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		// The unique constraint on request_id arbitrates concurrent duplicate
		// creation; the loser gets the winner's row, not a raw pg error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			existing, getErr := r.GetByRequestID(ctx, txn.RequestID)
			if getErr != nil {
				return nil, fmt.Errorf("fetch existing duplicate %q: %w", txn.RequestID, getErr)
			}
			return existing, domainErrors.ErrDuplicateRequest
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return txn, nil
}

func (r *transactionRepositoryImpl) GetByRequestID(ctx context.Context, requestID string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE request_id = $1`
	row := r.pool.QueryRow(ctx, query, requestID)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %q: %w", requestID, domainErrors.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// Mutate serializes all writers to one row behind SELECT ... FOR UPDATE. The
// transition guard always runs inside this exclusion.
func (r *transactionRepositoryImpl) Mutate(ctx context.Context, requestID string, fn func(*entity.Transaction) error) (*entity.Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin mutation: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE request_id = $1 FOR UPDATE`
	txn, err := scanTransaction(tx.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %q: %w", requestID, domainErrors.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}

	if err := fn(txn); err != nil {
		return nil, err
	}

	update := `
		UPDATE transactions SET
			status = $2, provider_reference = $3, provider_status = $4,
			provider_response = $5, error_message = $6, webhook_delivery_id = $7,
			webhook_payload = $8, webhook_received_at = $9, refund_reference = $10,
			updated_at = $11
		WHERE request_id = $1`
	if _, err := tx.Exec(ctx, update,
		txn.RequestID, txn.Status.String(), txn.ProviderReference, txn.ProviderStatus,
		txn.ProviderResponse, txn.ErrorMessage, txn.WebhookDeliveryID,
		txn.WebhookPayload, txn.WebhookReceivedAt, txn.RefundReference,
		txn.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit mutation: %w", err)
	}
	return txn, nil
}

func (r *transactionRepositoryImpl) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, valueobject.StatusProcessing.String(), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*entity.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stuck transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func scanTransaction(row pgx.Row) (*entity.Transaction, error) {
	var txn entity.Transaction
	var service, network, status string

	err := row.Scan(
		&txn.ID, &txn.RequestID, &txn.UserID, &service, &network, &txn.Phone,
		&txn.Amount, &txn.AmountCharged, &status, &txn.ProviderReference, &txn.ProviderStatus,
		&txn.ProviderResponse, &txn.ErrorMessage, &txn.WebhookDeliveryID, &txn.WebhookPayload,
		&txn.WebhookReceivedAt, &txn.RefundReference, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Service = valueobject.ServiceType(service)
	txn.Network = valueobject.NetworkType(network)
	txn.Status = valueobject.TransactionStatus(status)
	return &txn, nil
}
