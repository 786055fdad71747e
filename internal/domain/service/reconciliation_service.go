package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/domain/entity"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/repository"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

// DefaultStuckTimeout is how long a transaction may sit unchanged in
// PROCESSING before it counts as stuck and becomes refund-eligible.
const DefaultStuckTimeout = 10 * time.Minute

// ReconciliationService resolves transactions whose webhook never arrived:
// on-demand requery against the vendor, refund eligibility, and the
// scheduled sweep over stuck rows. It is safe to invoke redundantly and
// concurrently with webhook ingestion; both paths funnel through the same
// row lock and transition guard.
type ReconciliationService struct {
	transactions repository.TransactionRepository
	gateway      VendorGateway
	stuckAfter   time.Duration
	logger       *zap.Logger
}

// NewReconciliationService creates a reconciliation service. A zero
// stuckAfter falls back to DefaultStuckTimeout.
func NewReconciliationService(transactions repository.TransactionRepository, gateway VendorGateway, stuckAfter time.Duration, logger *zap.Logger) *ReconciliationService {
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckTimeout
	}
	return &ReconciliationService{
		transactions: transactions,
		gateway:      gateway,
		stuckAfter:   stuckAfter,
		logger:       logger,
	}
}

// Requery asks the vendor for the current state of a non-terminal
// transaction and applies the normalized status through the guard. A vendor
// reply rejecting the order finalizes the row as FAILED with the reply
// persisted. Terminal transactions are returned as-is without a vendor call.
func (s *ReconciliationService) Requery(ctx context.Context, requestID string) (*entity.Transaction, error) {
	txn, err := s.transactions.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() {
		return txn, nil
	}

	res, callErr := s.gateway.Requery(ctx, requestID)
	if callErr != nil {
		// A rejection is a definitive verdict on the order, not a failed
		// requery: the row is finalized below. Only indeterminate failures
		// propagate.
		if !domainErrors.IsVendorRejected(callErr) {
			return nil, fmt.Errorf("requery %s: %w", requestID, callErr)
		}
		if res == nil {
			res = &VendorResult{}
		}
	}

	updated, err := s.transactions.Mutate(ctx, requestID, func(txn *entity.Transaction) error {
		if res.Raw != nil {
			txn.ProviderResponse = res.Raw
		}
		if res.Status != "" {
			txn.ProviderStatus = res.Status
		}
		if res.Reference != "" {
			txn.ProviderReference = res.Reference
		}
		txn.Touch()

		target := NormalizeVendorStatus(res.Status)
		if callErr != nil {
			target = valueobject.StatusFailed
			if txn.ErrorMessage == "" {
				txn.ErrorMessage = callErr.Error()
			}
		}
		if err := applyNormalizedStatus(txn, target); err != nil {
			// A webhook may have finalized the row between our read and this
			// lock. Keep the evidence, log the conflict, move on.
			s.logger.Error("requery status transition rejected",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("requery completed",
		zap.String("request_id", requestID),
		zap.String("provider_status", res.Status),
		zap.String("status", updated.Status.String()),
	)
	return updated, nil
}

// Refund issues a refund for a definitely-failed purchase or one stuck in
// PROCESSING beyond the stuck timeout. Stuck refunds are normalized through
// FAILED before taking the FAILED→REFUNDED edge, all under one row lock.
func (s *ReconciliationService) Refund(ctx context.Context, requestID, reason string) (*entity.Transaction, error) {
	now := time.Now().UTC()

	updated, err := s.transactions.Mutate(ctx, requestID, func(txn *entity.Transaction) error {
		if !txn.RefundEligible(now, s.stuckAfter) {
			return fmt.Errorf("%w: status %s", domainErrors.ErrRefundNotAllowed, txn.Status)
		}

		if txn.Status == valueobject.StatusProcessing {
			if err := txn.TransitionTo(valueobject.StatusFailed); err != nil {
				return err
			}
			if txn.ErrorMessage == "" {
				txn.ErrorMessage = fmt.Sprintf("stuck in PROCESSING beyond %s", s.stuckAfter)
			}
		}
		if err := txn.TransitionTo(valueobject.StatusRefunded); err != nil {
			return err
		}

		txn.RefundReference = newRefundReference(now, requestID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction refunded",
		zap.String("request_id", requestID),
		zap.String("refund_reference", updated.RefundReference),
		zap.String("reason", reason),
	)
	return updated, nil
}

// ReconcileStuck requeries every transaction stuck in PROCESSING beyond the
// stuck timeout. Individual failures are logged and skipped so one
// unreachable row cannot stall the sweep. Returns the number requeried.
func (s *ReconciliationService) ReconcileStuck(ctx context.Context, limit int) (int, error) {
	olderThan := time.Now().UTC().Add(-s.stuckAfter)
	stuck, err := s.transactions.ListStuckProcessing(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("list stuck transactions: %w", err)
	}

	requeried := 0
	for _, txn := range stuck {
		if _, err := s.Requery(ctx, txn.RequestID); err != nil {
			s.logger.Error("stuck transaction requery failed",
				zap.String("request_id", txn.RequestID),
				zap.Error(err),
			)
			continue
		}
		requeried++
	}
	return requeried, nil
}

func newRefundReference(now time.Time, requestID string) string {
	suffix := requestID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("REF_%s_%s", now.Format("20060102150405"), suffix)
}
