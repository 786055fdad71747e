package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/application/dto"
	"github.com/vectra/vtu-backend/internal/domain/entity"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/repository"
	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

// PurchaseResult is the intake outcome: a transaction snapshot, always,
// plus whether the request id matched an existing row.
type PurchaseResult struct {
	Transaction *entity.Transaction
	Duplicate   bool
}

// PurchaseCommand handles purchase intake for both service types. The row is
// created in INITIATED and advanced to PROCESSING before the vendor is
// called, so a crash mid-call leaves a reconcilable record.
type PurchaseCommand struct {
	transactions repository.TransactionRepository
	gateway      service.VendorGateway
	logger       *zap.Logger
}

// NewPurchaseCommand creates a purchase command
func NewPurchaseCommand(transactions repository.TransactionRepository, gateway service.VendorGateway, logger *zap.Logger) *PurchaseCommand {
	return &PurchaseCommand{
		transactions: transactions,
		gateway:      gateway,
		logger:       logger,
	}
}

// ExecuteAirtime runs the airtime purchase intake flow
func (c *PurchaseCommand) ExecuteAirtime(ctx context.Context, req *dto.PurchaseAirtimeRequest) (*PurchaseResult, error) {
	network, err := validatePurchase(req.Phone, req.Network, req.Amount, req.AmountCharged)
	if err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = newRequestID()
	}

	txn := entity.NewTransaction(requestID, req.UserID, valueobject.ServiceAirtime, network, req.Phone, req.Amount, req.AmountCharged)
	return c.run(ctx, txn, func(callCtx context.Context) (*service.VendorResult, error) {
		return c.gateway.PurchaseAirtime(callCtx, requestID, req.Phone, network, req.Amount)
	})
}

// ExecuteData runs the data-plan purchase intake flow
func (c *PurchaseCommand) ExecuteData(ctx context.Context, req *dto.PurchaseDataRequest) (*PurchaseResult, error) {
	network, err := validatePurchase(req.Phone, req.Network, req.Amount, req.AmountCharged)
	if err != nil {
		return nil, err
	}
	if req.PlanID <= 0 {
		return nil, fmt.Errorf("%w: plan_id must be positive", domainErrors.ErrValidation)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = newRequestID()
	}

	txn := entity.NewTransaction(requestID, req.UserID, valueobject.ServiceData, network, req.Phone, req.Amount, req.AmountCharged)
	return c.run(ctx, txn, func(callCtx context.Context) (*service.VendorResult, error) {
		return c.gateway.PurchaseData(callCtx, requestID, req.Phone, network, req.PlanID)
	})
}

func (c *PurchaseCommand) run(ctx context.Context, txn *entity.Transaction, call func(context.Context) (*service.VendorResult, error)) (*PurchaseResult, error) {
	created, err := c.transactions.Create(ctx, txn)
	if err != nil {
		if domainErrors.IsDuplicate(err) {
			c.logger.Info("duplicate purchase request",
				zap.String("request_id", txn.RequestID),
			)
			return &PurchaseResult{Transaction: created, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	requestID := created.RequestID
	c.logger.Info("transaction created",
		zap.String("request_id", requestID),
		zap.String("service", created.Service.String()),
		zap.String("phone", created.Phone),
	)

	// In-flight before the vendor sees the request.
	if _, err := c.transactions.Mutate(ctx, requestID, func(txn *entity.Transaction) error {
		return txn.TransitionTo(valueobject.StatusProcessing)
	}); err != nil {
		return nil, fmt.Errorf("advance to processing: %w", err)
	}

	res, callErr := call(ctx)

	updated, err := c.transactions.Mutate(ctx, requestID, func(txn *entity.Transaction) error {
		switch {
		case callErr == nil:
			txn.ProviderStatus = res.Status
			txn.ProviderReference = res.Reference
			txn.ProviderResponse = res.Raw
			txn.Touch()
			// Only an immediate definite failure moves the row; an immediate
			// "completed" still waits for webhook or requery confirmation.
			if service.NormalizeVendorStatus(res.Status) == valueobject.StatusFailed {
				c.failAbsorbingConflict(txn)
			}
			return nil

		case domainErrors.IsVendorRejected(callErr):
			if res != nil {
				txn.ProviderStatus = res.Status
				txn.ProviderReference = res.Reference
				txn.ProviderResponse = res.Raw
			}
			txn.ErrorMessage = callErr.Error()
			txn.Touch()
			c.failAbsorbingConflict(txn)
			return nil

		default:
			// Indeterminate: the charge may have reached the vendor. Marking
			// FAILED here could trigger a refund for a purchase that
			// succeeded, so the row stays PROCESSING for reconciliation.
			txn.ErrorMessage = callErr.Error()
			txn.Touch()
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if callErr != nil {
		c.logger.Error("vendor purchase call failed",
			zap.String("request_id", requestID),
			zap.Bool("indeterminate", !domainErrors.IsVendorRejected(callErr)),
			zap.Error(callErr),
		)
	}

	return &PurchaseResult{Transaction: updated}, nil
}

// failAbsorbingConflict moves the transaction to FAILED. A webhook may have
// finalized the row while the vendor call was in flight; that conflict is
// bookkeeping on our side, so it is logged and the vendor evidence kept
// instead of failing the intake.
func (c *PurchaseCommand) failAbsorbingConflict(txn *entity.Transaction) {
	if err := txn.TransitionTo(valueobject.StatusFailed); err != nil {
		c.logger.Error("purchase status transition rejected",
			zap.String("request_id", txn.RequestID),
			zap.String("status", txn.Status.String()),
			zap.Error(err),
		)
	}
}

func validatePurchase(phone, network string, amount, amountCharged float64) (valueobject.NetworkType, error) {
	if phone == "" {
		return "", fmt.Errorf("%w: phone is required", domainErrors.ErrValidation)
	}
	n, err := valueobject.NewNetworkType(network)
	if err != nil {
		return "", fmt.Errorf("%w: network must be one of mtn, glo, airtel, 9mobile", domainErrors.ErrValidation)
	}
	if amount <= 0 || amountCharged <= 0 {
		return "", fmt.Errorf("%w: amount must be greater than 0", domainErrors.ErrValidation)
	}
	return n, nil
}

func newRequestID() string {
	u := uuid.New()
	return fmt.Sprintf("VECTRA_%s_%x", time.Now().UTC().Format("20060102"), u[:6])
}
