package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/vectra/vtu-backend/internal/application/dto"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/interfaces/http/response"
)

// TransactionHandler serves the reconciliation endpoints: on-demand requery
// and operator refunds
type TransactionHandler struct {
	reconciliation *service.ReconciliationService
}

// NewTransactionHandler creates a transaction handler
func NewTransactionHandler(reconciliation *service.ReconciliationService) *TransactionHandler {
	return &TransactionHandler{reconciliation: reconciliation}
}

// Requery handles GET /transactions/requery/:request_id
func (h *TransactionHandler) Requery(c *gin.Context) {
	txn, err := h.reconciliation.Requery(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		var vendorErr *domainErrors.VendorError
		switch {
		case domainErrors.IsNotFound(err):
			response.NotFound(c, "Transaction not found")
		case errors.As(err, &vendorErr):
			response.BadGateway(c, "Provider requery failed")
		default:
			response.InternalError(c, "Requery failed")
		}
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}

// Refund handles POST /transactions/refund/:request_id
func (h *TransactionHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual refund"
	}

	txn, err := h.reconciliation.Refund(c.Request.Context(), c.Param("request_id"), req.Reason)
	if err != nil {
		switch {
		case domainErrors.IsNotFound(err):
			response.NotFound(c, "Transaction not found")
		case errors.Is(err, domainErrors.ErrRefundNotAllowed):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, "Refund failed")
		}
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}
