package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/vectra/vtu-backend/internal/application/command"
	"github.com/vectra/vtu-backend/internal/application/dto"
	"github.com/vectra/vtu-backend/internal/application/query"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
	"github.com/vectra/vtu-backend/internal/interfaces/http/response"
)

// AirtimeHandler serves airtime purchase intake and status polling
type AirtimeHandler struct {
	purchase     *command.PurchaseCommand
	transactions *query.TransactionQuery
}

// NewAirtimeHandler creates an airtime handler
func NewAirtimeHandler(purchase *command.PurchaseCommand, transactions *query.TransactionQuery) *AirtimeHandler {
	return &AirtimeHandler{purchase: purchase, transactions: transactions}
}

// Purchase handles POST /api/v1/airtime/purchase. The response always
// carries a transaction snapshot so the client can poll the outcome.
func (h *AirtimeHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseAirtimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.purchase.ExecuteAirtime(c.Request.Context(), &req)
	if err != nil {
		writePurchaseError(c, err)
		return
	}
	writePurchaseResult(c, result)
}

// Status handles GET /api/v1/airtime/status/:request_id
func (h *AirtimeHandler) Status(c *gin.Context) {
	txn, err := h.transactions.ByRequestIDForService(c.Request.Context(), c.Param("request_id"), valueobject.ServiceAirtime)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			response.NotFound(c, "Transaction not found")
			return
		}
		response.InternalError(c, "Failed to fetch transaction")
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}

func writePurchaseResult(c *gin.Context, result *command.PurchaseResult) {
	snapshot := dto.NewTransactionResponse(result.Transaction)
	if result.Duplicate {
		response.ErrorWithData(c, 409, "CONFLICT", "Duplicate request", snapshot)
		return
	}
	response.OK(c, snapshot)
}

func writePurchaseError(c *gin.Context, err error) {
	if errors.Is(err, domainErrors.ErrValidation) {
		response.BadRequest(c, err.Error())
		return
	}
	response.InternalError(c, "Purchase failed before reaching the vendor")
}
