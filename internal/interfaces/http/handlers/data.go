package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vectra/vtu-backend/internal/application/command"
	"github.com/vectra/vtu-backend/internal/application/dto"
	"github.com/vectra/vtu-backend/internal/application/query"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
	"github.com/vectra/vtu-backend/internal/interfaces/http/response"
)

// DataHandler serves data-plan purchases, status polling and the vendor's
// plan catalog
type DataHandler struct {
	purchase     *command.PurchaseCommand
	transactions *query.TransactionQuery
	gateway      service.VendorGateway
}

// NewDataHandler creates a data handler
func NewDataHandler(purchase *command.PurchaseCommand, transactions *query.TransactionQuery, gateway service.VendorGateway) *DataHandler {
	return &DataHandler{purchase: purchase, transactions: transactions, gateway: gateway}
}

// Purchase handles POST /api/v1/data/purchase
func (h *DataHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.purchase.ExecuteData(c.Request.Context(), &req)
	if err != nil {
		writePurchaseError(c, err)
		return
	}
	writePurchaseResult(c, result)
}

// Status handles GET /api/v1/data/status/:request_id
func (h *DataHandler) Status(c *gin.Context) {
	txn, err := h.transactions.ByRequestIDForService(c.Request.Context(), c.Param("request_id"), valueobject.ServiceData)
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

// Plans handles GET /api/v1/data/plans?network=
func (h *DataHandler) Plans(c *gin.Context) {
	network, err := valueobject.NewNetworkType(c.Query("network"))
	if err != nil {
		response.BadRequest(c, "network must be one of mtn, glo, airtel, 9mobile")
		return
	}

	plans, err := h.gateway.GetDataPlans(c.Request.Context(), network)
	if err != nil {
		response.BadGateway(c, "Failed to fetch data plans from vendor")
		return
	}
	response.OK(c, plans)
}
