package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/interfaces/http/response"
)

// Webhook headers sent by the vendor
const (
	headerSignature = "X-VTU-Signature"
	headerTimestamp = "X-VTU-Timestamp"
	headerEvent     = "X-VTU-Event"
	headerDelivery  = "X-VTU-Delivery"
)

// WebhookHandler receives vendor callbacks. The ingest pipeline decides the
// verdict; this handler only translates it to HTTP. Anything processed or
// intentionally ignored is a 200 so the vendor stops redelivering.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// IACafeWebhook handles POST /webhooks/iacafe
func (h *WebhookHandler) IACafeWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "Failed to read body")
		return
	}

	delivery := service.WebhookDelivery{
		Signature:  c.GetHeader(headerSignature),
		Timestamp:  c.GetHeader(headerTimestamp),
		Event:      c.GetHeader(headerEvent),
		DeliveryID: c.GetHeader(headerDelivery),
		RawBody:    rawBody,
	}

	result, err := h.webhooks.Ingest(c.Request.Context(), delivery)
	if err != nil {
		response.InternalError(c, "Failed to process webhook")
		return
	}

	switch result.Outcome {
	case service.WebhookBadRequest:
		response.BadRequest(c, result.Message)
	case service.WebhookUnauthorized:
		response.Unauthorized(c, result.Message)
	default:
		response.OK(c, gin.H{
			"message":     result.Message,
			"delivery_id": delivery.DeliveryID,
		})
	}
}
