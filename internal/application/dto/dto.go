package dto

import (
	"time"

	"github.com/vectra/vtu-backend/internal/domain/entity"
)

// PurchaseAirtimeRequest is the intake payload for an airtime purchase.
// RequestID is an optional client-supplied idempotency key.
type PurchaseAirtimeRequest struct {
	RequestID     string  `json:"request_id"`
	UserID        string  `json:"user_id"`
	Phone         string  `json:"phone" binding:"required"`
	Network       string  `json:"network" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	AmountCharged float64 `json:"amount_charged" binding:"required"`
}

// PurchaseDataRequest is the intake payload for a data-plan purchase
type PurchaseDataRequest struct {
	RequestID     string  `json:"request_id"`
	UserID        string  `json:"user_id"`
	Phone         string  `json:"phone" binding:"required"`
	Network       string  `json:"network" binding:"required"`
	PlanID        int     `json:"plan_id" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	AmountCharged float64 `json:"amount_charged" binding:"required"`
}

// RefundRequest carries the operator-supplied refund reason
type RefundRequest struct {
	Reason string `json:"reason"`
}

// TransactionResponse is the API snapshot of a transaction
type TransactionResponse struct {
	ID                string     `json:"id"`
	RequestID         string     `json:"request_id"`
	UserID            string     `json:"user_id,omitempty"`
	Service           string     `json:"service"`
	Network           string     `json:"network"`
	Phone             string     `json:"phone"`
	Amount            float64    `json:"amount"`
	AmountCharged     float64    `json:"amount_charged"`
	Status            string     `json:"status"`
	ProviderReference string     `json:"provider_reference,omitempty"`
	ProviderStatus    string     `json:"provider_status,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	RefundReference   string     `json:"refund_reference,omitempty"`
	WebhookReceivedAt *time.Time `json:"webhook_received_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewTransactionResponse maps a transaction entity to its API snapshot
func NewTransactionResponse(txn *entity.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                txn.ID.String(),
		RequestID:         txn.RequestID,
		UserID:            txn.UserID,
		Service:           txn.Service.String(),
		Network:           txn.Network.String(),
		Phone:             txn.Phone,
		Amount:            txn.Amount,
		AmountCharged:     txn.AmountCharged,
		Status:            txn.Status.String(),
		ProviderReference: txn.ProviderReference,
		ProviderStatus:    txn.ProviderStatus,
		ErrorMessage:      txn.ErrorMessage,
		RefundReference:   txn.RefundReference,
		WebhookReceivedAt: txn.WebhookReceivedAt,
		CreatedAt:         txn.CreatedAt,
		UpdatedAt:         txn.UpdatedAt,
	}
}
