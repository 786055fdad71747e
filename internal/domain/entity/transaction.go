package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

// Transaction is the aggregate root for one VTU purchase. It is a permanent
// financial record: rows are created once and mutated, never deleted.
type Transaction struct {
	ID            uuid.UUID
	RequestID     string
	UserID        string
	Service       valueobject.ServiceType
	Network       valueobject.NetworkType
	Phone         string
	Amount        float64
	AmountCharged float64
	Status        valueobject.TransactionStatus

	// Vendor-origin metadata. None of these drive the state machine.
	ProviderReference string
	ProviderStatus    string
	ProviderResponse  json.RawMessage
	ErrorMessage      string

	// Webhook evidence trail, set at most once per accepted delivery.
	WebhookDeliveryID string
	WebhookPayload    json.RawMessage
	WebhookReceivedAt *time.Time

	RefundReference string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTransaction creates a transaction in INITIATED. This constructor is the
// only place a status is assigned without going through TransitionTo.
func NewTransaction(requestID, userID string, service valueobject.ServiceType, network valueobject.NetworkType, phone string, amount, amountCharged float64) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:            uuid.New(),
		RequestID:     requestID,
		UserID:        userID,
		Service:       service,
		Network:       network,
		Phone:         phone,
		Amount:        amount,
		AmountCharged: amountCharged,
		Status:        valueobject.StatusInitiated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TransitionTo moves the transaction along the status transition table.
// Re-asserting the current status is a harmless no-op. An edge outside the
// table returns InvalidTransitionError and leaves the status untouched.
func (t *Transaction) TransitionTo(target valueobject.TransactionStatus) error {
	if t.Status == target {
		return nil
	}
	if !t.Status.CanTransitionTo(target) {
		return &domainErrors.InvalidTransitionError{
			From: t.Status.String(),
			To:   target.String(),
		}
	}
	t.Status = target
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal returns true if the transaction finished normal processing
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// RefundEligible reports whether a refund may be issued: the purchase
// definitely failed, or it has sat in PROCESSING unchanged for longer than
// stuckAfter. lastChange falls back to CreatedAt for rows never updated.
func (t *Transaction) RefundEligible(now time.Time, stuckAfter time.Duration) bool {
	switch t.Status {
	case valueobject.StatusFailed:
		return true
	case valueobject.StatusProcessing:
		lastChange := t.UpdatedAt
		if lastChange.IsZero() {
			lastChange = t.CreatedAt
		}
		return now.Sub(lastChange) > stuckAfter
	default:
		return false
	}
}

// RecordWebhook stores the evidence trail for an accepted webhook delivery
func (t *Transaction) RecordWebhook(deliveryID string, payload json.RawMessage, receivedAt time.Time) {
	t.WebhookDeliveryID = deliveryID
	t.WebhookPayload = payload
	t.WebhookReceivedAt = &receivedAt
	t.Touch()
}

// Touch marks the transaction as mutated. Persistence writes UpdatedAt from
// the entity, so untouched read-modify-write cycles stay byte-identical.
func (t *Transaction) Touch() {
	t.UpdatedAt = time.Now().UTC()
}
