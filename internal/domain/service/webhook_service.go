package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/domain/entity"
	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/repository"
)

// WebhookDelivery is one inbound vendor callback, headers plus raw body
type WebhookDelivery struct {
	Signature  string
	Timestamp  string
	Event      string
	DeliveryID string
	RawBody    []byte
}

// WebhookOutcome classifies how a delivery was handled
type WebhookOutcome int

const (
	// WebhookProcessed means the delivery was applied to a transaction
	WebhookProcessed WebhookOutcome = iota
	// WebhookIgnored means the delivery was acknowledged without effect
	// (unknown transaction, duplicate delivery, unsupported event, terminal
	// transaction). The vendor retries on failure, so these are 200s.
	WebhookIgnored
	// WebhookBadRequest means the delivery was structurally invalid
	WebhookBadRequest
	// WebhookUnauthorized means the signature did not verify
	WebhookUnauthorized
)

// WebhookResult carries the outcome and an operator-facing message
type WebhookResult struct {
	Outcome WebhookOutcome
	Message string
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		RequestID    string `json:"request_id"`
		Status       string `json:"status"`
		Reference    string `json:"reference"`
		ErrorMessage string `json:"error_message"`
	} `json:"data"`
}

// supportedWebhookEvents lists the vendor events this system reacts to.
// Anything else is acknowledged and dropped for forward compatibility.
var supportedWebhookEvents = map[string]bool{
	"transaction.created":        true,
	"transaction.status_changed": true,
}

// WebhookService verifies, deduplicates and applies vendor webhook
// deliveries. All mutation happens inside the repository's row lock, so a
// delivery never races the purchase flow or a concurrent requery.
type WebhookService struct {
	transactions repository.TransactionRepository
	secret       string
	logger       *zap.Logger
}

// NewWebhookService creates a webhook service. An empty secret disables
// signature verification; deliveries are then processed but flagged.
func NewWebhookService(transactions repository.TransactionRepository, secret string, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		transactions: transactions,
		secret:       secret,
		logger:       logger,
	}
}

// Ingest runs the full webhook pipeline for one delivery. The returned error
// is reserved for infrastructure failures (storage); every vendor-facing
// verdict is expressed through the WebhookResult.
func (s *WebhookService) Ingest(ctx context.Context, d WebhookDelivery) (WebhookResult, error) {
	if d.Signature == "" || d.Timestamp == "" || d.Event == "" || d.DeliveryID == "" {
		s.logger.Warn("webhook missing required headers",
			zap.String("event", d.Event),
			zap.String("delivery_id", d.DeliveryID),
		)
		return WebhookResult{WebhookBadRequest, "missing required headers"}, nil
	}

	if s.secret != "" {
		if !verifySignature(d.Timestamp, d.Signature, d.RawBody, s.secret) {
			s.logger.Warn("webhook signature mismatch", zap.String("delivery_id", d.DeliveryID))
			return WebhookResult{WebhookUnauthorized, "invalid signature"}, nil
		}
	} else {
		s.logger.Warn("webhook secret not configured, delivery accepted unverified",
			zap.String("delivery_id", d.DeliveryID),
		)
	}

	var payload webhookPayload
	if err := json.Unmarshal(d.RawBody, &payload); err != nil {
		return WebhookResult{WebhookBadRequest, "invalid JSON body"}, nil
	}
	if payload.Event == "" || payload.Data.RequestID == "" {
		return WebhookResult{WebhookBadRequest, "missing event or data.request_id"}, nil
	}

	if !supportedWebhookEvents[payload.Event] {
		s.logger.Info("ignoring unsupported webhook event",
			zap.String("event", payload.Event),
			zap.String("delivery_id", d.DeliveryID),
		)
		return WebhookResult{WebhookIgnored, "event not supported"}, nil
	}

	var result WebhookResult
	receivedAt := time.Now().UTC()

	_, err := s.transactions.Mutate(ctx, payload.Data.RequestID, func(txn *entity.Transaction) error {
		if txn.WebhookDeliveryID != "" && txn.WebhookDeliveryID == d.DeliveryID {
			s.logger.Info("duplicate webhook delivery ignored",
				zap.String("request_id", txn.RequestID),
				zap.String("delivery_id", d.DeliveryID),
			)
			result = WebhookResult{WebhookIgnored, "duplicate delivery"}
			return nil
		}

		// A late delivery must never reopen a closed transaction.
		if txn.Status.IsTerminal() {
			s.logger.Info("webhook for terminal transaction ignored",
				zap.String("request_id", txn.RequestID),
				zap.String("status", txn.Status.String()),
				zap.String("delivery_id", d.DeliveryID),
			)
			result = WebhookResult{WebhookIgnored, "transaction already terminal"}
			return nil
		}

		if payload.Data.Status != "" {
			txn.ProviderStatus = payload.Data.Status
			target := NormalizeVendorStatus(payload.Data.Status)
			if err := applyNormalizedStatus(txn, target); err != nil {
				// Bookkeeping conflict on our side; the vendor still gets a 200.
				s.logger.Error("webhook status transition rejected",
					zap.String("request_id", txn.RequestID),
					zap.String("delivery_id", d.DeliveryID),
					zap.Error(err),
				)
			}
		}
		if payload.Data.Reference != "" {
			txn.ProviderReference = payload.Data.Reference
		}
		if payload.Data.ErrorMessage != "" {
			txn.ErrorMessage = payload.Data.ErrorMessage
		}

		// Evidence trail is persisted regardless of the transition verdict.
		txn.RecordWebhook(d.DeliveryID, json.RawMessage(d.RawBody), receivedAt)
		result = WebhookResult{WebhookProcessed, "webhook processed"}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			// At-least-once delivery may reference ids this system never
			// created. Acknowledge so the vendor stops retrying.
			s.logger.Warn("webhook for unknown transaction ignored",
				zap.String("request_id", payload.Data.RequestID),
				zap.String("delivery_id", d.DeliveryID),
			)
			return WebhookResult{WebhookIgnored, "transaction not found"}, nil
		}
		return WebhookResult{}, err
	}

	s.logger.Info("webhook delivery handled",
		zap.String("request_id", payload.Data.RequestID),
		zap.String("delivery_id", d.DeliveryID),
		zap.String("result", result.Message),
	)
	return result, nil
}

// verifySignature recomputes HMAC-SHA256 over timestamp + "." + body and
// compares in constant time.
func verifySignature(timestamp, signature string, rawBody []byte, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
