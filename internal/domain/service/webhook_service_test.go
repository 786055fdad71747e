package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

const webhookSecret = "test-webhook-secret"

func signedDelivery(t *testing.T, deliveryID, event, body string) WebhookDelivery {
	t.Helper()
	timestamp := "1756300000"
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%s.%s", timestamp, body)
	return WebhookDelivery{
		Signature:  hex.EncodeToString(mac.Sum(nil)),
		Timestamp:  timestamp,
		Event:      event,
		DeliveryID: deliveryID,
		RawBody:    []byte(body),
	}
}

func statusChangedBody(requestID, status string) string {
	return fmt.Sprintf(`{"event":"transaction.status_changed","data":{"request_id":"%s","status":"%s","reference":"IAC-998"}}`, requestID, status)
}

func TestIngestAppliesStatusChange(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "completed-api"))
	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)

	txn, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StatusSuccess, txn.Status)
	assert.Equal(t, "completed-api", txn.ProviderStatus)
	assert.Equal(t, "IAC-998", txn.ProviderReference)
	assert.Equal(t, "dlv-1", txn.WebhookDeliveryID)
	require.NotNil(t, txn.WebhookReceivedAt)
}

func TestIngestRejectsBadSignature(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "completed-api"))
	d.Signature = "deadbeef"

	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookUnauthorized, result.Outcome)

	txn, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StatusProcessing, txn.Status, "unverified delivery must not mutate the row")
}

func TestIngestSignatureCoversTimestamp(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	// Valid signature for the body, but a tampered timestamp header.
	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "completed-api"))
	d.Timestamp = "1756399999"

	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookUnauthorized, result.Outcome)
}

func TestIngestMissingHeaders(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "completed-api"))
	d.DeliveryID = ""

	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookBadRequest, result.Outcome)
}

func TestIngestMalformedBody(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", `{"event":`)
	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookBadRequest, result.Outcome)

	d = signedDelivery(t, "dlv-2", "transaction.status_changed", `{"event":"transaction.status_changed","data":{}}`)
	result, err = svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookBadRequest, result.Outcome, "missing data.request_id")
}

func TestIngestUnsupportedEvent(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	body := `{"event":"wallet.low_balance","data":{"request_id":"req-1"}}`
	d := signedDelivery(t, "dlv-1", "wallet.low_balance", body)

	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result.Outcome)

	txn, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StatusProcessing, txn.Status)
}

func TestIngestUnknownTransactionAcked(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-missing", "completed-api"))
	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err, "unknown ids must be acked, not errored, or the vendor retries forever")
	assert.Equal(t, WebhookIgnored, result.Outcome)
}

func TestIngestDuplicateDeliveryIsIdempotent(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "completed-api"))
	_, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)

	first, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)

	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result.Outcome)
	assert.Equal(t, "duplicate delivery", result.Message)

	second, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "replaying a delivery must leave the stored row byte-identical")
}

func TestIngestTerminalTransactionIgnored(t *testing.T) {
	txn := processingTransaction("req-1")
	require.NoError(t, txn.TransitionTo(valueobject.StatusSuccess))
	repo := newMemoryRepo(txn)
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	// A late delivery claiming failure must not reopen a closed transaction.
	d := signedDelivery(t, "dlv-9", "transaction.status_changed", statusChangedBody("req-1", "unprocessable"))
	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result.Outcome)

	after, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StatusSuccess, after.Status)
}

func TestIngestUnknownStatusStaysProcessing(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "weird-new-status"))
	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)

	txn, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StatusProcessing, txn.Status, "an unknown vendor status must never close a transaction")
	assert.Equal(t, "weird-new-status", txn.ProviderStatus, "the raw vendor status is still recorded")
}

func TestIngestRefundedStatusOnProcessingRow(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, webhookSecret, testLogger())

	// A vendor-initiated refund on an in-flight row routes through FAILED,
	// the same normalization the refund operation uses.
	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "refunded"))
	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)

	txn, err := repo.GetByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StatusRefunded, txn.Status)
	assert.Equal(t, "refunded", txn.ProviderStatus)
}

func TestIngestWithoutSecretAcceptsUnverified(t *testing.T) {
	repo := newMemoryRepo(processingTransaction("req-1"))
	svc := NewWebhookService(repo, "", testLogger())

	d := signedDelivery(t, "dlv-1", "transaction.status_changed", statusChangedBody("req-1", "completed-api"))
	d.Signature = "anything"

	result, err := svc.Ingest(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)
}
