package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

func TestRequery(t *testing.T) {
	t.Run("applies vendor status", func(t *testing.T) {
		repo := newMemoryRepo(processingTransaction("req-1"))
		gateway := &stubGateway{requeryResults: map[string]*VendorResult{
			"req-1": {Success: true, Status: "completed-api", Reference: "IAC-42", Raw: []byte(`{"status":"completed-api"}`)},
		}}
		svc := NewReconciliationService(repo, gateway, 0, testLogger())

		txn, err := svc.Requery(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusSuccess, txn.Status)
		assert.Equal(t, "completed-api", txn.ProviderStatus)
		assert.Equal(t, "IAC-42", txn.ProviderReference)
	})

	t.Run("terminal transaction skips the vendor", func(t *testing.T) {
		seed := processingTransaction("req-1")
		require.NoError(t, seed.TransitionTo(valueobject.StatusSuccess))
		repo := newMemoryRepo(seed)
		gateway := &stubGateway{}
		svc := NewReconciliationService(repo, gateway, 0, testLogger())

		txn, err := svc.Requery(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusSuccess, txn.Status)
		assert.Equal(t, 0, gateway.requeryCalls)
	})

	t.Run("vendor rejection finalizes the row", func(t *testing.T) {
		repo := newMemoryRepo(processingTransaction("req-1"))
		gateway := &stubGateway{
			requeryResults: map[string]*VendorResult{
				"req-1": {Status: "unprocessable", Reference: "IAC-9", Raw: []byte(`{"success":false,"status":"unprocessable"}`)},
			},
			requeryErr: &domainErrors.VendorError{
				Kind: domainErrors.VendorRejected, Op: "requery", Message: "order failed",
			},
		}
		svc := NewReconciliationService(repo, gateway, 0, testLogger())

		txn, err := svc.Requery(context.Background(), "req-1")
		require.NoError(t, err, "a definitive verdict is not a failed requery")
		assert.Equal(t, valueobject.StatusFailed, txn.Status)
		assert.Equal(t, "unprocessable", txn.ProviderStatus)
		assert.Equal(t, "IAC-9", txn.ProviderReference)
		assert.NotEmpty(t, txn.ProviderResponse)
		assert.Contains(t, txn.ErrorMessage, "order failed")
	})

	t.Run("vendor rejection without a reply body", func(t *testing.T) {
		repo := newMemoryRepo(processingTransaction("req-1"))
		gateway := &stubGateway{requeryErr: &domainErrors.VendorError{
			Kind: domainErrors.VendorRejected, Op: "requery", Message: "unknown order",
		}}
		svc := NewReconciliationService(repo, gateway, 0, testLogger())

		txn, err := svc.Requery(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusFailed, txn.Status)
		assert.Contains(t, txn.ErrorMessage, "unknown order")
	})

	t.Run("vendor reports refunded", func(t *testing.T) {
		repo := newMemoryRepo(processingTransaction("req-1"))
		gateway := &stubGateway{requeryResults: map[string]*VendorResult{
			"req-1": {Success: true, Status: "refunded", Raw: []byte(`{}`)},
		}}
		svc := NewReconciliationService(repo, gateway, 0, testLogger())

		txn, err := svc.Requery(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusRefunded, txn.Status, "a vendor-side refund routes through FAILED")
	})

	t.Run("vendor failure propagates", func(t *testing.T) {
		repo := newMemoryRepo(processingTransaction("req-1"))
		gateway := &stubGateway{requeryErr: &domainErrors.VendorError{
			Kind: domainErrors.VendorTransient, Op: "requery", Message: "timeout",
		}}
		svc := NewReconciliationService(repo, gateway, 0, testLogger())

		_, err := svc.Requery(context.Background(), "req-1")
		require.Error(t, err)
		assert.True(t, domainErrors.IsVendorTransient(err))

		// The row is untouched and stays reconcilable.
		txn, err := repo.GetByRequestID(context.Background(), "req-1")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusProcessing, txn.Status)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		svc := NewReconciliationService(newMemoryRepo(), &stubGateway{}, 0, testLogger())
		_, err := svc.Requery(context.Background(), "req-missing")
		assert.True(t, domainErrors.IsNotFound(err))
	})
}

func TestRefund(t *testing.T) {
	t.Run("failed transaction", func(t *testing.T) {
		seed := processingTransaction("req-1")
		require.NoError(t, seed.TransitionTo(valueobject.StatusFailed))
		repo := newMemoryRepo(seed)
		svc := NewReconciliationService(repo, &stubGateway{}, 0, testLogger())

		txn, err := svc.Refund(context.Background(), "req-1", "vendor rejected")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusRefunded, txn.Status)
		assert.True(t, strings.HasPrefix(txn.RefundReference, "REF_"))
		assert.True(t, strings.HasSuffix(txn.RefundReference, "_req-1"))
	})

	t.Run("stuck processing normalizes through failed", func(t *testing.T) {
		seed := processingTransaction("req-stuck-01")
		seed.UpdatedAt = time.Now().UTC().Add(-time.Hour)
		repo := newMemoryRepo(seed)
		svc := NewReconciliationService(repo, &stubGateway{}, 10*time.Minute, testLogger())

		txn, err := svc.Refund(context.Background(), "req-stuck-01", "stuck")
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusRefunded, txn.Status)
		assert.Contains(t, txn.ErrorMessage, "stuck in PROCESSING")
		assert.True(t, strings.HasSuffix(txn.RefundReference, "_uck-01"), "reference carries the last six characters of the request id")
	})

	t.Run("fresh processing is rejected", func(t *testing.T) {
		repo := newMemoryRepo(processingTransaction("req-1"))
		svc := NewReconciliationService(repo, &stubGateway{}, 10*time.Minute, testLogger())

		_, err := svc.Refund(context.Background(), "req-1", "impatient")
		assert.ErrorIs(t, err, domainErrors.ErrRefundNotAllowed)

		txn, getErr := repo.GetByRequestID(context.Background(), "req-1")
		require.NoError(t, getErr)
		assert.Equal(t, valueobject.StatusProcessing, txn.Status)
		assert.Equal(t, "", txn.RefundReference)
	})

	t.Run("success is rejected", func(t *testing.T) {
		seed := processingTransaction("req-1")
		require.NoError(t, seed.TransitionTo(valueobject.StatusSuccess))
		repo := newMemoryRepo(seed)
		svc := NewReconciliationService(repo, &stubGateway{}, 0, testLogger())

		_, err := svc.Refund(context.Background(), "req-1", "no")
		assert.ErrorIs(t, err, domainErrors.ErrRefundNotAllowed)
	})

	t.Run("second refund is rejected", func(t *testing.T) {
		seed := processingTransaction("req-1")
		require.NoError(t, seed.TransitionTo(valueobject.StatusFailed))
		repo := newMemoryRepo(seed)
		svc := NewReconciliationService(repo, &stubGateway{}, 0, testLogger())

		_, err := svc.Refund(context.Background(), "req-1", "first")
		require.NoError(t, err)

		_, err = svc.Refund(context.Background(), "req-1", "second")
		assert.ErrorIs(t, err, domainErrors.ErrRefundNotAllowed)
	})
}

func TestReconcileStuck(t *testing.T) {
	old := time.Now().UTC().Add(-time.Hour)

	stuck1 := processingTransaction("req-stuck-1")
	stuck1.UpdatedAt = old
	stuck2 := processingTransaction("req-stuck-2")
	stuck2.UpdatedAt = old
	fresh := processingTransaction("req-fresh")

	repo := newMemoryRepo(stuck1, stuck2, fresh)
	gateway := &stubGateway{requeryResults: map[string]*VendorResult{
		"req-stuck-1": {Success: true, Status: "completed-api", Raw: []byte(`{}`)},
		"req-stuck-2": {Success: true, Status: "unprocessable", Raw: []byte(`{}`)},
	}}
	svc := NewReconciliationService(repo, gateway, 10*time.Minute, testLogger())

	requeried, err := svc.ReconcileStuck(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, requeried)

	txn1, _ := repo.GetByRequestID(context.Background(), "req-stuck-1")
	assert.Equal(t, valueobject.StatusSuccess, txn1.Status)
	txn2, _ := repo.GetByRequestID(context.Background(), "req-stuck-2")
	assert.Equal(t, valueobject.StatusFailed, txn2.Status)
	freshAfter, _ := repo.GetByRequestID(context.Background(), "req-fresh")
	assert.Equal(t, valueobject.StatusProcessing, freshAfter.Status, "fresh rows are not swept")
}

func TestReconcileStuckSkipsFailures(t *testing.T) {
	old := time.Now().UTC().Add(-time.Hour)
	stuck := processingTransaction("req-stuck-1")
	stuck.UpdatedAt = old

	repo := newMemoryRepo(stuck)
	gateway := &stubGateway{requeryErr: &domainErrors.VendorError{
		Kind: domainErrors.VendorTransient, Op: "requery", Message: "vendor down",
	}}
	svc := NewReconciliationService(repo, gateway, 10*time.Minute, testLogger())

	requeried, err := svc.ReconcileStuck(context.Background(), 100)
	require.NoError(t, err, "an unreachable row must not stall the sweep")
	assert.Equal(t, 0, requeried)
}

func TestNormalizeVendorStatus(t *testing.T) {
	assert.Equal(t, valueobject.StatusProcessing, NormalizeVendorStatus("processing-api"))
	assert.Equal(t, valueobject.StatusSuccess, NormalizeVendorStatus("completed-api"))
	assert.Equal(t, valueobject.StatusRefunded, NormalizeVendorStatus("refunded"))
	assert.Equal(t, valueobject.StatusFailed, NormalizeVendorStatus("unprocessable"))
	assert.Equal(t, valueobject.StatusFailed, NormalizeVendorStatus("422"))

	// Unknown vocabulary must never map to a terminal state.
	assert.Equal(t, valueobject.StatusProcessing, NormalizeVendorStatus(""))
	assert.Equal(t, valueobject.StatusProcessing, NormalizeVendorStatus("COMPLETED"))
	assert.Equal(t, valueobject.StatusProcessing, NormalizeVendorStatus("delivered"))
}
