package service

import (
	"context"
	"encoding/json"

	"github.com/vectra/vtu-backend/internal/domain/entity"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
)

// VendorResult is the outcome of a vendor call that actually reached the
// vendor. Raw preserves the response verbatim for audit and replay.
type VendorResult struct {
	Success   bool
	Status    string
	Reference string
	Message   string
	Raw       json.RawMessage
}

// DataPlan is one entry of the vendor's data-plan catalog
type DataPlan struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Validity string  `json:"validity,omitempty"`
}

// VendorGateway is the port to the VTU vendor. Implementations classify call
// failures as domain VendorErrors: transient (indeterminate outcome) versus
// rejected (definite business failure). A gateway never decides that a
// timeout equals a failed charge. A rejected call returns the populated
// result alongside the error so callers can persist the vendor's reply.
type VendorGateway interface {
	PurchaseAirtime(ctx context.Context, requestID, phone string, network valueobject.NetworkType, amount float64) (*VendorResult, error)
	PurchaseData(ctx context.Context, requestID, phone string, network valueobject.NetworkType, planID int) (*VendorResult, error)
	Requery(ctx context.Context, requestID string) (*VendorResult, error)
	GetDataPlans(ctx context.Context, network valueobject.NetworkType) ([]DataPlan, error)
}

// vendorStatusMap is the closed mapping from the vendor's status vocabulary
// to internal statuses.
var vendorStatusMap = map[string]valueobject.TransactionStatus{
	"processing-api": valueobject.StatusProcessing,
	"completed-api":  valueobject.StatusSuccess,
	"refunded":       valueobject.StatusRefunded,
	"unprocessable":  valueobject.StatusFailed,
	"422":            valueobject.StatusFailed,
}

// NormalizeVendorStatus maps a vendor-native status string to an internal
// status. Unrecognized statuses normalize to PROCESSING, never to a terminal
// state: an unknown vendor status must not be read as success or failure.
func NormalizeVendorStatus(vendorStatus string) valueobject.TransactionStatus {
	if status, ok := vendorStatusMap[vendorStatus]; ok {
		return status
	}
	return valueobject.StatusProcessing
}

// applyNormalizedStatus moves txn to target through the transition table. A
// vendor-initiated refund on an in-flight row routes through FAILED, the same
// normalization the refund operation uses.
func applyNormalizedStatus(txn *entity.Transaction, target valueobject.TransactionStatus) error {
	if target == valueobject.StatusRefunded && txn.Status == valueobject.StatusProcessing {
		if err := txn.TransitionTo(valueobject.StatusFailed); err != nil {
			return err
		}
	}
	return txn.TransitionTo(target)
}
