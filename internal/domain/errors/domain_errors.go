package errors

import (
	"errors"
	"fmt"
)

var (
	// Request errors
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateRequest = errors.New("duplicate request")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRefundNotAllowed    = errors.New("refund not allowed for current status")

	// Webhook errors
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

// InvalidTransitionError reports a status edge outside the transition table.
// The transaction's stored status is left untouched when this is returned.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

// IsDuplicate reports whether err marks an idempotent duplicate request
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateRequest)
}

// IsNotFound reports whether err marks an unknown transaction
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

// VendorErrorKind classifies a failed vendor call.
type VendorErrorKind int

const (
	// VendorTransient means the call outcome is indeterminate: the purchase
	// may or may not have reached the vendor (timeout, transport failure,
	// malformed response). Only reconciliation may resolve it.
	VendorTransient VendorErrorKind = iota
	// VendorRejected means the vendor definitively reported a business
	// failure; the purchase did not happen.
	VendorRejected
)

// VendorError wraps a failed call to the VTU vendor with its classification.
type VendorError struct {
	Kind    VendorErrorKind
	Op      string
	Message string
	Err     error
}

func (e *VendorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vendor %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("vendor %s: %s", e.Op, e.Message)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}

// IsVendorTransient reports whether err is an indeterminate vendor failure
func IsVendorTransient(err error) bool {
	var ve *VendorError
	return errors.As(err, &ve) && ve.Kind == VendorTransient
}

// IsVendorRejected reports whether err is a definite vendor business failure
func IsVendorRejected(err error) bool {
	var ve *VendorError
	return errors.As(err, &ve) && ve.Kind == VendorRejected
}
