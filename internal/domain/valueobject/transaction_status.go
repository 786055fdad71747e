package valueobject

import (
	"errors"
)

var (
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
)

type TransactionStatus string

const (
	StatusInitiated  TransactionStatus = "INITIATED"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusSuccess    TransactionStatus = "SUCCESS"
	StatusFailed     TransactionStatus = "FAILED"
	StatusRefunded   TransactionStatus = "REFUNDED"
)

// allowedTransitions is the closed transition table for a transaction's
// lifetime. FAILED→REFUNDED exists so a refund of a failed (or timed-out)
// purchase is expressible; REFUNDED accepts nothing.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	StatusInitiated:  {StatusProcessing},
	StatusProcessing: {StatusSuccess, StatusFailed},
	StatusSuccess:    {StatusRefunded},
	StatusFailed:     {StatusRefunded},
	StatusRefunded:   {},
}

// NewTransactionStatus creates a TransactionStatus value object
func NewTransactionStatus(status string) (TransactionStatus, error) {
	s := TransactionStatus(status)
	switch s {
	case StatusInitiated, StatusProcessing, StatusSuccess, StatusFailed, StatusRefunded:
		return s, nil
	default:
		return "", ErrInvalidTransactionStatus
	}
}

// String returns the string representation of the status
func (s TransactionStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the edge s→target is in the transition
// table. Re-asserting the current status is always allowed.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	if s == target {
		return true
	}
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true once no normal processing may move the status.
// SUCCESS and FAILED keep the single refund escape hatch.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusRefunded
}
