package vault

import (
	"errors"
	"fmt"

	"ReserveVault/internal/exchange"
	"ReserveVault/internal/ledger"
)

// ErrBusy rejects an operation while another is in flight. The vault is
// single-threaded per logical operation; callers retry.
var ErrBusy = errors.New("vault busy: another operation is in flight")

// InputError rejects a request before any state change or external call.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid request: " + e.Reason
}

// ConversionError wraps a hard exchange failure or a zero-output swap.
// The whole deposit aborts with no ledger mutation.
type ConversionError struct {
	Asset string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion of %s failed: %v", e.Asset, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// TransferError wraps a failed value movement at the custody boundary.
// For withdrawals the ledger debit is restored before this surfaces, so
// the operation aborts as a unit.
type TransferError struct {
	Asset     string
	Recipient string
	Amount    int64
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %d %s to %s failed: %v", e.Amount, e.Asset, e.Recipient, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ErrorClass buckets errors for metrics labels and HTTP status mapping.
type ErrorClass string

const (
	ClassInput             ErrorClass = "input"
	ClassCapacity          ErrorClass = "capacity"
	ClassConversion        ErrorClass = "conversion"
	ClassInsufficientFunds ErrorClass = "insufficient_funds"
	ClassTransfer          ErrorClass = "transfer"
	ClassBusy              ErrorClass = "busy"
	ClassInternal          ErrorClass = "internal"
)

// Classify maps an operation error to its taxonomy class.
func Classify(err error) ErrorClass {
	var (
		inputErr *InputError
		capErr   *ledger.CapExceededError
		insufErr *ledger.InsufficientFundsError
		convErr  *ConversionError
		xferErr  *TransferError
	)
	switch {
	case errors.Is(err, ErrBusy):
		return ClassBusy
	case errors.As(err, &inputErr), errors.Is(err, exchange.ErrZeroInput):
		return ClassInput
	case errors.As(err, &capErr):
		return ClassCapacity
	case errors.As(err, &insufErr):
		return ClassInsufficientFunds
	case errors.As(err, &convErr):
		return ClassConversion
	case errors.As(err, &xferErr):
		return ClassTransfer
	default:
		return ClassInternal
	}
}
