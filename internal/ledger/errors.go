package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// CapExceededError reports a credit that would push the reserve total past
// the global cap. Amounts are in the internal base.
type CapExceededError struct {
	Cap       int64
	Current   int64
	Attempted int64
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("global cap exceeded: cap=%d current=%d attempted=%d",
		e.Cap, e.Current, e.Attempted)
}

// InsufficientFundsError reports a debit larger than the depositor's
// balance. Actual and Attempted are in the internal base.
type InsufficientFundsError struct {
	Depositor uuid.UUID
	Asset     string
	Actual    int64
	Attempted int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: depositor=%s asset=%s actual=%d attempted=%d",
		e.Depositor, e.Asset, e.Actual, e.Attempted)
}
