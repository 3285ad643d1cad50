package ledger

import "fmt"

// InvariantValidator checks the accounting invariants after mutations.
// Violations indicate a programming error, never bad input.
type InvariantValidator struct {
	ledger *Ledger
}

func NewInvariantValidator(l *Ledger) *InvariantValidator {
	return &InvariantValidator{ledger: l}
}

// ValidateReserveTotal verifies ReserveTotal == Σ balances[*, reserveAsset].
func (v *InvariantValidator) ValidateReserveTotal() error {
	var sum int64
	balances, total, _ := v.ledger.Snapshot()
	for key, bal := range balances {
		if key.Asset == v.ledger.ReserveAsset() {
			sum += bal
		}
	}
	if sum != total {
		return fmt.Errorf("reserve total %d does not match balance sum %d", total, sum)
	}
	return nil
}

// ValidateCap verifies ReserveTotal <= GlobalCap.
func (v *InvariantValidator) ValidateCap() error {
	if total := v.ledger.ReserveTotal(); total > v.ledger.Cap() {
		return fmt.Errorf("reserve total %d exceeds global cap %d", total, v.ledger.Cap())
	}
	return nil
}

// ValidateNonReserveZero verifies that no non-reserve key holds value.
// Credits always land on the reserve-asset key, so any other non-zero
// entry means the ledger was corrupted.
func (v *InvariantValidator) ValidateNonReserveZero() error {
	balances, _, _ := v.ledger.Snapshot()
	for key, bal := range balances {
		if key.Asset != v.ledger.ReserveAsset() && bal != 0 {
			return fmt.Errorf("non-reserve balance for depositor=%s asset=%s is %d, want 0",
				key.Depositor, key.Asset, bal)
		}
	}
	return nil
}

// ValidateAll runs every invariant check.
func (v *InvariantValidator) ValidateAll() error {
	if err := v.ValidateReserveTotal(); err != nil {
		return err
	}
	if err := v.ValidateCap(); err != nil {
		return err
	}
	return v.ValidateNonReserveZero()
}
