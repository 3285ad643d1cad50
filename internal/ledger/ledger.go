package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"ReserveVault/internal/fixedpoint"
)

// BalanceKey identifies one depositor's claim in one asset.
type BalanceKey struct {
	Depositor uuid.UUID
	Asset     string
}

// Ledger owns per-depositor balances and the running reserve total. It is
// the sole writer of balance state. Amounts stored here are always in the
// internal fixed-point base; callers normalize before crediting.
//
// The ledger is not internally locked — the vault serializes all logical
// operations against it.
type Ledger struct {
	reserveAsset string
	globalCap    int64 // internal base, immutable after construction
	total        int64
	deposits     uint64
	balances     map[BalanceKey]int64
}

// New constructs a ledger with an immutable global cap denominated in the
// internal base.
func New(reserveAsset string, globalCap int64) (*Ledger, error) {
	if reserveAsset == "" {
		return nil, fmt.Errorf("reserve asset symbol required")
	}
	if globalCap <= 0 {
		return nil, fmt.Errorf("global cap must be positive, got %d", globalCap)
	}
	return &Ledger{
		reserveAsset: reserveAsset,
		globalCap:    globalCap,
		balances:     make(map[BalanceKey]int64),
	}, nil
}

// ReserveAsset returns the symbol all credits land on.
func (l *Ledger) ReserveAsset() string { return l.reserveAsset }

// Cap returns the immutable global cap in the internal base.
func (l *Ledger) Cap() int64 { return l.globalCap }

// ReserveTotal returns the sum of all outstanding reserve-asset credits.
func (l *Ledger) ReserveTotal() int64 { return l.total }

// DepositCount returns the number of successful credits. Advisory only.
func (l *Ledger) DepositCount() uint64 { return l.deposits }

// Balance returns a depositor's balance in an asset, in the internal base.
// Absent keys read as zero; zero is a valid resting value and entries are
// never deleted.
func (l *Ledger) Balance(depositor uuid.UUID, asset string) int64 {
	return l.balances[BalanceKey{Depositor: depositor, Asset: asset}]
}

// Credit records reserveAmount (internal base, already in custody) against
// the depositor. The cap is checked strictly before any mutation, so a
// rejected credit leaves no trace. The source asset and amount are carried
// through to the caller's deposit event purely for audit.
func (l *Ledger) Credit(depositor uuid.UUID, reserveAmount int64) error {
	if reserveAmount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", reserveAmount)
	}

	newTotal := l.total + reserveAmount
	if newTotal > l.globalCap {
		return &CapExceededError{
			Cap:       l.globalCap,
			Current:   l.total,
			Attempted: reserveAmount,
		}
	}

	// Effects only after the check passed. Credits always land on the
	// reserve-asset key; every other key stays zero in correct operation.
	key := BalanceKey{Depositor: depositor, Asset: l.reserveAsset}
	l.balances[key] += reserveAmount
	l.total = newTotal
	l.deposits++

	return nil
}

// Debit validates and settles a withdrawal. amount is in the asset's
// native base; it is normalized to the internal base for the balance
// check and decrement. On success the returned value is the normalized
// amount removed from the ledger, and the caller must release amount (in
// the native base) from custody — only after this call returns, never
// before.
//
// Any asset other than the reserve asset has a zero balance in correct
// operation, so debiting it deterministically fails with
// InsufficientFundsError. That is documented behavior of the
// single-reserve-asset design, not a defect.
func (l *Ledger) Debit(depositor uuid.UUID, assetSymbol string, amount int64, nativeDecimals int) (int64, error) {
	normalized, err := fixedpoint.ToInternalBase(amount, nativeDecimals)
	if err != nil {
		return 0, fmt.Errorf("normalize debit amount: %w", err)
	}
	if normalized <= 0 {
		// A positive native amount can truncate to zero internal units;
		// there is nothing to debit in that case.
		return 0, fmt.Errorf("debit amount %d normalizes to nothing at %d decimals", amount, nativeDecimals)
	}

	key := BalanceKey{Depositor: depositor, Asset: assetSymbol}
	actual := l.balances[key]
	if actual < normalized {
		return 0, &InsufficientFundsError{
			Depositor: depositor,
			Asset:     assetSymbol,
			Actual:    actual,
			Attempted: normalized,
		}
	}

	l.balances[key] = actual - normalized
	l.total -= normalized

	return normalized, nil
}

// RestoreDebit undoes a completed debit after the custody release failed.
// The withdrawal aborts as a unit: the ledger must never stay decremented
// without a successful corresponding transfer. Restoring can never exceed
// the cap because the total held before the debit did not.
func (l *Ledger) RestoreDebit(depositor uuid.UUID, assetSymbol string, normalized int64) {
	key := BalanceKey{Depositor: depositor, Asset: assetSymbol}
	l.balances[key] += normalized
	l.total += normalized
}

// Snapshot returns a copy of all balances plus the total and counter, for
// persistence and invariant checks.
func (l *Ledger) Snapshot() (map[BalanceKey]int64, int64, uint64) {
	out := make(map[BalanceKey]int64, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out, l.total, l.deposits
}

// Restore replaces the ledger state wholesale. Used once at startup when
// recovering from a snapshot; never during live operation.
func (l *Ledger) Restore(balances map[BalanceKey]int64, total int64, deposits uint64) {
	l.balances = make(map[BalanceKey]int64, len(balances))
	for k, v := range balances {
		l.balances[k] = v
	}
	l.total = total
	l.deposits = deposits
}
