package ledger_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"ReserveVault/internal/ledger"
)

const (
	reserveSymbol = "USDT"
	globalCap     = int64(1_000_000_000)
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(reserveSymbol, globalCap)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

// ============================================================================
// Test: Credit
// ============================================================================

func TestCredit_Accumulates(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 250); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(depositor, 750); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if got := l.Balance(depositor, reserveSymbol); got != 1_000 {
		t.Errorf("balance = %d, want 1000", got)
	}
	if got := l.ReserveTotal(); got != 1_000 {
		t.Errorf("reserve total = %d, want 1000", got)
	}
	if got := l.DepositCount(); got != 2 {
		t.Errorf("deposit count = %d, want 2", got)
	}
}

func TestCredit_RejectsNonPositive(t *testing.T) {
	l := newLedger(t)
	if err := l.Credit(uuid.New(), 0); err == nil {
		t.Error("expected error for zero credit")
	}
	if err := l.Credit(uuid.New(), -1); err == nil {
		t.Error("expected error for negative credit")
	}
}

func TestCredit_CapBoundary(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, globalCap-1); err != nil {
		t.Fatalf("credit below cap: %v", err)
	}

	// One unit past the remaining headroom must fail with the exact
	// accounting values.
	err := l.Credit(depositor, 2)
	var capErr *ledger.CapExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("got %v, want CapExceededError", err)
	}
	if capErr.Cap != globalCap || capErr.Current != globalCap-1 || capErr.Attempted != 2 {
		t.Errorf("got cap=%d current=%d attempted=%d, want %d/%d/2",
			capErr.Cap, capErr.Current, capErr.Attempted, globalCap, globalCap-1)
	}

	// Filling exactly to the cap is allowed; the cap is inclusive.
	if err := l.Credit(depositor, 1); err != nil {
		t.Fatalf("credit to exact cap: %v", err)
	}
	if l.ReserveTotal() != globalCap {
		t.Errorf("reserve total = %d, want %d", l.ReserveTotal(), globalCap)
	}
	if err := l.Credit(depositor, 1); err == nil {
		t.Error("expected cap error at full reserve")
	}
}

func TestCredit_CapRejectionLeavesNoTrace(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(depositor, globalCap); err == nil {
		t.Fatal("expected cap error")
	}

	if got := l.Balance(depositor, reserveSymbol); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
	if got := l.ReserveTotal(); got != 100 {
		t.Errorf("reserve total = %d, want 100", got)
	}
	if got := l.DepositCount(); got != 1 {
		t.Errorf("deposit count = %d, want 1", got)
	}
}

// ============================================================================
// Test: Debit
// ============================================================================

func TestDebit_SamePrecision(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 1_000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	normalized, err := l.Debit(depositor, reserveSymbol, 400, 6)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if normalized != 400 {
		t.Errorf("normalized = %d, want 400", normalized)
	}
	if got := l.Balance(depositor, reserveSymbol); got != 600 {
		t.Errorf("balance = %d, want 600", got)
	}
	if got := l.ReserveTotal(); got != 600 {
		t.Errorf("reserve total = %d, want 600", got)
	}
}

func TestDebit_NormalizesNativeBase(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 5_000_000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 3 whole units at 0 native decimals is 3_000_000 internal.
	normalized, err := l.Debit(depositor, reserveSymbol, 3, 0)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if normalized != 3_000_000 {
		t.Errorf("normalized = %d, want 3000000", normalized)
	}
	if got := l.Balance(depositor, reserveSymbol); got != 2_000_000 {
		t.Errorf("balance = %d, want 2000000", got)
	}
}

func TestDebit_DrainToZeroThenOne(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 1_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := l.Debit(depositor, reserveSymbol, 1_000, 6); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := l.Balance(depositor, reserveSymbol); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}

	// Zero is a valid resting balance; one more unit is a clean
	// insufficient-funds rejection, not a missing-account error.
	_, err := l.Debit(depositor, reserveSymbol, 1, 6)
	var insufErr *ledger.InsufficientFundsError
	if !errors.As(err, &insufErr) {
		t.Fatalf("got %v, want InsufficientFundsError", err)
	}
	if insufErr.Actual != 0 || insufErr.Attempted != 1 {
		t.Errorf("got actual=%d attempted=%d, want 0/1", insufErr.Actual, insufErr.Attempted)
	}
}

func TestDebit_NonReserveAssetAlwaysInsufficient(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 1_000_000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Credits only ever land on the reserve asset, so any other asset
	// deterministically reads zero.
	_, err := l.Debit(depositor, "WBTC", 1, 8)
	var insufErr *ledger.InsufficientFundsError
	if !errors.As(err, &insufErr) {
		t.Fatalf("got %v, want InsufficientFundsError", err)
	}
	if insufErr.Asset != "WBTC" || insufErr.Actual != 0 {
		t.Errorf("got asset=%s actual=%d, want WBTC/0", insufErr.Asset, insufErr.Actual)
	}
}

func TestDebit_AmountTruncatingToZeroRejected(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 1_000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 999 at 9 native decimals normalizes below one internal unit.
	if _, err := l.Debit(depositor, reserveSymbol, 999, 9); err == nil {
		t.Error("expected error for amount that normalizes to nothing")
	}
	if got := l.Balance(depositor, reserveSymbol); got != 1_000 {
		t.Errorf("balance = %d, want 1000", got)
	}
}

func TestRestoreDebit(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 1_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	normalized, err := l.Debit(depositor, reserveSymbol, 400, 6)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	l.RestoreDebit(depositor, reserveSymbol, normalized)

	if got := l.Balance(depositor, reserveSymbol); got != 1_000 {
		t.Errorf("balance = %d, want 1000", got)
	}
	if got := l.ReserveTotal(); got != 1_000 {
		t.Errorf("reserve total = %d, want 1000", got)
	}
}

// ============================================================================
// Test: Snapshot / Restore
// ============================================================================

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	l := newLedger(t)
	a, b := uuid.New(), uuid.New()

	if err := l.Credit(a, 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(b, 700); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balances, total, deposits := l.Snapshot()

	restored := newLedger(t)
	restored.Restore(balances, total, deposits)

	if got := restored.Balance(a, reserveSymbol); got != 300 {
		t.Errorf("balance a = %d, want 300", got)
	}
	if got := restored.Balance(b, reserveSymbol); got != 700 {
		t.Errorf("balance b = %d, want 700", got)
	}
	if restored.ReserveTotal() != 1_000 || restored.DepositCount() != 2 {
		t.Errorf("total/deposits = %d/%d, want 1000/2",
			restored.ReserveTotal(), restored.DepositCount())
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	l := newLedger(t)
	depositor := uuid.New()

	if err := l.Credit(depositor, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balances, _, _ := l.Snapshot()
	balances[ledger.BalanceKey{Depositor: depositor, Asset: reserveSymbol}] = 999

	if got := l.Balance(depositor, reserveSymbol); got != 100 {
		t.Errorf("mutating the snapshot changed the ledger: balance = %d", got)
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestValidator_CleanLedgerPasses(t *testing.T) {
	l := newLedger(t)
	v := ledger.NewInvariantValidator(l)

	if err := l.Credit(uuid.New(), 500); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := v.ValidateAll(); err != nil {
		t.Errorf("ValidateAll: %v", err)
	}
}

func TestValidator_DetectsTotalMismatch(t *testing.T) {
	l := newLedger(t)
	v := ledger.NewInvariantValidator(l)

	balances := map[ledger.BalanceKey]int64{
		{Depositor: uuid.New(), Asset: reserveSymbol}: 100,
	}
	l.Restore(balances, 250, 1)

	if err := v.ValidateReserveTotal(); err == nil {
		t.Error("expected reserve total mismatch")
	}
}

func TestValidator_DetectsCapViolation(t *testing.T) {
	l := newLedger(t)
	v := ledger.NewInvariantValidator(l)

	balances := map[ledger.BalanceKey]int64{
		{Depositor: uuid.New(), Asset: reserveSymbol}: globalCap + 1,
	}
	l.Restore(balances, globalCap+1, 1)

	if err := v.ValidateCap(); err == nil {
		t.Error("expected cap violation")
	}
}

func TestValidator_DetectsNonReserveBalance(t *testing.T) {
	l := newLedger(t)
	v := ledger.NewInvariantValidator(l)

	balances := map[ledger.BalanceKey]int64{
		{Depositor: uuid.New(), Asset: "WBTC"}: 7,
	}
	l.Restore(balances, 0, 0)

	if err := v.ValidateNonReserveZero(); err == nil {
		t.Error("expected non-reserve balance violation")
	}
}
