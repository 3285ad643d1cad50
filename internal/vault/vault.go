// Package vault orchestrates deposits, withdrawals and sweeps over the
// ledger, the conversion gateway and custody. The critical discipline is
// ordering, not concurrency: every state-mutating step completes before
// any external interaction that could hand control to untrusted code.
package vault

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tevino/abool"

	"ReserveVault/internal/asset"
	"ReserveVault/internal/custody"
	"ReserveVault/internal/event"
	"ReserveVault/internal/exchange"
	"ReserveVault/internal/fixedpoint"
	"ReserveVault/internal/ledger"
	"ReserveVault/internal/observability"
)

// Vault is the entry point for all depositor-facing and operator-facing
// operations. One logical operation runs to completion (including its
// external conversion or transfer) before the next is admitted: the busy
// interlock rejects a second caller with ErrBusy rather than queueing.
type Vault struct {
	busy *abool.AtomicBool

	// mu protects ledger state and the event sequence so read accessors
	// never observe a mid-mutation map. It is held only across the
	// effects section of an operation, never across an external call.
	mu       sync.Mutex
	ledger   *ledger.Ledger
	sequence int64

	gateway   *exchange.Gateway
	holdings  custody.Holdings
	assets    *asset.Registry
	reserve   asset.Asset
	validator *ledger.InvariantValidator

	out     chan<- event.Envelope
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Config carries the collaborators the vault needs. Metrics may be nil in
// tests.
type Config struct {
	Ledger   *ledger.Ledger
	Gateway  *exchange.Gateway
	Holdings custody.Holdings
	Assets   *asset.Registry
	Reserve  asset.Asset
	Out      chan<- event.Envelope
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
}

func New(cfg Config) *Vault {
	return &Vault{
		busy:      abool.New(),
		ledger:    cfg.Ledger,
		gateway:   cfg.Gateway,
		holdings:  cfg.Holdings,
		assets:    cfg.Assets,
		reserve:   cfg.Reserve,
		validator: ledger.NewInvariantValidator(cfg.Ledger),
		out:       cfg.Out,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// DepositNative converts a native-unit deposit into the reserve asset and
// credits the depositor. The conversion runs first; the cap is checked
// once, atomically, before any further external call.
func (v *Vault) DepositNative(ctx context.Context, depositor uuid.UUID, amount int64) (*event.DepositRecorded, error) {
	if !v.busy.SetToIf(false, true) {
		v.countBusy()
		return nil, ErrBusy
	}
	defer v.busy.UnSet()

	start := time.Now()
	evt, err := v.depositNative(ctx, depositor, amount)
	v.observeOp("deposit_native", "native", start, err)
	return evt, err
}

func (v *Vault) depositNative(ctx context.Context, depositor uuid.UUID, amount int64) (*event.DepositRecorded, error) {
	if amount <= 0 {
		return nil, &InputError{Reason: "deposit amount must be positive"}
	}

	convStart := time.Now()
	received, err := v.gateway.ConvertNativeToReserve(ctx, amount)
	v.observeConversion(asset.NativeSymbol, convStart, err)
	if err != nil {
		return nil, &ConversionError{Asset: asset.NativeSymbol, Err: err}
	}

	return v.credit(depositor, asset.NativeSymbol, amount, received)
}

// DepositAsset accepts a deposit of a registered asset. The reserve asset
// credits directly; anything else is pulled into custody, converted, then
// credited. The native unit must use DepositNative, not this entry point.
func (v *Vault) DepositAsset(ctx context.Context, depositor uuid.UUID, assetSymbol string, amount int64) (*event.DepositRecorded, error) {
	if !v.busy.SetToIf(false, true) {
		v.countBusy()
		return nil, ErrBusy
	}
	defer v.busy.UnSet()

	start := time.Now()
	evt, err := v.depositAsset(ctx, depositor, assetSymbol, amount)
	source := "asset"
	if assetSymbol == v.reserve.Symbol {
		source = "reserve"
	}
	v.observeOp("deposit_asset", source, start, err)
	return evt, err
}

func (v *Vault) depositAsset(ctx context.Context, depositor uuid.UUID, assetSymbol string, amount int64) (*event.DepositRecorded, error) {
	if amount <= 0 {
		return nil, &InputError{Reason: "deposit amount must be positive"}
	}
	if assetSymbol == asset.NativeSymbol {
		return nil, &InputError{Reason: "native deposits must use the native entry point"}
	}
	a, ok := v.assets.Get(assetSymbol)
	if !ok {
		return nil, &InputError{Reason: "unknown asset " + assetSymbol}
	}

	// The asset physically enters custody before any conversion or
	// credit. A failed pull aborts with no state change.
	owner := depositor.String()
	if err := v.holdings.Pull(ctx, a.Symbol, owner, amount); err != nil {
		return nil, &TransferError{Asset: a.Symbol, Recipient: owner, Amount: amount, Err: err}
	}

	received := amount
	if a.Symbol != v.reserve.Symbol {
		convStart := time.Now()
		out, err := v.gateway.ConvertAssetToReserve(ctx, a.Symbol, amount)
		v.observeConversion(a.Symbol, convStart, err)
		if err != nil {
			// The pulled asset stays in custody, unassigned to any
			// depositor; the sweep path recovers it.
			return nil, &ConversionError{Asset: a.Symbol, Err: err}
		}
		received = out
	}

	return v.credit(depositor, a.Symbol, amount, received)
}

// credit normalizes the received reserve amount into the internal base
// and settles it on the ledger. received is in the reserve asset's native
// base; by the time this runs it is already in custody.
func (v *Vault) credit(depositor uuid.UUID, sourceAsset string, sourceAmount, received int64) (*event.DepositRecorded, error) {
	reserveAmount, err := fixedpoint.ToInternalBase(received, v.reserve.Decimals)
	if err != nil {
		return nil, &ConversionError{Asset: sourceAsset, Err: err}
	}
	if reserveAmount <= 0 {
		return nil, &ConversionError{Asset: sourceAsset, Err: exchange.ErrSwapYieldedZero}
	}

	v.mu.Lock()
	if err := v.ledger.Credit(depositor, reserveAmount); err != nil {
		v.mu.Unlock()
		// On a cap rejection the converted amount remains in custody,
		// unassigned. The ledger itself stays untouched; recovery is the
		// operator sweep.
		return nil, err
	}

	evt := &event.DepositRecorded{
		OpID:          uuid.New(),
		Depositor:     depositor,
		SourceAsset:   sourceAsset,
		ReserveAsset:  v.reserve.Symbol,
		SourceAmount:  sourceAmount,
		ReserveAmount: reserveAmount,
	}
	env := v.envelopeLocked(evt)
	v.mu.Unlock()

	v.emit(env)
	return evt, nil
}

// Withdraw debits the depositor and releases the amount from custody. The
// debit settles fully before the release is attempted; if the release
// fails the debit is restored so the operation aborts as a unit.
//
// Only the reserve asset ever holds a balance, so withdrawing any other
// asset deterministically fails with InsufficientFundsError.
func (v *Vault) Withdraw(ctx context.Context, depositor uuid.UUID, assetSymbol string, amount int64) (*event.WithdrawalRecorded, error) {
	if !v.busy.SetToIf(false, true) {
		v.countBusy()
		return nil, ErrBusy
	}
	defer v.busy.UnSet()

	start := time.Now()
	evt, err := v.withdraw(ctx, depositor, assetSymbol, amount)
	v.observeOp("withdraw", "", start, err)
	return evt, err
}

func (v *Vault) withdraw(ctx context.Context, depositor uuid.UUID, assetSymbol string, amount int64) (*event.WithdrawalRecorded, error) {
	if amount <= 0 {
		return nil, &InputError{Reason: "withdrawal amount must be positive"}
	}
	a, ok := v.assets.Get(assetSymbol)
	if !ok {
		return nil, &InputError{Reason: "unknown asset " + assetSymbol}
	}

	v.mu.Lock()
	normalized, err := v.ledger.Debit(depositor, a.Symbol, amount, a.Decimals)
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.mu.Unlock()

	// State is settled and visible before any value leaves custody. If
	// the release re-enters, it observes the decremented balance.
	recipient := depositor.String()
	if err := v.holdings.Release(ctx, a.Symbol, recipient, amount); err != nil {
		v.mu.Lock()
		v.ledger.RestoreDebit(depositor, a.Symbol, normalized)
		v.mu.Unlock()
		return nil, &TransferError{Asset: a.Symbol, Recipient: recipient, Amount: amount, Err: err}
	}

	evt := &event.WithdrawalRecorded{
		OpID:             uuid.New(),
		Depositor:        depositor,
		Asset:            a.Symbol,
		Amount:           amount,
		NormalizedAmount: normalized,
	}

	v.mu.Lock()
	env := v.envelopeLocked(evt)
	v.mu.Unlock()

	v.emit(env)
	return evt, nil
}

// Sweep transfers the entirety of the vault's custody balance of one
// asset to the operator, bypassing the ledger. Authorization happens at
// the entry point (the server's operator check), not here — the
// accounting layer stays orthogonal to roles. Break-glass only.
func (v *Vault) Sweep(ctx context.Context, operator uuid.UUID, assetSymbol string) (*event.TreasurySwept, error) {
	if !v.busy.SetToIf(false, true) {
		v.countBusy()
		return nil, ErrBusy
	}
	defer v.busy.UnSet()

	start := time.Now()
	evt, err := v.sweep(ctx, operator, assetSymbol)
	v.observeOp("sweep", "", start, err)
	if err == nil && v.metrics != nil {
		v.metrics.SweepsTotal.Inc()
	}
	return evt, err
}

func (v *Vault) sweep(ctx context.Context, operator uuid.UUID, assetSymbol string) (*event.TreasurySwept, error) {
	if assetSymbol == "" {
		return nil, &InputError{Reason: "asset symbol required"}
	}

	held, err := v.holdings.BalanceOf(ctx, assetSymbol)
	if err != nil {
		return nil, &TransferError{Asset: assetSymbol, Recipient: operator.String(), Err: err}
	}
	if held == 0 {
		return nil, &InputError{Reason: "nothing to sweep for " + assetSymbol}
	}

	recipient := operator.String()
	if err := v.holdings.Release(ctx, assetSymbol, recipient, held); err != nil {
		return nil, &TransferError{Asset: assetSymbol, Recipient: recipient, Amount: held, Err: err}
	}

	evt := &event.TreasurySwept{
		OpID:     uuid.New(),
		Operator: operator,
		Asset:    assetSymbol,
		Amount:   held,
	}

	v.mu.Lock()
	env := v.envelopeLocked(evt)
	v.mu.Unlock()

	v.emit(env)
	return evt, nil
}

// --- Read accessors ---

// Balance returns a depositor's reserve-asset claim in the internal base.
func (v *Vault) Balance(depositor uuid.UUID, assetSymbol string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.Balance(depositor, assetSymbol)
}

// ReserveState reports the running total, the cap and the deposit count.
func (v *Vault) ReserveState() (total, cap int64, deposits uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.ReserveTotal(), v.ledger.Cap(), v.ledger.DepositCount()
}

// SnapshotState copies the ledger state for persistence.
func (v *Vault) SnapshotState() (map[ledger.BalanceKey]int64, int64, uint64, int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	balances, total, deposits := v.ledger.Snapshot()
	return balances, total, deposits, v.sequence
}

// RestoreState loads a snapshot at startup, before the vault serves
// traffic.
func (v *Vault) RestoreState(balances map[ledger.BalanceKey]int64, total int64, deposits uint64, sequence int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ledger.Restore(balances, total, deposits)
	v.sequence = sequence
}

// --- internals ---

func (v *Vault) envelopeLocked(payload event.Event) event.Envelope {
	v.sequence++
	return event.Envelope{
		Sequence:  v.sequence,
		Type:      payload.EventType(),
		OpID:      payload.OperationID(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func (v *Vault) emit(env event.Envelope) {
	if v.out != nil {
		// Blocking send: the persistence side applies backpressure rather
		// than losing operations.
		v.out <- env
	}

	if err := v.validator.ValidateAll(); err != nil {
		v.logger.Error().Err(err).Int64("sequence", env.Sequence).Msg("ledger invariant violated")
	}
}

func (v *Vault) countBusy() {
	if v.metrics != nil {
		v.metrics.BusyRejections.Inc()
	}
}

func (v *Vault) observeOp(op, source string, start time.Time, err error) {
	logEvt := v.logger.Info()
	if err != nil {
		logEvt = v.logger.Warn().Err(err).Str("class", string(Classify(err)))
	}
	logEvt.Str("op", op).Dur("took", time.Since(start)).Msg("operation finished")

	if v.metrics == nil {
		return
	}
	v.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = string(Classify(err))
		v.metrics.OperationsRejected.WithLabelValues(op, outcome).Inc()
	}
	switch op {
	case "deposit_native", "deposit_asset":
		v.metrics.DepositsTotal.WithLabelValues(source, outcome).Inc()
	case "withdraw":
		v.metrics.WithdrawalsTotal.WithLabelValues(outcome).Inc()
	}

	v.mu.Lock()
	total, cap, deposits := v.ledger.ReserveTotal(), v.ledger.Cap(), v.ledger.DepositCount()
	v.mu.Unlock()
	v.metrics.ObserveLedger(total, cap, deposits)
}

func (v *Vault) observeConversion(assetSymbol string, start time.Time, err error) {
	if v.metrics == nil {
		return
	}
	v.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	v.metrics.ConversionsTotal.WithLabelValues(assetSymbol, outcome).Inc()
}
