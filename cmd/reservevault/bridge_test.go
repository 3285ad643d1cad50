package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"ReserveVault/internal/event"
	"ReserveVault/internal/ledger"
)

func TestSplitEnvelope_Deposit(t *testing.T) {
	depositor := uuid.New()
	payload := &event.DepositRecorded{
		OpID:          uuid.New(),
		Depositor:     depositor,
		SourceAsset:   "NATIVE",
		ReserveAsset:  "USDT",
		SourceAmount:  500,
		ReserveAmount: 1_000,
	}
	env := event.Envelope{
		Sequence:  7,
		Type:      event.EventTypeDepositRecorded,
		OpID:      payload.OpID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	row, update := splitEnvelope(env)

	if row.Sequence != 7 || row.EventType != "deposit_recorded" {
		t.Errorf("row = seq %d type %s", row.Sequence, row.EventType)
	}
	if row.Account != depositor.String() || row.Asset != "USDT" || row.Amount != 1_000 {
		t.Errorf("row = %+v", row)
	}
	if row.SourceAsset == nil || *row.SourceAsset != "NATIVE" {
		t.Error("source asset not carried")
	}
	if row.SourceAmount == nil || *row.SourceAmount != 500 {
		t.Error("source amount not carried")
	}

	if update.Delta != 1_000 || update.Asset != "USDT" || update.Depositor != depositor.String() {
		t.Errorf("update = %+v", update)
	}

	// The stored payload must round-trip for replay.
	var decoded event.DepositRecorded
	if err := json.Unmarshal(row.Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded.ReserveAmount != 1_000 || decoded.Depositor != depositor {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestSplitEnvelope_WithdrawalDeltaIsNegative(t *testing.T) {
	payload := &event.WithdrawalRecorded{
		OpID:             uuid.New(),
		Depositor:        uuid.New(),
		Asset:            "USDT",
		Amount:           400,
		NormalizedAmount: 400,
	}
	env := event.Envelope{
		Sequence: 8,
		Type:     event.EventTypeWithdrawalRecorded,
		OpID:     payload.OpID,
		Payload:  payload,
	}

	_, update := splitEnvelope(env)
	if update.Delta != -400 {
		t.Errorf("delta = %d, want -400", update.Delta)
	}
}

func TestSplitEnvelope_SweepHasNoDelta(t *testing.T) {
	operator := uuid.New()
	payload := &event.TreasurySwept{
		OpID:     uuid.New(),
		Operator: operator,
		Asset:    "WBTC",
		Amount:   10,
	}
	env := event.Envelope{
		Sequence: 9,
		Type:     event.EventTypeTreasurySwept,
		OpID:     payload.OpID,
		Payload:  payload,
	}

	row, update := splitEnvelope(env)
	if row.Account != operator.String() || row.Amount != 10 {
		t.Errorf("row = %+v", row)
	}
	if update.Delta != 0 {
		t.Errorf("delta = %d, want 0", update.Delta)
	}
}

func TestApplyRow_RebuildsLedgerEffects(t *testing.T) {
	depositor := uuid.New()

	deposit := &event.DepositRecorded{
		OpID: uuid.New(), Depositor: depositor,
		SourceAsset: "NATIVE", ReserveAsset: "USDT",
		SourceAmount: 500, ReserveAmount: 1_000,
	}
	withdrawal := &event.WithdrawalRecorded{
		OpID: uuid.New(), Depositor: depositor,
		Asset: "USDT", Amount: 400, NormalizedAmount: 400,
	}

	depRow, _ := splitEnvelope(event.Envelope{
		Sequence: 1, Type: event.EventTypeDepositRecorded, OpID: deposit.OpID, Payload: deposit,
	})
	wdRow, _ := splitEnvelope(event.Envelope{
		Sequence: 2, Type: event.EventTypeWithdrawalRecorded, OpID: withdrawal.OpID, Payload: withdrawal,
	})

	var total int64
	var deposits uint64
	balances := make(map[ledger.BalanceKey]int64)

	if err := applyRow(balances, &total, &deposits, depRow); err != nil {
		t.Fatalf("apply deposit: %v", err)
	}
	if err := applyRow(balances, &total, &deposits, wdRow); err != nil {
		t.Fatalf("apply withdrawal: %v", err)
	}

	if total != 600 || deposits != 1 {
		t.Errorf("total/deposits = %d/%d, want 600/1", total, deposits)
	}
	key := ledger.BalanceKey{Depositor: depositor, Asset: "USDT"}
	if balances[key] != 600 {
		t.Errorf("balance = %d, want 600", balances[key])
	}
}
