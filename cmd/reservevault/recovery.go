package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ReserveVault/internal/event"
	"ReserveVault/internal/ledger"
	"ReserveVault/internal/observability"
	"ReserveVault/internal/persistence"
	"ReserveVault/internal/vault"
)

// recoverState rebuilds the ledger from the latest snapshot plus a replay
// of every operation logged after it, then loads the result into the
// vault. Returns the sequence the vault resumes from.
func recoverState(
	ctx context.Context,
	snapMgr *persistence.SnapshotManager,
	logWriter *persistence.OperationLogWriter,
	v *vault.Vault,
	logger zerolog.Logger,
) (int64, error) {
	balances := make(map[ledger.BalanceKey]int64)
	var total int64
	var deposits uint64
	var seq int64

	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		// A broken snapshot is not fatal: the log holds everything.
		logger.Warn().Err(err).Msg("snapshot load failed, cold start from the operation log")
	}
	if snap != nil {
		for rawKey, bal := range snap.Balances {
			key, err := parseBalanceKey(rawKey)
			if err != nil {
				return 0, fmt.Errorf("snapshot balance key %q: %w", rawKey, err)
			}
			balances[key] = bal
		}
		total = snap.ReserveTotal
		deposits = snap.Deposits
		seq = snap.Sequence
		logger.Info().Int64("sequence", seq).Msg("snapshot loaded")
	}

	const batchSize = 1000
	from := seq + 1
	var replayed int64

	for {
		rows, err := logWriter.LoadOperationsFrom(ctx, from, batchSize)
		if err != nil {
			return 0, fmt.Errorf("load operations from %d: %w", from, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if err := applyRow(balances, &total, &deposits, row); err != nil {
				return 0, fmt.Errorf("replay sequence %d: %w", row.Sequence, err)
			}
			seq = row.Sequence
			replayed++
		}
		from = rows[len(rows)-1].Sequence + 1
	}

	if replayed > 0 {
		logger.Info().Int64("operations", replayed).Int64("sequence", seq).Msg("operation log replayed")
	}

	v.RestoreState(balances, total, deposits, seq)
	return seq, nil
}

// applyRow re-applies one logged operation's ledger effect. Sweeps have
// none.
func applyRow(balances map[ledger.BalanceKey]int64, total *int64, deposits *uint64, row persistence.OperationRow) error {
	switch row.EventType {
	case event.EventTypeDepositRecorded.String():
		var p event.DepositRecorded
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal deposit: %w", err)
		}
		balances[ledger.BalanceKey{Depositor: p.Depositor, Asset: p.ReserveAsset}] += p.ReserveAmount
		*total += p.ReserveAmount
		*deposits++

	case event.EventTypeWithdrawalRecorded.String():
		var p event.WithdrawalRecorded
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal withdrawal: %w", err)
		}
		balances[ledger.BalanceKey{Depositor: p.Depositor, Asset: p.Asset}] -= p.NormalizedAmount
		*total -= p.NormalizedAmount

	case event.EventTypeTreasurySwept.String():

	default:
		return fmt.Errorf("unknown event type %q", row.EventType)
	}
	return nil
}

func parseBalanceKey(s string) (ledger.BalanceKey, error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return ledger.BalanceKey{}, fmt.Errorf("missing separator")
	}
	depositor, err := uuid.Parse(s[:i])
	if err != nil {
		return ledger.BalanceKey{}, err
	}
	return ledger.BalanceKey{Depositor: depositor, Asset: s[i+1:]}, nil
}

// takeSnapshot captures the vault's ledger state and persists it.
func takeSnapshot(ctx context.Context, v *vault.Vault, snapMgr *persistence.SnapshotManager, metrics *observability.Metrics) error {
	start := time.Now()

	balances, total, deposits, seq := v.SnapshotState()

	data := &persistence.SnapshotData{
		Sequence:     seq,
		Balances:     make(map[string]int64, len(balances)),
		ReserveTotal: total,
		Deposits:     deposits,
		CreatedAt:    time.Now().UTC(),
	}
	for key, bal := range balances {
		data.Balances[key.Depositor.String()+":"+key.Asset] = bal
	}

	if err := snapMgr.SaveSnapshot(ctx, data); err != nil {
		return err
	}

	if metrics != nil {
		metrics.SnapshotTaken.Inc()
		metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		metrics.SnapshotLastSeq.Set(float64(seq))
	}
	return nil
}

// runPeriodicSnapshots takes a snapshot whenever the sequence has
// advanced by at least interval operations since the last one.
func runPeriodicSnapshots(
	ctx context.Context,
	v *vault.Vault,
	snapMgr *persistence.SnapshotManager,
	interval int64,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) error {
	if interval <= 0 {
		interval = 10_000
	}

	_, _, _, lastSeq := v.SnapshotState()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			_, _, _, seq := v.SnapshotState()
			if seq-lastSeq < interval {
				continue
			}
			if err := takeSnapshot(ctx, v, snapMgr, metrics); err != nil {
				logger.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSeq = seq
			logger.Info().Int64("sequence", seq).Msg("periodic snapshot")
		}
	}
}
