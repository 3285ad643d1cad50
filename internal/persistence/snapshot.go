package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotManager persists and restores point-in-time ledger state so a
// restart replays only the operations after the snapshot instead of the
// whole log.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the full ledger state at one sequence. Balance keys are
// "depositor:asset".
type SnapshotData struct {
	Sequence     int64            `json:"sequence"`
	Balances     map[string]int64 `json:"balances"`
	ReserveTotal int64            `json:"reserve_total"`
	Deposits     uint64           `json:"deposits"`
	CreatedAt    time.Time        `json:"created_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot, replacing any previous one at the
// same sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO vault_log.snapshots (sequence, state, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (sequence) DO UPDATE SET state = $2, created_at = $3
	`, snap.Sequence, data, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LoadLatestSnapshot returns the most recent snapshot, or nil when none
// exists (cold start).
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	var data []byte
	err := sm.db.QueryRowContext(ctx, `
		SELECT state FROM vault_log.snapshots ORDER BY sequence DESC LIMIT 1
	`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Prune deletes all snapshots older than the given sequence.
func (sm *SnapshotManager) Prune(ctx context.Context, beforeSequence int64) error {
	_, err := sm.db.ExecContext(ctx,
		`DELETE FROM vault_log.snapshots WHERE sequence < $1`, beforeSequence)
	return err
}
