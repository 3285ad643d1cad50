package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OperationRow is one settled vault operation in vault_log.operations.
// The typed columns exist for querying history; payload carries the full
// event JSON for audit.
type OperationRow struct {
	Sequence     int64
	EventType    string
	OpID         string
	Account      string // depositor for deposits/withdrawals, operator for sweeps
	SourceAsset  *string
	Asset        string
	SourceAmount *int64
	Amount       int64 // internal base for deposits, native base for withdrawals/sweeps
	Payload      []byte
	Timestamp    time.Time
}

// OperationLogWriter appends operation rows to Postgres using multi-row
// INSERT. Writes are idempotent on sequence so a replayed batch is a
// no-op.
type OperationLogWriter struct {
	db *sql.DB
}

func NewOperationLogWriter(db *sql.DB) *OperationLogWriter {
	return &OperationLogWriter{db: db}
}

// WriteBatch writes a batch of operations inside the given transaction.
func (w *OperationLogWriter) WriteBatch(ctx context.Context, tx *sql.Tx, ops []OperationRow) error {
	if len(ops) == 0 {
		return nil
	}

	query := `INSERT INTO vault_log.operations
		(sequence, event_type, op_id, account, source_asset, asset, source_amount, amount, payload, created_at)
		VALUES `

	values := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*10)

	for i, op := range ops {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			op.Sequence, op.EventType, op.OpID, op.Account,
			op.SourceAsset, op.Asset, op.SourceAmount, op.Amount,
			op.Payload, op.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LoadOperationsFrom reads operations starting at fromSequence, ordered,
// up to limit rows. Used for replay after snapshot restore.
func (w *OperationLogWriter) LoadOperationsFrom(ctx context.Context, fromSequence int64, limit int) ([]OperationRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT sequence, event_type, op_id, account, source_asset, asset, source_amount, amount, payload, created_at
		FROM vault_log.operations
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationRow
	for rows.Next() {
		var op OperationRow
		if err := rows.Scan(
			&op.Sequence, &op.EventType, &op.OpID, &op.Account,
			&op.SourceAsset, &op.Asset, &op.SourceAmount, &op.Amount,
			&op.Payload, &op.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// MarshalPayload serializes an event payload to JSON for storage.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
