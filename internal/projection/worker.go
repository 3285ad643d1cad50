package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ReserveVault/internal/observability"
)

// Update is one settled operation's effect on the read models. Delta is
// in the internal base, signed: positive for credits, negative for
// debits, zero for sweeps (which bypass the ledger and only advance the
// watermark).
type Update struct {
	Sequence  int64
	EventType string
	Depositor string
	Asset     string
	Delta     int64
	Timestamp time.Time
}

// Worker maintains the projections.* read models. The projection channel
// is non-blocking with drop: if this worker falls behind, the read models
// can be rebuilt from the operation log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Update
	logger    zerolog.Logger
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan Update, logger zerolog.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run processes updates until ctx is cancelled or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := w.apply(ctx, update); err != nil {
				// Eventually consistent: log and move on, the read models
				// can be rebuilt from vault_log.operations.
				w.logger.Warn().Err(err).Int64("sequence", update.Sequence).Msg("projection update failed")
			}
			if w.metrics != nil {
				w.metrics.ProjectionUpdateDur.Observe(time.Since(start).Seconds())
			}
			w.lastSeq = update.Sequence
		}
	}
}

func (w *Worker) apply(ctx context.Context, update Update) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if update.Delta != 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (depositor, asset, balance, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (depositor, asset)
			DO UPDATE SET balance = projections.balances.balance + $3, updated_at = NOW()
		`, update.Depositor, update.Asset, update.Delta); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.reserve (id, total, updated_at)
			VALUES (1, $1, NOW())
			ON CONFLICT (id)
			DO UPDATE SET total = projections.reserve.total + $1, updated_at = NOW()
		`, update.Delta); err != nil {
			return fmt.Errorf("reserve projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, update.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}
