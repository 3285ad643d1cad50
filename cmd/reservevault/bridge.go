package main

import (
	"context"

	"ReserveVault/internal/event"
	"ReserveVault/internal/observability"
	"ReserveVault/internal/persistence"
	"ReserveVault/internal/projection"
)

// bridgeEvents fans the vault's event stream out to the three consumers.
// The persist send blocks (the audit trail applies backpressure); the
// projection and publish sends drop on a full channel, since both can be
// rebuilt or replayed from the operation log.
func bridgeEvents(
	ctx context.Context,
	in <-chan event.Envelope,
	persistOut chan<- persistence.OperationRow,
	projOut chan<- projection.Update,
	pubOut chan<- event.Envelope,
	metrics *observability.Metrics,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-in:
			if !ok {
				return nil
			}

			row, update := splitEnvelope(env)

			select {
			case persistOut <- row:
			case <-ctx.Done():
				return ctx.Err()
			}

			select {
			case projOut <- update:
			default:
				metrics.ProjectionDrops.Inc()
			}

			select {
			case pubOut <- env:
			default:
				metrics.PublishDrops.Inc()
			}
		}
	}
}

// splitEnvelope converts one envelope into its operation-log row and its
// projection delta.
func splitEnvelope(env event.Envelope) (persistence.OperationRow, projection.Update) {
	row := persistence.OperationRow{
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		OpID:      env.OpID.String(),
		Payload:   persistence.MarshalPayload(env.Payload),
		Timestamp: env.Timestamp,
	}
	update := projection.Update{
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		Timestamp: env.Timestamp,
	}

	switch p := env.Payload.(type) {
	case *event.DepositRecorded:
		sourceAsset := p.SourceAsset
		sourceAmount := p.SourceAmount
		row.Account = p.Depositor.String()
		row.SourceAsset = &sourceAsset
		row.SourceAmount = &sourceAmount
		row.Asset = p.ReserveAsset
		row.Amount = p.ReserveAmount

		update.Depositor = row.Account
		update.Asset = p.ReserveAsset
		update.Delta = p.ReserveAmount

	case *event.WithdrawalRecorded:
		row.Account = p.Depositor.String()
		row.Asset = p.Asset
		row.Amount = p.Amount

		update.Depositor = row.Account
		update.Asset = p.Asset
		update.Delta = -p.NormalizedAmount

	case *event.TreasurySwept:
		// Sweeps bypass the ledger: logged for audit, no balance delta.
		row.Account = p.Operator.String()
		row.Asset = p.Asset
		row.Amount = p.Amount
	}

	return row, update
}
