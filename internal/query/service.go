// Package query serves read-only API requests from the Postgres
// projection tables. Responses carry as_of_sequence so callers can reason
// about freshness relative to the live ledger.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// BalanceResponse is one depositor's projected claim in one asset,
// denominated in the internal base.
type BalanceResponse struct {
	Depositor    uuid.UUID `json:"depositor"`
	Asset        string    `json:"asset"`
	Balance      int64     `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// ReserveResponse is the projected reserve aggregate.
type ReserveResponse struct {
	Total        int64 `json:"total"`
	AsOfSequence int64 `json:"as_of_sequence"`
}

// OperationResponse is one row of operation history.
type OperationResponse struct {
	Sequence     int64     `json:"sequence"`
	EventType    string    `json:"event_type"`
	OpID         string    `json:"op_id"`
	Account      string    `json:"account"`
	SourceAsset  *string   `json:"source_asset,omitempty"`
	Asset        string    `json:"asset"`
	SourceAmount *int64    `json:"source_amount,omitempty"`
	Amount       int64     `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// GetBalance returns a depositor's projected balance for one asset.
// Absent rows read as zero, mirroring the ledger.
func (s *Service) GetBalance(ctx context.Context, depositor uuid.UUID, assetSymbol string) (*BalanceResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var balance int64
	err = s.db.QueryRowContext(ctx, `
		SELECT balance FROM projections.balances WHERE depositor = $1 AND asset = $2
	`, depositor.String(), assetSymbol).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &BalanceResponse{
		Depositor:    depositor,
		Asset:        assetSymbol,
		Balance:      balance,
		AsOfSequence: asOf,
	}, nil
}

// GetBalances returns every projected balance a depositor holds.
func (s *Service) GetBalances(ctx context.Context, depositor uuid.UUID) ([]BalanceResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, balance FROM projections.balances WHERE depositor = $1 ORDER BY asset
	`, depositor.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceResponse
	for rows.Next() {
		r := BalanceResponse{Depositor: depositor, AsOfSequence: asOf}
		if err := rows.Scan(&r.Asset, &r.Balance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetReserve returns the projected reserve total.
func (s *Service) GetReserve(ctx context.Context) (*ReserveResponse, error) {
	asOf, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var total int64
	err = s.db.QueryRowContext(ctx,
		`SELECT total FROM projections.reserve WHERE id = 1`).Scan(&total)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &ReserveResponse{Total: total, AsOfSequence: asOf}, nil
}

// GetOperations returns operation history for one account, most recent
// first.
func (s *Service) GetOperations(ctx context.Context, account uuid.UUID, limit int) ([]OperationResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, op_id, account, source_asset, asset, source_amount, amount, created_at
		FROM vault_log.operations
		WHERE account = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, account.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationResponse
	for rows.Next() {
		var op OperationResponse
		if err := rows.Scan(
			&op.Sequence, &op.EventType, &op.OpID, &op.Account,
			&op.SourceAsset, &op.Asset, &op.SourceAmount, &op.Amount, &op.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
