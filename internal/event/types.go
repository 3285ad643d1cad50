package event

import "github.com/google/uuid"

// DepositRecorded is emitted after a credit settles. SourceAsset and
// SourceAmount describe what the depositor actually sent (native base);
// ReserveAmount is what landed on the ledger (internal base). The source
// fields exist purely for the audit trail — the balance key is always the
// reserve asset.
type DepositRecorded struct {
	OpID          uuid.UUID `json:"op_id"`
	Depositor     uuid.UUID `json:"depositor"`
	SourceAsset   string    `json:"source_asset"`
	ReserveAsset  string    `json:"reserve_asset"`
	SourceAmount  int64     `json:"source_amount"`
	ReserveAmount int64     `json:"reserve_amount"`
}

func (d *DepositRecorded) EventType() EventType { return EventTypeDepositRecorded }
func (d *DepositRecorded) OperationID() uuid.UUID { return d.OpID }

// WithdrawalRecorded is emitted after a debit settled and the custody
// release succeeded. Amount is in the asset's native base;
// NormalizedAmount is the internal-base delta the ledger applied, which
// the balance projection consumes.
type WithdrawalRecorded struct {
	OpID             uuid.UUID `json:"op_id"`
	Depositor        uuid.UUID `json:"depositor"`
	Asset            string    `json:"asset"`
	Amount           int64     `json:"amount"`
	NormalizedAmount int64     `json:"normalized_amount"`
}

func (w *WithdrawalRecorded) EventType() EventType { return EventTypeWithdrawalRecorded }
func (w *WithdrawalRecorded) OperationID() uuid.UUID { return w.OpID }

// TreasurySwept is emitted after an operator drained the custody balance
// of one asset. The sweep bypasses the ledger, so there is no balance
// delta to report — only what physically moved.
type TreasurySwept struct {
	OpID     uuid.UUID `json:"op_id"`
	Operator uuid.UUID `json:"operator"`
	Asset    string    `json:"asset"`
	Amount   int64     `json:"amount"`
}

func (s *TreasurySwept) EventType() EventType { return EventTypeTreasurySwept }
func (s *TreasurySwept) OperationID() uuid.UUID { return s.OpID }
