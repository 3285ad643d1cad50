package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the notifications the vault emits.
type EventType int32

const (
	EventTypeDepositRecorded EventType = iota
	EventTypeWithdrawalRecorded
	EventTypeTreasurySwept
)

func (t EventType) String() string {
	switch t {
	case EventTypeDepositRecorded:
		return "deposit_recorded"
	case EventTypeWithdrawalRecorded:
		return "withdrawal_recorded"
	case EventTypeTreasurySwept:
		return "treasury_swept"
	default:
		return "unknown"
	}
}

// Event is a completed vault operation ready for persistence and
// publication.
type Event interface {
	EventType() EventType
	OperationID() uuid.UUID
}

// Envelope wraps an event with ordering and timing metadata assigned by
// the vault at emit time.
type Envelope struct {
	Sequence  int64
	Type      EventType
	OpID      uuid.UUID
	Timestamp time.Time
	Payload   Event
}
