package action

import (
	"encoding/json"
	"time"

	"shiftsync/internal/domain/request"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCreate Type = "create"
	TypeAccept Type = "accept"
	TypeReject Type = "reject"
	TypeCancel Type = "cancel"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeCreate, TypeAccept, TypeReject, TypeCancel:
		return true
	default:
		return false
	}
}

// Entry is one user-initiated action awaiting server acknowledgement.
// EntryID doubles as the idempotency key: it is assigned once at enqueue
// time and stays stable across every retry, so a replay the server has
// already seen is a no-op there and a success here.
type Entry struct {
	EntryID   uuid.UUID
	RequestID uuid.UUID
	Type      Type
	Payload   json.RawMessage
	Position  int64 // monotonic FIFO sequence, assigned by the store

	// Snapshot of the request before the optimistic transition, kept so a
	// not-yet-submitted action can be cancelled and the state reverted.
	PriorState  request.State
	PriorOrigin request.Origin

	AttemptCount  int
	EnqueuedAt    time.Time
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
}

func NewEntry(requestID uuid.UUID, t Type, payload json.RawMessage, now time.Time) Entry {
	return Entry{
		EntryID:    uuid.New(),
		RequestID:  requestID,
		Type:       t,
		Payload:    payload,
		EnqueuedAt: now,
	}
}

// Ready reports whether the entry may be submitted now. A fresh entry has no
// NextRetryAt and is always ready.
func (e Entry) Ready(now time.Time) bool {
	return e.NextRetryAt == nil || !now.Before(*e.NextRetryAt)
}

func (e Entry) Clone() Entry {
	out := e
	if e.Payload != nil {
		out.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.LastAttemptAt != nil {
		t := *e.LastAttemptAt
		out.LastAttemptAt = &t
	}
	if e.NextRetryAt != nil {
		t := *e.NextRetryAt
		out.NextRetryAt = &t
	}
	return out
}
