package request

import (
	"time"

	"github.com/google/uuid"
)

// Request is the unit of the shift-exchange and approval workflow. It is a
// value: every mutation goes through Transition or ApplyServerUpdate and
// yields a fresh copy, so a stored Request is only ever replaced wholesale.
type Request struct {
	ID                 uuid.UUID
	Kind               Kind
	SubjectShiftID     uuid.UUID
	CounterpartShiftID *uuid.UUID // exchange only
	RequestingParty    uuid.UUID
	TargetParty        uuid.UUID
	State              State
	CreatedAt          time.Time
	ExpiresAt          *time.Time
	Origin             Origin
	Version            *int64 // server-assigned; nil while local-pending
	Notes              string
}

// NewTakeRequest builds the optimistic local request for taking an open
// shift. The id is provisional until the server assigns the real one.
func NewTakeRequest(shiftID, employeeID uuid.UUID, now time.Time) Request {
	return Request{
		ID:              uuid.New(),
		Kind:            KindTake,
		SubjectShiftID:  shiftID,
		RequestingParty: employeeID,
		State:           StatePending,
		CreatedAt:       now,
		Origin:          OriginLocalPending,
	}
}

// NewExchangeProposal builds the optimistic local request proposing a shift
// swap between two employees.
func NewExchangeProposal(fromShiftID, toShiftID, requestingParty, targetParty uuid.UUID, expiresAt *time.Time, now time.Time) Request {
	counterpart := toShiftID
	return Request{
		ID:                 uuid.New(),
		Kind:               KindExchange,
		SubjectShiftID:     fromShiftID,
		CounterpartShiftID: &counterpart,
		RequestingParty:    requestingParty,
		TargetParty:        targetParty,
		State:              StateProposed,
		CreatedAt:          now,
		ExpiresAt:          expiresAt,
		Origin:             OriginLocalPending,
	}
}

// Reconstruct rebuilds a Request from stored columns without validation.
func Reconstruct(
	id uuid.UUID,
	kind Kind,
	subjectShiftID uuid.UUID,
	counterpartShiftID *uuid.UUID,
	requestingParty, targetParty uuid.UUID,
	state State,
	createdAt time.Time,
	expiresAt *time.Time,
	origin Origin,
	version *int64,
	notes string,
) Request {
	return Request{
		ID:                 id,
		Kind:               kind,
		SubjectShiftID:     subjectShiftID,
		CounterpartShiftID: counterpartShiftID,
		RequestingParty:    requestingParty,
		TargetParty:        targetParty,
		State:              state,
		CreatedAt:          createdAt,
		ExpiresAt:          expiresAt,
		Origin:             origin,
		Version:            version,
		Notes:              notes,
	}
}

func (r Request) IsTerminal() bool {
	return r.State.IsTerminal()
}

// HasExpired reports whether the deadline, if any, has passed.
func (r Request) HasExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Clone returns a deep copy; pointer fields are duplicated so the copy never
// aliases the original.
func (r Request) Clone() Request {
	out := r
	if r.CounterpartShiftID != nil {
		id := *r.CounterpartShiftID
		out.CounterpartShiftID = &id
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	if r.Version != nil {
		v := *r.Version
		out.Version = &v
	}
	return out
}
