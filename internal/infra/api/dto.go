package api

import (
	"time"

	"shiftsync/internal/domain/request"

	"github.com/google/uuid"
)

// RequestDTO is the server's wire representation of a request. Field names
// line up with the domain entity so the converter stays mechanical.
type RequestDTO struct {
	ID                 uuid.UUID     `json:"id"`
	Kind               request.Kind  `json:"kind"`
	SubjectShiftID     uuid.UUID     `json:"subject_shift_id"`
	CounterpartShiftID *uuid.UUID    `json:"counterpart_shift_id,omitempty"`
	RequestingParty    uuid.UUID     `json:"requesting_party"`
	TargetParty        uuid.UUID     `json:"target_party"`
	State              request.State `json:"state"`
	CreatedAt          time.Time     `json:"created_at"`
	ExpiresAt          *time.Time    `json:"expires_at,omitempty"`
	Version            *int64        `json:"version,omitempty"`
	Notes              string        `json:"notes,omitempty"`
}

type UpdatesResponse struct {
	Requests []RequestDTO `json:"requests"`
	Cursor   string       `json:"cursor"`
}

type takeShiftBody struct {
	ShiftID        uuid.UUID `json:"shiftId"`
	EmployeeID     uuid.UUID `json:"employeeId"`
	IdempotencyKey uuid.UUID `json:"idempotencyKey"`
}

type exchangeBody struct {
	FromShiftID        uuid.UUID  `json:"fromShiftId"`
	ToShiftID          uuid.UUID  `json:"toShiftId"`
	RequestingEmployee uuid.UUID  `json:"requestingEmployee"`
	TargetEmployee     uuid.UUID  `json:"targetEmployee"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	IdempotencyKey     uuid.UUID  `json:"idempotencyKey"`
}

type respondBody struct {
	Accepted       bool      `json:"accepted"`
	IdempotencyKey uuid.UUID `json:"idempotencyKey"`
}

type approveBody struct {
	Notes          string    `json:"notes,omitempty"`
	IdempotencyKey uuid.UUID `json:"idempotencyKey"`
}

type rejectBody struct {
	Reason         string    `json:"reason,omitempty"`
	IdempotencyKey uuid.UUID `json:"idempotencyKey"`
}

type cancelBody struct {
	IdempotencyKey uuid.UUID `json:"idempotencyKey"`
}
