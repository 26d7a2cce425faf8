package action

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action-specific payloads carried by queue entries. They are stored as
// opaque JSON and decoded again at submission time, so an entry enqueued
// before a process restart still knows what to send.

type TakePayload struct {
	ShiftID    uuid.UUID `json:"shift_id"`
	EmployeeID uuid.UUID `json:"employee_id"`
}

type ExchangePayload struct {
	FromShiftID        uuid.UUID  `json:"from_shift_id"`
	ToShiftID          uuid.UUID  `json:"to_shift_id"`
	RequestingEmployee uuid.UUID  `json:"requesting_employee"`
	TargetEmployee     uuid.UUID  `json:"target_employee"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

type RespondPayload struct {
	Accepted bool `json:"accepted"`
}

type DecisionPayload struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes,omitempty"`
}

func MarshalPayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func UnmarshalPayload(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}
