// Package coverage scores the staffing impact of pending requests for
// approval views. Everything here is a pure function over a schedule
// snapshot; nothing is mutated and nothing touches the network.
package coverage

import (
	"time"

	"shiftsync/internal/domain/request"

	"github.com/google/uuid"
)

type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

func (i Impact) severity() int {
	switch i {
	case ImpactHigh:
		return 2
	case ImpactMedium:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of two impacts.
func (i Impact) Max(other Impact) Impact {
	if other.severity() > i.severity() {
		return other
	}
	return i
}

// AffectedSlot is one time slot whose staffing changes if the request is
// accepted. Scheduled is the current headcount; Delta the change acceptance
// would cause (usually -1 for the slot the employee leaves).
type AffectedSlot struct {
	Start     time.Time
	End       time.Time
	Scheduled int
	Delta     int
}

type Advisor struct {
	minimumStaff int
}

func NewAdvisor(minimumStaff int) *Advisor {
	if minimumStaff < 0 {
		minimumStaff = 0
	}
	return &Advisor{minimumStaff: minimumStaff}
}

// Assess scores the request's impact across all affected slots and keeps the
// worst: below minimum is high, reduced but still at or above minimum is
// medium, anything else low.
func (a *Advisor) Assess(slots []AffectedSlot) Impact {
	result := ImpactLow
	for _, slot := range slots {
		result = result.Max(a.assessSlot(slot))
		if result == ImpactHigh {
			break
		}
	}
	return result
}

func (a *Advisor) assessSlot(slot AffectedSlot) Impact {
	after := slot.Scheduled + slot.Delta
	switch {
	case slot.Delta < 0 && after < a.minimumStaff:
		return ImpactHigh
	case slot.Delta < 0 && after >= a.minimumStaff:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// MinimumStaff exposes the configured floor for display alongside the score.
func (a *Advisor) MinimumStaff() int {
	return a.minimumStaff
}

// Shift is one scheduled slot in the snapshot the host application supplies.
type Shift struct {
	ID        uuid.UUID
	Start     time.Time
	End       time.Time
	Scheduled int
}

// ForRequest derives the affected slots for a request from a schedule
// snapshot keyed by shift id. A take adds headcount; a one-sided giveaway
// removes it; a true swap keeps both slots staffed and scores low. Shifts
// missing from the snapshot are skipped.
func ForRequest(req request.Request, snapshot map[uuid.UUID]Shift) []AffectedSlot {
	var out []AffectedSlot

	add := func(id uuid.UUID, delta int) {
		shift, ok := snapshot[id]
		if !ok {
			return
		}
		out = append(out, AffectedSlot{
			Start:     shift.Start,
			End:       shift.End,
			Scheduled: shift.Scheduled,
			Delta:     delta,
		})
	}

	switch req.Kind {
	case request.KindTake:
		add(req.SubjectShiftID, +1)
	case request.KindExchange, request.KindApproval:
		if req.CounterpartShiftID == nil {
			add(req.SubjectShiftID, -1)
			return out
		}
		// both parties stay scheduled, just on swapped slots
		add(req.SubjectShiftID, 0)
		add(*req.CounterpartShiftID, 0)
	}
	return out
}
