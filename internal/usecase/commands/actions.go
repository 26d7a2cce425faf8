package commands

import (
	"context"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/pkg/errs"

	"github.com/google/uuid"
)

type ProposeExchangeInput struct {
	FromShiftID    uuid.UUID
	ToShiftID      uuid.UUID
	TargetEmployee uuid.UUID
	ExpiresAt      *time.Time
}

// ActionCommands is the write surface the UI layer calls. Every method is
// offline-first: it applies the optimistic lifecycle transition, persists
// the result and enqueues the action durably, then returns. Nothing here
// waits on the network.
type ActionCommands interface {
	TakeShift(ctx context.Context, shiftID, actor uuid.UUID) (request.Request, error)
	ProposeExchange(ctx context.Context, in ProposeExchangeInput, actor uuid.UUID) (request.Request, error)
	RespondExchange(ctx context.Context, requestID uuid.UUID, accepted bool, actor uuid.UUID) (request.Request, error)
	CancelExchange(ctx context.Context, requestID, actor uuid.UUID) (request.Request, error)
	ApproveRequest(ctx context.Context, requestID, actor uuid.UUID, notes string) (request.Request, error)
	RejectRequest(ctx context.Context, requestID, actor uuid.UUID, reason string) (request.Request, error)
	CancelQueued(ctx context.Context, entryID uuid.UUID) error
}

type actionUseCaseImpl struct {
	requests RequestRepository
	queue    QueueRepository
	clock    clock.Clock
}

func NewActionCommands(requests RequestRepository, queue QueueRepository, clk clock.Clock) ActionCommands {
	return &actionUseCaseImpl{
		requests: requests,
		queue:    queue,
		clock:    clk,
	}
}

func (a *actionUseCaseImpl) TakeShift(ctx context.Context, shiftID, actor uuid.UUID) (request.Request, error) {
	now := a.clock.Now()
	req := request.NewTakeRequest(shiftID, actor, now)

	payload, err := action.MarshalPayload(action.TakePayload{ShiftID: shiftID, EmployeeID: actor})
	if err != nil {
		return request.Request{}, errs.Wrap(err, "failed to encode take payload")
	}

	return a.enqueueCreate(ctx, req, payload, now)
}

func (a *actionUseCaseImpl) ProposeExchange(ctx context.Context, in ProposeExchangeInput, actor uuid.UUID) (request.Request, error) {
	now := a.clock.Now()
	req := request.NewExchangeProposal(in.FromShiftID, in.ToShiftID, actor, in.TargetEmployee, in.ExpiresAt, now)

	payload, err := action.MarshalPayload(action.ExchangePayload{
		FromShiftID:        in.FromShiftID,
		ToShiftID:          in.ToShiftID,
		RequestingEmployee: actor,
		TargetEmployee:     in.TargetEmployee,
		ExpiresAt:          in.ExpiresAt,
	})
	if err != nil {
		return request.Request{}, errs.Wrap(err, "failed to encode exchange payload")
	}

	return a.enqueueCreate(ctx, req, payload, now)
}

func (a *actionUseCaseImpl) RespondExchange(ctx context.Context, requestID uuid.UUID, accepted bool, actor uuid.UUID) (request.Request, error) {
	ev := request.EventDecline
	entryType := action.TypeReject
	if accepted {
		ev = request.EventAccept
		entryType = action.TypeAccept
	}

	payload, err := action.MarshalPayload(action.RespondPayload{Accepted: accepted})
	if err != nil {
		return request.Request{}, errs.Wrap(err, "failed to encode respond payload")
	}

	return a.enqueueTransition(ctx, requestID, ev, entryType, payload, actor, "")
}

func (a *actionUseCaseImpl) CancelExchange(ctx context.Context, requestID, actor uuid.UUID) (request.Request, error) {
	return a.enqueueTransition(ctx, requestID, request.EventCancel, action.TypeCancel, nil, actor, "")
}

func (a *actionUseCaseImpl) ApproveRequest(ctx context.Context, requestID, actor uuid.UUID, notes string) (request.Request, error) {
	payload, err := action.MarshalPayload(action.DecisionPayload{Approve: true, Notes: notes})
	if err != nil {
		return request.Request{}, errs.Wrap(err, "failed to encode decision payload")
	}
	return a.enqueueTransition(ctx, requestID, request.EventApprove, action.TypeAccept, payload, actor, notes)
}

func (a *actionUseCaseImpl) RejectRequest(ctx context.Context, requestID, actor uuid.UUID, reason string) (request.Request, error) {
	payload, err := action.MarshalPayload(action.DecisionPayload{Approve: false, Notes: reason})
	if err != nil {
		return request.Request{}, errs.Wrap(err, "failed to encode decision payload")
	}
	return a.enqueueTransition(ctx, requestID, request.EventReject, action.TypeReject, payload, actor, reason)
}

// CancelQueued removes a not-yet-submitted action and reverts the optimistic
// request state. Once a submission attempt has been made the entry may have
// reached the server, so cancellation is refused and a compensating action
// has to be queued instead.
func (a *actionUseCaseImpl) CancelQueued(ctx context.Context, entryID uuid.UUID) error {
	entry, err := a.queue.Find(ctx, entryID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, errs.ErrEntryNotFound)
		}
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	if entry.AttemptCount > 0 {
		return errs.ErrEntryInFlight
	}

	if err := a.queue.Remove(ctx, entryID); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	if entry.Type == action.TypeCreate {
		// The server never saw this request; drop the optimistic copy.
		if err := a.requests.Delete(ctx, entry.RequestID); err != nil {
			return errs.Mark(err, errs.ErrStoreOperationFailed)
		}
		return nil
	}

	req, err := a.requests.Find(ctx, entry.RequestID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil // nothing to revert
		}
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	reverted := req.Clone()
	reverted.State = entry.PriorState
	reverted.Origin = entry.PriorOrigin
	if err := a.requests.Save(ctx, reverted); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	return nil
}

// enqueueCreate persists a brand-new optimistic request plus its create
// entry. If the enqueue fails the request is rolled back so the store never
// holds an action the queue does not know about.
func (a *actionUseCaseImpl) enqueueCreate(ctx context.Context, req request.Request, payload []byte, now time.Time) (request.Request, error) {
	if err := a.requests.Save(ctx, req); err != nil {
		return request.Request{}, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	entry := action.NewEntry(req.ID, action.TypeCreate, payload, now)
	if _, err := a.queue.Append(ctx, entry); err != nil {
		_ = a.requests.Delete(ctx, req.ID)
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return request.Request{}, errs.Mark(err, errs.ErrDuplicateAction)
		}
		return request.Request{}, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	return req, nil
}

// enqueueTransition applies an optimistic lifecycle transition to a known
// request and enqueues the matching action. Lifecycle failures come back
// verbatim: ErrInvalidTransition, ErrUnauthorized and ErrExpired are values
// the caller branches on, never control-flow exceptions.
func (a *actionUseCaseImpl) enqueueTransition(
	ctx context.Context,
	requestID uuid.UUID,
	ev request.Event,
	entryType action.Type,
	payload []byte,
	actor uuid.UUID,
	notes string,
) (request.Request, error) {
	prior, err := a.requests.Find(ctx, requestID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return request.Request{}, errs.Mark(err, errs.ErrRequestNotFound)
		}
		return request.Request{}, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	now := a.clock.Now()
	optimistic, err := request.Transition(prior, ev, request.EmployeeActor(actor), now)
	if err != nil {
		return request.Request{}, err
	}

	// The optimistic copy is no longer authoritative: provenance flips to
	// local-pending and the server version is dropped until reconciled.
	optimistic.Origin = request.OriginLocalPending
	optimistic.Version = nil
	if notes != "" {
		optimistic.Notes = notes
	}

	if err := a.requests.Save(ctx, optimistic); err != nil {
		return request.Request{}, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	entry := action.NewEntry(requestID, entryType, payload, now)
	entry.PriorState = prior.State
	entry.PriorOrigin = prior.Origin
	if _, err := a.queue.Append(ctx, entry); err != nil {
		_ = a.requests.Save(ctx, prior)
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return request.Request{}, errs.Mark(err, errs.ErrDuplicateAction)
		}
		return request.Request{}, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	return optimistic, nil
}
