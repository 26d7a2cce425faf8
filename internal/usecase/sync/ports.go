package sync

import (
	"context"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"

	"github.com/google/uuid"
)

// Gateway is the REST surface the reconciler drains the queue against.
// Every mutating call carries the entry's idempotency key, so a retry the
// server has already processed resolves to the same authoritative Request.
type Gateway interface {
	TakeShift(ctx context.Context, p action.TakePayload, key uuid.UUID) (request.Request, error)
	ProposeExchange(ctx context.Context, p action.ExchangePayload, key uuid.UUID) (request.Request, error)
	RespondExchange(ctx context.Context, id uuid.UUID, accepted bool, key uuid.UUID) (request.Request, error)
	CancelExchange(ctx context.Context, id uuid.UUID, key uuid.UUID) (request.Request, error)
	Approve(ctx context.Context, id uuid.UUID, notes string, key uuid.UUID) (request.Request, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, key uuid.UUID) (request.Request, error)
	Updates(ctx context.Context, since string) ([]request.Request, string, error)
}

type RequestRepository interface {
	Save(ctx context.Context, req request.Request) error
	Find(ctx context.Context, id uuid.UUID) (request.Request, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error)
}

type QueueRepository interface {
	PeekNext(ctx context.Context) (action.Entry, error)
	Remove(ctx context.Context, entryID uuid.UUID) error
	UpdateRetry(ctx context.Context, e action.Entry) error
	ReassignRequest(ctx context.Context, from, to uuid.UUID) error
	HasPending(ctx context.Context, requestID uuid.UUID) (bool, error)
}

type CursorRepository interface {
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, cursor string) error
}
