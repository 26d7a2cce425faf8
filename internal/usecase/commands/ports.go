package commands

import (
	"context"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"

	"github.com/google/uuid"
)

//go:generate mockgen -source=ports.go -destination=../../../tests/mock/commands/ports_mock.go -package=commandsmock

// RequestRepository is the write-side view of the durable request store.
// Saves replace the stored copy wholesale; there is no partial update.
type RequestRepository interface {
	Save(ctx context.Context, req request.Request) error
	Find(ctx context.Context, id uuid.UUID) (request.Request, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// QueueRepository is the durable FIFO of user actions awaiting server
// acknowledgement.
type QueueRepository interface {
	Append(ctx context.Context, e action.Entry) (action.Entry, error)
	Find(ctx context.Context, entryID uuid.UUID) (action.Entry, error)
	Remove(ctx context.Context, entryID uuid.UUID) error
}
