package commands

import (
	"context"
	"errors"

	"shiftsync/internal/domain/request"
	"shiftsync/internal/pkg/errs"

	"github.com/google/uuid"
)

type Decision struct {
	RequestID uuid.UUID
	Approve   bool
	Notes     string
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

type ItemResult struct {
	RequestID uuid.UUID
	Outcome   Outcome
	Reason    string
}

// BulkProcessor applies a batch of approve/reject decisions assembled from
// an approval-queue snapshot. The snapshot may be stale relative to other
// managers, so each decision is processed independently: one failure never
// blocks or rolls back the rest.
type BulkProcessor interface {
	ProcessBatch(ctx context.Context, decisions []Decision, actor uuid.UUID) []ItemResult
}

type bulkProcessorImpl struct {
	actions ActionCommands
}

func NewBulkProcessor(actions ActionCommands) BulkProcessor {
	return &bulkProcessorImpl{actions: actions}
}

func (b *bulkProcessorImpl) ProcessBatch(ctx context.Context, decisions []Decision, actor uuid.UUID) []ItemResult {
	results := make([]ItemResult, 0, len(decisions))

	for _, d := range decisions {
		var err error
		if d.Approve {
			_, err = b.actions.ApproveRequest(ctx, d.RequestID, actor, d.Notes)
		} else {
			_, err = b.actions.RejectRequest(ctx, d.RequestID, actor, d.Notes)
		}

		if err != nil {
			results = append(results, ItemResult{
				RequestID: d.RequestID,
				Outcome:   OutcomeFailed,
				Reason:    failureReason(err),
			})
			continue
		}

		results = append(results, ItemResult{RequestID: d.RequestID, Outcome: OutcomeSuccess})
	}

	return results
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, request.ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, request.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, request.ErrExpired):
		return "Expired"
	case errors.Is(err, errs.ErrRequestNotFound):
		return "NotFound"
	default:
		return "InternalError"
	}
}
