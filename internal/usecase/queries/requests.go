package queries

import (
	"context"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/coverage"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/pkg/errs"

	"github.com/google/uuid"
)

// RequestView is what the UI layer reads. State is the effective state:
// lazy expiry is already applied, so an exchange whose deadline passed
// reads as expired even before any sync has confirmed it.
type RequestView struct {
	request.Request
	State           request.State // effective state, shadows the stored one
	HasQueuedAction bool
}

type ReadRepository interface {
	Find(ctx context.Context, id uuid.UUID) (request.Request, error)
	Snapshot(ctx context.Context) ([]request.Request, error)
	ListByParty(ctx context.Context, party uuid.UUID) ([]request.Request, error)
	ListByState(ctx context.Context, state request.State) ([]request.Request, error)
}

type QueueReadRepository interface {
	List(ctx context.Context) ([]action.Entry, error)
}

type RequestQueries interface {
	Get(ctx context.Context, id uuid.UUID) (*RequestView, error)
	ListForParty(ctx context.Context, party uuid.UUID) ([]RequestView, error)
	ListAwaitingApproval(ctx context.Context) ([]RequestView, error)
	QueueEntries(ctx context.Context) ([]action.Entry, error)
	AssessImpact(slots []coverage.AffectedSlot) coverage.Impact
	AssessRequestImpact(ctx context.Context, id uuid.UUID, snapshot map[uuid.UUID]coverage.Shift) (coverage.Impact, error)
}

type requestQueriesImpl struct {
	requests ReadRepository
	queue    QueueReadRepository
	advisor  *coverage.Advisor
	clock    clock.Clock
}

func NewRequestQueries(requests ReadRepository, queue QueueReadRepository, advisor *coverage.Advisor, clk clock.Clock) RequestQueries {
	return &requestQueriesImpl{
		requests: requests,
		queue:    queue,
		advisor:  advisor,
		clock:    clk,
	}
}

func (q *requestQueriesImpl) Get(ctx context.Context, id uuid.UUID) (*RequestView, error) {
	req, err := q.requests.Find(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrRequestNotFound)
		}
		return nil, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	queued, err := q.queuedRequestIDs(ctx)
	if err != nil {
		return nil, err
	}

	view := q.toView(req, queued)
	return &view, nil
}

func (q *requestQueriesImpl) ListForParty(ctx context.Context, party uuid.UUID) ([]RequestView, error) {
	reqs, err := q.requests.ListByParty(ctx, party)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	return q.toViews(ctx, reqs)
}

func (q *requestQueriesImpl) ListAwaitingApproval(ctx context.Context) ([]RequestView, error) {
	reqs, err := q.requests.ListByState(ctx, request.StatePendingApproval)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	return q.toViews(ctx, reqs)
}

// QueueEntries exposes the raw queue for pending/failed visibility: a
// locally failed action stays listed until the user cancels or retries it.
func (q *requestQueriesImpl) QueueEntries(ctx context.Context) ([]action.Entry, error) {
	entries, err := q.queue.List(ctx)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	return entries, nil
}

func (q *requestQueriesImpl) AssessImpact(slots []coverage.AffectedSlot) coverage.Impact {
	return q.advisor.Assess(slots)
}

// AssessRequestImpact scores a stored request against the schedule snapshot
// the host application supplies. The snapshot is keyed by shift id; shifts
// the snapshot does not cover are ignored.
func (q *requestQueriesImpl) AssessRequestImpact(ctx context.Context, id uuid.UUID, snapshot map[uuid.UUID]coverage.Shift) (coverage.Impact, error) {
	req, err := q.requests.Find(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return coverage.ImpactLow, errs.Mark(err, errs.ErrRequestNotFound)
		}
		return coverage.ImpactLow, errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	return q.advisor.Assess(coverage.ForRequest(req, snapshot)), nil
}

func (q *requestQueriesImpl) toViews(ctx context.Context, reqs []request.Request) ([]RequestView, error) {
	queued, err := q.queuedRequestIDs(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]RequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, q.toView(req, queued))
	}
	return views, nil
}

func (q *requestQueriesImpl) toView(req request.Request, queued map[uuid.UUID]bool) RequestView {
	return RequestView{
		Request:         req,
		State:           request.EffectiveState(req, q.clock.Now()),
		HasQueuedAction: queued[req.ID],
	}
}

func (q *requestQueriesImpl) queuedRequestIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	entries, err := q.queue.List(ctx)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	out := make(map[uuid.UUID]bool, len(entries))
	for _, e := range entries {
		out[e.RequestID] = true
	}
	return out, nil
}
