package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/infra/api"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/pkg/config"
	"shiftsync/internal/pkg/errs"

	"golang.org/x/sync/semaphore"
)

var errOrphanedEntry = errors.New("queue entry references unknown request")

// Reconciler drains the offline action queue against the server and merges
// server state back into the request store. A weighted semaphore guarantees
// at most one tick in flight: a tick that arrives while one runs is
// suppressed, not queued.
type Reconciler struct {
	gateway  Gateway
	requests RequestRepository
	queue    QueueRepository
	cursors  CursorRepository
	notifier Notifier

	policy      action.RetryPolicy
	maxAttempts int
	retention   time.Duration

	clock    clock.Clock
	logger   *slog.Logger
	inFlight *semaphore.Weighted
}

func NewReconciler(
	gateway Gateway,
	requests RequestRepository,
	queue QueueRepository,
	cursors CursorRepository,
	notifier Notifier,
	syncCfg config.SyncConfig,
	storeCfg config.StoreConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		gateway:     gateway,
		requests:    requests,
		queue:       queue,
		cursors:     cursors,
		notifier:    notifier,
		policy:      action.NewRetryPolicy(syncCfg.BackoffBase, syncCfg.BackoffCap),
		maxAttempts: syncCfg.MaxAttempts,
		retention:   storeCfg.RetentionWindow,
		clock:       clk,
		logger:      logger,
		inFlight:    semaphore.NewWeighted(1),
	}
}

// Tick runs one full reconciliation pass: drain the queue, then pull
// server-side updates. Returns ErrSyncInProgress when a pass is already
// running.
func (r *Reconciler) Tick(ctx context.Context) error {
	if !r.inFlight.TryAcquire(1) {
		return errs.ErrSyncInProgress
	}
	defer r.inFlight.Release(1)

	if err := r.drain(ctx); err != nil {
		return err
	}
	return r.pull(ctx)
}

// drain processes queue entries strictly in FIFO order. A later entry may
// depend on the outcome of an earlier one, so the first transient failure
// (or a head entry still waiting out its backoff) stops the pass.
func (r *Reconciler) drain(ctx context.Context) error {
	for {
		entry, err := r.queue.PeekNext(ctx)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return nil // queue empty
			}
			return errs.Mark(err, errs.ErrStoreOperationFailed)
		}

		now := r.clock.Now()
		if !entry.Ready(now) {
			return nil // head still backing off; order must hold
		}

		authoritative, err := r.submit(ctx, entry)

		switch {
		case err == nil:
			if err := r.acknowledge(ctx, entry, authoritative, false); err != nil {
				return err
			}

		case errors.Is(err, errOrphanedEntry):
			r.logger.Warn("dropping orphaned queue entry", "entry_id", entry.EntryID.String())
			if err := r.queue.Remove(ctx, entry.EntryID); err != nil {
				return errs.Mark(err, errs.ErrStoreOperationFailed)
			}

		case isDefinitive(err):
			if err := r.settleRejection(ctx, entry, err); err != nil {
				return err
			}

		default:
			// Transient: reschedule with backoff, leave the entry in place
			// and stop draining for this tick.
			return r.reschedule(ctx, entry, now)
		}
	}
}

// submit dispatches one entry to the matching gateway call, keyed by the
// entry's idempotency key.
func (r *Reconciler) submit(ctx context.Context, entry action.Entry) (request.Request, error) {
	local, err := r.requests.Find(ctx, entry.RequestID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return request.Request{}, errOrphanedEntry
		}
		return request.Request{}, errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	switch entry.Type {
	case action.TypeCreate:
		switch local.Kind {
		case request.KindTake:
			var p action.TakePayload
			if err := action.UnmarshalPayload(entry.Payload, &p); err != nil {
				return request.Request{}, errOrphanedEntry
			}
			return r.gateway.TakeShift(ctx, p, entry.EntryID)
		case request.KindExchange:
			var p action.ExchangePayload
			if err := action.UnmarshalPayload(entry.Payload, &p); err != nil {
				return request.Request{}, errOrphanedEntry
			}
			return r.gateway.ProposeExchange(ctx, p, entry.EntryID)
		}

	case action.TypeAccept, action.TypeReject:
		if local.Kind == request.KindExchange {
			return r.gateway.RespondExchange(ctx, entry.RequestID, entry.Type == action.TypeAccept, entry.EntryID)
		}
		var p action.DecisionPayload
		_ = action.UnmarshalPayload(entry.Payload, &p)
		if entry.Type == action.TypeAccept {
			return r.gateway.Approve(ctx, entry.RequestID, p.Notes, entry.EntryID)
		}
		return r.gateway.Reject(ctx, entry.RequestID, p.Notes, entry.EntryID)

	case action.TypeCancel:
		return r.gateway.CancelExchange(ctx, entry.RequestID, entry.EntryID)
	}

	return request.Request{}, errOrphanedEntry
}

// acknowledge lands a server response: the authoritative copy replaces the
// optimistic one wholesale and the entry leaves the queue. When the server
// assigned a new id to a locally created request, the provisional row goes
// away with it.
func (r *Reconciler) acknowledge(ctx context.Context, entry action.Entry, authoritative request.Request, rejected bool) error {
	var localPtr *request.Request
	if local, err := r.requests.Find(ctx, entry.RequestID); err == nil {
		localPtr = &local
	}

	merged, superseded := request.ApplyServerUpdate(localPtr, authoritative)

	if merged.ID != entry.RequestID {
		if err := r.requests.Delete(ctx, entry.RequestID); err != nil {
			return errs.Mark(err, errs.ErrStoreOperationFailed)
		}
		// follow-up actions queued behind this create still reference the
		// provisional id; repoint them so they drain against the real one
		if err := r.queue.ReassignRequest(ctx, entry.RequestID, merged.ID); err != nil {
			return errs.Mark(err, errs.ErrStoreOperationFailed)
		}
	}
	if err := r.requests.Save(ctx, merged); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}
	if err := r.queue.Remove(ctx, entry.EntryID); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	if superseded {
		// a follow-up action for this request is still queued; its own
		// acknowledgement decides the outcome
		if pending, perr := r.queue.HasPending(ctx, merged.ID); perr == nil && pending {
			superseded = false
		}
	}

	if superseded {
		r.notifier.Notify(Notice{
			Kind:      NoticeSuperseded,
			RequestID: merged.ID,
			EntryID:   entry.EntryID,
			Message:   "local state replaced by server outcome",
		})
	} else if rejected {
		r.notifier.Notify(Notice{
			Kind:      NoticeRequestFailed,
			RequestID: merged.ID,
			EntryID:   entry.EntryID,
			Message:   "action rejected: " + string(merged.State),
		})
	}
	return nil
}

// settleRejection handles a definitive server rejection: the entry is
// acknowledged (dequeued), the terminal state lands, and the user gets a
// notice rather than an error.
func (r *Reconciler) settleRejection(ctx context.Context, entry action.Entry, cause error) error {
	var definitive *api.DefinitiveError
	if errors.As(cause, &definitive) && definitive.Request != nil {
		return r.acknowledge(ctx, entry, *definitive.Request, true)
	}

	// No authoritative body. For a take we know the terminal state; other
	// kinds settle on the next pull.
	if local, err := r.requests.Find(ctx, entry.RequestID); err == nil && !local.IsTerminal() {
		if local.Kind == request.KindTake {
			if failed, terr := request.Transition(local, request.EventFail, request.ServerActor(), r.clock.Now()); terr == nil {
				failed.Origin = request.OriginLocalConfirmed
				if err := r.requests.Save(ctx, failed); err != nil {
					return errs.Mark(err, errs.ErrStoreOperationFailed)
				}
			}
		}
	}

	if err := r.queue.Remove(ctx, entry.EntryID); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	r.notifier.Notify(Notice{
		Kind:      NoticeRequestFailed,
		RequestID: entry.RequestID,
		EntryID:   entry.EntryID,
		Message:   cause.Error(),
	})
	return nil
}

func (r *Reconciler) reschedule(ctx context.Context, entry action.Entry, now time.Time) error {
	updated := r.policy.Reschedule(entry, now)
	if err := r.queue.UpdateRetry(ctx, updated); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	r.logger.Debug("queue entry rescheduled",
		"entry_id", updated.EntryID.String(),
		"attempts", updated.AttemptCount,
		"next_retry_at", updated.NextRetryAt,
	)

	if r.maxAttempts > 0 && updated.AttemptCount == r.maxAttempts {
		// The entry stays queued; the cap only gates when the user hears
		// about it, and only once.
		r.notifier.Notify(Notice{
			Kind:      NoticePersistentFailure,
			RequestID: updated.RequestID,
			EntryID:   updated.EntryID,
			Message:   "action could not reach the server; it remains queued",
		})
	}
	return nil
}

// pull fetches server-originated changes and merges them through the same
// entry point as push updates, then persists the cursor and prunes old
// terminal requests.
func (r *Reconciler) pull(ctx context.Context) error {
	cursor, err := r.cursors.Cursor(ctx)
	if err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	updates, next, err := r.gateway.Updates(ctx, cursor)
	if err != nil {
		return err // transient; next tick retries with the same cursor
	}

	for _, incoming := range updates {
		if err := r.merge(ctx, incoming); err != nil {
			return err
		}
	}

	if next != "" && next != cursor {
		if err := r.cursors.SetCursor(ctx, next); err != nil {
			return errs.Mark(err, errs.ErrStoreOperationFailed)
		}
	}

	if r.retention > 0 {
		cutoff := r.clock.Now().Add(-r.retention)
		if n, err := r.requests.PruneTerminal(ctx, cutoff); err == nil && n > 0 {
			r.logger.Debug("pruned terminal requests", "count", n)
		}
	}
	return nil
}

// Merge applies one server-delivered request. Exported through merge so the
// push path (host app notification payloads) and the poll path land in the
// identical code.
func (r *Reconciler) Merge(ctx context.Context, incoming request.Request) error {
	return r.merge(ctx, incoming)
}

func (r *Reconciler) merge(ctx context.Context, incoming request.Request) error {
	var localPtr *request.Request
	if local, err := r.requests.Find(ctx, incoming.ID); err == nil {
		localPtr = &local
	}

	merged, superseded := request.ApplyServerUpdate(localPtr, incoming)
	if err := r.requests.Save(ctx, merged); err != nil {
		return errs.Mark(err, errs.ErrStoreOperationFailed)
	}

	if superseded {
		r.notifier.Notify(Notice{
			Kind:      NoticeSuperseded,
			RequestID: merged.ID,
			Message:   "local state replaced by server outcome",
		})
	}
	return nil
}

func isDefinitive(err error) bool {
	var definitive *api.DefinitiveError
	return errors.As(err, &definitive)
}
