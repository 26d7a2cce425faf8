//go:build unit

package sync_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/infra/api"
	"shiftsync/internal/infra/store"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/pkg/config"
	"shiftsync/internal/pkg/errs"
	"shiftsync/internal/pkg/ptr"
	"shiftsync/internal/usecase/commands"
	syncuc "shiftsync/internal/usecase/sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fakeGateway scripts server behavior per call and records the order calls
// arrived in.
type fakeGateway struct {
	takeShift       func(p action.TakePayload, key uuid.UUID) (request.Request, error)
	proposeExchange func(p action.ExchangePayload, key uuid.UUID) (request.Request, error)
	respondExchange func(id uuid.UUID, accepted bool, key uuid.UUID) (request.Request, error)
	cancelExchange  func(id uuid.UUID, key uuid.UUID) (request.Request, error)
	approve         func(id uuid.UUID, notes string, key uuid.UUID) (request.Request, error)
	reject          func(id uuid.UUID, reason string, key uuid.UUID) (request.Request, error)
	updates         func(since string) ([]request.Request, string, error)

	calls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		updates: func(string) ([]request.Request, string, error) { return nil, "", nil },
	}
}

func (f *fakeGateway) TakeShift(_ context.Context, p action.TakePayload, key uuid.UUID) (request.Request, error) {
	f.calls = append(f.calls, "take")
	return f.takeShift(p, key)
}

func (f *fakeGateway) ProposeExchange(_ context.Context, p action.ExchangePayload, key uuid.UUID) (request.Request, error) {
	f.calls = append(f.calls, "propose")
	return f.proposeExchange(p, key)
}

func (f *fakeGateway) RespondExchange(_ context.Context, id uuid.UUID, accepted bool, key uuid.UUID) (request.Request, error) {
	f.calls = append(f.calls, "respond")
	return f.respondExchange(id, accepted, key)
}

func (f *fakeGateway) CancelExchange(_ context.Context, id uuid.UUID, key uuid.UUID) (request.Request, error) {
	f.calls = append(f.calls, "cancel")
	return f.cancelExchange(id, key)
}

func (f *fakeGateway) Approve(_ context.Context, id uuid.UUID, notes string, key uuid.UUID) (request.Request, error) {
	f.calls = append(f.calls, "approve")
	return f.approve(id, notes, key)
}

func (f *fakeGateway) Reject(_ context.Context, id uuid.UUID, reason string, key uuid.UUID) (request.Request, error) {
	f.calls = append(f.calls, "reject")
	return f.reject(id, reason, key)
}

func (f *fakeGateway) Updates(_ context.Context, since string) ([]request.Request, string, error) {
	f.calls = append(f.calls, "updates")
	return f.updates(since)
}

type recordingNotifier struct {
	notices []syncuc.Notice
}

func (r *recordingNotifier) Notify(n syncuc.Notice) {
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) kinds() []syncuc.NoticeKind {
	out := make([]syncuc.NoticeKind, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

type ReconcilerTestSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *clock.MockClock
	gateway  *fakeGateway
	notifier *recordingNotifier

	requests   *store.RequestRepository
	queue      *store.QueueRepository
	cursors    *store.SyncStateRepository
	actions    commands.ActionCommands
	reconciler *syncuc.Reconciler
}

func (s *ReconcilerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewMockClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	s.gateway = newFakeGateway()
	s.notifier = &recordingNotifier{}

	db, err := store.Open(":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.DiscardHandler)
	s.requests = store.NewRequestRepository(db, logger)
	s.queue = store.NewQueueRepository(db, logger)
	s.cursors = store.NewSyncStateRepository(db, logger)

	s.actions = commands.NewActionCommands(s.requests, s.queue, s.clock)
	s.reconciler = syncuc.NewReconciler(
		s.gateway, s.requests, s.queue, s.cursors, s.notifier,
		config.SyncConfig{
			BackoffBase: 2 * time.Second,
			BackoffCap:  5 * time.Minute,
			MaxAttempts: 3,
		},
		config.StoreConfig{RetentionWindow: 72 * time.Hour},
		s.clock, logger,
	)
}

func TestReconcilerTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerTestSuite))
}

func serverCopyOf(local request.Request, state request.State, version int64) request.Request {
	out := local.Clone()
	out.State = state
	out.Origin = request.OriginServer
	out.Version = ptr.To(version)
	return out
}

// A take queued offline drains on reconnect: the server assigns the real id,
// the provisional row disappears and the authoritative copy lands.
func (s *ReconcilerTestSuite) TestDrain_TakeAccepted() {
	shiftID := uuid.New()
	employee := uuid.New()

	local, err := s.actions.TakeShift(s.ctx, shiftID, employee)
	s.Require().NoError(err)

	serverID := uuid.New()
	var seenKey uuid.UUID
	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		seenKey = key
		authoritative := serverCopyOf(local, request.StateAccepted, 1)
		authoritative.ID = serverID
		return authoritative, nil
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	// provisional row replaced by the server copy
	_, err = s.requests.Find(s.ctx, local.ID)
	s.True(infra.IsKind(err, infra.KindNotFound))

	got, err := s.requests.Find(s.ctx, serverID)
	s.Require().NoError(err)
	s.Equal(request.StateAccepted, got.State)
	s.Equal(request.OriginServer, got.Origin)

	// queue drained, idempotency key was the entry id
	_, err = s.queue.PeekNext(s.ctx)
	s.True(infra.IsKind(err, infra.KindNotFound))
	s.NotEqual(uuid.Nil, seenKey)
	s.Empty(s.notifier.notices)
}

// Someone else took the shift while this client was offline. The server
// rejects definitively with the authoritative state; the user gets a notice,
// not an error, and the queue moves on.
func (s *ReconcilerTestSuite) TestDrain_TakeRejectedDefinitively() {
	local, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		authoritative := serverCopyOf(local, request.StateFailed, 1)
		return request.Request{}, &api.DefinitiveError{
			Status:  409,
			Request: &authoritative,
			Message: "shift already taken",
		}
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	got, err := s.requests.Find(s.ctx, local.ID)
	s.Require().NoError(err)
	s.Equal(request.StateFailed, got.State)
	s.Equal(request.OriginServer, got.Origin)

	_, err = s.queue.PeekNext(s.ctx)
	s.True(infra.IsKind(err, infra.KindNotFound))

	s.Equal([]syncuc.NoticeKind{syncuc.NoticeRequestFailed}, s.notifier.kinds())
}

// A definitive rejection without an authoritative body still settles a take
// locally as failed.
func (s *ReconcilerTestSuite) TestDrain_TakeRejectedWithoutBody() {
	local, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		return request.Request{}, &api.DefinitiveError{Status: 409, Message: "shift already taken"}
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	got, err := s.requests.Find(s.ctx, local.ID)
	s.Require().NoError(err)
	s.Equal(request.StateFailed, got.State)
	s.Equal(request.OriginLocalConfirmed, got.Origin)
	s.Equal([]syncuc.NoticeKind{syncuc.NoticeRequestFailed}, s.notifier.kinds())
}

// A transient failure stops the drain at the failing entry: order must hold,
// so nothing behind it is attempted this tick.
func (s *ReconcilerTestSuite) TestDrain_TransientFailureStopsAtHead() {
	first, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)
	_, err = s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		return request.Request{}, errs.Mark(errors.New("connection reset"), errs.ErrTransientNetwork)
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal([]string{"take", "updates"}, s.gateway.calls)

	// head rescheduled in place, still first in line
	head, err := s.queue.PeekNext(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, head.RequestID)
	s.Equal(1, head.AttemptCount)
	s.Require().NotNil(head.NextRetryAt)

	// a tick before the backoff elapses does not retry the head
	s.gateway.calls = nil
	s.clock.Add(time.Second)
	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal([]string{"updates"}, s.gateway.calls)

	// once the backoff elapses both entries drain in order
	s.gateway.calls = nil
	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		return serverAcceptedTake(p), nil
	}
	s.clock.Add(2 * time.Second)
	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal([]string{"take", "take", "updates"}, s.gateway.calls)

	_, err = s.queue.PeekNext(s.ctx)
	s.True(infra.IsKind(err, infra.KindNotFound))
}

func serverAcceptedTake(p action.TakePayload) request.Request {
	return request.Reconstruct(
		uuid.New(), request.KindTake, p.ShiftID, nil,
		p.EmployeeID, uuid.Nil, request.StateAccepted,
		time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), nil,
		request.OriginServer, ptr.To(int64(1)), "",
	)
}

// Retries reuse the same idempotency key, so a replay the server already
// processed is harmless.
func (s *ReconcilerTestSuite) TestDrain_RetryKeepsIdempotencyKey() {
	_, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	var keys []uuid.UUID
	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		keys = append(keys, key)
		return request.Request{}, errs.Mark(errors.New("connection reset"), errs.ErrTransientNetwork)
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.clock.Add(2 * time.Second)
	s.Require().NoError(s.reconciler.Tick(s.ctx))

	s.Require().Len(keys, 2)
	s.Equal(keys[0], keys[1])
}

// Exhausting the attempt cap surfaces a persistent-failure notice but never
// drops the entry: durable means durable.
func (s *ReconcilerTestSuite) TestDrain_PersistentFailureNotice() {
	_, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		return request.Request{}, errs.Mark(errors.New("connection reset"), errs.ErrTransientNetwork)
	}

	for i := 0; i < 3; i++ {
		s.Require().NoError(s.reconciler.Tick(s.ctx))
		s.clock.Add(5 * time.Minute)
	}

	s.Equal([]syncuc.NoticeKind{syncuc.NoticePersistentFailure}, s.notifier.kinds())

	head, err := s.queue.PeekNext(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, head.AttemptCount)

	// retries past the cap keep going but do not repeat the notice
	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal([]syncuc.NoticeKind{syncuc.NoticePersistentFailure}, s.notifier.kinds())

	head, err = s.queue.PeekNext(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, head.AttemptCount)
}

// A cancel queued offline behind its own propose must reach the server under
// the id the server assigned to the create, not the provisional one. The
// final state matches what the same two actions would have produced online.
func (s *ReconcilerTestSuite) TestDrain_FollowUpSurvivesServerIDAssignment() {
	requester := uuid.New()
	local, err := s.actions.ProposeExchange(s.ctx, commands.ProposeExchangeInput{
		FromShiftID:    uuid.New(),
		ToShiftID:      uuid.New(),
		TargetEmployee: uuid.New(),
	}, requester)
	s.Require().NoError(err)

	cancelled, err := s.actions.CancelExchange(s.ctx, local.ID, requester)
	s.Require().NoError(err)
	s.Equal(request.StateCancelled, cancelled.State)

	serverID := uuid.New()
	s.gateway.proposeExchange = func(p action.ExchangePayload, key uuid.UUID) (request.Request, error) {
		authoritative := serverCopyOf(local, request.StatePendingResponse, 1)
		authoritative.ID = serverID
		return authoritative, nil
	}
	var cancelledID uuid.UUID
	s.gateway.cancelExchange = func(id uuid.UUID, key uuid.UUID) (request.Request, error) {
		cancelledID = id
		authoritative := serverCopyOf(local, request.StateCancelled, 2)
		authoritative.ID = serverID
		return authoritative, nil
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal([]string{"propose", "cancel", "updates"}, s.gateway.calls)
	s.Equal(serverID, cancelledID)

	got, err := s.requests.Find(s.ctx, serverID)
	s.Require().NoError(err)
	s.Equal(request.StateCancelled, got.State)

	// provisional row gone, queue fully drained, no spurious conflict notice
	_, err = s.requests.Find(s.ctx, local.ID)
	s.True(infra.IsKind(err, infra.KindNotFound))
	_, err = s.queue.PeekNext(s.ctx)
	s.True(infra.IsKind(err, infra.KindNotFound))
	s.Empty(s.notifier.notices)
}

// Two queued actions drain strictly in submission order.
func (s *ReconcilerTestSuite) TestDrain_FIFO() {
	takeLocal, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	target := uuid.New()
	exchangeLocal, err := s.actions.ProposeExchange(s.ctx, commands.ProposeExchangeInput{
		FromShiftID:    uuid.New(),
		ToShiftID:      uuid.New(),
		TargetEmployee: target,
	}, uuid.New())
	s.Require().NoError(err)

	s.gateway.takeShift = func(p action.TakePayload, key uuid.UUID) (request.Request, error) {
		return serverCopyOf(takeLocal, request.StateAccepted, 1), nil
	}
	s.gateway.proposeExchange = func(p action.ExchangePayload, key uuid.UUID) (request.Request, error) {
		return serverCopyOf(exchangeLocal, request.StatePendingResponse, 1), nil
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal([]string{"take", "propose", "updates"}, s.gateway.calls)

	_, err = s.queue.PeekNext(s.ctx)
	s.True(infra.IsKind(err, infra.KindNotFound))
}

// The user cancelled offline but the server had already recorded an
// acceptance. Server wins; the local cancellation is superseded and the user
// is told.
func (s *ReconcilerTestSuite) TestDrain_SupersededCancellation() {
	requester := uuid.New()
	stored := request.Reconstruct(
		uuid.New(), request.KindExchange, uuid.New(), nil,
		requester, uuid.New(), request.StatePendingResponse,
		s.clock.Now().Add(-time.Hour), nil, request.OriginServer, ptr.To(int64(1)), "",
	)
	s.Require().NoError(s.requests.Save(s.ctx, stored))

	cancelled, err := s.actions.CancelExchange(s.ctx, stored.ID, requester)
	s.Require().NoError(err)
	s.Equal(request.StateCancelled, cancelled.State)

	s.gateway.cancelExchange = func(id uuid.UUID, key uuid.UUID) (request.Request, error) {
		return serverCopyOf(stored, request.StateAccepted, 2), nil
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	got, err := s.requests.Find(s.ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(request.StateAccepted, got.State)
	s.Equal(request.OriginServer, got.Origin)

	s.Equal([]syncuc.NoticeKind{syncuc.NoticeSuperseded}, s.notifier.kinds())
}

// An entry whose request row vanished is dropped instead of wedging the
// queue.
func (s *ReconcilerTestSuite) TestDrain_OrphanedEntryDropped() {
	local, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)
	s.Require().NoError(s.requests.Delete(s.ctx, local.ID))

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	_, err = s.queue.PeekNext(s.ctx)
	s.True(infra.IsKind(err, infra.KindNotFound))
	s.Equal([]string{"updates"}, s.gateway.calls) // nothing was submitted
}

// Pull merges server updates through the same path as push, advances the
// cursor and prunes old terminal rows.
func (s *ReconcilerTestSuite) TestPull_MergesAndAdvancesCursor() {
	incoming := request.Reconstruct(
		uuid.New(), request.KindExchange, uuid.New(), nil,
		uuid.New(), uuid.New(), request.StatePendingResponse,
		s.clock.Now(), nil, request.OriginServer, ptr.To(int64(1)), "",
	)

	var sinceSeen string
	s.gateway.updates = func(since string) ([]request.Request, string, error) {
		sinceSeen = since
		return []request.Request{incoming}, "cursor-42", nil
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Empty(sinceSeen)

	got, err := s.requests.Find(s.ctx, incoming.ID)
	s.Require().NoError(err)
	s.Equal(request.StatePendingResponse, got.State)

	cursor, err := s.cursors.Cursor(s.ctx)
	s.Require().NoError(err)
	s.Equal("cursor-42", cursor)

	// the next pull resumes from the stored cursor
	s.gateway.updates = func(since string) ([]request.Request, string, error) {
		sinceSeen = since
		return nil, "cursor-42", nil
	}
	s.Require().NoError(s.reconciler.Tick(s.ctx))
	s.Equal("cursor-42", sinceSeen)
}

func (s *ReconcilerTestSuite) TestPull_SupersedesOptimisticState() {
	requester := uuid.New()
	stored := request.Reconstruct(
		uuid.New(), request.KindExchange, uuid.New(), nil,
		requester, uuid.New(), request.StateProposed,
		s.clock.Now().Add(-time.Hour), nil, request.OriginServer, ptr.To(int64(1)), "",
	)
	s.Require().NoError(s.requests.Save(s.ctx, stored))

	// cancel offline, then drop the queued action so only the optimistic
	// state remains when the pull arrives
	_, err := s.actions.CancelExchange(s.ctx, stored.ID, requester)
	s.Require().NoError(err)
	head, err := s.queue.PeekNext(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.queue.Remove(s.ctx, head.EntryID))

	s.gateway.updates = func(since string) ([]request.Request, string, error) {
		return []request.Request{serverCopyOf(stored, request.StateAccepted, 2)}, "c1", nil
	}

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	got, err := s.requests.Find(s.ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(request.StateAccepted, got.State)
	s.Equal([]syncuc.NoticeKind{syncuc.NoticeSuperseded}, s.notifier.kinds())
}

func (s *ReconcilerTestSuite) TestPull_TransientErrorKeepsCursor() {
	s.Require().NoError(s.cursors.SetCursor(s.ctx, "c1"))

	s.gateway.updates = func(since string) ([]request.Request, string, error) {
		return nil, "", errs.Mark(errors.New("timeout"), errs.ErrTransientNetwork)
	}

	err := s.reconciler.Tick(s.ctx)
	s.Require().ErrorIs(err, errs.ErrTransientNetwork)

	cursor, cerr := s.cursors.Cursor(s.ctx)
	s.Require().NoError(cerr)
	s.Equal("c1", cursor)
}

func (s *ReconcilerTestSuite) TestPull_PrunesOldTerminalRows() {
	old := request.Reconstruct(
		uuid.New(), request.KindTake, uuid.New(), nil,
		uuid.New(), uuid.New(), request.StateAccepted,
		s.clock.Now().Add(-100*time.Hour), nil, request.OriginServer, ptr.To(int64(1)), "",
	)
	s.Require().NoError(s.requests.Save(s.ctx, old))

	// stored_at is wall-clock; push the reconciler clock far past retention
	s.clock.Set(time.Now().Add(80 * time.Hour))

	s.Require().NoError(s.reconciler.Tick(s.ctx))

	_, err := s.requests.Find(s.ctx, old.ID)
	s.True(infra.IsKind(err, infra.KindNotFound))
}

func TestReconciler_MergeIsSharedEntryPoint(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	logger := slog.New(slog.DiscardHandler)
	requests := store.NewRequestRepository(db, logger)
	queue := store.NewQueueRepository(db, logger)
	cursors := store.NewSyncStateRepository(db, logger)
	notifier := &recordingNotifier{}

	reconciler := syncuc.NewReconciler(
		newFakeGateway(), requests, queue, cursors, notifier,
		config.SyncConfig{BackoffBase: time.Second, BackoffCap: time.Minute, MaxAttempts: 3},
		config.StoreConfig{RetentionWindow: 72 * time.Hour},
		clock.NewMockClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		logger,
	)

	incoming := request.Reconstruct(
		uuid.New(), request.KindApproval, uuid.New(), nil,
		uuid.New(), uuid.New(), request.StatePendingApproval,
		time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), nil,
		request.OriginServer, ptr.To(int64(1)), "",
	)

	// push path: a host-app notification payload lands via Merge
	require.NoError(t, reconciler.Merge(context.Background(), incoming))

	got, err := requests.Find(context.Background(), incoming.ID)
	require.NoError(t, err)
	require.Equal(t, request.StatePendingApproval, got.State)
	require.Empty(t, notifier.notices)
}
