//go:build unit

package queries_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"shiftsync/internal/domain/coverage"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra/store"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/pkg/errs"
	"shiftsync/internal/pkg/ptr"
	"shiftsync/internal/usecase/commands"
	"shiftsync/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type RequestQueriesTestSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *clock.MockClock
	requests *store.RequestRepository
	queue    *store.QueueRepository
	actions  commands.ActionCommands
	queries  queries.RequestQueries
}

func (s *RequestQueriesTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewMockClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	db, err := store.Open(":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.DiscardHandler)
	s.requests = store.NewRequestRepository(db, logger)
	s.queue = store.NewQueueRepository(db, logger)

	s.actions = commands.NewActionCommands(s.requests, s.queue, s.clock)
	s.queries = queries.NewRequestQueries(s.requests, s.queue, coverage.NewAdvisor(2), s.clock)
}

func TestRequestQueriesTestSuite(t *testing.T) {
	suite.Run(t, new(RequestQueriesTestSuite))
}

func (s *RequestQueriesTestSuite) TestGet_ReflectsQueuedAction() {
	local, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	view, err := s.queries.Get(s.ctx, local.ID)
	s.Require().NoError(err)
	s.Equal(request.StatePending, view.State)
	s.Equal(request.OriginLocalPending, view.Origin)
	s.True(view.HasQueuedAction)
}

func (s *RequestQueriesTestSuite) TestGet_Unknown() {
	_, err := s.queries.Get(s.ctx, uuid.New())
	s.Require().ErrorIs(err, errs.ErrRequestNotFound)
}

// The deadline passed while offline: the view reads expired even though the
// stored row still says pending_response.
func (s *RequestQueriesTestSuite) TestGet_LazyExpiry() {
	expires := s.clock.Now().Add(time.Hour)
	stored := request.Reconstruct(
		uuid.New(), request.KindExchange, uuid.New(), nil,
		uuid.New(), uuid.New(), request.StatePendingResponse,
		s.clock.Now(), &expires, request.OriginServer, ptr.To(int64(1)), "",
	)
	s.Require().NoError(s.requests.Save(s.ctx, stored))

	s.clock.Add(61 * time.Minute)

	view, err := s.queries.Get(s.ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(request.StateExpired, view.State)

	// the stored state is untouched until a sync confirms the expiry
	raw, err := s.requests.Find(s.ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(request.StatePendingResponse, raw.State)
}

func (s *RequestQueriesTestSuite) TestListForParty() {
	employee := uuid.New()
	mine, err := s.actions.TakeShift(s.ctx, uuid.New(), employee)
	s.Require().NoError(err)
	_, err = s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	views, err := s.queries.ListForParty(s.ctx, employee)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(mine.ID, views[0].ID)
	s.True(views[0].HasQueuedAction)
}

func (s *RequestQueriesTestSuite) TestListAwaitingApproval() {
	pending := request.Reconstruct(
		uuid.New(), request.KindApproval, uuid.New(), nil,
		uuid.New(), uuid.New(), request.StatePendingApproval,
		s.clock.Now(), nil, request.OriginServer, ptr.To(int64(1)), "",
	)
	decided := pending.Clone()
	decided.ID = uuid.New()
	decided.State = request.StateApproved
	s.Require().NoError(s.requests.Save(s.ctx, pending))
	s.Require().NoError(s.requests.Save(s.ctx, decided))

	views, err := s.queries.ListAwaitingApproval(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(pending.ID, views[0].ID)
	s.False(views[0].HasQueuedAction)
}

func (s *RequestQueriesTestSuite) TestQueueEntries() {
	_, err := s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)
	_, err = s.actions.TakeShift(s.ctx, uuid.New(), uuid.New())
	s.Require().NoError(err)

	entries, err := s.queries.QueueEntries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Less(entries[0].Position, entries[1].Position)
}

func (s *RequestQueriesTestSuite) TestAssessImpact() {
	start := s.clock.Now()
	impact := s.queries.AssessImpact([]coverage.AffectedSlot{
		{Start: start, End: start.Add(8 * time.Hour), Scheduled: 2, Delta: -1},
	})
	s.Equal(coverage.ImpactHigh, impact)
}

// A one-sided exchange of the last covering shift scores high; the same
// request with no matching snapshot entry scores low.
func (s *RequestQueriesTestSuite) TestAssessRequestImpact() {
	shiftID := uuid.New()
	giveaway := request.Reconstruct(
		uuid.New(), request.KindExchange, shiftID, nil,
		uuid.New(), uuid.New(), request.StateProposed,
		s.clock.Now(), nil, request.OriginServer, ptr.To(int64(1)), "",
	)
	s.Require().NoError(s.requests.Save(s.ctx, giveaway))

	start := s.clock.Now()
	impact, err := s.queries.AssessRequestImpact(s.ctx, giveaway.ID, map[uuid.UUID]coverage.Shift{
		shiftID: {ID: shiftID, Start: start, End: start.Add(8 * time.Hour), Scheduled: 2},
	})
	s.Require().NoError(err)
	s.Equal(coverage.ImpactHigh, impact)

	impact, err = s.queries.AssessRequestImpact(s.ctx, giveaway.ID, nil)
	s.Require().NoError(err)
	s.Equal(coverage.ImpactLow, impact)

	_, err = s.queries.AssessRequestImpact(s.ctx, uuid.New(), nil)
	s.Require().ErrorIs(err, errs.ErrRequestNotFound)
}
