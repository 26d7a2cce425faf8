//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/usecase/commands"
	commandsmock "shiftsync/tests/mock/commands"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type BulkProcessorTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	requests *commandsmock.MockRequestRepository
	queue    *commandsmock.MockQueueRepository
	bulk     commands.BulkProcessor
}

func (s *BulkProcessorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.requests = commandsmock.NewMockRequestRepository(s.ctrl)
	s.queue = commandsmock.NewMockQueueRepository(s.ctrl)
	clk := clock.NewMockClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	s.bulk = commands.NewBulkProcessor(commands.NewActionCommands(s.requests, s.queue, clk))
}

func (s *BulkProcessorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestBulkProcessorTestSuite(t *testing.T) {
	suite.Run(t, new(BulkProcessorTestSuite))
}

// One stale decision in a batch of five: the other four go through and the
// failure carries a reason the UI can show per row.
func (s *BulkProcessorTestSuite) TestProcessBatch_IndependentOutcomes() {
	approver := uuid.New()
	ctx := context.Background()

	pending := make([]request.Request, 4)
	decisions := make([]commands.Decision, 0, 5)
	for i := range pending {
		pending[i] = serverApproval(approver)
		decisions = append(decisions, commands.Decision{RequestID: pending[i].ID, Approve: true})
	}

	// already decided elsewhere; the snapshot this batch came from is stale
	stale := serverApproval(approver)
	stale.State = request.StateRejected
	decisions = append(decisions[:2], append([]commands.Decision{{RequestID: stale.ID, Approve: true}}, decisions[2:]...)...)

	for _, req := range pending {
		s.requests.EXPECT().Find(ctx, req.ID).Return(req, nil)
	}
	s.requests.EXPECT().Find(ctx, stale.ID).Return(stale, nil)

	s.requests.EXPECT().Save(ctx, gomock.Any()).Return(nil).Times(4)
	s.queue.EXPECT().Append(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e action.Entry) (action.Entry, error) { return e, nil }).Times(4)

	results := s.bulk.ProcessBatch(ctx, decisions, approver)
	s.Require().Len(results, 5)

	byID := make(map[uuid.UUID]commands.ItemResult, len(results))
	for _, r := range results {
		byID[r.RequestID] = r
	}

	for _, req := range pending {
		s.Equal(commands.OutcomeSuccess, byID[req.ID].Outcome)
		s.Empty(byID[req.ID].Reason)
	}
	s.Equal(commands.OutcomeFailed, byID[stale.ID].Outcome)
	s.Equal("InvalidTransition", byID[stale.ID].Reason)

	// results come back in decision order
	for i, d := range decisions {
		s.Equal(d.RequestID, results[i].RequestID)
	}
}

func (s *BulkProcessorTestSuite) TestProcessBatch_MixedDecisions() {
	approver := uuid.New()
	ctx := context.Background()

	approve := serverApproval(approver)
	reject := serverApproval(approver)

	s.requests.EXPECT().Find(ctx, approve.ID).Return(approve, nil)
	s.requests.EXPECT().Find(ctx, reject.ID).Return(reject, nil)

	var saved []request.Request
	s.requests.EXPECT().Save(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req request.Request) error {
			saved = append(saved, req)
			return nil
		}).Times(2)
	s.queue.EXPECT().Append(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e action.Entry) (action.Entry, error) { return e, nil }).Times(2)

	results := s.bulk.ProcessBatch(ctx, []commands.Decision{
		{RequestID: approve.ID, Approve: true, Notes: "fine"},
		{RequestID: reject.ID, Approve: false, Notes: "coverage too thin"},
	}, approver)

	s.Require().Len(results, 2)
	s.Equal(commands.OutcomeSuccess, results[0].Outcome)
	s.Equal(commands.OutcomeSuccess, results[1].Outcome)

	s.Require().Len(saved, 2)
	s.Equal(request.StateApproved, saved[0].State)
	s.Equal(request.StateRejected, saved[1].State)
	s.Equal("coverage too thin", saved[1].Notes)
}

func (s *BulkProcessorTestSuite) TestProcessBatch_UnknownRequest() {
	approver := uuid.New()
	ctx := context.Background()
	id := uuid.New()

	s.requests.EXPECT().Find(ctx, id).
		Return(request.Request{}, repoErr(infra.KindNotFound, "request not found"))

	results := s.bulk.ProcessBatch(ctx, []commands.Decision{{RequestID: id, Approve: true}}, approver)
	s.Require().Len(results, 1)
	s.Equal(commands.OutcomeFailed, results[0].Outcome)
	s.Equal("NotFound", results[0].Reason)
}

func (s *BulkProcessorTestSuite) TestProcessBatch_Empty() {
	results := s.bulk.ProcessBatch(context.Background(), nil, uuid.New())
	s.Empty(results)
}
