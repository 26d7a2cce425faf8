// Package fakeserver is an in-memory scheduling server for tests. It speaks
// the same REST surface as the real backend: idempotency-keyed submissions,
// a cursor-based updates feed and a health endpoint, plus switches to
// simulate outages and contended shifts.
package fakeserver

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra/api"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type record struct {
	req request.Request
	seq int64
}

type Server struct {
	engine *gin.Engine

	mu          sync.Mutex
	requests    map[uuid.UUID]*record
	idempotency map[uuid.UUID]uuid.UUID // key -> request id
	takenShifts map[uuid.UUID]bool
	offline     bool
	seq         int64
}

func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		engine:      gin.New(),
		requests:    make(map[uuid.UUID]*record),
		idempotency: make(map[uuid.UUID]uuid.UUID),
		takenShifts: make(map[uuid.UUID]bool),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetOffline makes every endpoint, health included, answer 503. The client
// should treat the outage as transient and keep its queue intact.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// MarkShiftTaken makes future take submissions for the shift fail with a
// conflict carrying the authoritative failed state.
func (s *Server) MarkShiftTaken(shiftID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.takenShifts[shiftID] = true
}

// Seed loads a server-side request directly, bypassing the REST surface.
func (s *Server) Seed(req request.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(req)
}

// Request returns the server's current copy.
func (s *Server) Request(id uuid.UUID) (request.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.requests[id]
	if !ok {
		return request.Request{}, false
	}
	return rec.req.Clone(), true
}

// Decide applies a server-side transition out of band, as if another client
// or the backend itself had acted. It shows up on the next updates pull.
func (s *Server) Decide(id uuid.UUID, ev request.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.requests[id]
	if !ok {
		return request.ErrInvalidTransition
	}
	next, err := request.Transition(rec.req, ev, request.ServerActor(), time.Now())
	if err != nil {
		return err
	}
	s.store(next)
	return nil
}

func (s *Server) routes() {
	s.engine.Use(s.outageGate)

	s.engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	s.engine.POST("/shifts/take", s.takeShift)
	s.engine.POST("/shifts/exchange", s.proposeExchange)
	s.engine.POST("/shifts/exchange/:id/respond", s.respondExchange)
	s.engine.POST("/shifts/exchange/:id/cancel", s.cancelExchange)
	s.engine.POST("/requests/:id/approve", s.approve)
	s.engine.POST("/requests/:id/reject", s.reject)
	s.engine.GET("/requests/updates", s.updates)
}

func (s *Server) outageGate(c *gin.Context) {
	s.mu.Lock()
	offline := s.offline
	s.mu.Unlock()
	if offline {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	c.Next()
}

func (s *Server) takeShift(c *gin.Context) {
	var body struct {
		ShiftID        uuid.UUID `json:"shiftId"`
		EmployeeID     uuid.UUID `json:"employeeId"`
		IdempotencyKey uuid.UUID `json:"idempotencyKey"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, seen := s.idempotency[body.IdempotencyKey]; seen {
		c.JSON(http.StatusOK, toDTO(s.requests[id].req))
		return
	}

	req := request.Reconstruct(
		uuid.New(), request.KindTake, body.ShiftID, nil,
		body.EmployeeID, uuid.Nil, request.StateAccepted,
		time.Now().UTC(), nil, request.OriginServer, versionOne(), "",
	)

	if s.takenShifts[body.ShiftID] {
		failed := req.Clone()
		failed.State = request.StateFailed
		s.store(failed)
		s.idempotency[body.IdempotencyKey] = failed.ID
		c.JSON(http.StatusConflict, toDTO(failed))
		return
	}

	s.takenShifts[body.ShiftID] = true
	s.store(req)
	s.idempotency[body.IdempotencyKey] = req.ID
	c.JSON(http.StatusCreated, toDTO(req))
}

func (s *Server) proposeExchange(c *gin.Context) {
	var body struct {
		FromShiftID        uuid.UUID  `json:"fromShiftId"`
		ToShiftID          uuid.UUID  `json:"toShiftId"`
		RequestingEmployee uuid.UUID  `json:"requestingEmployee"`
		TargetEmployee     uuid.UUID  `json:"targetEmployee"`
		ExpiresAt          *time.Time `json:"expiresAt"`
		IdempotencyKey     uuid.UUID  `json:"idempotencyKey"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, seen := s.idempotency[body.IdempotencyKey]; seen {
		c.JSON(http.StatusOK, toDTO(s.requests[id].req))
		return
	}

	counterpart := body.ToShiftID
	// delivery to the target is immediate on the server side
	req := request.Reconstruct(
		uuid.New(), request.KindExchange, body.FromShiftID, &counterpart,
		body.RequestingEmployee, body.TargetEmployee, request.StatePendingResponse,
		time.Now().UTC(), body.ExpiresAt, request.OriginServer, versionOne(), "",
	)

	s.store(req)
	s.idempotency[body.IdempotencyKey] = req.ID
	c.JSON(http.StatusCreated, toDTO(req))
}

func (s *Server) respondExchange(c *gin.Context) {
	var body struct {
		Accepted       bool      `json:"accepted"`
		IdempotencyKey uuid.UUID `json:"idempotencyKey"`
	}
	ev := func() request.Event {
		if body.Accepted {
			return request.EventAccept
		}
		return request.EventDecline
	}
	s.transition(c, &body, func() uuid.UUID { return body.IdempotencyKey }, ev, "")
}

func (s *Server) cancelExchange(c *gin.Context) {
	var body struct {
		IdempotencyKey uuid.UUID `json:"idempotencyKey"`
	}
	s.transition(c, &body, func() uuid.UUID { return body.IdempotencyKey },
		func() request.Event { return request.EventCancel }, "")
}

func (s *Server) approve(c *gin.Context) {
	var body struct {
		Notes          string    `json:"notes"`
		IdempotencyKey uuid.UUID `json:"idempotencyKey"`
	}
	s.transitionWithNotes(c, &body, func() uuid.UUID { return body.IdempotencyKey },
		func() request.Event { return request.EventApprove }, func() string { return body.Notes })
}

func (s *Server) reject(c *gin.Context) {
	var body struct {
		Reason         string    `json:"reason"`
		IdempotencyKey uuid.UUID `json:"idempotencyKey"`
	}
	s.transitionWithNotes(c, &body, func() uuid.UUID { return body.IdempotencyKey },
		func() request.Event { return request.EventReject }, func() string { return body.Reason })
}

func (s *Server) transition(c *gin.Context, body any, key func() uuid.UUID, ev func() request.Event, notes string) {
	s.transitionWithNotes(c, body, key, ev, func() string { return notes })
}

func (s *Server) transitionWithNotes(c *gin.Context, body any, key func() uuid.UUID, ev func() request.Event, notes func() string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request id"})
		return
	}
	if err := c.ShouldBindJSON(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prevID, seen := s.idempotency[key()]; seen {
		c.JSON(http.StatusOK, toDTO(s.requests[prevID].req))
		return
	}

	rec, ok := s.requests[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "request not found"})
		return
	}

	next, err := request.Transition(rec.req, ev(), request.ServerActor(), time.Now())
	if err != nil {
		// already resolved; the body carries the authoritative state
		c.JSON(http.StatusConflict, toDTO(rec.req))
		return
	}
	if n := notes(); n != "" {
		next.Notes = n
	}

	s.store(next)
	s.idempotency[key()] = next.ID
	c.JSON(http.StatusOK, toDTO(next))
}

func (s *Server) updates(c *gin.Context) {
	since, _ := strconv.ParseInt(c.Query("since"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]api.RequestDTO, 0)
	latest := since
	for _, rec := range s.requests {
		if rec.seq > since {
			out = append(out, toDTO(rec.req))
		}
		if rec.seq > latest {
			latest = rec.seq
		}
	}

	c.JSON(http.StatusOK, api.UpdatesResponse{
		Requests: out,
		Cursor:   strconv.FormatInt(latest, 10),
	})
}

// store must be called with the lock held. Every write bumps the version and
// the change sequence so the updates feed picks it up.
func (s *Server) store(req request.Request) {
	s.seq++
	stored := req.Clone()
	if rec, ok := s.requests[req.ID]; ok && rec.req.Version != nil {
		v := *rec.req.Version + 1
		stored.Version = &v
	}
	s.requests[req.ID] = &record{req: stored, seq: s.seq}
}

func toDTO(req request.Request) api.RequestDTO {
	return api.RequestDTO{
		ID:                 req.ID,
		Kind:               req.Kind,
		SubjectShiftID:     req.SubjectShiftID,
		CounterpartShiftID: req.CounterpartShiftID,
		RequestingParty:    req.RequestingParty,
		TargetParty:        req.TargetParty,
		State:              req.State,
		CreatedAt:          req.CreatedAt,
		ExpiresAt:          req.ExpiresAt,
		Version:            req.Version,
		Notes:              req.Notes,
	}
}

func versionOne() *int64 {
	v := int64(1)
	return &v
}
