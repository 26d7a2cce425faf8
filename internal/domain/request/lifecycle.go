package request

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("event not legal from current state")
	ErrUnauthorized      = errors.New("actor not permitted to drive this transition")
	ErrExpired           = errors.New("request deadline has passed")
)

// Actor identifies who is driving a transition. Server marks transitions
// reflected back from an authoritative server response; those bypass party
// checks and expiry, since the server already arbitrated them.
type Actor struct {
	EmployeeID uuid.UUID
	Server     bool
}

func ServerActor() Actor {
	return Actor{Server: true}
}

func EmployeeActor(id uuid.UUID) Actor {
	return Actor{EmployeeID: id}
}

type authRule int

const (
	authAny authRule = iota
	authTargetParty
	authRequestingParty
	authServerOnly
)

type transitionSpec struct {
	from []State
	to   State
	auth authRule
}

// Per-kind transition tables. Pure data: the same table drives optimistic
// local updates and server-delivered state, so the two paths cannot diverge
// in what they consider legal.
var transitions = map[Kind]map[Event]transitionSpec{
	KindTake: {
		EventConfirm: {from: []State{StatePending}, to: StateAccepted, auth: authServerOnly},
		EventFail:    {from: []State{StatePending}, to: StateFailed, auth: authServerOnly},
	},
	KindExchange: {
		EventDeliver: {from: []State{StateProposed}, to: StatePendingResponse, auth: authServerOnly},
		EventAccept:  {from: []State{StatePendingResponse}, to: StateAccepted, auth: authTargetParty},
		EventDecline: {from: []State{StatePendingResponse}, to: StateRejected, auth: authTargetParty},
		EventCancel:  {from: []State{StateProposed, StatePendingResponse}, to: StateCancelled, auth: authRequestingParty},
		EventExpire:  {from: []State{StateProposed, StatePendingResponse}, to: StateExpired, auth: authAny},
	},
	KindApproval: {
		EventApprove: {from: []State{StatePendingApproval}, to: StateApproved, auth: authAny},
		EventReject:  {from: []State{StatePendingApproval}, to: StateRejected, auth: authAny},
	},
}

// Transition applies an event to a request and returns the resulting copy.
// It is a pure function of (state, event, actor, now): no I/O, no hidden
// reads. Failures come back as ErrInvalidTransition, ErrUnauthorized or
// ErrExpired; callers branch on the value, nothing is thrown.
func Transition(req Request, ev Event, actor Actor, now time.Time) (Request, error) {
	spec, ok := transitions[req.Kind][ev]
	if !ok {
		return Request{}, ErrInvalidTransition
	}

	if !stateIn(req.State, spec.from) {
		return Request{}, ErrInvalidTransition
	}

	// Server-confirmed outcomes land even past the deadline; the server is
	// the authority on whether the action beat the expiry.
	if !actor.Server && ev != EventExpire && req.HasExpired(now) {
		return Request{}, ErrExpired
	}

	if err := authorize(req, spec.auth, actor); err != nil {
		return Request{}, err
	}

	out := req.Clone()
	out.State = spec.to
	return out, nil
}

func authorize(req Request, rule authRule, actor Actor) error {
	if actor.Server {
		return nil
	}
	switch rule {
	case authAny:
		return nil
	case authTargetParty:
		if actor.EmployeeID != req.TargetParty {
			return ErrUnauthorized
		}
	case authRequestingParty:
		if actor.EmployeeID != req.RequestingParty {
			return ErrUnauthorized
		}
	case authServerOnly:
		return ErrUnauthorized
	}
	return nil
}

// EffectiveState evaluates lazy expiry: a non-terminal request whose
// deadline has passed reads as expired without any network contact. The
// stored state is untouched; the next successful sync confirms it.
func EffectiveState(req Request, now time.Time) State {
	if !req.State.IsTerminal() && req.HasExpired(now) {
		return StateExpired
	}
	return req.State
}

// ApplyServerUpdate is the single merge entry point for server-delivered
// request state, whether it arrived by push or by poll. The incoming copy
// always wins; superseded reports that the local optimistic state claimed an
// outcome the server contradicts, which callers surface as a notice, never
// as an error.
func ApplyServerUpdate(local *Request, incoming Request) (Request, bool) {
	merged := incoming.Clone()
	merged.Origin = OriginServer

	if local == nil || local.Origin == OriginServer {
		return merged, false
	}
	if local.State == merged.State {
		return merged, false
	}
	// A local optimistic state that could still legally reach the server's
	// outcome was simply in progress, not in conflict.
	if canReach(local.Kind, local.State, merged.State) {
		return merged, false
	}
	return merged, true
}

func stateIn(s State, set []State) bool {
	for _, c := range set {
		if s == c {
			return true
		}
	}
	return false
}

// canReach reports whether `to` is reachable from `from` through any chain
// of legal events for the kind.
func canReach(kind Kind, from, to State) bool {
	if from == to {
		return true
	}
	seen := map[State]bool{from: true}
	frontier := []State{from}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, s := range frontier {
			for _, spec := range transitions[kind] {
				if !stateIn(s, spec.from) || seen[spec.to] {
					continue
				}
				if spec.to == to {
					return true
				}
				seen[spec.to] = true
				next = append(next, spec.to)
			}
		}
		frontier = next
	}
	return false
}
