package request

type Kind string

const (
	KindTake     Kind = "take"
	KindExchange Kind = "exchange"
	KindApproval Kind = "approval"
)

func (k Kind) String() string {
	return string(k)
}

func (k Kind) IsValid() bool {
	switch k {
	case KindTake, KindExchange, KindApproval:
		return true
	default:
		return false
	}
}

type State string

const (
	// take-shift
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateFailed   State = "failed"

	// exchange
	StateProposed        State = "proposed"
	StatePendingResponse State = "pending_response"
	StateRejected        State = "rejected"
	StateExpired         State = "expired"
	StateCancelled       State = "cancelled"

	// approval
	StatePendingApproval State = "pending_approval"
	StateApproved        State = "approved"
)

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether a request in this state has reached its one
// allowed outcome. Terminal requests never transition again.
func (s State) IsTerminal() bool {
	switch s {
	case StateAccepted, StateFailed, StateRejected, StateExpired, StateCancelled, StateApproved:
		return true
	default:
		return false
	}
}

func (s State) IsValid() bool {
	switch s {
	case StatePending, StateAccepted, StateFailed,
		StateProposed, StatePendingResponse, StateRejected, StateExpired, StateCancelled,
		StatePendingApproval, StateApproved:
		return true
	default:
		return false
	}
}

// Origin tracks provenance for conflict resolution. Server-origin copies are
// authoritative; local copies are replaced wholesale, never patched.
type Origin string

const (
	OriginServer         Origin = "server"
	OriginLocalPending   Origin = "local-pending"
	OriginLocalConfirmed Origin = "local-confirmed"
)

func (o Origin) IsValid() bool {
	switch o {
	case OriginServer, OriginLocalPending, OriginLocalConfirmed:
		return true
	default:
		return false
	}
}

type Event string

const (
	// take-shift
	EventConfirm Event = "confirm"
	EventFail    Event = "fail"

	// exchange
	EventDeliver Event = "deliver"
	EventAccept  Event = "accept"
	EventDecline Event = "decline"
	EventCancel  Event = "cancel"
	EventExpire  Event = "expire"

	// approval
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)
