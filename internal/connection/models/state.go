package models

import (
	"strings"

	dErrors "civicid/pkg/domain-errors"
)

// State is the lifecycle position of a DIDComm connection.
type State string

const (
	StateInvitation      State = "invitation"
	StateRequestReceived State = "request_received"
	StateActive          State = "active"
	StateCompleted       State = "completed"
	StateError           State = "error"
)

// Synonyms used by the linking flow.
const (
	stateInvited   = "invited"
	stateRequested = "requested"
)

var stateRanks = map[State]int{
	StateInvitation:      1,
	StateRequestReceived: 2,
	StateActive:          3,
	StateCompleted:       4,
}

// ParseState accepts canonical names and the invited/requested synonyms.
func ParseState(raw string) (State, error) {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case stateInvited:
		return StateInvitation, nil
	case stateRequested:
		return StateRequestReceived, nil
	default:
		st := State(s)
		if !st.IsValid() {
			return "", dErrors.New(dErrors.CodeInvalidInput, "unknown connection state: "+raw)
		}
		return st, nil
	}
}

func (s State) IsValid() bool {
	_, ranked := stateRanks[s]
	return ranked || s == StateError
}

// Rank orders the forward states. StateError has rank 0 and sits outside the ordering.
func (s State) Rank() int {
	return stateRanks[s]
}

// IsReady reports whether the handshake has finished, so the peer DID is
// known and the connection can be linked to an account.
func (s State) IsReady() bool {
	return s == StateActive || s == StateCompleted
}

// LinkLabel is the name the linking API reports for the state.
func (s State) LinkLabel() string {
	switch s {
	case StateInvitation:
		return stateInvited
	case StateRequestReceived:
		return stateRequested
	default:
		return string(s)
	}
}

func (s State) String() string { return string(s) }

// Decision is the outcome of Decide.
type Decision int

const (
	// DecisionReject means the request names a state outside the machine.
	DecisionReject Decision = iota
	// DecisionApply means the transition moves the connection forward.
	DecisionApply
	// DecisionNoOp means the transition is a duplicate or would go backward.
	DecisionNoOp
	// DecisionDefer means the move is forward but the peer DID is not known
	// yet. The state is left alone until the invitee's request arrives.
	DecisionDefer
)

func (d Decision) String() string {
	switch d {
	case DecisionApply:
		return "apply"
	case DecisionNoOp:
		return "noop"
	case DecisionDefer:
		return "defer"
	default:
		return "reject"
	}
}

// Decide returns what should happen when a connection in current is asked to
// move to target. Nothing leaves StateError; StateError is reachable from
// every other state; otherwise only strictly forward moves apply.
func Decide(current, target State) Decision {
	if !current.IsValid() || !target.IsValid() {
		return DecisionReject
	}
	if current == StateError {
		return DecisionNoOp
	}
	if target == StateError {
		return DecisionApply
	}
	if target.Rank() > current.Rank() {
		return DecisionApply
	}
	return DecisionNoOp
}
