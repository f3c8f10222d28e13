package models

import (
	"encoding/json"
	"maps"
	"strings"
	"time"

	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
)

// Role is our side of the exchange.
type Role string

const (
	RoleInviter Role = "inviter"
	RoleInvitee Role = "invitee"
)

// Metadata keys written by the service.
const (
	MetaLastMessage   = "last_message"
	MetaLastError     = "last_error"
	MetaRequestedFrom = "requested_from"
	MetaAgentConnID   = "agent_connection_id"
	MetaLabel         = "label"
)

// Connection is one DIDComm pairwise exchange attempt.
type Connection struct {
	ID         domain.ConnectionID
	ExchangeID string
	State      State
	Role       Role
	UserID     domain.UserID
	MyDID      domain.DID
	TheirDID   domain.DID

	InvitationURL string
	// InvitationPayload is write-once; stores never update it.
	InvitationPayload json.RawMessage
	Metadata          map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInvitation builds a connection in StateInvitation.
func NewInvitation(id domain.ConnectionID, exchangeID string, userID domain.UserID, myDID domain.DID,
	url string, payload json.RawMessage, metadata map[string]string, now time.Time,
) (*Connection, error) {
	exchangeID = strings.TrimSpace(exchangeID)
	if exchangeID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "exchange id is required")
	}
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "connection id is required")
	}
	meta := make(map[string]string, len(metadata))
	maps.Copy(meta, metadata)
	return &Connection{
		ID:                id,
		ExchangeID:        exchangeID,
		State:             StateInvitation,
		Role:              RoleInviter,
		UserID:            userID,
		MyDID:             myDID,
		InvitationURL:     url,
		InvitationPayload: payload,
		Metadata:          meta,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Clone returns a deep copy.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	out.InvitationPayload = append(json.RawMessage(nil), c.InvitationPayload...)
	out.Metadata = maps.Clone(c.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return &out
}

// BelongsTo reports whether the connection was opened for userID.
func (c *Connection) BelongsTo(userID domain.UserID) bool {
	return !c.UserID.IsNil() && c.UserID == userID
}

// StateUpdate is one requested transition.
type StateUpdate struct {
	To       State
	TheirDID domain.DID
	Metadata map[string]string
	At       time.Time
}

// Transition applies u to a copy of c. The copy is nil unless the decision is
// DecisionApply. A forward move into active or completed before any peer DID
// is known is deferred. An already known peer DID is never replaced.
func (c *Connection) Transition(u StateUpdate) (*Connection, Decision, error) {
	decision := Decide(c.State, u.To)
	switch decision {
	case DecisionReject:
		return nil, decision, dErrors.New(dErrors.CodeInvalidState,
			"cannot move connection from "+string(c.State)+" to "+string(u.To))
	case DecisionNoOp:
		return nil, decision, nil
	}

	next := c.Clone()
	next.State = u.To
	if next.TheirDID.IsNil() && !u.TheirDID.IsNil() {
		next.TheirDID = u.TheirDID
	}
	if u.To.IsReady() && next.TheirDID.IsNil() {
		return nil, DecisionDefer, nil
	}
	maps.Copy(next.Metadata, u.Metadata)
	if !u.At.IsZero() {
		next.UpdatedAt = u.At
	}
	return next, decision, nil
}
