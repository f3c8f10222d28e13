package models

import (
	"time"

	"github.com/google/uuid"

	"civicid/pkg/domain"
)

// Link status values reported by the status endpoint.
const (
	StatusLinked    = "linked"
	StatusPending   = "pending"
	StatusNotLinked = "not_linked"
)

// UserDIDLink ties a platform user to the peer DID of a finished connection.
// A user holds at most one link and a DID belongs to at most one user.
type UserDIDLink struct {
	ID           uuid.UUID
	UserID       domain.UserID
	DID          domain.DID
	ConnectionID domain.ConnectionID
	LinkedAt     time.Time
}

// NewUserDIDLink builds a link with a fresh id.
func NewUserDIDLink(userID domain.UserID, did domain.DID, connectionID domain.ConnectionID, at time.Time) *UserDIDLink {
	return &UserDIDLink{
		ID:           uuid.New(),
		UserID:       userID,
		DID:          did,
		ConnectionID: connectionID,
		LinkedAt:     at,
	}
}

// StartResult is a fresh linking invitation.
type StartResult struct {
	ConnectionID      domain.ConnectionID
	InvitationURL     string
	InvitationPayload []byte
	QRData            string
	// State is the linking label of the connection state, "invited".
	State string
}

// LinkResult is a completed link.
type LinkResult struct {
	DID          domain.DID
	LinkedAt     time.Time
	ConnectionID domain.ConnectionID
}

// Status is the linking view of a user.
type Status struct {
	Linked          bool
	State           string
	DID             domain.DID
	LinkedAt        *time.Time
	ConnectionID    *domain.ConnectionID
	ConnectionState string
}
