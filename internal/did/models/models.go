package models

import (
	"time"

	"civicid/pkg/domain"
)

// UserDID is the PRISM DID provisioned for a platform user. Fallback marks a
// locally generated placeholder minted while the agent was unavailable.
type UserDID struct {
	UserID    domain.UserID
	DID       domain.DID
	Fallback  bool
	CreatedAt time.Time
}

// Created is the result of an unattached DID creation.
type Created struct {
	DID      domain.DID
	UserID   domain.UserID
	Fallback bool
}
