package handler

import (
	"strings"

	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
)

const maxLabelLength = 128

// InvitationRequest is the body of POST /connections/invitation. All fields are optional.
type InvitationRequest struct {
	UserID string `json:"userId"`
	Label  string `json:"label"`
	Goal   string `json:"goal"`

	parsedUserID domain.UserID
}

func (r *InvitationRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Label = strings.TrimSpace(r.Label)
	r.Goal = strings.TrimSpace(r.Goal)
}

func (r *InvitationRequest) Validate() error {
	if len(r.Label) > maxLabelLength || len(r.Goal) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "label and goal must be at most 128 characters")
	}
	if r.UserID == "" {
		return nil
	}
	userID, err := domain.ParseUserID(r.UserID)
	if err != nil {
		return err
	}
	r.parsedUserID = userID
	return nil
}

// ParsedUserID is empty when no user was named.
func (r *InvitationRequest) ParsedUserID() domain.UserID {
	return r.parsedUserID
}
