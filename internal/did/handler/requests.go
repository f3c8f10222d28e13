package handler

import (
	"strings"

	"civicid/pkg/domain"
)

// CreateRequest is the body of POST /did/create and POST /did/create-for-user.
type CreateRequest struct {
	UserID string `json:"userId"`

	parsedUserID domain.UserID
}

func (r *CreateRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *CreateRequest) Validate() error {
	userID, err := domain.ParseUserID(r.UserID)
	if err != nil {
		return err
	}
	r.parsedUserID = userID
	return nil
}
