package handler

import (
	"strings"

	"civicid/pkg/domain"
)

// CompleteRequest is the body of POST /link/complete.
type CompleteRequest struct {
	ConnectionID string `json:"connectionId"`

	parsedConnectionID domain.ConnectionID
}

func (r *CompleteRequest) Normalize() {
	r.ConnectionID = strings.TrimSpace(r.ConnectionID)
}

func (r *CompleteRequest) Validate() error {
	id, err := domain.ParseConnectionID(r.ConnectionID)
	if err != nil {
		return err
	}
	r.parsedConnectionID = id
	return nil
}
