package handler

import (
	"encoding/json"
	"strings"

	"civicid/internal/credential/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
)

// IssueRequest is the body of POST /credentials/issue. Presence of the four
// required fields is checked by the service.
type IssueRequest struct {
	IssuerDID      string         `json:"issuerDID"`
	SubjectDID     string         `json:"subjectDID"`
	CredentialType string         `json:"credentialType"`
	Claims         map[string]any `json:"claims"`
	ConnectionID   string         `json:"connectionId,omitempty"`
}

func (r *IssueRequest) Normalize() {
	r.IssuerDID = strings.TrimSpace(r.IssuerDID)
	r.SubjectDID = strings.TrimSpace(r.SubjectDID)
	r.CredentialType = strings.TrimSpace(r.CredentialType)
	r.ConnectionID = strings.TrimSpace(r.ConnectionID)
}

func (r *IssueRequest) toModel() models.IssueRequest {
	return models.IssueRequest{
		IssuerDID:    domain.DID(r.IssuerDID),
		SubjectDID:   domain.DID(r.SubjectDID),
		Type:         r.CredentialType,
		Claims:       r.Claims,
		ConnectionID: r.ConnectionID,
	}
}

// VerifyRequest is the body of POST /credentials/verify.
type VerifyRequest struct {
	Credential json.RawMessage `json:"credential"`
}

func (r *VerifyRequest) Validate() error {
	if len(r.Credential) == 0 || string(r.Credential) == "null" {
		return dErrors.New(dErrors.CodeValidation, "credential is required")
	}
	return nil
}
