package models

import (
	"civicid/internal/agent"
	"civicid/pkg/domain"
)

// IssueRequest is a credential to issue. Claims must not carry the subject id;
// it is added from SubjectDID.
type IssueRequest struct {
	IssuerDID    domain.DID
	SubjectDID   domain.DID
	Type         string
	Claims       map[string]any
	ConnectionID string
}

// Summary identifies a presented credential.
type Summary struct {
	Type    string `json:"type,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// VerifyResult is the agent's verdict plus what the credential claims to be.
type VerifyResult struct {
	Valid      bool
	Reasons    []string
	Credential Summary
}

// DID sources for a user's credentials.
const (
	SourcePrism  = "prism"
	SourceWallet = "wallet"
)

// Holdings are the credentials held by a user's DID.
type Holdings struct {
	DID         domain.DID
	Source      string
	Credentials []agent.CredentialRecord
}

// SubjectClaims merges the subject id into claims without mutating them.
func SubjectClaims(subject domain.DID, claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		out[k] = v
	}
	out["id"] = subject.String()
	return out
}
