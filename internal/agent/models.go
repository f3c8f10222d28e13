package agent

import (
	"encoding/json"
	"time"
)

// DIDResult is the outcome of CreateDID.
type DIDResult struct {
	DID         string
	LongFormDID string
	// Fallback is set when the agent could not be used and the DID was made up
	// locally. Such a DID is not anchored and must never be trusted for signing.
	Fallback bool
}

// DIDDocument is a resolved DID document. The agent's document shape is
// passed through untouched.
type DIDDocument struct {
	ID  string
	Raw json.RawMessage
}

// IssueRequest asks the agent to issue a credential. Claims already contain
// the subject id.
type IssueRequest struct {
	IssuerDID    string
	SubjectDID   string
	Type         string
	Claims       map[string]any
	ConnectionID string
}

// Credential is the agent's credential-offer record.
type Credential struct {
	RecordID       string          `json:"recordId,omitempty"`
	Type           string          `json:"type"`
	Issuer         string          `json:"issuer"`
	Subject        string          `json:"subject"`
	Claims         map[string]any  `json:"claims"`
	State          string          `json:"state,omitempty"`
	IssuanceDate   time.Time       `json:"issuanceDate"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Verification is the agent's verdict on a presented credential.
type Verification struct {
	Valid   bool
	Reasons []string
}

// Invitation is an out-of-band connection invitation minted by the agent.
type Invitation struct {
	// ExchangeID is the DIDComm thread id that later webhook messages carry.
	ExchangeID        string
	AgentConnectionID string
	MyDID             string
	URL               string
	Payload           json.RawMessage
}

// CredentialRecord is a summary of an issued credential held by the agent.
type CredentialRecord struct {
	ID             string
	Type           string
	Claims         map[string]any
	Issuer         string
	Subject        string
	State          string
	IssuanceDate   time.Time
	ExpirationDate *time.Time
}
