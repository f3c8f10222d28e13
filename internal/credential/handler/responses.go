package handler

import (
	"time"

	"civicid/internal/agent"
	"civicid/internal/credential/models"
)

type IssueResponse struct {
	Credential *agent.Credential `json:"credential"`
	Status     string            `json:"status"`
	Message    string            `json:"message"`
}

type VerifyResponse struct {
	IsValid    bool           `json:"isValid"`
	Credential models.Summary `json:"credential"`
	Reasons    []string       `json:"reasons,omitempty"`
	Status     string         `json:"status"`
	Message    string         `json:"message"`
}

func toVerifyResponse(res *models.VerifyResult) VerifyResponse {
	resp := VerifyResponse{
		IsValid:    res.Valid,
		Credential: res.Credential,
		Reasons:    res.Reasons,
		Status:     "invalid",
		Message:    "Credential verification failed",
	}
	if res.Valid {
		resp.Status = "valid"
		resp.Message = "Credential is valid"
	}
	return resp
}

type CredentialItem struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Claims         map[string]any `json:"claims,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	State          string         `json:"state,omitempty"`
	IssuanceDate   *time.Time     `json:"issuanceDate,omitempty"`
	ExpirationDate *time.Time     `json:"expirationDate,omitempty"`
}

type ListResponse struct {
	DIDURI      string           `json:"didUri"`
	Source      string           `json:"source"`
	Credentials []CredentialItem `json:"credentials"`
	Count       int              `json:"count"`
}

func toListResponse(h *models.Holdings) ListResponse {
	items := make([]CredentialItem, 0, len(h.Credentials))
	for _, rec := range h.Credentials {
		item := CredentialItem{
			ID:             rec.ID,
			Type:           rec.Type,
			Claims:         rec.Claims,
			Issuer:         rec.Issuer,
			State:          rec.State,
			ExpirationDate: rec.ExpirationDate,
		}
		if item.Type == "" {
			item.Type = "VerifiableCredential"
		}
		if !rec.IssuanceDate.IsZero() {
			issued := rec.IssuanceDate
			item.IssuanceDate = &issued
		}
		items = append(items, item)
	}
	return ListResponse{
		DIDURI:      h.DID.String(),
		Source:      h.Source,
		Credentials: items,
		Count:       len(items),
	}
}
