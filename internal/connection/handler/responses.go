package handler

import (
	"encoding/json"
	"time"

	"civicid/internal/connection/models"
	"civicid/internal/connection/service"
)

type InvitationResponse struct {
	ConnectionID      string          `json:"connectionId"`
	ExchangeID        string          `json:"exchangeId"`
	State             string          `json:"state"`
	InvitationURL     string          `json:"invitationUrl"`
	InvitationPayload json.RawMessage `json:"invitationPayload,omitempty"`
	QRData            string          `json:"qrData"`
}

func toInvitationResponse(res *service.InvitationResult) InvitationResponse {
	return InvitationResponse{
		ConnectionID:      res.Connection.ID.String(),
		ExchangeID:        res.Connection.ExchangeID,
		State:             string(res.Connection.State),
		InvitationURL:     res.InvitationURL,
		InvitationPayload: res.Connection.InvitationPayload,
		QRData:            res.QRData,
	}
}

type ConnectionResponse struct {
	ConnectionID string            `json:"connectionId"`
	ExchangeID   string            `json:"exchangeId"`
	State        string            `json:"state"`
	Role         string            `json:"role"`
	MyDID        string            `json:"myDid,omitempty"`
	TheirDID     *string           `json:"theirDid"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Metadata     map[string]string `json:"metadata"`
}

func toConnectionResponse(conn *models.Connection) ConnectionResponse {
	resp := ConnectionResponse{
		ConnectionID: conn.ID.String(),
		ExchangeID:   conn.ExchangeID,
		State:        string(conn.State),
		Role:         string(conn.Role),
		MyDID:        conn.MyDID.String(),
		CreatedAt:    conn.CreatedAt,
		UpdatedAt:    conn.UpdatedAt,
		Metadata:     conn.Metadata,
	}
	if !conn.TheirDID.IsNil() {
		did := conn.TheirDID.String()
		resp.TheirDID = &did
	}
	return resp
}

type WebhookResponse struct {
	Status            string `json:"status"`
	MessagesProcessed int    `json:"messagesProcessed"`
	Duplicates        int    `json:"duplicates,omitempty"`
	Dropped           int    `json:"dropped,omitempty"`
	Failed            int    `json:"failed,omitempty"`
}
