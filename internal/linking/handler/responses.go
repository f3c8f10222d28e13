package handler

import (
	"encoding/json"
	"time"

	"civicid/internal/linking/models"
)

type StartResponse struct {
	ConnectionID string             `json:"connectionId"`
	Invitation   InvitationResponse `json:"invitation"`
	State        string             `json:"state"`
}

type InvitationResponse struct {
	URL     string          `json:"invitationUrl"`
	Payload json.RawMessage `json:"invitationPayload,omitempty"`
	QRData  string          `json:"qrData"`
}

func toStartResponse(res *models.StartResult) StartResponse {
	return StartResponse{
		ConnectionID: res.ConnectionID.String(),
		Invitation: InvitationResponse{
			URL:     res.InvitationURL,
			Payload: res.InvitationPayload,
			QRData:  res.QRData,
		},
		State: res.State,
	}
}

type CompleteResponse struct {
	Success      bool      `json:"success"`
	DID          string    `json:"did"`
	LinkedAt     time.Time `json:"linkedAt"`
	ConnectionID string    `json:"connectionId"`
}

type StatusResponse struct {
	Linked          bool       `json:"linked"`
	State           string     `json:"state"`
	DID             string     `json:"did,omitempty"`
	LinkedAt        *time.Time `json:"linkedAt,omitempty"`
	ConnectionID    string     `json:"connectionId,omitempty"`
	ConnectionState string     `json:"connectionState,omitempty"`
}

func toStatusResponse(st *models.Status) StatusResponse {
	resp := StatusResponse{
		Linked:          st.Linked,
		State:           st.State,
		DID:             st.DID.String(),
		LinkedAt:        st.LinkedAt,
		ConnectionState: st.ConnectionState,
	}
	if st.ConnectionID != nil {
		resp.ConnectionID = st.ConnectionID.String()
	}
	return resp
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
