package handler

type CreateResponse struct {
	DID      string `json:"did"`
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	Fallback bool   `json:"fallback"`
	Message  string `json:"message"`
}

type UserDIDResponse struct {
	DIDURI   string `json:"didUri"`
	Fallback bool   `json:"fallback,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	AgentURL string `json:"agentUrl,omitempty"`
}
