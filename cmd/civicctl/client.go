package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"civicid/internal/linking/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
)

// apiClient calls the civicid HTTP API with the operator's bearer token.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type startResponse struct {
	ConnectionID string `json:"connectionId"`
	Invitation   struct {
		URL    string `json:"invitationUrl"`
		QRData string `json:"qrData"`
	} `json:"invitation"`
	State string `json:"state"`
}

type completeResponse struct {
	Success      bool      `json:"success"`
	DID          string    `json:"did"`
	LinkedAt     time.Time `json:"linkedAt"`
	ConnectionID string    `json:"connectionId"`
}

func (c *apiClient) StartLink(ctx context.Context) (*startResponse, error) {
	var out startResponse
	if err := c.do(ctx, http.MethodPost, "/link/start", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) LinkStatus(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/link/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Complete lets the linking poller drive a remote server. The user is the
// token's subject, so userID is not sent.
func (c *apiClient) Complete(ctx context.Context, _ domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error) {
	var out completeResponse
	err := c.do(ctx, http.MethodPost, "/link/complete", map[string]string{"connectionId": connectionID.String()}, &out)
	if err != nil {
		return nil, err
	}
	did, err := domain.ParseDID(out.DID)
	if err != nil {
		return nil, err
	}
	return &models.LinkResult{DID: did, LinkedAt: out.LinkedAt, ConnectionID: connectionID}, nil
}

// do sends in as JSON and decodes a 2xx body into out. Error bodies come back
// as coded domain errors so callers can branch on the code.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeAgentUnavailable, "civicid server unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode))
		}
		msg := apiErr.ErrorDescription
		if msg == "" {
			msg = apiErr.Error
		}
		return dErrors.New(dErrors.Code(apiErr.Error), msg)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
