// Package agent is the HTTP client for the Identity Agent (a Hyperledger
// Identus cloud agent). It mints DIDs, issues and verifies credentials and
// opens DIDComm connection invitations.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"civicid/internal/agent/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20
	maxErrorBody     = 2048
)

var tracer = otel.Tracer("civicid/internal/agent")

// Client talks to one Identity Agent. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	healthy     atomic.Bool
	healthGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends the key as a bearer token on every call.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every call, connect and body read included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides time.Now, used for fallback DIDs.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for the agent at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured agent base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type publicKeyTemplate struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"`
}

type createDIDRequest struct {
	DocumentTemplate struct {
		PublicKeys []publicKeyTemplate `json:"publicKeys"`
		Services   []any               `json:"services"`
	} `json:"documentTemplate"`
}

type createDIDResponse struct {
	LongFormDID string `json:"longFormDid"`
	Operation   struct {
		DID string `json:"did"`
	} `json:"operation"`
}

// CreateDID asks the agent to mint a DID with an authentication key and an
// assertion key. If the agent cannot produce one a locally generated
// fallback DID is returned with Fallback set and a nil error; callers that
// need an anchored DID must check the flag.
func (c *Client) CreateDID(ctx context.Context, alias string) (DIDResult, error) {
	var body createDIDRequest
	body.DocumentTemplate.PublicKeys = []publicKeyTemplate{
		{ID: "auth-1", Purpose: "authentication"},
		{ID: "issue-1", Purpose: "assertionMethod"},
	}
	body.DocumentTemplate.Services = []any{}

	var out createDIDResponse
	err := c.do(ctx, "create_did", http.MethodPost, "/did-registrar/dids", body, &out,
		attribute.String("did.alias", alias))
	if err == nil {
		did := out.Operation.DID
		if did == "" {
			did = out.LongFormDID
		}
		if did != "" {
			return DIDResult{DID: did, LongFormDID: out.LongFormDID}, nil
		}
		err = errors.New("agent returned no DID")
	}
	if ctx.Err() != nil {
		return DIDResult{}, ctx.Err()
	}

	fallback := newFallbackDID(c.now())
	c.metrics.IncrementFallbackDID()
	c.logger.WarnContext(ctx, "identity agent DID creation failed, using fallback DID",
		"alias", alias,
		"fallback_did", fallback,
		"error", err,
	)
	return DIDResult{DID: fallback, Fallback: true}, nil
}

// ResolveDID fetches the DID document for did.
func (c *Client) ResolveDID(ctx context.Context, did string) (*DIDDocument, error) {
	var raw json.RawMessage
	path := "/dids/" + url.PathEscape(did)
	if err := c.do(ctx, "resolve_did", http.MethodGet, path, nil, &raw, attribute.String("did", did)); err != nil {
		return nil, err
	}
	return &DIDDocument{ID: did, Raw: raw}, nil
}

type credentialOfferRequest struct {
	Claims                 map[string]any `json:"claims"`
	IssuingDID             string         `json:"issuingDID"`
	ConnectionID           string         `json:"connectionId,omitempty"`
	CredentialFormat       string         `json:"credentialFormat"`
	CredentialDefinitionID string         `json:"credentialDefinitionId,omitempty"`
	AutomaticIssuance      bool           `json:"automaticIssuance"`
}

type credentialOfferResponse struct {
	RecordID  string         `json:"recordId"`
	State     string         `json:"protocolState"`
	Claims    map[string]any `json:"claims"`
	CreatedAt time.Time      `json:"createdAt"`
}

// IssueCredential creates an automatically issued credential offer.
func (c *Client) IssueCredential(ctx context.Context, req IssueRequest) (*Credential, error) {
	body := credentialOfferRequest{
		Claims:                 req.Claims,
		IssuingDID:             req.IssuerDID,
		ConnectionID:           req.ConnectionID,
		CredentialFormat:       "JWT",
		CredentialDefinitionID: req.Type,
		AutomaticIssuance:      true,
	}
	var raw json.RawMessage
	err := c.do(ctx, "issue_credential", http.MethodPost, "/issue-credentials/credential-offers", body, &raw,
		attribute.String("credential.type", req.Type),
		attribute.String("credential.issuer", req.IssuerDID),
	)
	if err != nil {
		return nil, err
	}

	var out credentialOfferResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, &TransportError{Op: "issue_credential", Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	issued := out.CreatedAt
	if issued.IsZero() {
		issued = c.now().UTC()
	}
	claims := out.Claims
	if claims == nil {
		claims = req.Claims
	}
	return &Credential{
		RecordID:     out.RecordID,
		Type:         req.Type,
		Issuer:       req.IssuerDID,
		Subject:      req.SubjectDID,
		Claims:       claims,
		State:        out.State,
		IssuanceDate: issued,
		Raw:          raw,
	}, nil
}

type verifyRequest struct {
	Proof any `json:"proof"`
}

type verifyResponse struct {
	Verified bool     `json:"verified"`
	Errors   []string `json:"errors"`
}

// VerifyCredential asks the agent to verify a presented credential. An
// invalid credential is a successful call with Valid false.
func (c *Client) VerifyCredential(ctx context.Context, presented json.RawMessage) (Verification, error) {
	var out verifyResponse
	err := c.do(ctx, "verify_credential", http.MethodPost, "/present-proof/presentations/verify",
		verifyRequest{Proof: presented}, &out)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Valid: out.Verified, Reasons: out.Errors}, nil
}

type createConnectionRequest struct {
	Label string `json:"label,omitempty"`
	Goal  string `json:"goal,omitempty"`
}

type createConnectionResponse struct {
	ConnectionID string `json:"connectionId"`
	ThID         string `json:"thid"`
	MyDID        string `json:"myDid"`
	Invitation   struct {
		ID            string `json:"id"`
		From          string `json:"from"`
		InvitationURL string `json:"invitationUrl"`
	} `json:"invitation"`
}

// CreateInvitation opens a new out-of-band invitation. The exchange id is the
// DIDComm thread id, falling back to the invitation id and then the agent's
// connection id.
func (c *Client) CreateInvitation(ctx context.Context, label, goal string) (*Invitation, error) {
	var raw json.RawMessage
	err := c.do(ctx, "create_invitation", http.MethodPost, "/connections",
		createConnectionRequest{Label: label, Goal: goal}, &raw)
	if err != nil {
		return nil, err
	}
	var out createConnectionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "create_invitation", Err: fmt.Errorf("decode response: %w", err)}
	}

	exchangeID := firstNonEmpty(out.ThID, out.Invitation.ID, out.ConnectionID)
	if exchangeID == "" {
		return nil, &AgentError{Op: "create_invitation", Status: http.StatusOK, Body: "response carries no thread id"}
	}
	return &Invitation{
		ExchangeID:        exchangeID,
		AgentConnectionID: out.ConnectionID,
		MyDID:             firstNonEmpty(out.MyDID, out.Invitation.From),
		URL:               out.Invitation.InvitationURL,
		Payload:           raw,
	}, nil
}

type credentialRecordsResponse struct {
	Contents []struct {
		RecordID        string         `json:"recordId"`
		SubjectID       string         `json:"subjectId"`
		IssuingDID      string         `json:"issuingDID"`
		Claims          map[string]any `json:"claims"`
		State           string         `json:"protocolState"`
		CredentialDefID string         `json:"credentialDefinitionId"`
		CreatedAt       time.Time      `json:"createdAt"`
		ValidUntil      *time.Time     `json:"validityPeriod,omitempty"`
	} `json:"contents"`
}

// ListCredentials returns the issuance records whose subject is subjectDID.
func (c *Client) ListCredentials(ctx context.Context, subjectDID string) ([]CredentialRecord, error) {
	var out credentialRecordsResponse
	if err := c.do(ctx, "list_credentials", http.MethodGet, "/issue-credentials/records", nil, &out,
		attribute.String("credential.subject", subjectDID)); err != nil {
		return nil, err
	}
	records := make([]CredentialRecord, 0, len(out.Contents))
	for _, r := range out.Contents {
		subject := r.SubjectID
		if subject == "" {
			if id, ok := r.Claims["id"].(string); ok {
				subject = id
			}
		}
		if subject != subjectDID {
			continue
		}
		records = append(records, CredentialRecord{
			ID:             r.RecordID,
			Type:           r.CredentialDefID,
			Claims:         r.Claims,
			Issuer:         r.IssuingDID,
			Subject:        subject,
			State:          r.State,
			IssuanceDate:   r.CreatedAt,
			ExpirationDate: r.ValidUntil,
		})
	}
	return records, nil
}

// HealthCheck probes the agent. Concurrent probes share one request, which
// runs detached from any single caller and is bounded by the client timeout.
// A caller that gives up sees false without affecting the others. The result
// also updates LastKnownHealthy, which is advisory only.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ch := c.healthGroup.DoChan("health", func() (any, error) {
		timeout := c.httpClient.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		err := c.do(probeCtx, "health", http.MethodGet, "/_system/health", nil, nil)
		healthy := err == nil
		if !healthy {
			c.logger.DebugContext(probeCtx, "identity agent health check failed", "error", err)
		}
		c.healthy.Store(healthy)
		c.metrics.RecordHealth(healthy)
		return healthy, nil
	})
	select {
	case res := <-ch:
		healthy, _ := res.Val.(bool)
		return healthy
	case <-ctx.Done():
		return false
	}
}

// LastKnownHealthy returns the result of the most recent HealthCheck.
func (c *Client) LastKnownHealthy() bool {
	return c.healthy.Load()
}

// do performs one request. No retries.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any, attrs ...attribute.KeyValue) (err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "agent."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs,
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		)...),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "transport_error"
			if IsAgentError(err) {
				outcome = "agent_error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		c.metrics.ObserveCall(op, outcome, start)
		span.End()
	}()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &AgentError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if rawOut, ok := out.(*json.RawMessage); ok {
		*rawOut = append((*rawOut)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
