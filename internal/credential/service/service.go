package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"civicid/internal/agent"
	"civicid/internal/credential/metrics"
	"civicid/internal/credential/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/audit"
	"civicid/pkg/platform/sentinel"
	strutil "civicid/pkg/platform/strings"
	"civicid/pkg/requestcontext"
)

// AgentClient is the part of the identity agent that handles credentials.
type AgentClient interface {
	IssueCredential(ctx context.Context, req agent.IssueRequest) (*agent.Credential, error)
	VerifyCredential(ctx context.Context, presented json.RawMessage) (agent.Verification, error)
	ListCredentials(ctx context.Context, subjectDID string) ([]agent.CredentialRecord, error)
}

// DIDDirectory finds the PRISM DID provisioned for a user.
type DIDDirectory interface {
	FindDID(ctx context.Context, userID domain.UserID) (domain.DID, error)
}

// WalletLinks finds the wallet DID a user linked.
type WalletLinks interface {
	LinkedDID(ctx context.Context, userID domain.UserID) (domain.DID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates credential issuance and verification. The identity
// agent is the system of record; nothing is stored locally.
type Service struct {
	agent          AgentClient
	directory      DIDDirectory
	links          WalletLinks
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

// WithDIDDirectory and WithWalletLinks enable ListForUser. Either may be nil.
func WithDIDDirectory(d DIDDirectory) Option {
	return func(s *Service) { s.directory = d }
}

func WithWalletLinks(l WalletLinks) Option {
	return func(s *Service) { s.links = l }
}

func New(agentClient AgentClient, opts ...Option) *Service {
	s := &Service{
		agent:  agentClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue validates the request and asks the agent to issue. No agent call is
// made unless issuer, subject, type and claims are all present.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (*agent.Credential, error) {
	if err := validateIssue(req); err != nil {
		s.metrics.RecordIssue(req.Type, "invalid")
		return nil, err
	}

	cred, err := s.agent.IssueCredential(ctx, agent.IssueRequest{
		IssuerDID:    req.IssuerDID.String(),
		SubjectDID:   req.SubjectDID.String(),
		Type:         req.Type,
		Claims:       models.SubjectClaims(req.SubjectDID, req.Claims),
		ConnectionID: req.ConnectionID,
	})
	if err != nil {
		s.metrics.RecordIssue(req.Type, "failed")
		s.logger.ErrorContext(ctx, "credential issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"credential_type", req.Type,
			"error", err,
		)
		return nil, agent.ToDomainError(err, "failed to issue credential")
	}

	s.metrics.RecordIssue(req.Type, "issued")
	s.emit(ctx, audit.Event{
		Type:    audit.EventCredentialIssued,
		Subject: cred.RecordID,
		Attrs: map[string]string{
			"type":    req.Type,
			"issuer":  req.IssuerDID.String(),
			"subject": req.SubjectDID.String(),
		},
	})
	s.logger.InfoContext(ctx, "credential issued",
		"request_id", requestcontext.RequestID(ctx),
		"credential_type", req.Type,
		"record_id", cred.RecordID,
	)
	return cred, nil
}

func validateIssue(req models.IssueRequest) error {
	var missing []string
	if req.IssuerDID.IsNil() {
		missing = append(missing, "issuerDID")
	}
	if req.SubjectDID.IsNil() {
		missing = append(missing, "subjectDID")
	}
	if strings.TrimSpace(req.Type) == "" {
		missing = append(missing, "credentialType")
	}
	if len(req.Claims) == 0 {
		missing = append(missing, "claims")
	}
	if len(missing) > 0 {
		return dErrors.WithDetails(
			dErrors.New(dErrors.CodeValidation, strings.Join(missing, ", ")+" required"),
			map[string]any{"missing": missing},
		)
	}
	for _, did := range []domain.DID{req.IssuerDID, req.SubjectDID} {
		if _, err := domain.ParseDID(did.String()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid DID "+strconv.Quote(did.String()))
		}
	}
	return nil
}

// Verify delegates to the agent. A credential that fails verification is a
// result, not an error.
func (s *Service) Verify(ctx context.Context, presented json.RawMessage) (*models.VerifyResult, error) {
	trimmed := strings.TrimSpace(string(presented))
	if trimmed == "" || trimmed == "null" {
		return nil, dErrors.New(dErrors.CodeValidation, "credential is required")
	}

	verdict, err := s.agent.VerifyCredential(ctx, presented)
	if err != nil {
		s.metrics.RecordVerification("error")
		return nil, agent.ToDomainError(err, "failed to verify credential")
	}

	result := &models.VerifyResult{
		Valid:      verdict.Valid,
		Reasons:    strutil.CompactUnique(verdict.Reasons),
		Credential: models.Summarize(presented),
	}
	outcome := "invalid"
	if result.Valid {
		outcome = "valid"
	}
	s.metrics.RecordVerification(outcome)
	s.emit(ctx, audit.Event{
		Type:    audit.EventCredentialVerified,
		Subject: result.Credential.Subject,
		Reason:  outcome,
		Attrs:   map[string]string{"type": result.Credential.Type, "issuer": result.Credential.Issuer},
	})
	return result, nil
}

// ListForUser lists credentials held by the user's PRISM DID, or by the
// linked wallet DID when no PRISM DID was provisioned.
func (s *Service) ListForUser(ctx context.Context, userID domain.UserID) (*models.Holdings, error) {
	did, source, err := s.resolveDID(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.agent.ListCredentials(ctx, did.String())
	if err != nil {
		return nil, agent.ToDomainError(err, "failed to retrieve credentials")
	}
	s.metrics.IncrementListed()
	return &models.Holdings{DID: did, Source: source, Credentials: records}, nil
}

func (s *Service) resolveDID(ctx context.Context, userID domain.UserID) (domain.DID, string, error) {
	if s.directory != nil {
		did, err := s.directory.FindDID(ctx, userID)
		switch {
		case err == nil:
			return did, models.SourcePrism, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user DID")
		}
	}
	if s.links != nil {
		did, err := s.links.LinkedDID(ctx, userID)
		switch {
		case err == nil:
			return did, models.SourceWallet, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up linked DID")
		}
	}
	return "", "", dErrors.New(dErrors.CodeNotFound, "user DID not found")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.UserID = requestcontext.UserID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish credential event",
			"type", event.Type,
			"error", err,
		)
	}
}
