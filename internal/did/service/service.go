package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"civicid/internal/agent"
	"civicid/internal/did/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/audit"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/requestcontext"
)

// AgentClient creates PRISM DIDs and reports agent health.
type AgentClient interface {
	CreateDID(ctx context.Context, alias string) (agent.DIDResult, error)
	HealthCheck(ctx context.Context) bool
}

// Store is the user to PRISM DID directory.
type Store interface {
	Create(ctx context.Context, rec *models.UserDID) error
	FindByUser(ctx context.Context, userID domain.UserID) (*models.UserDID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service provisions PRISM DIDs for platform users.
type Service struct {
	agent          AgentClient
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(agentClient AgentClient, store Store, opts ...Option) *Service {
	s := &Service{
		agent:  agentClient,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a DID for userID without recording it.
func (s *Service) Create(ctx context.Context, userID domain.UserID) (*models.Created, error) {
	res, err := s.mint(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Created{DID: domain.DID(res.DID), UserID: userID, Fallback: res.Fallback}, nil
}

// CreateForUser returns the user's DID, minting and recording one on first
// use. created reports whether this call minted it.
func (s *Service) CreateForUser(ctx context.Context, userID domain.UserID) (rec *models.UserDID, created bool, err error) {
	existing, err := s.store.FindByUser(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user DID")
	}

	res, err := s.mint(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	rec = &models.UserDID{
		UserID:    userID,
		DID:       domain.DID(res.DID),
		Fallback:  res.Fallback,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store user DID")
		}
		// A concurrent request provisioned first.
		existing, findErr := s.store.FindByUser(ctx, userID)
		if findErr != nil {
			return nil, false, dErrors.New(dErrors.CodeConflict, "DID already recorded")
		}
		return existing, false, nil
	}

	s.emit(ctx, rec)
	s.logger.InfoContext(ctx, "PRISM DID provisioned",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"fallback", rec.Fallback,
	)
	return rec, true, nil
}

// Healthy asks the agent for its health. Never fails.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.agent.HealthCheck(ctx)
}

func (s *Service) mint(ctx context.Context, userID domain.UserID) (agent.DIDResult, error) {
	if userID.IsNil() {
		return agent.DIDResult{}, dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	alias := userID.String() + "-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	res, err := s.agent.CreateDID(ctx, alias)
	if err != nil {
		return agent.DIDResult{}, agent.ToDomainError(err, "failed to create DID")
	}
	if res.Fallback {
		s.logger.WarnContext(ctx, "identity agent unavailable, using fallback DID",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
		)
	}
	return res, nil
}

func (s *Service) emit(ctx context.Context, rec *models.UserDID) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Type:    audit.EventDIDCreated,
		UserID:  rec.UserID,
		Subject: rec.DID.String(),
		Attrs:   map[string]string{"fallback": strconv.FormatBool(rec.Fallback)},
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish DID event",
			"user_id", rec.UserID.String(),
			"error", err,
		)
	}
}
