package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"civicid/internal/agent"
	"civicid/internal/connection/metrics"
	"civicid/internal/connection/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/audit"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/requestcontext"
)

// maxCASAttempts covers one lost swap per forward state plus error.
const maxCASAttempts = 5

// Store persists connections. CompareAndSwapState must be a storage-level
// conditional write.
type Store interface {
	Create(ctx context.Context, conn *models.Connection) error
	FindByID(ctx context.Context, id domain.ConnectionID) (*models.Connection, error)
	FindByExchangeID(ctx context.Context, exchangeID string) (*models.Connection, error)
	FindLatestForUser(ctx context.Context, userID domain.UserID, states ...models.State) (*models.Connection, error)
	ListForUser(ctx context.Context, userID domain.UserID) ([]*models.Connection, error)
	CompareAndSwapState(ctx context.Context, exchangeID string, from models.State, next *models.Connection) error
}

// AgentClient opens out-of-band invitations.
type AgentClient interface {
	CreateInvitation(ctx context.Context, label, goal string) (*agent.Invitation, error)
}

// Deduper suppresses redelivered webhook messages.
type Deduper interface {
	Claim(ctx context.Context, raw []byte) (bool, error)
	Release(ctx context.Context, raw []byte) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the connection state machine.
type Service struct {
	store           Store
	agent           AgentClient
	policy          AcceptPolicy
	deduper         Deduper
	logger          *slog.Logger
	metrics         *metrics.Metrics
	auditPublisher  AuditPublisher
	invitationLabel string
	now             func() time.Time
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

// WithAcceptPolicy replaces AlwaysAccept.
func WithAcceptPolicy(p AcceptPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithDeduper enables webhook redelivery suppression.
func WithDeduper(d Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

// WithInvitationLabel sets the label shown in the wallet when none is requested.
func WithInvitationLabel(label string) Option {
	return func(s *Service) { s.invitationLabel = label }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, agentClient AgentClient, opts ...Option) *Service {
	s := &Service{
		store:           store,
		agent:           agentClient,
		policy:          AlwaysAccept{},
		logger:          slog.Default(),
		invitationLabel: "CivicChain Platform",
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvitationRequest asks for a new out-of-band invitation.
type InvitationRequest struct {
	// UserID is optional; linking always sets it.
	UserID   domain.UserID
	Label    string
	Goal     string
	Metadata map[string]string
}

// InvitationResult is a stored invitation ready to be shown as a QR code.
type InvitationResult struct {
	Connection    *models.Connection
	InvitationURL string
	QRData        string
}

// CreateInvitation asks the agent for an invitation and stores it in state
// invitation.
func (s *Service) CreateInvitation(ctx context.Context, req InvitationRequest) (*InvitationResult, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = s.invitationLabel
	}

	inv, err := s.agent.CreateInvitation(ctx, label, req.Goal)
	if err != nil {
		s.logger.ErrorContext(ctx, "identity agent invitation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, agent.ToDomainError(err, "failed to create connection invitation")
	}

	metadata := map[string]string{models.MetaLabel: label}
	if inv.AgentConnectionID != "" {
		metadata[models.MetaAgentConnID] = inv.AgentConnectionID
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	myDID := domain.DID(inv.MyDID)
	conn, err := models.NewInvitation(domain.NewConnectionID(), inv.ExchangeID, req.UserID, myDID,
		inv.URL, inv.Payload, metadata, s.now().UTC())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAgentError, "identity agent returned an unusable invitation")
	}
	if err := s.store.Create(ctx, conn); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "exchange id already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store connection")
	}

	s.metrics.IncrementInvitationCreated()
	s.metrics.RecordTransition("", string(models.StateInvitation), models.DecisionApply.String())
	s.emit(ctx, conn, "", "invitation created")
	s.logger.InfoContext(ctx, "connection invitation created",
		"request_id", requestcontext.RequestID(ctx),
		"connection_id", conn.ID.String(),
		"exchange_id", conn.ExchangeID,
		"user_id", conn.UserID.String(),
	)
	return &InvitationResult{Connection: conn, InvitationURL: conn.InvitationURL, QRData: conn.InvitationURL}, nil
}

// Get returns a connection by its surrogate id.
func (s *Service) Get(ctx context.Context, id domain.ConnectionID) (*models.Connection, error) {
	conn, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "connection not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
	}
	return conn, nil
}

// LatestForUser returns the newest connection the user opened that is still
// in one of states. Used by the linking status view.
func (s *Service) LatestForUser(ctx context.Context, userID domain.UserID, states ...models.State) (*models.Connection, error) {
	conn, err := s.store.FindLatestForUser(ctx, userID, states...)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no connection for user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
	}
	return conn, nil
}

// Accept promotes a connection waiting in request_received to active. It is
// the manual path for requests the accept policy declined.
func (s *Service) Accept(ctx context.Context, id domain.ConnectionID) (*models.Connection, error) {
	conn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.State != models.StateRequestReceived {
		return nil, dErrors.New(dErrors.CodeInvalidState, "connection is not awaiting acceptance")
	}
	accepted, err := s.Advance(ctx, conn.ExchangeID, models.StateActive, "", "accepted manually")
	if err != nil {
		return nil, err
	}
	if accepted.State == models.StateRequestReceived {
		return nil, dErrors.New(dErrors.CodeInvalidState, "peer DID is not known yet")
	}
	return accepted, nil
}

// Advance moves the connection at exchangeID towards target. Duplicate,
// backward and deferred moves return the stored connection unchanged. A lost
// compare-and-swap is retried against the fresh row; each loss means the
// state moved forward, so the retries end in an apply or a no-op well within
// maxCASAttempts.
func (s *Service) Advance(ctx context.Context, exchangeID string, target models.State, theirDID domain.DID, note string) (*models.Connection, error) {
	for attempt := 1; ; attempt++ {
		conn, err := s.store.FindByExchangeID(ctx, exchangeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "connection not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
		}

		update := models.StateUpdate{To: target, TheirDID: theirDID, At: s.now().UTC()}
		if note != "" {
			key := models.MetaLastMessage
			if target == models.StateError {
				key = models.MetaLastError
			}
			update.Metadata = map[string]string{key: note}
		}

		next, decision, err := conn.Transition(update)
		s.metrics.RecordTransition(string(conn.State), string(target), decision.String())
		if err != nil {
			return nil, err
		}
		if decision == models.DecisionDefer {
			s.logger.InfoContext(ctx, "connection transition deferred until the peer DID is known",
				"request_id", requestcontext.RequestID(ctx),
				"exchange_id", exchangeID,
				"from", conn.State,
				"to", target,
			)
			return conn, nil
		}
		if decision == models.DecisionNoOp {
			s.logger.WarnContext(ctx, "ignored connection transition",
				"request_id", requestcontext.RequestID(ctx),
				"exchange_id", exchangeID,
				"from", conn.State,
				"to", target,
			)
			return conn, nil
		}
		if !theirDID.IsNil() && !conn.TheirDID.IsNil() && conn.TheirDID != theirDID {
			s.logger.WarnContext(ctx, "peer DID differs from the one already recorded",
				"exchange_id", exchangeID,
				"recorded", conn.TheirDID.String(),
				"received", theirDID.String(),
			)
		}

		err = s.store.CompareAndSwapState(ctx, exchangeID, conn.State, next)
		if err == nil {
			s.emit(ctx, next, conn.State, note)
			s.logger.InfoContext(ctx, "connection state changed",
				"request_id", requestcontext.RequestID(ctx),
				"connection_id", next.ID.String(),
				"exchange_id", exchangeID,
				"from", conn.State,
				"to", next.State,
			)
			return next, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update connection")
		}
		if attempt >= maxCASAttempts {
			return nil, dErrors.New(dErrors.CodeConflict, "connection was updated concurrently")
		}
		s.metrics.IncrementCASRetry()
	}
}

func (s *Service) emit(ctx context.Context, conn *models.Connection, from models.State, reason string) {
	if s.auditPublisher == nil {
		return
	}
	eventType := audit.EventConnectionStateChanged
	if conn.State == models.StateError {
		eventType = audit.EventConnectionFailed
	}
	event := audit.Event{
		Type:    eventType,
		UserID:  conn.UserID,
		Subject: conn.ID.String(),
		From:    string(from),
		To:      string(conn.State),
		Reason:  reason,
		Attrs:   map[string]string{"exchange_id": conn.ExchangeID},
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish connection event",
			"connection_id", conn.ID.String(),
			"error", err,
		)
	}
}
