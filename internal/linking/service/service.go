package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	connmodels "civicid/internal/connection/models"
	connservice "civicid/internal/connection/service"
	"civicid/internal/linking/metrics"
	"civicid/internal/linking/models"
	"civicid/internal/linking/store"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/audit"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/requestcontext"
)

const (
	linkGoal       = "Link your wallet to your CivicChain account"
	metaPurpose    = "purpose"
	purposeDIDLink = "did_link"
)

// ConnectionService is the slice of the connection state machine linking needs.
type ConnectionService interface {
	CreateInvitation(ctx context.Context, req connservice.InvitationRequest) (*connservice.InvitationResult, error)
	Get(ctx context.Context, id domain.ConnectionID) (*connmodels.Connection, error)
	LatestForUser(ctx context.Context, userID domain.UserID, states ...connmodels.State) (*connmodels.Connection, error)
}

// LinkStore persists UserDIDLinks. Create must enforce both uniqueness keys
// atomically and report collisions as sentinel.ErrAlreadyUsed.
type LinkStore interface {
	Create(ctx context.Context, link *models.UserDIDLink) error
	FindByUser(ctx context.Context, userID domain.UserID) (*models.UserDIDLink, error)
	FindByDID(ctx context.Context, did domain.DID) (*models.UserDIDLink, error)
	DeleteByUser(ctx context.Context, userID domain.UserID) (*models.UserDIDLink, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner scopes the duplicate checks and the insert in Complete to one
// transaction when the link store is SQL backed.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service binds wallet DIDs to platform users.
type Service struct {
	connections    ConnectionService
	links          LinkStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tx             TxRunner
	now            func() time.Time
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func New(connections ConnectionService, links LinkStore, opts ...Option) *Service {
	s := &Service{
		connections: connections,
		links:       links,
		logger:      slog.Default(),
		tx:          passthroughTx{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest carries the caller and optional display hints.
type StartRequest struct {
	UserID        domain.UserID
	RequestedFrom string
}

// Start opens a linking invitation for a user who has no link yet.
func (s *Service) Start(ctx context.Context, req StartRequest) (*models.StartResult, error) {
	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.links.FindByUser(ctx, req.UserID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "user already has a linked DID")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
	}

	meta := map[string]string{metaPurpose: purposeDIDLink}
	if req.RequestedFrom != "" {
		meta[connmodels.MetaRequestedFrom] = req.RequestedFrom
	}
	inv, err := s.connections.CreateInvitation(ctx, connservice.InvitationRequest{
		UserID:   req.UserID,
		Goal:     linkGoal,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementStarted()
	conn := inv.Connection
	s.logger.InfoContext(ctx, "linking started",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", req.UserID.String(),
		"connection_id", conn.ID.String(),
	)
	return &models.StartResult{
		ConnectionID:      conn.ID,
		InvitationURL:     inv.InvitationURL,
		InvitationPayload: conn.InvitationPayload,
		QRData:            inv.QRData,
		State:             conn.State.LinkLabel(),
	}, nil
}

// Complete links the peer DID of a finished connection to its owner. It has
// no side effects until every precondition holds, so callers may poll it.
func (s *Service) Complete(ctx context.Context, userID domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error) {
	defer s.metrics.ObserveComplete(time.Now())

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}
	if !conn.BelongsTo(userID) {
		return nil, s.reject(ctx, dErrors.CodeForbidden, "connection belongs to another user", userID, conn)
	}
	if conn.State == connmodels.StateError {
		return nil, s.reject(ctx, dErrors.CodeAgentError, "connection failed", userID, conn)
	}
	if !conn.State.IsReady() {
		return nil, s.reject(ctx, dErrors.CodeInvalidState, "connection is not ready yet", userID, conn)
	}
	if conn.TheirDID.IsNil() {
		return nil, s.reject(ctx, dErrors.CodeInvalidState, "connection has no peer DID", userID, conn)
	}

	link := models.NewUserDIDLink(userID, conn.TheirDID, conn.ID, s.now().UTC())
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.links.FindByDID(ctx, conn.TheirDID)
		switch {
		case err == nil && owner.UserID != userID:
			return s.reject(ctx, dErrors.CodeConflict, "DID is already linked to another user", userID, conn)
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
		}
		if _, err := s.links.FindByUser(ctx, userID); err == nil {
			return s.reject(ctx, dErrors.CodeConflict, "user is already linked", userID, conn)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
		}

		if err := s.links.Create(ctx, link); err != nil {
			switch {
			case errors.Is(err, store.ErrDIDAlreadyLinked):
				return s.reject(ctx, dErrors.CodeConflict, "DID is already linked to another user", userID, conn)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return s.reject(ctx, dErrors.CodeConflict, "user is already linked", userID, conn)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store link")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementLinked()
	s.emit(ctx, audit.EventDIDLinked, link)
	s.logger.InfoContext(ctx, "DID linked",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"connection_id", conn.ID.String(),
		"did_method", link.DID.Method(),
	)
	return &models.LinkResult{DID: link.DID, LinkedAt: link.LinkedAt, ConnectionID: link.ConnectionID}, nil
}

// Unlink removes the caller's link. It fails with not_found when there is none.
func (s *Service) Unlink(ctx context.Context, userID domain.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	removed, err := s.links.DeleteByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no linked DID")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove link")
	}

	s.metrics.IncrementUnlinked()
	s.emit(ctx, audit.EventDIDUnlinked, removed)
	s.logger.InfoContext(ctx, "DID unlinked",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
	)
	return nil
}

// Status reports linked, pending (an invitation is still open) or not_linked.
func (s *Service) Status(ctx context.Context, userID domain.UserID) (*models.Status, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		link    *models.UserDIDLink
		pending *connmodels.Connection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.links.FindByUser(gctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
		}
		link = found
		return nil
	})
	g.Go(func() error {
		found, err := s.connections.LatestForUser(gctx, userID, connmodels.StateInvitation, connmodels.StateRequestReceived)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return err
		}
		pending = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch {
	case link != nil:
		linkedAt := link.LinkedAt
		connID := link.ConnectionID
		return &models.Status{
			Linked:       true,
			State:        models.StatusLinked,
			DID:          link.DID,
			LinkedAt:     &linkedAt,
			ConnectionID: &connID,
		}, nil
	case pending != nil:
		connID := pending.ID
		return &models.Status{
			State:           models.StatusPending,
			ConnectionID:    &connID,
			ConnectionState: pending.State.LinkLabel(),
		}, nil
	default:
		return &models.Status{State: models.StatusNotLinked}, nil
	}
}

func (s *Service) reject(ctx context.Context, code dErrors.Code, msg string, userID domain.UserID, conn *connmodels.Connection) error {
	s.metrics.IncrementRejected(string(code))
	s.logger.WarnContext(ctx, "link completion refused",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"connection_id", conn.ID.String(),
		"connection_state", conn.State,
		"reason", msg,
	)
	return dErrors.New(code, msg)
}

func (s *Service) emit(ctx context.Context, eventType audit.EventType, link *models.UserDIDLink) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Type:    eventType,
		UserID:  link.UserID,
		Subject: link.DID.String(),
		Attrs:   map[string]string{"connection_id": link.ConnectionID.String()},
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish link event",
			"user_id", link.UserID.String(),
			"error", err,
		)
	}
}
