package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicid/internal/connection/models"
	"civicid/internal/connection/service"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/httputil"
	"civicid/pkg/platform/middleware/metadata"
	"civicid/pkg/requestcontext"
)

const maxWebhookBytes = 1 << 20

// Service is the connection state machine as seen by HTTP.
type Service interface {
	CreateInvitation(ctx context.Context, req service.InvitationRequest) (*service.InvitationResult, error)
	Get(ctx context.Context, id domain.ConnectionID) (*models.Connection, error)
	Accept(ctx context.Context, id domain.ConnectionID) (*models.Connection, error)
	ProcessWebhook(ctx context.Context, body []byte) (service.WebhookResult, error)
}

// RejectionRecorder counts webhook deliveries refused before processing.
type RejectionRecorder interface {
	IncrementWebhookRejected(reason string)
}

// Handler serves /connections.
type Handler struct {
	service      Service
	logger       *slog.Logger
	webhookGuard func(http.Handler) http.Handler
	rejections   RejectionRecorder
}

type Option func(*Handler)

// WithWebhookGuard wraps the webhook route, typically with a shared-secret check.
func WithWebhookGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.webhookGuard = mw }
}

func WithRejectionRecorder(r RejectionRecorder) Option {
	return func(h *Handler) { h.rejections = r }
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts connection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/connections/invitation", h.HandleCreateInvitation)
	r.Get("/connections/{id}", h.HandleGet)
	r.Post("/connections/{id}/accept", h.HandleAccept)

	webhook := r
	if h.webhookGuard != nil {
		webhook = r.With(h.webhookGuard)
	}
	webhook.Post("/connections/webhook", h.HandleWebhook)
}

// HandleCreateInvitation handles POST /connections/invitation.
func (h *Handler) HandleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InvitationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	userID := req.ParsedUserID()
	if userID.IsNil() {
		userID = requestcontext.UserID(ctx)
	}

	res, err := h.service.CreateInvitation(ctx, service.InvitationRequest{
		UserID: userID,
		Label:  req.Label,
		Goal:   req.Goal,
		Metadata: map[string]string{
			models.MetaRequestedFrom: metadata.DeviceLabel(requestcontext.UserAgent(ctx)),
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create invitation",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInvitationResponse(res))
}

// HandleGet handles GET /connections/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseConnectionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	conn, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// HandleAccept handles POST /connections/{id}/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseConnectionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	conn, err := h.service.Accept(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "connection accept failed",
			"request_id", requestcontext.RequestID(ctx),
			"connection_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// HandleWebhook handles POST /connections/webhook. Per-message failures are
// recorded on the connection and still answered with 200.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.recordRejection("unreadable")
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "webhook body too large or unreadable"))
		return
	}

	res, err := h.service.ProcessWebhook(ctx, body)
	if err != nil {
		h.recordRejection(string(dErrors.CodeOf(err)))
		h.logger.WarnContext(ctx, "rejected webhook delivery",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "webhook processed",
		"request_id", requestID,
		"processed", res.Processed,
		"duplicates", res.Duplicates,
		"dropped", res.Dropped,
		"failed", res.Failed,
	)
	httputil.WriteJSON(w, http.StatusOK, WebhookResponse{
		Status:            "processed",
		MessagesProcessed: res.Processed,
		Duplicates:        res.Duplicates,
		Dropped:           res.Dropped,
		Failed:            res.Failed,
	})
}

func (h *Handler) recordRejection(reason string) {
	if h.rejections != nil {
		h.rejections.IncrementWebhookRejected(reason)
	}
}
