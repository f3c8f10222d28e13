package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicid/internal/did/models"
	"civicid/pkg/domain"
	"civicid/pkg/platform/httputil"
	"civicid/pkg/requestcontext"
)

// Service is DID provisioning as seen by HTTP.
type Service interface {
	Create(ctx context.Context, userID domain.UserID) (*models.Created, error)
	CreateForUser(ctx context.Context, userID domain.UserID) (*models.UserDID, bool, error)
	Healthy(ctx context.Context) bool
}

type Handler struct {
	service  Service
	logger   *slog.Logger
	agentURL string
}

type Option func(*Handler)

// WithAgentURL is echoed by the agent health endpoint.
func WithAgentURL(url string) Option {
	return func(h *Handler) { h.agentURL = url }
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts DID and agent health endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/did/create", h.HandleCreate)
	r.Post("/did/create-for-user", h.HandleCreateForUser)
	r.Get("/health/agent", h.HandleAgentHealth)
}

// HandleCreate handles POST /did/create.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Create(ctx, req.parsedUserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CreateResponse{
		DID:      res.DID.String(),
		UserID:   res.UserID.String(),
		Status:   "created",
		Fallback: res.Fallback,
		Message:  "PRISM DID created successfully",
	})
}

// HandleCreateForUser handles POST /did/create-for-user: 201 when a DID was
// minted, 200 when the user already had one.
func (h *Handler) HandleCreateForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, created, err := h.service.CreateForUser(ctx, req.parsedUserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to provision user DID",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, UserDIDResponse{DIDURI: rec.DID.String(), Fallback: rec.Fallback})
}

// HandleAgentHealth handles GET /health/agent.
func (h *Handler) HandleAgentHealth(w http.ResponseWriter, r *http.Request) {
	if h.service.Healthy(r.Context()) {
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "healthy",
			Message:  "Identity agent is reachable",
			AgentURL: h.agentURL,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
		Status:   "unhealthy",
		Message:  "Cannot reach identity agent",
		AgentURL: h.agentURL,
	})
}
