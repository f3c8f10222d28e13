package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicid/internal/linking/models"
	"civicid/internal/linking/service"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/httputil"
	"civicid/pkg/platform/middleware/metadata"
	"civicid/pkg/requestcontext"
)

// Service is the linking workflow as seen by HTTP.
type Service interface {
	Start(ctx context.Context, req service.StartRequest) (*models.StartResult, error)
	Complete(ctx context.Context, userID domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error)
	Unlink(ctx context.Context, userID domain.UserID) error
	Status(ctx context.Context, userID domain.UserID) (*models.Status, error)
}

// Handler serves /link. Routes expect an authenticated user in the request
// context; mount them behind auth.RequireAuth.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts linking endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/link/start", h.HandleStart)
	r.Post("/link/complete", h.HandleComplete)
	r.Get("/link/status", h.HandleStatus)
	r.Post("/link/unlink", h.HandleUnlink)
}

// HandleStart handles POST /link/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	res, err := h.service.Start(ctx, service.StartRequest{
		UserID:        userID,
		RequestedFrom: metadata.DeviceLabel(requestcontext.UserAgent(ctx)),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to start linking",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStartResponse(res))
}

// HandleComplete handles POST /link/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CompleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Complete(ctx, userID, req.parsedConnectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CompleteResponse{
		Success:      true,
		DID:          res.DID.String(),
		LinkedAt:     res.LinkedAt,
		ConnectionID: res.ConnectionID.String(),
	})
}

// HandleStatus handles GET /link/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	st, err := h.service.Status(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(st))
}

// HandleUnlink handles POST /link/unlink.
func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	if err := h.service.Unlink(ctx, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (domain.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}
