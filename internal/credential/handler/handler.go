package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicid/internal/agent"
	"civicid/internal/credential/models"
	"civicid/pkg/domain"
	"civicid/pkg/platform/httputil"
	"civicid/pkg/requestcontext"
)

// Service is the credential orchestrator as seen by HTTP.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (*agent.Credential, error)
	Verify(ctx context.Context, presented json.RawMessage) (*models.VerifyResult, error)
	ListForUser(ctx context.Context, userID domain.UserID) (*models.Holdings, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/issue", h.HandleIssue)
	r.Post("/credentials/verify", h.HandleVerify)
	r.Get("/credentials", h.HandleList)
}

// HandleIssue handles POST /credentials/issue.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cred, err := h.service.Issue(ctx, req.toModel())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssueResponse{
		Credential: cred,
		Status:     "issued",
		Message:    "Verifiable Credential issued successfully",
	})
}

// HandleVerify handles POST /credentials/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Verify(ctx, req.Credential)
	if err != nil {
		h.logger.WarnContext(ctx, "credential verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(res))
}

// HandleList handles GET /credentials?userId=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := domain.ParseUserID(r.URL.Query().Get("userId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	holdings, err := h.service.ListForUser(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(holdings))
}
