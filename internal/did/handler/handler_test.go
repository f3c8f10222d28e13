package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"civicid/internal/agent"
	"civicid/internal/did/service"
	"civicid/internal/did/service/mocks"
	"civicid/internal/did/store"
	"civicid/pkg/testutil"
)

func newRouter(t *testing.T) (http.Handler, *mocks.MockAgentClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agentClient := mocks.NewMockAgentClient(ctrl)
	svc := service.New(agentClient, store.NewInMemory(), service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, logger, WithAgentURL("http://agent.test/cloud-agent")).Register(r)
	return r, agentClient
}

func TestCreateForUserStatusCodes(t *testing.T) {
	router, agentClient := newRouter(t)
	agentClient.EXPECT().CreateDID(gomock.Any(), gomock.Any()).Return(agent.DIDResult{DID: "did:prism:new"}, nil).Times(1)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/did/create-for-user", map[string]string{"userId": "u1"}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr, "didUri", "did:prism:new")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/did/create-for-user", map[string]string{"userId": "u1"}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "didUri", "did:prism:new")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/did/create-for-user", map[string]string{}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestCreateReportsFallback(t *testing.T) {
	router, agentClient := newRouter(t)
	agentClient.EXPECT().CreateDID(gomock.Any(), gomock.Any()).Return(agent.DIDResult{DID: "did:prism:1767225600000xyz", Fallback: true}, nil)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/did/create", map[string]string{"userId": "u1"}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[CreateResponse](t, rr)
	assert.Equal(t, "created", resp.Status)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "u1", resp.UserID)
}

func TestAgentHealth(t *testing.T) {
	router, agentClient := newRouter(t)

	agentClient.EXPECT().HealthCheck(gomock.Any()).Return(true)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health/agent"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "status", "healthy")
	testutil.AssertJSONContains(t, rr, "agentUrl", "http://agent.test/cloud-agent")

	agentClient.EXPECT().HealthCheck(gomock.Any()).Return(false)
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health/agent"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rr, "status", "unhealthy")
}
