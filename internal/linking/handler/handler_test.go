package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"civicid/internal/agent"
	connservice "civicid/internal/connection/service"
	connmocks "civicid/internal/connection/service/mocks"
	connstore "civicid/internal/connection/store"
	jwttoken "civicid/internal/jwt_token"
	"civicid/internal/linking/service"
	"civicid/internal/linking/store"
	"civicid/pkg/domain"
	"civicid/pkg/platform/middleware/auth"
	"civicid/pkg/testutil"
)

type testEnv struct {
	router      http.Handler
	connections *connservice.Service
	tokens      *jwttoken.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var exchanges atomic.Int32
	agentClient := connmocks.NewMockAgentClient(ctrl)
	agentClient.EXPECT().CreateInvitation(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, string) (*agent.Invitation, error) {
			id := fmt.Sprintf("link-thread-%d", exchanges.Add(1))
			return &agent.Invitation{ExchangeID: id, MyDID: "did:peer:platform", URL: "https://agent/oob?_oob=" + id}, nil
		}).AnyTimes()

	connections := connservice.New(connstore.NewInMemory(), agentClient, connservice.WithLogger(logger))
	svc := service.New(connections, store.NewInMemory(), service.WithLogger(logger))
	tokens := jwttoken.NewJWTService("test-signing-key", "civicid", "civicid")

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwttoken.NewJWTServiceAdapter(tokens), logger))
		New(svc, logger).Register(r)
	})
	return &testEnv{router: r, connections: connections, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, userID domain.UserID, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := e.tokens.GenerateAccessToken(userID, "test-client", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return testutil.DoRequest(e.router, req)
}

func TestLinkingEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "u1", testutil.NewRequest(t, http.MethodPost, "/link/start"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	started := testutil.UnmarshalResponse[StartResponse](t, rr)
	assert.Equal(t, "invited", started.State)
	assert.Equal(t, "https://agent/oob?_oob=link-thread-1", started.Invitation.URL)

	completeBody := map[string]string{"connectionId": started.ConnectionID}

	rr = env.do(t, "u1", testutil.NewJSONRequest(t, http.MethodPost, "/link/complete", completeBody))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_state")

	rr = env.do(t, "u1", testutil.NewRequest(t, http.MethodGet, "/link/status"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "state", "pending")
	testutil.AssertJSONContains(t, rr, "connectionState", "invited")

	_, err := env.connections.ProcessWebhook(t.Context(),
		[]byte(`{"piuri":"https://didcomm.org/connections/1.0/request","from":"did:peer:abc","thid":"link-thread-1"}`))
	require.NoError(t, err)

	rr = env.do(t, "u1", testutil.NewJSONRequest(t, http.MethodPost, "/link/complete", completeBody))
	testutil.AssertStatus(t, rr, http.StatusOK)
	completed := testutil.UnmarshalResponse[CompleteResponse](t, rr)
	assert.True(t, completed.Success)
	assert.Equal(t, "did:peer:abc", completed.DID)

	rr = env.do(t, "u1", testutil.NewJSONRequest(t, http.MethodPost, "/link/complete", completeBody))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")

	rr = env.do(t, "u1", testutil.NewRequest(t, http.MethodPost, "/link/unlink"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "success", true)

	rr = env.do(t, "u1", testutil.NewRequest(t, http.MethodGet, "/link/status"))
	testutil.AssertJSONContains(t, rr, "linked", false)
	testutil.AssertJSONContains(t, rr, "state", "not_linked")

	rr = env.do(t, "u1", testutil.NewRequest(t, http.MethodPost, "/link/unlink"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestCompleteRejectsOtherUsersConnection(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "owner", testutil.NewRequest(t, http.MethodPost, "/link/start"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	started := testutil.UnmarshalResponse[StartResponse](t, rr)

	rr = env.do(t, "intruder", testutil.NewJSONRequest(t, http.MethodPost, "/link/complete",
		map[string]string{"connectionId": started.ConnectionID}))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}

func TestCompleteValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "u1", testutil.NewJSONRequest(t, http.MethodPost, "/link/complete",
		map[string]string{"connectionId": "nope"}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)

	rr := testutil.DoRequest(env.router, testutil.NewRequest(t, http.MethodGet, "/link/status"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}
