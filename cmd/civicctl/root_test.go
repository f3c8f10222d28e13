package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "civicid/internal/jwt_token"
	"civicid/pkg/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestTokenMintProducesValidToken(t *testing.T) {
	out, err := execute(t, "token", "mint", "user-1", "--signing-key", "k", "--issuer", "civicid")
	require.NoError(t, err)

	var resp struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3600, resp.ExpiresIn)

	claims, err := jwttoken.NewJWTService("k", "civicid", "").ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "civicctl", claims.ClientID)
}

func TestTokenMintReadsEnvironment(t *testing.T) {
	t.Setenv("CIVICCTL_TOKEN_SIGNING_KEY", "from-env")

	out, err := execute(t, "token", "mint", "user-1")
	require.NoError(t, err)

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	_, err = jwttoken.NewJWTService("from-env", "", "").ValidateToken(resp.AccessToken)
	assert.NoError(t, err)
}

func TestLinkWaitPollsUntilLinked(t *testing.T) {
	connectionID := domain.NewConnectionID()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/complete", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_state","error_description":"connection is not ready yet"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"did":"did:peer:abc","linkedAt":"2026-01-02T03:04:05Z","connectionId":"` + connectionID.String() + `"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "link", "wait", connectionID.String(),
		"--server", srv.URL, "--token", "tok", "--interval", "1ms", "--attempts", "5")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, out, `"did": "did:peer:abc"`)
}

func TestLinkWaitStopsOnConflict(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"conflict","error_description":"DID is already linked to another user"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "link", "wait", domain.NewConnectionID().String(),
		"--server", srv.URL, "--interval", "1ms", "--attempts", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already linked")
	assert.Equal(t, int32(1), calls.Load())
}

func TestAgentHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"version":"1.0"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "agent", "health", "--agent-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "healthy"`)

	healthy.Store(false)
	out, err = execute(t, "agent", "health", "--agent-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, out, `"status": "unhealthy"`)
}

func TestEventsTailRequiresBrokers(t *testing.T) {
	_, err := execute(t, "events", "tail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
