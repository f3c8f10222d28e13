package models

import (
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t.Run("JSON-LD document", func(t *testing.T) {
		raw := json.RawMessage(`{
			"type": ["VerifiableCredential", "ResidencyCredential"],
			"issuer": {"id": "did:prism:issuer"},
			"credentialSubject": {"id": "did:peer:holder", "city": "Lisbon"}
		}`)
		assert.Equal(t, Summary{Type: "ResidencyCredential", Issuer: "did:prism:issuer", Subject: "did:peer:holder"}, Summarize(raw))
	})

	t.Run("plain fields", func(t *testing.T) {
		raw := json.RawMessage(`{"type":"AgeCredential","issuer":"did:prism:i","subject":"did:prism:s"}`)
		assert.Equal(t, Summary{Type: "AgeCredential", Issuer: "did:prism:i", Subject: "did:prism:s"}, Summarize(raw))
	})

	t.Run("JWT credential", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": "did:prism:issuer",
			"sub": "did:prism:subject",
			"vc": map[string]any{
				"type": []string{"VerifiableCredential", "CitizenCredential"},
			},
		}).SignedString([]byte("irrelevant"))
		require.NoError(t, err)
		raw, err := json.Marshal(token)
		require.NoError(t, err)

		assert.Equal(t, Summary{Type: "CitizenCredential", Issuer: "did:prism:issuer", Subject: "did:prism:subject"}, Summarize(raw))
	})

	t.Run("garbage yields an empty summary", func(t *testing.T) {
		assert.Equal(t, Summary{}, Summarize(json.RawMessage(`"not.a.jwt"`)))
		assert.Equal(t, Summary{}, Summarize(json.RawMessage(`[1,2]`)))
		assert.Equal(t, Summary{}, Summarize(nil))
	})
}

func TestSubjectClaims(t *testing.T) {
	claims := map[string]any{"name": "Ana", "id": "spoofed"}
	merged := SubjectClaims("did:prism:s", claims)

	assert.Equal(t, "did:prism:s", merged["id"])
	assert.Equal(t, "Ana", merged["name"])
	assert.Equal(t, "spoofed", claims["id"], "input is not mutated")
}
