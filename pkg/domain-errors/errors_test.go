package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeAgentUnavailable, "identity agent unreachable")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeAgentUnavailable, CodeOf(err))
	assert.Equal(t, "identity agent unreachable: connection refused", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestCodeOfUncodedError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("complete link: %w", New(CodeForbidden, "not your connection"))
	assert.True(t, HasCode(err, CodeForbidden))
	assert.True(t, Is(err, CodeForbidden))
}

func TestWithDetails(t *testing.T) {
	base := New(CodeConflict, "did already linked")
	withDetails := WithDetails(base, map[string]any{"did": "did:peer:abc"})

	de, ok := As(withDetails)
	require.True(t, ok)
	assert.Equal(t, CodeConflict, de.Code)
	assert.Equal(t, "did:peer:abc", de.Details["did"])

	orig, _ := As(base)
	assert.Nil(t, orig.Details, "original error must not be mutated")

	plain := WithDetails(errors.New("boom"), map[string]any{"k": "v"})
	assert.Equal(t, CodeInternal, CodeOf(plain))
}
