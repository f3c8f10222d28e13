package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicid/internal/platform/kafka"
	audit "civicid/pkg/platform/audit"
)

func TestRouterDispatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var linked, other []audit.Event
	r := NewRouter(logger, EventHandlerFunc(func(_ context.Context, e audit.Event) error {
		other = append(other, e)
		return nil
	}))
	r.Register(audit.EventDIDLinked, EventHandlerFunc(func(_ context.Context, e audit.Event) error {
		linked = append(linked, e)
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, r.Handle(ctx, &kafka.Message{Value: []byte(`{"type":"did_linked","userId":"u1"}`)}))
	require.NoError(t, r.Handle(ctx, &kafka.Message{Value: []byte(`{"type":"did_created"}`)}))
	require.NoError(t, r.Handle(ctx, &kafka.Message{Value: []byte(`not json`)}))

	require.Len(t, linked, 1)
	assert.Equal(t, "u1", linked[0].UserID.String())
	require.Len(t, other, 1)
	assert.Equal(t, audit.EventDIDCreated, other[0].Type)
}
