//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"civicid/internal/connection/store"
	"civicid/pkg/testutil/containers"
)

func TestRedisDeduper(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(ctx))

	d := store.NewRedisDeduper(rc.Client, time.Minute)
	msg := []byte(`{"piuri":"a/connections/1.0/request","thid":"t1"}`)

	first, err := d.Claim(ctx, msg)
	require.NoError(t, err)
	require.True(t, first)

	second, err := d.Claim(ctx, msg)
	require.NoError(t, err)
	require.False(t, second, "redelivery must be recognised")

	other, err := d.Claim(ctx, []byte(`{"piuri":"a/connections/1.0/request","thid":"t2"}`))
	require.NoError(t, err)
	require.True(t, other)

	require.NoError(t, d.Release(ctx, msg))
	again, err := d.Claim(ctx, msg)
	require.NoError(t, err)
	require.True(t, again, "released message is claimable again")
}
