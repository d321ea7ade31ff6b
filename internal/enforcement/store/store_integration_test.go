//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFF-rtk/sentinel-auditor/pkg/testutil/containers"
)

func TestRedisStoreAgainstRealRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	st := NewRedisStore(rc.Client)
	ctx := context.Background()

	t.Run("rate window ttl armed once", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		for i := 1; i <= 3; i++ {
			n, err := st.IncrRateWindow(ctx, "usr_1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(i), n)
		}
		ttl, err := rc.Client.TTL(ctx, "rate_limit:usr_1").Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, time.Minute)
		assert.Greater(t, ttl, 50*time.Second)
	})

	t.Run("strikes transaction refreshes ttl", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, rc.Client.Set(ctx, "global_strikes:usr_1", 2, time.Minute).Err())

		n, err := st.IncrStrikes(ctx, "usr_1", 7*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		ttl, err := rc.Client.TTL(ctx, "global_strikes:usr_1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 6*24*time.Hour)
	})

	t.Run("ban read and delete", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, st.SetBan(ctx, "usr_1", "auditor_extended_ban|strike_3|r", 24*time.Hour))

		value, ttl, err := st.Ban(ctx, "usr_1")
		require.NoError(t, err)
		assert.Equal(t, "auditor_extended_ban|strike_3|r", value)
		assert.Greater(t, ttl, 23*time.Hour)

		existed, err := st.DeleteBan(ctx, "usr_1")
		require.NoError(t, err)
		assert.True(t, existed)
	})
}
