package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

// backend adapts a store implementation to the shared contract suite.
type backend struct {
	store   ports.Store
	ttl     func(key string) time.Duration
	advance func(d time.Duration)
	raw     func(key string) (string, bool)
}

type StoreContractSuite struct {
	suite.Suite
	newBackend func(t *testing.T) backend
	b          backend
	ctx        context.Context
}

func (s *StoreContractSuite) SetupTest() {
	s.b = s.newBackend(s.T())
	s.ctx = context.Background()
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newBackend: func(t *testing.T) backend {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return backend{
			store:   NewRedisStore(client),
			ttl:     mr.TTL,
			advance: mr.FastForward,
			raw: func(key string) (string, bool) {
				v, err := mr.Get(key)
				return v, err == nil
			},
		}
	}})
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newBackend: func(t *testing.T) backend {
		var mu sync.Mutex
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		ms := NewMemoryStore(WithClock(clock))
		return backend{
			store: ms,
			ttl: func(key string) time.Duration {
				// miniredis reports 0 for keys without TTL; match it.
				if d := ms.TTL(key); d > 0 {
					return d
				}
				return 0
			},
			advance: func(d time.Duration) {
				mu.Lock()
				now = now.Add(d)
				mu.Unlock()
			},
			raw: func(key string) (string, bool) {
				ms.mu.Lock()
				defer ms.mu.Unlock()
				e := ms.get(key)
				if e == nil {
					return "", false
				}
				return e.value, true
			},
		}
	}})
}

func (s *StoreContractSuite) TestRateWindowTTLSetOnlyOnFirstHit() {
	n, err := s.b.store.IncrRateWindow(s.ctx, "usr_1", time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.Equal(time.Minute, s.b.ttl("rate_limit:usr_1"))

	s.b.advance(20 * time.Second)
	n, err = s.b.store.IncrRateWindow(s.ctx, "usr_1", time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(2), n)
	s.Equal(40*time.Second, s.b.ttl("rate_limit:usr_1"), "second hit must not re-arm the window")

	s.b.advance(41 * time.Second)
	n, err = s.b.store.IncrRateWindow(s.ctx, "usr_1", time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), n, "expired window starts over")
}

func (s *StoreContractSuite) TestStrikesIncrementAndRefreshTTL() {
	week := 7 * 24 * time.Hour
	n, err := s.b.store.IncrStrikes(s.ctx, "usr_1", week)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	s.b.advance(time.Hour)
	n, err = s.b.store.IncrStrikes(s.ctx, "usr_1", week)
	s.Require().NoError(err)
	s.Equal(int64(2), n)
	s.Equal(week, s.b.ttl("global_strikes:usr_1"))

	got, err := s.b.store.Strikes(s.ctx, "usr_1")
	s.Require().NoError(err)
	s.Equal(int64(2), got)
}

func (s *StoreContractSuite) TestStrikesAbsentIsZero() {
	got, err := s.b.store.Strikes(s.ctx, "usr_nobody")
	s.Require().NoError(err)
	s.Zero(got)
}

func (s *StoreContractSuite) TestSetBanOverwritesValueAndTTL() {
	s.Require().NoError(s.b.store.SetBan(s.ctx, "usr_1", "provisional", 10*time.Minute))
	s.Require().NoError(s.b.store.SetBan(s.ctx, "usr_1", "auditor_confirmed_ban|strike_1|x", time.Hour))

	v, ok := s.b.raw("blacklist:usr_1")
	s.True(ok)
	s.Equal("auditor_confirmed_ban|strike_1|x", v)
	s.Equal(time.Hour, s.b.ttl("blacklist:usr_1"))

	exists, err := s.b.store.BanExists(s.ctx, "usr_1")
	s.Require().NoError(err)
	s.True(exists)

	value, ttl, err := s.b.store.Ban(s.ctx, "usr_1")
	s.Require().NoError(err)
	s.Equal(v, value)
	s.Equal(time.Hour, ttl)
}

func (s *StoreContractSuite) TestBanExpires() {
	s.Require().NoError(s.b.store.SetBan(s.ctx, "usr_1", "v", time.Hour))
	s.b.advance(time.Hour + time.Second)

	exists, err := s.b.store.BanExists(s.ctx, "usr_1")
	s.Require().NoError(err)
	s.False(exists)

	_, _, err = s.b.store.Ban(s.ctx, "usr_1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestDeleteBanIsIdempotent() {
	s.Require().NoError(s.b.store.SetBan(s.ctx, "usr_1", "v", time.Hour))

	existed, err := s.b.store.DeleteBan(s.ctx, "usr_1")
	s.Require().NoError(err)
	s.True(existed)

	existed, err = s.b.store.DeleteBan(s.ctx, "usr_1")
	s.Require().NoError(err)
	s.False(existed)
}

func (s *StoreContractSuite) TestMarkSeen() {
	first, err := s.b.store.MarkSeen(s.ctx, "evt_1", time.Hour)
	s.Require().NoError(err)
	s.True(first)

	first, err = s.b.store.MarkSeen(s.ctx, "evt_1", time.Hour)
	s.Require().NoError(err)
	s.False(first)

	s.b.advance(2 * time.Hour)
	first, err = s.b.store.MarkSeen(s.ctx, "evt_1", time.Hour)
	s.Require().NoError(err)
	s.True(first)
}

func (s *StoreContractSuite) TestForgetSeen() {
	first, err := s.b.store.MarkSeen(s.ctx, "evt_2", time.Hour)
	s.Require().NoError(err)
	s.True(first)

	s.Require().NoError(s.b.store.ForgetSeen(s.ctx, "evt_2"))
	first, err = s.b.store.MarkSeen(s.ctx, "evt_2", time.Hour)
	s.Require().NoError(err)
	s.True(first, "a forgotten event is a first delivery again")

	s.Require().NoError(s.b.store.ForgetSeen(s.ctx, "evt_never_seen"))
}

func (s *StoreContractSuite) TestUserIDsAreNotEscaped() {
	s.Require().NoError(s.b.store.SetBan(s.ctx, "tenant:usr_1", "v", time.Hour))
	_, ok := s.b.raw(models.BlacklistKey("tenant:usr_1"))
	s.True(ok)
	_, ok = s.b.raw("blacklist:tenant_usr_1")
	s.False(ok)
}

func TestRedisStoreSplitsLimiter(t *testing.T) {
	shared := miniredis.RunT(t)
	limiter := miniredis.RunT(t)
	sc := redis.NewClient(&redis.Options{Addr: shared.Addr()})
	lc := redis.NewClient(&redis.Options{Addr: limiter.Addr()})
	t.Cleanup(func() { _ = sc.Close(); _ = lc.Close() })

	st := NewRedisStore(sc, WithLimiterClient(lc))
	_, err := st.IncrRateWindow(context.Background(), "usr_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, limiter.Exists("rate_limit:usr_1"))
	assert.False(t, shared.Exists("rate_limit:usr_1"))
}

func TestRedisStoreWrapsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	st := NewRedisStore(client)
	ctx := context.Background()

	_, err := st.IncrStrikes(ctx, "usr_1", time.Hour)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	_, err = st.BanExists(ctx, "usr_1")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	_, err = st.IncrRateWindow(ctx, "usr_1", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	err = st.SetBan(ctx, "usr_1", "v", time.Hour)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
