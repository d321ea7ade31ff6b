package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

// incrWindowScript increments the window counter and arms its TTL only on the
// first hit, so later hits never extend the window.
var incrWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisStore keeps bans and strikes in the shared store and rate windows in the
// limiter store. Both may be the same client.
type RedisStore struct {
	shared  *redis.Client
	limiter *redis.Client
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithLimiterClient routes rate windows to a separate instance.
func WithLimiterClient(c *redis.Client) RedisStoreOption {
	return func(s *RedisStore) {
		if c != nil {
			s.limiter = c
		}
	}
}

func NewRedisStore(shared *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{shared: shared, limiter: shared}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", sentinel.ErrUnavailable, op, err)
}

func (s *RedisStore) IncrRateWindow(ctx context.Context, userID string, window time.Duration) (int64, error) {
	n, err := incrWindowScript.Run(ctx, s.limiter, []string{models.RateLimitKey(userID)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable("incr rate window", err)
	}
	return n, nil
}

func (s *RedisStore) BanExists(ctx context.Context, userID string) (bool, error) {
	n, err := s.shared.Exists(ctx, models.BlacklistKey(userID)).Result()
	if err != nil {
		return false, unavailable("ban exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) IncrStrikes(ctx context.Context, userID string, ttl time.Duration) (int64, error) {
	key := models.StrikesKey(userID)
	var incr *redis.IntCmd
	_, err := s.shared.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, unavailable("incr strikes", err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) SetBan(ctx context.Context, userID, value string, ttl time.Duration) error {
	if err := s.shared.Set(ctx, models.BlacklistKey(userID), value, ttl).Err(); err != nil {
		return unavailable("set ban", err)
	}
	return nil
}

func (s *RedisStore) DeleteBan(ctx context.Context, userID string) (bool, error) {
	n, err := s.shared.Del(ctx, models.BlacklistKey(userID)).Result()
	if err != nil {
		return false, unavailable("delete ban", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Strikes(ctx context.Context, userID string) (int64, error) {
	n, err := s.shared.Get(ctx, models.StrikesKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("get strikes", err)
	}
	return n, nil
}

func (s *RedisStore) Ban(ctx context.Context, userID string) (string, time.Duration, error) {
	key := models.BlacklistKey(userID)
	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	_, err := s.shared.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if errors.Is(get.Err(), redis.Nil) {
		return "", 0, sentinel.ErrNotFound
	}
	if err != nil {
		return "", 0, unavailable("get ban", err)
	}
	return get.Val(), ttl.Val(), nil
}

func (s *RedisStore) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := s.shared.SetNX(ctx, models.SeenKey(eventID), 1, ttl).Result()
	if err != nil {
		return false, unavailable("mark seen", err)
	}
	return ok, nil
}

func (s *RedisStore) ForgetSeen(ctx context.Context, eventID string) error {
	if err := s.shared.Del(ctx, models.SeenKey(eventID)).Err(); err != nil {
		return unavailable("forget seen", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.shared.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
