package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

// MemoryStore implements the shared store contract in process, with the same
// key names and TTL rules as RedisStore. It backs AUDITOR_STORE=memory and unit
// tests; bans written here are invisible to the upstream detector.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time // zero means no TTL
}

type MemoryStoreOption func(*MemoryStore)

// WithClock overrides time.Now for TTL bookkeeping.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]*entry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// get returns the live entry for key, evicting it when expired. Callers hold mu.
func (s *MemoryStore) get(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) incr(key string) int64 {
	e := s.get(key)
	if e == nil {
		e = &entry{value: "0"}
		s.entries[key] = e
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	return n
}

func (s *MemoryStore) IncrRateWindow(_ context.Context, userID string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.RateLimitKey(userID)
	n := s.incr(key)
	if n == 1 {
		s.entries[key].expiresAt = s.now().Add(window)
	}
	return n, nil
}

func (s *MemoryStore) BanExists(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(models.BlacklistKey(userID)) != nil, nil
}

func (s *MemoryStore) IncrStrikes(_ context.Context, userID string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.StrikesKey(userID)
	n := s.incr(key)
	s.entries[key].expiresAt = s.now().Add(ttl)
	return n, nil
}

func (s *MemoryStore) SetBan(_ context.Context, userID, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[models.BlacklistKey(userID)] = e
	return nil
}

func (s *MemoryStore) DeleteBan(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.BlacklistKey(userID)
	existed := s.get(key) != nil
	delete(s.entries, key)
	return existed, nil
}

func (s *MemoryStore) Strikes(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(models.StrikesKey(userID))
	if e == nil {
		return 0, nil
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	return n, nil
}

func (s *MemoryStore) Ban(_ context.Context, userID string) (string, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(models.BlacklistKey(userID))
	if e == nil {
		return "", 0, sentinel.ErrNotFound
	}
	var ttl time.Duration = -1
	if !e.expiresAt.IsZero() {
		ttl = e.expiresAt.Sub(s.now())
	}
	return e.value, ttl, nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.SeenKey(eventID)
	if s.get(key) != nil {
		return false, nil
	}
	s.entries[key] = &entry{value: "1", expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) ForgetSeen(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, models.SeenKey(eventID))
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// TTL returns the remaining TTL of a raw key, or -1 when the key has none and
// -2 when it does not exist, mirroring Redis TTL semantics. Used by tests.
func (s *MemoryStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(key)
	switch {
	case e == nil:
		return -2
	case e.expiresAt.IsZero():
		return -1
	default:
		return e.expiresAt.Sub(s.now())
	}
}
