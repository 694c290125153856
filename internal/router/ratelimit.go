package router

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiterStore keeps one token bucket per client for the login and
// registration endpoints. It satisfies middleware.RateLimiterStore.
type LoginLimiterStore struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiterStore allows perMinute attempts per client with the given burst.
func NewLoginLimiterStore(perMinute, burst int) *LoginLimiterStore {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &LoginLimiterStore{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether identifier may make another attempt now.
func (s *LoginLimiterStore) Allow(identifier string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[identifier]
	if !ok {
		ent = &limiterEntry{lim: rate.NewLimiter(s.limit, s.burst)}
		s.entries[identifier] = ent
	}
	ent.lastSeen = now
	return ent.lim.AllowN(now, 1), nil
}

// Cleanup forgets clients idle for longer than the idle TTL.
func (s *LoginLimiterStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (s *LoginLimiterStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

func (s *LoginLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
