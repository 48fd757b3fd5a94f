package agent

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HealthCache remembers the last time each instance's agent answered
// health-check successfully, so the placement scheduler's health gate can
// skip a re-check that happened moments ago instead of re-polling every
// VM on every scheduling pass.
type HealthCache struct {
	recent *lru.Cache[string, time.Time]
	ttl    time.Duration
}

func NewHealthCache(size int, ttl time.Duration) (*HealthCache, error) {
	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &HealthCache{recent: cache, ttl: ttl}, nil
}

// MarkHealthy records that publicIP answered health-check just now.
func (h *HealthCache) MarkHealthy(publicIP string) {
	h.recent.Add(publicIP, time.Now())
}

// RecentlyHealthy reports whether publicIP answered health-check within
// the cache's TTL, without making a network call.
func (h *HealthCache) RecentlyHealthy(publicIP string) bool {
	seenAt, ok := h.recent.Get(publicIP)
	if !ok {
		return false
	}
	return time.Since(seenAt) < h.ttl
}

// Forget removes any cached health record for publicIP, so the next
// RecentlyHealthy call for it reports false.
func (h *HealthCache) Forget(publicIP string) {
	h.recent.Remove(publicIP)
}
