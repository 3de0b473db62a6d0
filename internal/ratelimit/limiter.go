// Package ratelimit damps repeated kiosk submissions from the same client.
package ratelimit

import (
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/clock"
)

const (
	// DefaultCooldown is the minimum gap between two accepted submissions of one client.
	DefaultCooldown = 2500 * time.Millisecond
	// DefaultCapacity bounds the number of client identities tracked at once.
	DefaultCapacity = 10000
)

// Config controls limiter behaviour. Zero values fall back to the defaults.
type Config struct {
	Cooldown time.Duration
	Capacity int
	Clock    clock.Clock
}

// CooldownLimiter accepts at most one submission per client identity per cooldown window.
// It keeps only the last accepted timestamp per identity and never grows beyond its capacity.
type CooldownLimiter struct {
	cooldown         time.Duration
	capacity         int
	clock            clock.Clock
	mutex            sync.Mutex
	lastAcceptedByID map[string]time.Time
}

// NewCooldownLimiter builds a limiter from configuration.
func NewCooldownLimiter(configuration Config) *CooldownLimiter {
	cooldown := configuration.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	capacity := configuration.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	limiterClock := configuration.Clock
	if limiterClock == nil {
		limiterClock = clock.New()
	}
	return &CooldownLimiter{
		cooldown:         cooldown,
		capacity:         capacity,
		clock:            limiterClock,
		lastAcceptedByID: make(map[string]time.Time),
	}
}

// Allow reports whether clientID may submit now. Accepted calls record the current time;
// rejected calls leave the state untouched.
func (limiter *CooldownLimiter) Allow(clientID string) bool {
	now := limiter.clock.Now()

	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	lastAccepted, known := limiter.lastAcceptedByID[clientID]
	if known && now.Sub(lastAccepted) < limiter.cooldown {
		return false
	}
	if !known && len(limiter.lastAcceptedByID) >= limiter.capacity {
		limiter.makeRoomLocked(now)
	}
	limiter.lastAcceptedByID[clientID] = now
	return true
}

// Sweep drops identities whose cooldown has expired and returns how many were removed.
func (limiter *CooldownLimiter) Sweep() int {
	now := limiter.clock.Now()

	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.evictExpiredLocked(now)
}

// Len returns the number of identities currently tracked.
func (limiter *CooldownLimiter) Len() int {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return len(limiter.lastAcceptedByID)
}

// Cooldown returns the configured cooldown window.
func (limiter *CooldownLimiter) Cooldown() time.Duration {
	return limiter.cooldown
}

func (limiter *CooldownLimiter) evictExpiredLocked(now time.Time) int {
	removed := 0
	for clientID, lastAccepted := range limiter.lastAcceptedByID {
		if now.Sub(lastAccepted) >= limiter.cooldown {
			delete(limiter.lastAcceptedByID, clientID)
			removed++
		}
	}
	return removed
}

// makeRoomLocked frees one slot: expired entries first, otherwise the oldest entry.
func (limiter *CooldownLimiter) makeRoomLocked(now time.Time) {
	if limiter.evictExpiredLocked(now) > 0 {
		return
	}
	var oldestID string
	var oldestTime time.Time
	for clientID, lastAccepted := range limiter.lastAcceptedByID {
		if oldestID == "" || lastAccepted.Before(oldestTime) {
			oldestID = clientID
			oldestTime = lastAccepted
		}
	}
	if oldestID != "" {
		delete(limiter.lastAcceptedByID, oldestID)
	}
}
