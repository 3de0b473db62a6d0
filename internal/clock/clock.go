package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns a Clock backed by time.Now.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ManagedClock is a manually advanced clock for tests. Safe for concurrent use.
type ManagedClock struct {
	mutex     sync.Mutex
	startTime time.Time
	offset    time.Duration
}

// NewManaged returns a ManagedClock frozen at startTime.
func NewManaged(startTime time.Time) *ManagedClock {
	return &ManagedClock{startTime: startTime}
}

// Now returns the managed time.
func (managedClock *ManagedClock) Now() time.Time {
	managedClock.mutex.Lock()
	defer managedClock.mutex.Unlock()
	return managedClock.startTime.Add(managedClock.offset)
}

// Advance moves the clock forward and returns the new time. Negative offsets are ignored.
func (managedClock *ManagedClock) Advance(offset time.Duration) time.Time {
	managedClock.mutex.Lock()
	defer managedClock.mutex.Unlock()
	if offset > 0 {
		managedClock.offset += offset
	}
	return managedClock.startTime.Add(managedClock.offset)
}
