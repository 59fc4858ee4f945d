package shared

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Awareness is the live presence set: users currently connected to the
// document. It is ephemeral and never part of a snapshot.
type Awareness struct {
	mu    sync.RWMutex
	users map[string]time.Time
}

// NewAwareness creates an empty presence set.
func NewAwareness() *Awareness {
	return &Awareness{users: make(map[string]time.Time)}
}

// Set marks a user present as of t.
func (a *Awareness) Set(userID string, t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[userID] = t
}

// Remove drops a user from the presence set.
func (a *Awareness) Remove(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, userID)
}

// Has reports whether a user is present.
func (a *Awareness) Has(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.users[userID]
	return ok
}

// Users returns present user ids, sorted.
func (a *Awareness) Users() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Sorted(maps.Keys(a.users))
}
