// Package cooldown limits how often one user may start the posting flow.
package cooldown

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum time between two accepted triggers of a user.
const DefaultWindow = 60 * time.Second

// Tracker records the last accepted trigger per user. A trigger is accepted
// once a full window has passed since the previous accepted one; rejected
// triggers leave the record untouched.
type Tracker struct {
	window time.Duration
	mu     sync.Mutex
	users  map[string]time.Time
}

// New creates a tracker. A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window, users: make(map[string]time.Time)}
}

// Window returns the configured cooldown.
func (t *Tracker) Window() time.Duration { return t.window }

// Accept reports whether userID may trigger at now and, if so, records it.
func (t *Tracker) Accept(userID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.users[userID]; ok && now.Sub(last) < t.window {
		return false
	}
	t.users[userID] = now
	return true
}

// LastAccepted returns when userID was last let through.
func (t *Tracker) LastAccepted(userID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.users[userID]
	return last, ok
}

// Remaining returns how long userID must still wait at now.
func (t *Tracker) Remaining(userID string, now time.Time) time.Duration {
	last, ok := t.LastAccepted(userID)
	if !ok {
		return 0
	}
	if d := t.window - now.Sub(last); d > 0 {
		return d
	}
	return 0
}
