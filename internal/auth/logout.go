package auth

import (
	"sync"
	"sync/atomic"
)

// LogoutCache tracks users who logged out before their token expired.
// Reads hit an immutable snapshot through an atomic.Value, so the check on
// every request takes no lock. Writes copy the map and swap the snapshot.
type LogoutCache struct {
	mu       sync.Mutex
	snapshot atomic.Value
}

func NewLogoutCache() *LogoutCache {
	lc := &LogoutCache{}
	lc.snapshot.Store(map[string]struct{}{})
	return lc
}

// Logout marks a user as logged out.
func (lc *LogoutCache) Logout(username string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	old := lc.snapshot.Load().(map[string]struct{})
	next := make(map[string]struct{}, len(old)+1)
	for k := range old {
		next[k] = struct{}{}
	}
	next[username] = struct{}{}
	lc.snapshot.Store(next)
}

// Login clears a user's logged-out mark, typically on a fresh login.
func (lc *LogoutCache) Login(username string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	old := lc.snapshot.Load().(map[string]struct{})
	if _, ok := old[username]; !ok {
		return
	}
	next := make(map[string]struct{}, len(old))
	for k := range old {
		if k != username {
			next[k] = struct{}{}
		}
	}
	lc.snapshot.Store(next)
}

// IsLoggedOut reports whether the user logged out since their last login.
func (lc *LogoutCache) IsLoggedOut(username string) bool {
	snapshot := lc.snapshot.Load().(map[string]struct{})
	_, ok := snapshot[username]
	return ok
}
