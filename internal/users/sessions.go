package users

import "sync"

// Sessions tracks which users currently hold a terminal connection.
// Connections are keyed by an id chosen by the terminal side, so repeating
// an Attach or Detach for the same connection changes nothing.
// It is safe for concurrent use.
type Sessions struct {
	mu     sync.RWMutex
	active map[int64]*sessionEntry
}

type sessionEntry struct {
	user  User
	conns map[string]struct{}
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{active: make(map[int64]*sessionEntry)}
}

// Attach records connection connID for u. A user may hold several
// connections; attaching a known connection only refreshes the user.
func (s *Sessions) Attach(connID string, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.active[u.ID]
	if !ok {
		e = &sessionEntry{conns: make(map[string]struct{})}
		s.active[u.ID] = e
	}
	e.user = u
	e.conns[connID] = struct{}{}
}

// Detach releases connection connID of userID and reports whether the user
// is still connected afterwards. Unknown connections are ignored.
func (s *Sessions) Detach(userID int64, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.active[userID]
	if !ok {
		return false
	}
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		delete(s.active, userID)
		return false
	}
	return true
}

// ActiveSessionForUser returns the connected user with the given id.
func (s *Sessions) ActiveSessionForUser(userID int64) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.active[userID]
	if !ok {
		return User{}, false
	}
	return e.user, true
}

// Count returns the number of distinct connected users.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.active)
}
