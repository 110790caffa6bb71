package service

import "sync"

// SessionRegistry hands out one RelationshipService instance per actor,
// created lazily on first use and primed with a Refresh. It replaces the
// usual shared-singleton arrangement: each instance is explicitly
// constructed, bound to exactly one actor, and evicted when the session
// ends, so no relationship state leaks across identities.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]RelationshipService
	factory  func() RelationshipService
}

func NewSessionRegistry(factory func() RelationshipService) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]RelationshipService),
		factory:  factory,
	}
}

// ForActor returns the service bound to actorID, constructing and refreshing
// it on first use. A failed initial refresh evicts the instance so the next
// call retries instead of serving an empty projection.
func (r *SessionRegistry) ForActor(actorID string) (RelationshipService, error) {
	r.mu.Lock()
	svc, ok := r.sessions[actorID]
	if !ok {
		svc = r.factory()
		svc.Bind(actorID)
		r.sessions[actorID] = svc
	}
	r.mu.Unlock()

	if !ok {
		if err := svc.Refresh(); err != nil {
			r.Evict(actorID)
			return nil, err
		}
	}
	return svc, nil
}

// Evict drops the session for actorID, if any. Used on logout and when the
// identity is rebound.
func (r *SessionRegistry) Evict(actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, actorID)
}

// ActiveSessions returns how many actor sessions are currently held.
func (r *SessionRegistry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
