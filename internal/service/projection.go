package service

import "relgraph/internal/model"

// projection is the in-memory view of the bound actor's relationship state:
// the friend set plus friend requests partitioned by direction. It is a
// derived cache, never the system of record, and is rebuilt wholesale by
// Refresh; discarding it at any time is safe.
type projection struct {
	friends  map[string]struct{}
	sent     map[string]*model.FriendRequest // keyed by request ID
	received map[string]*model.FriendRequest // keyed by request ID
}

func newProjection() *projection {
	return &projection{
		friends:  make(map[string]struct{}),
		sent:     make(map[string]*model.FriendRequest),
		received: make(map[string]*model.FriendRequest),
	}
}

// isFriend reports whether an undirected edge with otherID is present.
func (p *projection) isFriend(otherID string) bool {
	_, ok := p.friends[otherID]
	return ok
}

// pendingWith returns the pending request between the actor and otherID in
// either direction, or nil. At most one can exist at a time.
func (p *projection) pendingWith(otherID string) *model.FriendRequest {
	for _, request := range p.sent {
		if request.ReceiverID == otherID && request.Status == model.RequestStatusPending {
			return request
		}
	}
	for _, request := range p.received {
		if request.SenderID == otherID && request.Status == model.RequestStatusPending {
			return request
		}
	}
	return nil
}
