package service

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"relgraph/internal/model"
	"relgraph/internal/repository"

	"github.com/google/uuid"
)

// Request directions relative to the bound actor.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Respond actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// RequestRef identifies the pending request between the actor and another
// user, seen from the actor's side.
type RequestRef struct {
	RequestID string `json:"request_id"`
	Direction string `json:"direction"` // sent or received
}

// RelationshipStatus is the composite answer to "where do I stand with this
// user". IsFriend and Request are mutually exclusive.
type RelationshipStatus struct {
	IsFriend bool        `json:"is_friend"`
	Request  *RequestRef `json:"request"`
}

// RelationshipService owns the relationship graph for one bound actor: a
// local projection of friendships and friend requests, kept consistent with
// the backing store. Every mutation goes through here so the graph
// invariants (no self-requests, no duplicate pending requests, no request
// where a friendship exists, terminal statuses never transition) are
// enforced in one place.
type RelationshipService interface {
	Bind(actorID string)
	Actor() string
	Refresh() error
	ListFriends() []string
	ListIncomingRequests(statuses ...string) []*model.FriendRequest
	ListOutgoingRequests(statuses ...string) []*model.FriendRequest
	SendRequest(receiverID string) (*model.FriendRequest, error)
	Respond(requestID, action string) (*model.FriendRequest, error)
	Revoke(requestID string) (*model.FriendRequest, error)
	RemoveFriend(otherID string) error
	Status(otherID string) RelationshipStatus
}

type relationshipService struct {
	requestRepo    repository.FriendRequestRepository
	friendshipRepo repository.FriendshipRepository
	userRepo       repository.UserRepository
	notifService   NotificationService

	// mu serializes per-actor operations; HTTP handlers can interleave even
	// though callers are expected to be user-paced.
	mu      sync.RWMutex
	actorID string
	proj    *projection
}

func NewRelationshipService(
	requestRepo repository.FriendRequestRepository,
	friendshipRepo repository.FriendshipRepository,
	userRepo repository.UserRepository,
	notifService NotificationService,
) RelationshipService {
	return &relationshipService{
		requestRepo:    requestRepo,
		friendshipRepo: friendshipRepo,
		userRepo:       userRepo,
		notifService:   notifService,
		proj:           newProjection(),
	}
}

// Bind rebinds the service to an actor identity and discards the projection.
// It does not reload; callers trigger Refresh when they need fresh state.
func (s *relationshipService) Bind(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actorID = actorID
	s.proj = newProjection()
}

// Actor returns the currently bound actor ID.
func (s *relationshipService) Actor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorID
}

// Refresh replaces the projection wholesale from the store. On any read
// failure the previous projection is retained unchanged. Accepted requests
// that lack their friendship edge (a crash between the two accept writes)
// are repaired here by re-inserting the missing pair.
func (s *relationshipService) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actorID == "" {
		return ErrNotBound
	}

	friendships, err := s.friendshipRepo.FindByUserID(s.actorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	sent, err := s.requestRepo.FindBySenderID(s.actorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	received, err := s.requestRepo.FindByReceiverID(s.actorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	fresh := newProjection()
	for _, f := range friendships {
		fresh.friends[f.FriendID] = struct{}{}
	}
	for _, r := range sent {
		fresh.sent[r.ID] = r
	}
	for _, r := range received {
		fresh.received[r.ID] = r
	}

	s.reconcile(fresh)
	s.proj = fresh
	return nil
}

// reconcile repairs accepted requests whose friendship edge is missing.
func (s *relationshipService) reconcile(proj *projection) {
	repair := func(request *model.FriendRequest) {
		other := request.OtherParty(s.actorID)
		if _, ok := proj.friends[other]; ok {
			return
		}
		if err := s.friendshipRepo.InsertPair(s.actorID, other); err != nil {
			log.Printf("Failed to repair missing friendship for accepted request %s: %v", request.ID, err)
			return
		}
		proj.friends[other] = struct{}{}
		log.Printf("Repaired missing friendship between %s and %s (request %s)", s.actorID, other, request.ID)
	}

	for _, request := range proj.sent {
		if request.Status == model.RequestStatusAccepted {
			repair(request)
		}
	}
	for _, request := range proj.received {
		if request.Status == model.RequestStatusAccepted {
			repair(request)
		}
	}
}

// ListFriends returns the current friend set. Pure local read; never fails.
func (s *relationshipService) ListFriends() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	friends := make([]string, 0, len(s.proj.friends))
	for id := range s.proj.friends {
		friends = append(friends, id)
	}
	sort.Strings(friends)
	return friends
}

// ListIncomingRequests returns received requests matching the status filter.
// An empty filter matches every status.
func (s *relationshipService) ListIncomingRequests(statuses ...string) []*model.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRequests(s.proj.received, statuses)
}

// ListOutgoingRequests returns sent requests matching the status filter.
func (s *relationshipService) ListOutgoingRequests(statuses ...string) []*model.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRequests(s.proj.sent, statuses)
}

func filterRequests(requests map[string]*model.FriendRequest, statuses []string) []*model.FriendRequest {
	wanted := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}

	out := make([]*model.FriendRequest, 0, len(requests))
	for _, request := range requests {
		if len(wanted) > 0 {
			if _, ok := wanted[request.Status]; !ok {
				continue
			}
		}
		out = append(out, request)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SendRequest creates a pending request from the actor to receiverID.
// Self-requests, already-friends, and duplicate pending requests are silent
// no-ops returning the existing state: double-taps are expected and must not
// surface as failures. The store re-checks uniqueness on insert, so a
// concurrent duplicate also collapses into the no-op path.
func (s *relationshipService) SendRequest(receiverID string) (*model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actorID == "" {
		return nil, ErrNotBound
	}
	if receiverID == s.actorID {
		return nil, nil
	}
	if s.proj.isFriend(receiverID) {
		return nil, nil
	}
	if existing := s.proj.pendingWith(receiverID); existing != nil {
		return existing, nil
	}

	request := &model.FriendRequest{
		ID:         uuid.New().String(),
		SenderID:   s.actorID,
		ReceiverID: receiverID,
		Status:     model.RequestStatusPending,
	}

	if err := s.requestRepo.Insert(request); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The store already holds a pending request for this pair that
			// the projection had not seen yet. Adopt it.
			existing, qerr := s.requestRepo.FindPendingBetween(s.actorID, receiverID)
			if qerr != nil {
				return nil, nil
			}
			if existing.SenderID == s.actorID {
				s.proj.sent[existing.ID] = existing
			} else {
				s.proj.received[existing.ID] = existing
			}
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}

	s.proj.sent[request.ID] = request
	s.notifyLifecycle(model.NotificationTypeRequestReceived, receiverID, request.ID)
	return request, nil
}

// Respond accepts or declines a request the actor received. Accept creates
// the friendship edge (both directed rows) only after the status update
// lands, and re-verifies against the store that the edge does not already
// exist so concurrent accepts cannot duplicate it.
func (s *relationshipService) Respond(requestID, action string) (*model.FriendRequest, error) {
	var to string
	switch action {
	case ActionAccept:
		to = model.RequestStatusAccepted
	case ActionDecline:
		to = model.RequestStatusDeclined
	default:
		return nil, fmt.Errorf("invalid respond action %q", action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actorID == "" {
		return nil, ErrNotBound
	}

	request, ok := s.proj.received[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	if request.IsTerminal() {
		return nil, ErrAlreadyFinalized
	}

	if err := s.updatePendingStatus(request, to); err != nil {
		return nil, err
	}

	if action == ActionDecline {
		s.notifyLifecycle(model.NotificationTypeRequestDeclined, request.SenderID, request.ID)
		return request, nil
	}

	// Defensive re-check against the store: a concurrent accept may already
	// have created the edge.
	exists, err := s.friendshipRepo.PairExists(s.actorID, request.SenderID)
	if err == nil && exists {
		s.proj.friends[request.SenderID] = struct{}{}
		return request, nil
	}

	if err := s.friendshipRepo.InsertPair(s.actorID, request.SenderID); err != nil {
		// The request is accepted in the store but the edge is missing; the
		// next Refresh repairs it.
		log.Printf("Accepted request %s but friendship insert failed: %v", request.ID, err)
		return request, fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}

	s.proj.friends[request.SenderID] = struct{}{}
	s.notifyLifecycle(model.NotificationTypeRequestAccepted, request.SenderID, request.ID)
	return request, nil
}

// Revoke withdraws a pending request the actor sent.
func (s *relationshipService) Revoke(requestID string) (*model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actorID == "" {
		return nil, ErrNotBound
	}

	request, ok := s.proj.sent[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	if request.IsTerminal() {
		return nil, ErrAlreadyFinalized
	}

	if err := s.updatePendingStatus(request, model.RequestStatusRevoked); err != nil {
		return nil, err
	}

	s.notifyLifecycle(model.NotificationTypeRequestRevoked, request.ReceiverID, request.ID)
	return request, nil
}

// updatePendingStatus performs the conditional pending->to write and mirrors
// the result into the local copy. A store-side conflict means the request
// finalized under us; the local copy adopts the store's status.
func (s *relationshipService) updatePendingStatus(request *model.FriendRequest, to string) error {
	err := s.requestRepo.UpdateStatus(request.ID, model.RequestStatusPending, to)
	if err == nil {
		request.Status = to
		return nil
	}

	switch {
	case errors.Is(err, repository.ErrConflict):
		if remote, ferr := s.requestRepo.FindByID(request.ID); ferr == nil {
			request.Status = remote.Status
		}
		return ErrAlreadyFinalized
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}
}

// RemoveFriend deletes the friendship edge with otherID. Removing a
// non-friend is a no-op that never contacts the store. A delete that removes
// only one of the two directed rows is logged as a data-integrity warning
// but the local edge is cleared either way.
func (s *relationshipService) RemoveFriend(otherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actorID == "" {
		return ErrNotBound
	}
	if !s.proj.isFriend(otherID) {
		return nil
	}

	affected, err := s.friendshipRepo.DeletePair(s.actorID, otherID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}
	if affected != 2 {
		log.Printf("Warning: removing friendship between %s and %s deleted %d rows, expected 2", s.actorID, otherID, affected)
	}

	delete(s.proj.friends, otherID)
	s.notifyRemoved(otherID)
	return nil
}

// Status answers "friend, pending request, or nothing" for otherID from the
// local projection. IsFriend and a non-nil Request are mutually exclusive.
func (s *relationshipService) Status(otherID string) RelationshipStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.proj.isFriend(otherID) {
		return RelationshipStatus{IsFriend: true}
	}

	if pending := s.proj.pendingWith(otherID); pending != nil {
		direction := DirectionReceived
		if pending.SenderID == s.actorID {
			direction = DirectionSent
		}
		return RelationshipStatus{
			IsFriend: false,
			Request:  &RequestRef{RequestID: pending.ID, Direction: direction},
		}
	}

	return RelationshipStatus{IsFriend: false}
}

// notifyLifecycle fans out a request lifecycle event to the counterpart.
// Delivery is best effort and asynchronous; failures only log.
func (s *relationshipService) notifyLifecycle(notifType, recipientID, requestID string) {
	if s.notifService == nil {
		return
	}
	actorID := s.actorID
	go func() {
		actorName := actorID
		if s.userRepo != nil {
			if actor, err := s.userRepo.FindByID(actorID); err == nil {
				actorName = actor.Username
			}
		}

		var err error
		switch notifType {
		case model.NotificationTypeRequestReceived:
			err = s.notifService.SendRequestReceivedNotification(recipientID, actorID, actorName, requestID)
		case model.NotificationTypeRequestAccepted:
			err = s.notifService.SendRequestAcceptedNotification(recipientID, actorID, actorName, requestID)
		case model.NotificationTypeRequestDeclined:
			err = s.notifService.SendRequestDeclinedNotification(recipientID, actorID, actorName, requestID)
		case model.NotificationTypeRequestRevoked:
			err = s.notifService.SendRequestRevokedNotification(recipientID, actorID, actorName, requestID)
		}
		if err != nil {
			log.Printf("Failed to send %s notification: %v", notifType, err)
		}
	}()
}

func (s *relationshipService) notifyRemoved(otherID string) {
	if s.notifService == nil {
		return
	}
	actorID := s.actorID
	go func() {
		actorName := actorID
		if s.userRepo != nil {
			if actor, err := s.userRepo.FindByID(actorID); err == nil {
				actorName = actor.Username
			}
		}
		if err := s.notifService.SendFriendRemovedNotification(otherID, actorID, actorName); err != nil {
			log.Printf("Failed to send friend removed notification: %v", err)
		}
	}()
}
