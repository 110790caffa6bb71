package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"relgraph/internal/model"
	"relgraph/internal/repository"
	"relgraph/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	actorID    = "11111111-1111-1111-1111-111111111111"
	receiverID = "22222222-2222-2222-2222-222222222222"
	strangerID = "33333333-3333-3333-3333-333333333333"
)

// memStore backs the relationship repositories in-memory for handler tests.
type memStore struct {
	mu       sync.Mutex
	requests map[string]*model.FriendRequest
	edges    map[[2]string]bool
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*model.FriendRequest),
		edges:    make(map[[2]string]bool),
	}
}

func (s *memStore) Insert(request *model.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		samePair := (existing.SenderID == request.SenderID && existing.ReceiverID == request.ReceiverID) ||
			(existing.SenderID == request.ReceiverID && existing.ReceiverID == request.SenderID)
		if samePair && existing.Status == model.RequestStatusPending {
			return repository.ErrConflict
		}
	}
	stored := *request
	s.requests[request.ID] = &stored
	return nil
}

func (s *memStore) FindByID(id string) (*model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *request
	return &c, nil
}

func (s *memStore) FindBySenderID(senderID string) ([]*model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FriendRequest
	for _, request := range s.requests {
		if request.SenderID == senderID {
			c := *request
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) FindByReceiverID(rid string) ([]*model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FriendRequest
	for _, request := range s.requests {
		if request.ReceiverID == rid {
			c := *request
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) FindPendingBetween(userID, otherID string) (*model.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.requests {
		samePair := (request.SenderID == userID && request.ReceiverID == otherID) ||
			(request.SenderID == otherID && request.ReceiverID == userID)
		if samePair && request.Status == model.RequestStatusPending {
			c := *request
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) UpdateStatus(id, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if request.Status != from {
		return repository.ErrConflict
	}
	request.Status = to
	return nil
}

func (s *memStore) InsertPair(userID, otherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[[2]string{userID, otherID}] = true
	s.edges[[2]string{otherID, userID}] = true
	return nil
}

func (s *memStore) FindByUserID(userID string) ([]*model.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Friendship
	for edge := range s.edges {
		if edge[0] == userID {
			out = append(out, &model.Friendship{UserID: edge[0], FriendID: edge[1]})
		}
	}
	return out, nil
}

func (s *memStore) PairExists(userID, otherID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges[[2]string{userID, otherID}] || s.edges[[2]string{otherID, userID}], nil
}

func (s *memStore) DeletePair(userID, otherID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, edge := range [][2]string{{userID, otherID}, {otherID, userID}} {
		if s.edges[edge] {
			delete(s.edges, edge)
			affected++
		}
	}
	return affected, nil
}

// memUserRepo knows a fixed set of users.
type memUserRepo struct {
	users map[string]*model.User
}

func newMemUserRepo(ids ...string) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]*model.User)}
	for _, id := range ids {
		repo.users[id] = &model.User{ID: id, Username: "user-" + id[:8]}
	}
	return repo
}

func (r *memUserRepo) Create(user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) FindByID(id string) (*model.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) FindByEmail(email string) (*model.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindByUsername(username string) (*model.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) SearchUsers(keyword string, limit, offset int) ([]model.User, error) {
	return nil, nil
}

func newTestRouter(store *memStore, asUser string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	userRepo := newMemUserRepo(actorID, receiverID)
	registry := service.NewSessionRegistry(func() service.RelationshipService {
		return service.NewRelationshipService(store, store, userRepo, nil)
	})
	handler := NewRelationshipHandler(registry, userRepo)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", asUser)
		c.Next()
	})

	relationships := r.Group("/api/v1/relationships")
	{
		relationships.POST("/requests", handler.SendRequest)
		relationships.GET("/requests/incoming", handler.ListIncoming)
		relationships.GET("/requests/outgoing", handler.ListOutgoing)
		relationships.POST("/requests/:id/accept", handler.Accept)
		relationships.POST("/requests/:id/decline", handler.Decline)
		relationships.POST("/requests/:id/revoke", handler.Revoke)
		relationships.GET("/friends", handler.ListFriends)
		relationships.DELETE("/friends/:userID", handler.RemoveFriend)
		relationships.GET("/status/:userID", handler.Status)
		relationships.POST("/refresh", handler.Refresh)
	}
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSendRequestEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store, actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests",
		gin.H{"receiver_id": receiverID})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Request model.FriendRequest `json:"request"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success envelope")
	}
	if resp.Data.Request.Status != model.RequestStatusPending {
		t.Fatalf("expected pending got %q", resp.Data.Request.Status)
	}
	if resp.Data.Request.ReceiverID != receiverID {
		t.Fatalf("unexpected receiver %s", resp.Data.Request.ReceiverID)
	}
}

func TestSendRequestUnknownReceiver(t *testing.T) {
	router := newTestRouter(newMemStore(), actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests",
		gin.H{"receiver_id": strangerID})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", w.Code, w.Body.String())
	}
}

func TestSendRequestInvalidBody(t *testing.T) {
	router := newTestRouter(newMemStore(), actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests",
		gin.H{"receiver_id": "not-a-uuid"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}
}

func TestSendRequestToSelfIsBenign(t *testing.T) {
	router := newTestRouter(newMemStore(), actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests",
		gin.H{"receiver_id": actorID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
}

func TestAcceptEndpoint(t *testing.T) {
	store := newMemStore()
	store.requests["r1"] = &model.FriendRequest{
		ID: "r1", SenderID: receiverID, ReceiverID: actorID, Status: model.RequestStatusPending,
	}
	router := newTestRouter(store, actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests/r1/accept", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/relationships/friends", nil)
	var resp struct {
		Data struct {
			Friends []string `json:"friends"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Friends) != 1 || resp.Data.Friends[0] != receiverID {
		t.Fatalf("expected friendship after accept, got %v", resp.Data.Friends)
	}
}

func TestAcceptUnknownRequest(t *testing.T) {
	router := newTestRouter(newMemStore(), actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests/missing/accept", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeclineAfterAcceptConflicts(t *testing.T) {
	store := newMemStore()
	store.requests["r1"] = &model.FriendRequest{
		ID: "r1", SenderID: receiverID, ReceiverID: actorID, Status: model.RequestStatusPending,
	}
	router := newTestRouter(store, actorID)

	if w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests/r1/accept", nil); w.Code != http.StatusOK {
		t.Fatalf("accept: expected 200 got %d", w.Code)
	}
	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests/r1/decline", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", w.Code, w.Body.String())
	}
}

func TestRevokeEndpoint(t *testing.T) {
	store := newMemStore()
	store.requests["r1"] = &model.FriendRequest{
		ID: "r1", SenderID: actorID, ReceiverID: receiverID, Status: model.RequestStatusPending,
	}
	router := newTestRouter(store, actorID)

	w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/requests/r1/revoke", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/relationships/requests/outgoing?status=revoked", nil)
	var resp struct {
		Data struct {
			Requests []model.FriendRequest `json:"requests"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Requests) != 1 || resp.Data.Requests[0].ID != "r1" {
		t.Fatalf("expected r1 in the revoked bucket, got %v", resp.Data.Requests)
	}
}

func TestListIncomingInvalidStatusFilter(t *testing.T) {
	router := newTestRouter(newMemStore(), actorID)

	w := doJSON(t, router, http.MethodGet, "/api/v1/relationships/requests/incoming?status=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}
}

func TestRemoveFriendEndpoint(t *testing.T) {
	store := newMemStore()
	store.edges[[2]string{actorID, receiverID}] = true
	store.edges[[2]string{receiverID, actorID}] = true
	router := newTestRouter(store, actorID)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/relationships/friends/"+receiverID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/relationships/friends", nil)
	var resp struct {
		Data struct {
			Friends []string `json:"friends"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Friends) != 0 {
		t.Fatalf("expected no friends, got %v", resp.Data.Friends)
	}
}

func TestStatusEndpoint(t *testing.T) {
	store := newMemStore()
	store.requests["r1"] = &model.FriendRequest{
		ID: "r1", SenderID: actorID, ReceiverID: receiverID, Status: model.RequestStatusPending,
	}
	router := newTestRouter(store, actorID)

	w := doJSON(t, router, http.MethodGet, "/api/v1/relationships/status/"+receiverID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Status service.RelationshipStatus `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status.IsFriend {
		t.Fatal("pending request must not report a friendship")
	}
	if resp.Data.Status.Request == nil || resp.Data.Status.Request.Direction != service.DirectionSent {
		t.Fatalf("expected a sent request ref, got %+v", resp.Data.Status.Request)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store, actorID)

	// Prime the session, then land new remote state behind its back.
	if w := doJSON(t, router, http.MethodGet, "/api/v1/relationships/friends", nil); w.Code != http.StatusOK {
		t.Fatalf("prime: expected 200 got %d", w.Code)
	}
	store.mu.Lock()
	store.edges[[2]string{actorID, receiverID}] = true
	store.edges[[2]string{receiverID, actorID}] = true
	store.mu.Unlock()

	if w := doJSON(t, router, http.MethodPost, "/api/v1/relationships/refresh", nil); w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200 got %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/relationships/friends", nil)
	var resp struct {
		Data struct {
			Friends []string `json:"friends"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Friends) != 1 || resp.Data.Friends[0] != receiverID {
		t.Fatalf("expected refreshed friendship, got %v", resp.Data.Friends)
	}
}

func TestParseStatusFilter(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"single", "pending", 1, false},
		{"multiple", "pending,declined", 2, false},
		{"spaced", " pending , revoked ", 2, false},
		{"invalid", "pending,bogus", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			statuses, err := parseStatusFilter(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(statuses) != tc.want {
				t.Fatalf("expected %d statuses got %d", tc.want, len(statuses))
			}
		})
	}
}
