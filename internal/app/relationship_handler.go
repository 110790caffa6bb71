package app

import (
	"errors"
	"net/http"
	"strings"

	"relgraph/internal/model"
	"relgraph/internal/repository"
	"relgraph/internal/service"
	"relgraph/internal/util"

	"github.com/gin-gonic/gin"
)

// RelationshipHandler exposes the relationship graph operations. This is the
// only write path to the friendship and friend request tables; invariants
// live in the service layer, so nothing else may touch those tables.
type RelationshipHandler struct {
	registry *service.SessionRegistry
	userRepo repository.UserRepository
}

func NewRelationshipHandler(registry *service.SessionRegistry, userRepo repository.UserRepository) *RelationshipHandler {
	return &RelationshipHandler{
		registry: registry,
		userRepo: userRepo,
	}
}

// graphFor resolves the per-actor service instance for the authenticated user.
func (h *RelationshipHandler) graphFor(c *gin.Context) (service.RelationshipService, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return nil, false
	}

	svc, err := h.registry.ForActor(userID.(string))
	if err != nil {
		util.ErrorResponse(c, http.StatusServiceUnavailable, "Relationship data unavailable", nil)
		return nil, false
	}
	return svc, true
}

// respondServiceError maps the service failure taxonomy to HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		util.NotFound(c, err.Error())
	case errors.Is(err, service.ErrAlreadyFinalized):
		util.ErrorResponse(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrRemoteUnavailable):
		util.ErrorResponse(c, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.Is(err, service.ErrRemoteWriteFailed):
		util.ErrorResponse(c, http.StatusBadGateway, err.Error(), nil)
	default:
		util.BadRequest(c, err.Error())
	}
}

// SendRequest handles sending a friend request
// POST /api/v1/relationships/requests
func (h *RelationshipHandler) SendRequest(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	// Receivers must exist; the graph itself only tracks IDs
	if _, err := h.userRepo.FindByID(req.ReceiverID); err != nil {
		util.NotFound(c, "Receiver not found")
		return
	}

	request, err := svc.SendRequest(req.ReceiverID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if request == nil {
		// Benign no-op: self-request or already friends
		util.SuccessResponse(c, http.StatusOK, "No request needed", gin.H{"status": svc.Status(req.ReceiverID)})
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Friend request sent", gin.H{"request": request})
}

// ListIncoming handles listing received requests
// GET /api/v1/relationships/requests/incoming?status=pending,accepted
func (h *RelationshipHandler) ListIncoming(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	statuses, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	requests := svc.ListIncomingRequests(statuses...)
	util.SuccessResponse(c, http.StatusOK, "Incoming requests retrieved", gin.H{"requests": requests})
}

// ListOutgoing handles listing sent requests
// GET /api/v1/relationships/requests/outgoing?status=pending
func (h *RelationshipHandler) ListOutgoing(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	statuses, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	requests := svc.ListOutgoingRequests(statuses...)
	util.SuccessResponse(c, http.StatusOK, "Outgoing requests retrieved", gin.H{"requests": requests})
}

// Accept handles accepting a received request
// POST /api/v1/relationships/requests/:id/accept
func (h *RelationshipHandler) Accept(c *gin.Context) {
	h.respond(c, service.ActionAccept)
}

// Decline handles declining a received request
// POST /api/v1/relationships/requests/:id/decline
func (h *RelationshipHandler) Decline(c *gin.Context) {
	h.respond(c, service.ActionDecline)
}

func (h *RelationshipHandler) respond(c *gin.Context, action string) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	requestID := c.Param("id")
	if requestID == "" {
		util.BadRequest(c, "Request ID is required")
		return
	}

	request, err := svc.Respond(requestID, action)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend request "+request.Status, gin.H{"request": request})
}

// Revoke handles withdrawing a sent request
// POST /api/v1/relationships/requests/:id/revoke
func (h *RelationshipHandler) Revoke(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	requestID := c.Param("id")
	if requestID == "" {
		util.BadRequest(c, "Request ID is required")
		return
	}

	request, err := svc.Revoke(requestID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend request revoked", gin.H{"request": request})
}

// ListFriends handles listing the current friend set
// GET /api/v1/relationships/friends
func (h *RelationshipHandler) ListFriends(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friends retrieved", gin.H{"friends": svc.ListFriends()})
}

// RemoveFriend handles removing a friend
// DELETE /api/v1/relationships/friends/:userID
func (h *RelationshipHandler) RemoveFriend(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	otherID := c.Param("userID")
	if otherID == "" {
		util.BadRequest(c, "User ID is required")
		return
	}

	if err := svc.RemoveFriend(otherID); err != nil {
		respondServiceError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend removed", nil)
}

// Status handles the composite relationship status read
// GET /api/v1/relationships/status/:userID
func (h *RelationshipHandler) Status(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	otherID := c.Param("userID")
	if otherID == "" {
		util.BadRequest(c, "User ID is required")
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Relationship status retrieved", gin.H{"status": svc.Status(otherID)})
}

// Refresh handles reloading the projection from the store
// POST /api/v1/relationships/refresh
func (h *RelationshipHandler) Refresh(c *gin.Context) {
	svc, ok := h.graphFor(c)
	if !ok {
		return
	}

	if err := svc.Refresh(); err != nil {
		respondServiceError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Relationship data refreshed", nil)
}

var validStatuses = map[string]bool{
	model.RequestStatusPending:  true,
	model.RequestStatusAccepted: true,
	model.RequestStatusDeclined: true,
	model.RequestStatusRevoked:  true,
}

// parseStatusFilter splits a comma-separated status list. Empty means all.
func parseStatusFilter(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	statuses := make([]string, 0, len(parts))
	for _, part := range parts {
		status := strings.TrimSpace(part)
		if status == "" {
			continue
		}
		if !validStatuses[status] {
			return nil, errors.New("invalid status filter: " + status)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
