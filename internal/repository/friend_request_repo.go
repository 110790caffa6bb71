package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relgraph/internal/model"
	"relgraph/internal/util"

	"gorm.io/gorm"
)

type FriendRequestRepository interface {
	Insert(request *model.FriendRequest) error
	FindByID(id string) (*model.FriendRequest, error)
	FindBySenderID(senderID string) ([]*model.FriendRequest, error)
	FindByReceiverID(receiverID string) ([]*model.FriendRequest, error)
	FindPendingBetween(userID, otherID string) (*model.FriendRequest, error)
	UpdateStatus(id, from, to string) error
}

type friendRequestRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	requestSentCachePrefix     = "friend_request:sent:"
	requestReceivedCachePrefix = "friend_request:received:"
	requestCacheExpiration     = 15 * time.Minute
)

func NewFriendRequestRepository(db *gorm.DB, redis *util.RedisClient) FriendRequestRepository {
	return &friendRequestRepository{
		db:    db,
		redis: redis,
	}
}

// Insert creates a pending friend request. The unique-pending-per-pair
// invariant is re-checked inside the transaction so the store, not the
// caller's cache, is the final arbiter; a duplicate returns ErrConflict.
func (r *friendRequestRepository) Insert(request *model.FriendRequest) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing model.FriendRequest
		err := tx.Where(
			"((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status = ?",
			request.SenderID, request.ReceiverID, request.ReceiverID, request.SenderID,
			model.RequestStatusPending,
		).First(&existing).Error
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(request).Error
	})
	if err != nil {
		return err
	}

	// Invalidate cache
	if r.redis != nil {
		r.invalidateSentCache(request.SenderID)
		r.invalidateReceivedCache(request.ReceiverID)
	}

	return nil
}

// FindByID finds a friend request by ID
func (r *friendRequestRepository) FindByID(id string) (*model.FriendRequest, error) {
	var request model.FriendRequest
	err := r.db.Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// FindBySenderID finds all requests sent by a user, any status
func (r *friendRequestRepository) FindBySenderID(senderID string) ([]*model.FriendRequest, error) {
	// Try cache first
	if r.redis != nil {
		cached, err := r.getListFromCache(requestSentCachePrefix + senderID)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	var requests []*model.FriendRequest
	err := r.db.Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}

	// Cache the result
	if r.redis != nil {
		r.cacheRequestList(requestSentCachePrefix+senderID, requests)
	}

	return requests, nil
}

// FindByReceiverID finds all requests received by a user, any status
func (r *friendRequestRepository) FindByReceiverID(receiverID string) ([]*model.FriendRequest, error) {
	// Try cache first
	if r.redis != nil {
		cached, err := r.getListFromCache(requestReceivedCachePrefix + receiverID)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	var requests []*model.FriendRequest
	err := r.db.Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}

	// Cache the result
	if r.redis != nil {
		r.cacheRequestList(requestReceivedCachePrefix+receiverID, requests)
	}

	return requests, nil
}

// FindPendingBetween finds the pending request between two users in either
// direction, if any.
func (r *friendRequestRepository) FindPendingBetween(userID, otherID string) (*model.FriendRequest, error) {
	var request model.FriendRequest
	err := r.db.Where(
		"((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status = ?",
		userID, otherID, otherID, userID, model.RequestStatusPending,
	).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateStatus transitions a request from one status to another as a
// conditional write. ErrConflict means the request was not in the expected
// status (it already transitioned); ErrNotFound means the row is absent.
func (r *friendRequestRepository) UpdateStatus(id, from, to string) error {
	result := r.db.Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var request model.FriendRequest
		if err := r.db.Where("id = ?", id).First(&request).Error; err != nil {
			return ErrNotFound
		}
		return ErrConflict
	}

	// Invalidate cache
	if r.redis != nil {
		var request model.FriendRequest
		if err := r.db.Where("id = ?", id).First(&request).Error; err == nil {
			r.invalidateSentCache(request.SenderID)
			r.invalidateReceivedCache(request.ReceiverID)
		}
	}

	return nil
}

// Cache helpers
func (r *friendRequestRepository) cacheRequestList(key string, requests []*model.FriendRequest) {
	if r.redis == nil {
		return
	}

	requestsJSON, err := json.Marshal(requests)
	if err != nil {
		return
	}

	r.redis.Set(key, string(requestsJSON), requestCacheExpiration)
}

func (r *friendRequestRepository) getListFromCache(key string) ([]*model.FriendRequest, error) {
	if r.redis == nil {
		return nil, fmt.Errorf("redis not available")
	}

	cached, err := r.redis.Get(key)
	if err != nil {
		return nil, err
	}

	var requests []*model.FriendRequest
	if err := json.Unmarshal([]byte(cached), &requests); err != nil {
		return nil, err
	}

	return requests, nil
}

func (r *friendRequestRepository) invalidateSentCache(userID string) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(requestSentCachePrefix + userID)
}

func (r *friendRequestRepository) invalidateReceivedCache(userID string) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(requestReceivedCachePrefix + userID)
}
