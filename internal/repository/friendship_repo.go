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

type FriendshipRepository interface {
	InsertPair(userID, otherID string) error
	FindByUserID(userID string) ([]*model.Friendship, error)
	PairExists(userID, otherID string) (bool, error)
	DeletePair(userID, otherID string) (int64, error)
}

type friendshipRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	friendshipCachePrefix     = "friendship:user:"
	friendshipCacheExpiration = 15 * time.Minute
)

func NewFriendshipRepository(db *gorm.DB, redis *util.RedisClient) FriendshipRepository {
	return &friendshipRepository{
		db:    db,
		redis: redis,
	}
}

// InsertPair writes both directed rows of a friendship edge in one
// transaction. Rows that already exist are left alone, so a repair after a
// partial accept converges instead of duplicating.
func (r *friendshipRepository) InsertPair(userID, otherID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, pair := range [][2]string{{userID, otherID}, {otherID, userID}} {
			var existing model.Friendship
			err := tx.Where("user_id = ? AND friend_id = ?", pair[0], pair[1]).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			row := &model.Friendship{UserID: pair[0], FriendID: pair[1]}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Invalidate cache
	if r.redis != nil {
		r.invalidateUserCache(userID)
		r.invalidateUserCache(otherID)
	}

	return nil
}

// FindByUserID finds all friendship rows where the user is the subject
func (r *friendshipRepository) FindByUserID(userID string) ([]*model.Friendship, error) {
	// Try cache first
	if r.redis != nil {
		cached, err := r.getListFromCache(friendshipCachePrefix + userID)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	var friendships []*model.Friendship
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&friendships).Error
	if err != nil {
		return nil, err
	}

	// Cache the result
	if r.redis != nil {
		r.cacheFriendshipList(friendshipCachePrefix+userID, friendships)
	}

	return friendships, nil
}

// PairExists reports whether a friendship row exists in either direction
func (r *friendshipRepository) PairExists(userID, otherID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Friendship{}).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, otherID, otherID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeletePair removes both directed rows of a friendship edge and reports how
// many rows were actually deleted. A healthy edge deletes two; callers treat
// anything else as a data-integrity signal.
func (r *friendshipRepository) DeletePair(userID, otherID string) (int64, error) {
	result := r.db.Where(
		"(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
		userID, otherID, otherID, userID,
	).Delete(&model.Friendship{})
	if result.Error != nil {
		return 0, result.Error
	}

	// Invalidate cache
	if r.redis != nil {
		r.invalidateUserCache(userID)
		r.invalidateUserCache(otherID)
	}

	return result.RowsAffected, nil
}

// Cache helpers
func (r *friendshipRepository) cacheFriendshipList(key string, friendships []*model.Friendship) {
	if r.redis == nil {
		return
	}

	friendshipsJSON, err := json.Marshal(friendships)
	if err != nil {
		return
	}

	r.redis.Set(key, string(friendshipsJSON), friendshipCacheExpiration)
}

func (r *friendshipRepository) getListFromCache(key string) ([]*model.Friendship, error) {
	if r.redis == nil {
		return nil, fmt.Errorf("redis not available")
	}

	cached, err := r.redis.Get(key)
	if err != nil {
		return nil, err
	}

	var friendships []*model.Friendship
	if err := json.Unmarshal([]byte(cached), &friendships); err != nil {
		return nil, err
	}

	return friendships, nil
}

func (r *friendshipRepository) invalidateUserCache(userID string) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(friendshipCachePrefix + userID)
}
