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

type NotificationRepository interface {
	Create(notification *model.Notification) error
	FindByUserID(userID string, limit, offset int) ([]*model.Notification, error)
	CountUnreadByUserID(userID string) (int64, error)
	MarkAsRead(id, userID string) error
	MarkAllAsRead(userID string) error
}

type notificationRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	notificationCachePrefix      = "notification:user:"
	notificationCountCachePrefix = "notification:unread_count:"
	notificationCacheExpiration  = 5 * time.Minute
)

func NewNotificationRepository(db *gorm.DB, redis *util.RedisClient) NotificationRepository {
	return &notificationRepository{
		db:    db,
		redis: redis,
	}
}

// Create creates a notification
func (r *notificationRepository) Create(notification *model.Notification) error {
	if err := r.db.Create(notification).Error; err != nil {
		return err
	}

	// Invalidate cache
	if r.redis != nil {
		r.invalidateUserCache(notification.UserID)
	}

	return nil
}

// FindByUserID finds notifications for a user, newest first
func (r *notificationRepository) FindByUserID(userID string, limit, offset int) ([]*model.Notification, error) {
	// Only cache the first page
	cacheKey := notificationCachePrefix + userID
	if r.redis != nil && offset == 0 {
		cached, err := r.getListFromCache(cacheKey)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	var notifications []*model.Notification
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}

	if r.redis != nil && offset == 0 {
		r.cacheNotificationList(cacheKey, notifications)
	}

	return notifications, nil
}

// CountUnreadByUserID counts unread notifications for a user
func (r *notificationRepository) CountUnreadByUserID(userID string) (int64, error) {
	if r.redis != nil {
		cached, err := r.redis.Get(notificationCountCachePrefix + userID)
		if err == nil {
			var count int64
			if _, err := fmt.Sscanf(cached, "%d", &count); err == nil {
				return count, nil
			}
		}
	}

	var count int64
	err := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if r.redis != nil {
		r.redis.Set(notificationCountCachePrefix+userID, fmt.Sprintf("%d", count), notificationCacheExpiration)
	}

	return count, nil
}

// MarkAsRead marks one notification as read, scoped to its owner
func (r *notificationRepository) MarkAsRead(id, userID string) error {
	now := time.Now()
	result := r.db.Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	if r.redis != nil {
		r.invalidateUserCache(userID)
	}

	return nil
}

// MarkAllAsRead marks every unread notification for a user as read
func (r *notificationRepository) MarkAllAsRead(userID string) error {
	now := time.Now()
	err := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if r.redis != nil {
		r.invalidateUserCache(userID)
	}

	return nil
}

// Cache helpers
func (r *notificationRepository) cacheNotificationList(key string, notifications []*model.Notification) {
	if r.redis == nil {
		return
	}

	notificationsJSON, err := json.Marshal(notifications)
	if err != nil {
		return
	}

	r.redis.Set(key, string(notificationsJSON), notificationCacheExpiration)
}

func (r *notificationRepository) getListFromCache(key string) ([]*model.Notification, error) {
	if r.redis == nil {
		return nil, fmt.Errorf("redis not available")
	}

	cached, err := r.redis.Get(key)
	if err != nil {
		return nil, err
	}

	var notifications []*model.Notification
	if err := json.Unmarshal([]byte(cached), &notifications); err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) invalidateUserCache(userID string) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(notificationCachePrefix + userID)
	r.redis.Delete(notificationCountCachePrefix + userID)
}
