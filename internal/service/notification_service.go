package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"relgraph/internal/model"
	"relgraph/internal/repository"
	"relgraph/internal/util"
)

type NotificationService interface {
	SendRequestReceivedNotification(receiverID, senderID, senderName, requestID string) error
	SendRequestAcceptedNotification(receiverID, senderID, senderName, requestID string) error
	SendRequestDeclinedNotification(receiverID, senderID, senderName, requestID string) error
	SendRequestRevokedNotification(receiverID, senderID, senderName, requestID string) error
	SendFriendRemovedNotification(receiverID, senderID, senderName string) error
	GetNotificationsByUserID(userID string, limit, offset int) ([]*model.Notification, error)
	GetUnreadCount(userID string) (int64, error)
	MarkAsRead(notificationID, userID string) error
	MarkAllAsRead(userID string) error
	SetWSHub(hub interface {
		BroadcastToUser(string, map[string]interface{})
	})
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	rabbitMQ  *util.RabbitMQClient
	wsHub     interface {
		BroadcastToUser(string, map[string]interface{})
	}
}

// NotificationMessage is the RabbitMQ message envelope
type NotificationMessage struct {
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

const (
	NotificationQueueName  = "relationship_notification_queue"
	NotificationExchange   = "relationship_notification_exchange"
	NotificationRoutingKey = "relationship"
)

func NewNotificationService(notifRepo repository.NotificationRepository, rabbitMQ *util.RabbitMQClient) NotificationService {
	return &notificationService{
		notifRepo: notifRepo,
		rabbitMQ:  rabbitMQ,
		wsHub:     nil, // Will be set via SetWSHub
	}
}

// SetWSHub sets the WebSocket hub for realtime delivery
func (s *notificationService) SetWSHub(hub interface {
	BroadcastToUser(string, map[string]interface{})
}) {
	s.wsHub = hub
}

// sendNotification persists the notification and publishes it to RabbitMQ;
// the worker pushes it to WebSocket clients.
func (s *notificationService) sendNotification(
	userID, notifType, title, message string,
	data map[string]interface{},
) error {
	notification := &model.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		IsRead:  false,
	}

	if data != nil {
		if senderID, ok := data["sender_id"].(string); ok {
			notification.SenderID = &senderID
		}
		if targetID, ok := data["request_id"].(string); ok {
			notification.TargetID = &targetID
		}

		dataJSON, err := json.Marshal(data)
		if err == nil {
			notification.Data = string(dataJSON)
		}
	}

	if err := s.notifRepo.Create(notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.rabbitMQ != nil {
		msg := NotificationMessage{
			UserID:    userID,
			Type:      notifType,
			Title:     title,
			Message:   message,
			Data:      data,
			Timestamp: time.Now(),
		}

		msgJSON, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Failed to marshal notification message: %v", err)
			return err
		}

		if err := s.rabbitMQ.Publish(NotificationExchange, NotificationRoutingKey, msgJSON); err != nil {
			// Notification is already saved in DB; delivery is best-effort
			log.Printf("Failed to publish notification to RabbitMQ: %v", err)
		}
	}

	return nil
}

// SendRequestReceivedNotification notifies the receiver of a new friend request
func (s *notificationService) SendRequestReceivedNotification(
	receiverID, senderID, senderName, requestID string,
) error {
	title := "New Friend Request"
	message := fmt.Sprintf("%s sent you a friend request", senderName)
	data := map[string]interface{}{
		"request_id":  requestID,
		"sender_id":   senderID,
		"sender_name": senderName,
	}

	return s.sendNotification(receiverID, model.NotificationTypeRequestReceived, title, message, data)
}

// SendRequestAcceptedNotification notifies the original sender their request was accepted
func (s *notificationService) SendRequestAcceptedNotification(
	receiverID, senderID, senderName, requestID string,
) error {
	title := "Friend Request Accepted"
	message := fmt.Sprintf("%s accepted your friend request", senderName)
	data := map[string]interface{}{
		"request_id":  requestID,
		"sender_id":   senderID,
		"sender_name": senderName,
	}

	return s.sendNotification(receiverID, model.NotificationTypeRequestAccepted, title, message, data)
}

// SendRequestDeclinedNotification notifies the original sender their request was declined
func (s *notificationService) SendRequestDeclinedNotification(
	receiverID, senderID, senderName, requestID string,
) error {
	title := "Friend Request Declined"
	message := fmt.Sprintf("%s declined your friend request", senderName)
	data := map[string]interface{}{
		"request_id":  requestID,
		"sender_id":   senderID,
		"sender_name": senderName,
	}

	return s.sendNotification(receiverID, model.NotificationTypeRequestDeclined, title, message, data)
}

// SendRequestRevokedNotification notifies the receiver the sender withdrew the request
func (s *notificationService) SendRequestRevokedNotification(
	receiverID, senderID, senderName, requestID string,
) error {
	title := "Friend Request Withdrawn"
	message := fmt.Sprintf("%s withdrew their friend request", senderName)
	data := map[string]interface{}{
		"request_id":  requestID,
		"sender_id":   senderID,
		"sender_name": senderName,
	}

	return s.sendNotification(receiverID, model.NotificationTypeRequestRevoked, title, message, data)
}

// SendFriendRemovedNotification notifies a user they were removed as a friend
func (s *notificationService) SendFriendRemovedNotification(
	receiverID, senderID, senderName string,
) error {
	title := "Friend Removed"
	message := fmt.Sprintf("%s removed you from their friends list", senderName)
	data := map[string]interface{}{
		"sender_id":   senderID,
		"sender_name": senderName,
	}

	return s.sendNotification(receiverID, model.NotificationTypeFriendRemoved, title, message, data)
}

// GetNotificationsByUserID gets notifications for a user with pagination
func (s *notificationService) GetNotificationsByUserID(userID string, limit, offset int) ([]*model.Notification, error) {
	return s.notifRepo.FindByUserID(userID, limit, offset)
}

// GetUnreadCount gets unread notification count for a user
func (s *notificationService) GetUnreadCount(userID string) (int64, error) {
	return s.notifRepo.CountUnreadByUserID(userID)
}

// MarkAsRead marks a notification as read
func (s *notificationService) MarkAsRead(notificationID, userID string) error {
	return s.notifRepo.MarkAsRead(notificationID, userID)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *notificationService) MarkAllAsRead(userID string) error {
	return s.notifRepo.MarkAllAsRead(userID)
}
