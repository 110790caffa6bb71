package service

import (
	"encoding/json"
	"log"

	"relgraph/internal/util"
	"relgraph/internal/websocket"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationWorker consumes relationship notification messages from
// RabbitMQ and pushes them to connected WebSocket clients.
type NotificationWorker struct {
	rabbitMQ *util.RabbitMQClient
	wsHub    *websocket.Hub
	stopChan chan struct{}
}

func NewNotificationWorker(rabbitMQ *util.RabbitMQClient, wsHub *websocket.Hub) *NotificationWorker {
	return &NotificationWorker{
		rabbitMQ: rabbitMQ,
		wsHub:    wsHub,
		stopChan: make(chan struct{}),
	}
}

// Start declares the exchange/queue topology and begins consuming.
func (w *NotificationWorker) Start() error {
	if w.rabbitMQ == nil {
		return nil // RabbitMQ not available, worker will not start
	}

	if err := w.rabbitMQ.DeclareExchange(NotificationExchange); err != nil {
		return err
	}
	if err := w.rabbitMQ.DeclareAndBindQueue(NotificationQueueName, NotificationRoutingKey, NotificationExchange); err != nil {
		return err
	}

	channel := w.rabbitMQ.GetChannel()
	msgs, err := channel.Consume(
		NotificationQueueName,
		"relationship_notification_worker",
		false, // auto-ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		log.Println("Notification worker started, consuming messages...")
		for {
			select {
			case <-w.stopChan:
				log.Println("Notification worker stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("Notification queue closed")
					return
				}
				if err := w.processMessage(msg); err != nil {
					log.Printf("Error processing notification message: %v", err)
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// processMessage pushes one queued notification to the WebSocket hub
func (w *NotificationWorker) processMessage(msg amqp.Delivery) error {
	var notificationMsg NotificationMessage
	if err := json.Unmarshal(msg.Body, &notificationMsg); err != nil {
		return err
	}

	if w.wsHub != nil {
		payload := map[string]interface{}{
			"type":      notificationMsg.Type,
			"user_id":   notificationMsg.UserID,
			"title":     notificationMsg.Title,
			"message":   notificationMsg.Message,
			"timestamp": notificationMsg.Timestamp,
		}
		if notificationMsg.Data != nil {
			payload["data"] = notificationMsg.Data
		}
		w.wsHub.BroadcastToUser(notificationMsg.UserID, payload)
	}

	return nil
}

// Stop stops the notification worker
func (w *NotificationWorker) Stop() {
	close(w.stopChan)
}
