package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendRequest struct {
	ID         string    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SenderID   string    `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID string    `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Status     string    `gorm:"type:varchar(20);default:'pending';not null" json:"status"` // pending, accepted, declined, revoked
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Sender   User `gorm:"foreignKey:SenderID;references:ID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID;references:ID" json:"receiver,omitempty"`
}

// BeforeCreate hook to generate UUID
func (fr *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if fr.ID == "" {
		fr.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// FriendRequest status constants. Everything except pending is terminal:
// requests are never deleted and never transition out of a terminal status.
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusDeclined = "declined"
	RequestStatusRevoked  = "revoked"
)

// IsTerminal reports whether the request can no longer transition.
func (fr *FriendRequest) IsTerminal() bool {
	return fr.Status != RequestStatusPending
}

// Involves reports whether userID is the sender or the receiver.
func (fr *FriendRequest) Involves(userID string) bool {
	return fr.SenderID == userID || fr.ReceiverID == userID
}

// OtherParty returns the counterpart of userID on this request.
func (fr *FriendRequest) OtherParty(userID string) string {
	if fr.SenderID == userID {
		return fr.ReceiverID
	}
	return fr.SenderID
}
