package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Friendship is one directed half of a confirmed relationship. Every edge is
// stored as two rows (A->B and B->A); callers collapse the pair to a single
// undirected edge.
type Friendship struct {
	ID        string    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_friendship_pair" json:"user_id"`
	FriendID  string    `gorm:"type:uuid;not null;index:idx_friendship_pair" json:"friend_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	User   User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Friend User `gorm:"foreignKey:FriendID;references:ID" json:"friend,omitempty"`
}

// BeforeCreate hook to generate UUID
func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Friendship) TableName() string {
	return "friendships"
}
