package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Topic is a named, ordered collection of bookmarked URLs owned by a user
type Topic struct {
	ID          string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`

	// Relationships
	URLs []URL `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"urls,omitempty"`
}

// BeforeCreate assigns the topic identity.
func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
