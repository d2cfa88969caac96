package models

import "time"

// Category groups software entries. A category that is still referenced
// cannot be deleted.
type Category struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`

	// Relationships
	Software []Software `gorm:"foreignKey:CategoryID" json:"-"`
}
