package models

import "time"

// Tag represents a label shared by topic URLs and software entries
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`

	// Relationships
	URLs     []URL      `gorm:"many2many:url_tags;" json:"-"`
	Software []Software `gorm:"many2many:software_tags;" json:"-"`
}
