package models

import "time"

// Software is a catalog entry managed by admins
type Software struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"not null" json:"name"`
	Website     string    `gorm:"not null" json:"website"`
	Description string    `json:"description"`
	CategoryID  uint      `gorm:"not null;index" json:"category_id"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category"`
	Tags     []Tag    `gorm:"many2many:software_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
}

// TableName keeps the table name singular; "software" has no plural.
func (Software) TableName() string {
	return "software"
}
