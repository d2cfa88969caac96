package models

import "time"

// URL is a bookmark inside a topic. Position orders it within the topic.
type URL struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TopicID     string    `gorm:"type:varchar(36);not null;index" json:"topic_id"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	URL         string    `json:"url"`
	Title       string    `gorm:"not null" json:"title"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`

	// Relationships
	Tags []Tag `gorm:"many2many:url_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
}

// TagNames returns the labels of the loaded tags.
func (u URL) TagNames() []string {
	names := make([]string, len(u.Tags))
	for i, t := range u.Tags {
		names[i] = t.Name
	}
	return names
}
