package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User and Category must be migrated first as other models depend on them
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&Category{},
		&Tag{},
		&Topic{},
		&URL{},
		&Software{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
