package model

import "time"

// Diary is a date-keyed journal entry. It has no recurrence semantics.
type Diary struct {
	ID         uint      `gorm:"primaryKey"`
	Date       time.Time `gorm:"uniqueIndex"` // midnight local time of the day it belongs to
	Content    string
	ImagePaths []string `gorm:"serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
