package model

import "time"

// Weekday numbering follows ISO-8601: Monday=1 .. Sunday=7.
type Weekdays []int

// Routine is a weekly recurrence rule. Creating one materializes concrete
// Schedule rows (IsFromRoutine=true) for a fixed forward horizon; deleting it
// cascades to those rows.
type Routine struct {
	ID        uint     `gorm:"primaryKey"`
	Title     string   `gorm:"not null"`
	Weekdays  Weekdays `gorm:"serializer:json"`
	Hour      int
	Minute    int
	CreatedAt time.Time

	Schedules []Schedule `gorm:"foreignKey:RoutineID;constraint:OnDelete:CASCADE"`
}
