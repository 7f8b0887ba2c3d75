package model

import "time"

// Schedule represents one dated entry in the tracker. Depending on its flags
// it is either a plain one-off event, a single occurrence materialized from a
// Routine, or a birthday anchor whose month/day get re-projected onto the
// viewing year before display.
type Schedule struct {
	ID            uint      `gorm:"primaryKey"`
	Title         string    `gorm:"not null"`
	Timestamp     time.Time `gorm:"index"`
	Priority      int       `gorm:"default:1"` // 1=low .. 3=high
	IsCompleted   bool      `gorm:"default:false"`
	IsLunar       bool      `gorm:"default:false"`
	IsBirthday    bool      `gorm:"default:false"`
	IsFromRoutine bool      `gorm:"default:false"`
	RoutineID     *uint     `gorm:"index"`
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
