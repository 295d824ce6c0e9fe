package models

import (
	"time"

	"gorm.io/gorm"
)

// ActivityLog is append-only: every submission adds a row.
type ActivityLog struct {
	gorm.Model
	UserID      uint       `gorm:"index;not null"`
	PlanID      uint       `gorm:"index;not null"`
	Activity    string     `gorm:"not null"`
	Completed   bool       `gorm:"not null;default:false"`
	CompletedAt *time.Time `gorm:"index"`
	Notes       string     `gorm:"type:text"`
}

// ActivityCompletion credits one distinct activity of a plan, at most once.
type ActivityCompletion struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"index;not null"`
	PlanID      uint      `gorm:"uniqueIndex:idx_plan_activity;not null"`
	ActivityKey string    `gorm:"uniqueIndex:idx_plan_activity;not null"`
	CompletedAt time.Time `gorm:"not null"`
}

func (ActivityCompletion) TableName() string {
	return "activity_completions"
}
