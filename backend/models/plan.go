package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlanStatus string

const (
	PlanPending PlanStatus = "pending" // reserved, generation in flight
	PlanReady   PlanStatus = "ready"
	PlanFailed  PlanStatus = "failed"
)

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// LearningPlan invariant: Completed iff Progress >= 100.
type LearningPlan struct {
	gorm.Model
	UserID        uint                            `gorm:"index;not null"`
	Goal          string                          `gorm:"not null"`
	DurationDays  int                             `gorm:"not null;default:30"`
	Difficulty    string                          `gorm:"not null;default:intermediate"`
	Content       datatypes.JSONType[PlanContent] `gorm:"column:plan"`
	Progress      float64                         `gorm:"not null;default:0"`
	Completed     bool                            `gorm:"index;not null;default:false"`
	CompletedAt   *time.Time
	Status        PlanStatus `gorm:"index;not null;default:ready"`
	FailureReason string
}

func (p *LearningPlan) PlanContent() PlanContent {
	return p.Content.Data()
}

func (p *LearningPlan) SetPlanContent(content PlanContent) {
	p.Content = datatypes.NewJSONType(content)
}
