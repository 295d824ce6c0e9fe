package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LogActivityInput struct {
	PlanID    uint   `json:"plan_id" validate:"required"`
	Activity  string `json:"activity" validate:"required,max=500"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type ActivityResult struct {
	PlanID      uint       `json:"plan_id"`
	ActivityKey string     `json:"activity_key"`
	Credited    bool       `json:"credited"`
	Progress    float64    `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ProgressService records activity events and keeps plan progress in step with the
// distinct activities completed.
type ProgressService struct {
	db      *gorm.DB
	locker  Locker
	tasks   *TaskRunner
	streaks *StreakService
	log     *utils.Logger
	now     func() time.Time
}

func NewProgressService(db *gorm.DB, locker Locker, tasks *TaskRunner, streaks *StreakService, log *utils.Logger) *ProgressService {
	return &ProgressService{
		db:      db,
		locker:  locker,
		tasks:   tasks,
		streaks: streaks,
		log:     log.With("service", "ProgressService"),
		now:     time.Now,
	}
}

// LogActivity appends an activity log row. A completed event also credits the activity
// (once per plan) and recomputes progress; the user's streak is then updated in the
// background.
func (s *ProgressService) LogActivity(ctx context.Context, userID uint, input LogActivityInput) (*ActivityResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, planLockKey(input.PlanID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *ActivityResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := findOwnedPlan(tx, userID, input.PlanID)
		if err != nil {
			return err
		}
		if plan.Status != models.PlanReady {
			return utils.Validation("Learning plan is not ready")
		}

		content := plan.PlanContent()
		key, err := content.Resolve(input.Activity)
		if err != nil {
			if errors.Is(err, models.ErrAmbiguousActivity) {
				return utils.Validation("Activity matches several plan entries, use its key (category#position)")
			}
			return utils.Validation("Activity is not part of this learning plan")
		}

		now := s.now()
		entry := models.ActivityLog{
			UserID:    userID,
			PlanID:    plan.ID,
			Activity:  key,
			Completed: input.Completed,
			Notes:     input.Notes,
		}
		if input.Completed {
			entry.CompletedAt = &now
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append activity log: %w", err)
		}

		result = &ActivityResult{
			PlanID:      plan.ID,
			ActivityKey: key,
			Progress:    plan.Progress,
			Completed:   plan.Completed,
			CompletedAt: plan.CompletedAt,
		}
		if !input.Completed {
			return nil
		}

		credited, err := creditActivity(tx, userID, plan.ID, key, now)
		if err != nil {
			return err
		}
		result.Credited = credited

		return recomputeProgress(tx, plan, content.TotalActivities(), now, result)
	})
	if err != nil {
		return nil, err
	}

	if input.Completed {
		s.tasks.Go("update_streak", func(ctx context.Context) error {
			return s.streaks.UpdateStreak(ctx, userID)
		})
	}
	return result, nil
}

// creditActivity inserts the (plan, activity) completion unless it already exists.
func creditActivity(tx *gorm.DB, userID, planID uint, key string, now time.Time) (bool, error) {
	completion := models.ActivityCompletion{
		UserID:      userID,
		PlanID:      planID,
		ActivityKey: key,
		CompletedAt: now,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_id"}, {Name: "activity_key"}},
		DoNothing: true,
	}).Create(&completion)
	if res.Error != nil {
		return false, fmt.Errorf("credit activity: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func recomputeProgress(tx *gorm.DB, plan *models.LearningPlan, total int, now time.Time, result *ActivityResult) error {
	var completed int64
	if err := tx.Model(&models.ActivityCompletion{}).Where("plan_id = ?", plan.ID).Count(&completed).Error; err != nil {
		return fmt.Errorf("count completions: %w", err)
	}

	progress := ComputeProgress(completed, total)
	updates := map[string]interface{}{"progress": progress}
	if progress >= 100 && !plan.Completed {
		updates["completed"] = true
		updates["completed_at"] = now
		plan.Completed = true
		plan.CompletedAt = &now
	}
	if err := tx.Model(plan).Updates(updates).Error; err != nil {
		return fmt.Errorf("update plan progress: %w", err)
	}
	plan.Progress = progress

	result.Progress = plan.Progress
	result.Completed = plan.Completed
	result.CompletedAt = plan.CompletedAt
	return nil
}

// ComputeProgress is completed/total as a percentage in [0, 100]; 0 for an empty plan.
func ComputeProgress(completed int64, total int) float64 {
	if total <= 0 || completed <= 0 {
		return 0
	}
	progress := float64(completed) / float64(total) * 100
	if progress > 100 {
		return 100
	}
	return progress
}
