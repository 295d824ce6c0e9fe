package services

import (
	"context"
	"fmt"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"gorm.io/gorm"
)

// Admission caps how many unfinished plans a user may hold. A plan is unfinished while
// it is not completed and its generation has not failed; pending reservations count.
type Admission struct {
	db     *gorm.DB
	locker Locker
	max    int
}

func NewAdmission(db *gorm.DB, locker Locker, max int) *Admission {
	return &Admission{db: db, locker: locker, max: max}
}

func (a *Admission) Max() int { return a.max }

func (a *Admission) CountUnfinished(ctx context.Context, userID uint) (int64, error) {
	return countUnfinished(a.db.WithContext(ctx), userID)
}

func countUnfinished(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&models.LearningPlan{}).
		Where("user_id = ? AND completed = ? AND status <> ?", userID, false, models.PlanFailed).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unfinished plans: %w", err)
	}
	return count, nil
}

// Reserve inserts plan if the user is below the limit. Check and insert run under the
// user's admission lock.
func (a *Admission) Reserve(ctx context.Context, userID uint, plan *models.LearningPlan) error {
	unlock, err := a.locker.Lock(ctx, admissionLockKey(userID))
	if err != nil {
		return err
	}
	defer unlock()

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := countUnfinished(tx, userID)
		if err != nil {
			return err
		}
		if count >= int64(a.max) {
			return utils.LimitExceeded(fmt.Sprintf("Maximum %d unfinished plans allowed", a.max))
		}

		plan.UserID = userID
		if err := tx.Create(plan).Error; err != nil {
			return fmt.Errorf("reserve plan: %w", err)
		}
		return nil
	})
}
