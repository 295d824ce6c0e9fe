package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"gorm.io/gorm"
)

// StreakService keeps User.StreakDays counting consecutive active days.
type StreakService struct {
	db     *gorm.DB
	locker Locker
	loc    *time.Location
	log    *utils.Logger
	now    func() time.Time
}

func NewStreakService(db *gorm.DB, locker Locker, loc *time.Location, log *utils.Logger) *StreakService {
	if loc == nil {
		loc = time.Local
	}
	return &StreakService{
		db:     db,
		locker: locker,
		loc:    loc,
		log:    log.With("service", "StreakService"),
		now:    time.Now,
	}
}

// UpdateStreak applies today's activity to the user's streak. A missing user is a no-op.
func (s *StreakService) UpdateStreak(ctx context.Context, userID uint) error {
	unlock, err := s.locker.Lock(ctx, streakLockKey(userID))
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("load user: %w", err)
		}

		now := s.now()
		streak := NextStreak(user.StreakDays, user.LastActivity, now, s.loc)
		if err := tx.Model(&user).Updates(map[string]interface{}{
			"streak_days":   streak,
			"last_activity": now,
		}).Error; err != nil {
			return fmt.Errorf("save streak: %w", err)
		}

		if streak != user.StreakDays {
			s.log.Debug("streak updated", "user_id", userID, "from", user.StreakDays, "to", streak)
		}
		return nil
	})
}

// NextStreak: activity yesterday extends the streak, activity today keeps it, anything
// else (including no previous activity) starts over at 1.
func NextStreak(current int, lastActivity *time.Time, now time.Time, loc *time.Location) int {
	if lastActivity == nil {
		return 1
	}
	today := calendarDay(now, loc)
	last := calendarDay(*lastActivity, loc)

	switch {
	case last.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	case !last.Equal(today):
		return 1
	default:
		return current
	}
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
