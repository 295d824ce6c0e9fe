package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type DailyActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ProgressStats struct {
	TotalPlans     int             `json:"total_plans"`
	CompletedPlans int             `json:"completed_plans"`
	InProgress     int             `json:"in_progress"`
	WeeklyActivity []DailyActivity `json:"weekly_activity"`
	CompletionRate float64         `json:"completion_rate"`
	StreakDays     int             `json:"streak_days"`
}

const weeklyWindow = 7 * 24 * time.Hour

type AnalyticsService struct {
	db  *gorm.DB
	loc *time.Location
	log *utils.Logger
	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB, loc *time.Location, log *utils.Logger) *AnalyticsService {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsService{db: db, loc: loc, log: log.With("service", "AnalyticsService"), now: time.Now}
}

// ProgressStats aggregates plan counts, the trailing week of completions, the overall
// completion rate and the stored streak. Failed generations are left out.
func (s *AnalyticsService) ProgressStats(ctx context.Context, userID uint) (*ProgressStats, error) {
	var (
		user        models.User
		plans       []models.LearningPlan
		credited    int64
		completions []time.Time
	)
	since := s.now().Add(-weeklyWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.WithContext(gctx).Select("id", "streak_days").First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.WithContext(gctx).
			Where("user_id = ? AND status <> ?", userID, models.PlanFailed).
			Find(&plans).Error
		if err != nil {
			return fmt.Errorf("load plans: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.WithContext(gctx).Model(&models.ActivityCompletion{}).
			Where("user_id = ?", userID).
			Count(&credited).Error
		if err != nil {
			return fmt.Errorf("count completions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.WithContext(gctx).Model(&models.ActivityLog{}).
			Where("user_id = ? AND completed = ? AND completed_at >= ?", userID, true, since).
			Pluck("completed_at", &completions).Error
		if err != nil {
			return fmt.Errorf("load weekly activity: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &ProgressStats{
		TotalPlans:     len(plans),
		WeeklyActivity: groupByDay(completions, s.loc),
		StreakDays:     user.StreakDays,
	}
	total := 0
	for i := range plans {
		if plans[i].Completed {
			stats.CompletedPlans++
		}
		total += plans[i].PlanContent().TotalActivities()
	}
	stats.InProgress = stats.TotalPlans - stats.CompletedPlans
	stats.CompletionRate = CompletionRate(credited, total)
	return stats, nil
}

// CompletionRate is completed/total*100 rounded to 2 decimals, 0 when total is 0.
func CompletionRate(completed int64, total int) float64 {
	if total <= 0 {
		return 0
	}
	rate := float64(completed) / float64(total) * 100
	return math.Round(rate*100) / 100
}

// groupByDay counts timestamps per calendar date. Days without activity are absent.
func groupByDay(times []time.Time, loc *time.Location) []DailyActivity {
	counts := make(map[string]int)
	for _, t := range times {
		counts[t.In(loc).Format("2006-01-02")]++
	}
	days := make([]DailyActivity, 0, len(counts))
	for date, n := range counts {
		days = append(days, DailyActivity{Date: date, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
