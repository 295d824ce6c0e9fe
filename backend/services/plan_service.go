package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnplan/backend/generator"
	"learnplan/backend/models"
	"learnplan/backend/utils"

	"gorm.io/gorm"
)

type CreatePlanInput struct {
	Goal         string `json:"goal" validate:"required,max=500"`
	DurationDays int    `json:"duration_days" validate:"min=1,max=365"`
	Difficulty   string `json:"difficulty" validate:"oneof=beginner intermediate advanced"`
}

// List filters accepted by PlanService.List.
const (
	PlanFilterAll        = ""
	PlanFilterCompleted  = "completed"
	PlanFilterInProgress = "in_progress"
	PlanFilterFailed     = "failed"
)

type PlanService struct {
	db        *gorm.DB
	admission *Admission
	generator generator.PlanGenerator
	timeout   time.Duration
	log       *utils.Logger
	now       func() time.Time
}

func NewPlanService(db *gorm.DB, admission *Admission, gen generator.PlanGenerator, timeout time.Duration, log *utils.Logger) *PlanService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PlanService{
		db:        db,
		admission: admission,
		generator: gen,
		timeout:   timeout,
		log:       log.With("service", "PlanService"),
		now:       time.Now,
	}
}

// Create reserves a pending plan, asks the generator for its content and stores it.
// When generation fails the plan is kept with status failed and a ServiceUnavailable
// error is returned.
func (s *PlanService) Create(ctx context.Context, userID uint, input CreatePlanInput) (*models.LearningPlan, error) {
	input.Goal = strings.TrimSpace(input.Goal)
	input.Difficulty = strings.ToLower(strings.TrimSpace(input.Difficulty))
	if input.DurationDays == 0 {
		input.DurationDays = 30
	}
	if input.Difficulty == "" {
		input.Difficulty = models.DifficultyIntermediate
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	plan := &models.LearningPlan{
		Goal:         input.Goal,
		DurationDays: input.DurationDays,
		Difficulty:   input.Difficulty,
		Status:       models.PlanPending,
	}
	plan.SetPlanContent(models.PlanContent{})
	if err := s.admission.Reserve(ctx, userID, plan); err != nil {
		return nil, err
	}

	log := s.log.With("user_id", userID, "plan_id", plan.ID)
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	content, err := s.generator.Generate(genCtx, generator.Request{
		Goal:         plan.Goal,
		DurationDays: plan.DurationDays,
		Difficulty:   plan.Difficulty,
	})
	if err == nil {
		content, err = generator.Normalize(content)
	}
	if err != nil {
		log.Warn("plan generation failed", "error", err, "latency", time.Since(start))
		s.markFailed(plan, err)
		return nil, utils.ServiceUnavailable("Learning plan generation failed, please try again later", err)
	}

	plan.SetPlanContent(content)
	plan.Status = models.PlanReady
	if err := s.db.WithContext(ctx).Model(plan).Updates(map[string]interface{}{
		"plan":   plan.Content,
		"status": models.PlanReady,
	}).Error; err != nil {
		s.markFailed(plan, err)
		return nil, fmt.Errorf("store plan content: %w", err)
	}

	log.Info("plan generated", "activities", content.TotalActivities(), "latency", time.Since(start))
	return plan, nil
}

// markFailed runs detached from the request context, which may already be cancelled.
func (s *PlanService) markFailed(plan *models.LearningPlan, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reason := cause.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	plan.Status = models.PlanFailed
	plan.FailureReason = reason
	if err := s.db.WithContext(ctx).Model(plan).Updates(map[string]interface{}{
		"status":         models.PlanFailed,
		"failure_reason": reason,
	}).Error; err != nil {
		s.log.Error("could not mark plan failed", "plan_id", plan.ID, "error", err)
	}
}

// List returns the user's plans, newest first. Unknown filters behave like in_progress.
func (s *PlanService) List(ctx context.Context, userID uint, filter string) ([]models.LearningPlan, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)

	switch strings.ToLower(strings.TrimSpace(filter)) {
	case PlanFilterAll:
		query = query.Where("status <> ?", models.PlanFailed)
	case PlanFilterFailed:
		query = query.Where("status = ?", models.PlanFailed)
	case PlanFilterCompleted:
		query = query.Where("status <> ? AND completed = ?", models.PlanFailed, true)
	default:
		query = query.Where("status <> ? AND completed = ?", models.PlanFailed, false)
	}

	plans := []models.LearningPlan{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// Get returns a plan owned by userID. Plans of other users are reported as not found.
func (s *PlanService) Get(ctx context.Context, userID, planID uint) (*models.LearningPlan, error) {
	return findOwnedPlan(s.db.WithContext(ctx), userID, planID)
}

func findOwnedPlan(db *gorm.DB, userID, planID uint) (*models.LearningPlan, error) {
	var plan models.LearningPlan
	if err := db.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Learning plan not found")
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if plan.UserID != userID {
		return nil, utils.NotFound("Learning plan not found")
	}
	return &plan, nil
}

// SweepResult reports what CleanupStale changed.
type SweepResult struct {
	Interrupted int64
	Deleted     int64
}

// CleanupStale marks plans stuck in pending for longer than pendingAfter as failed and
// permanently deletes failed plans last touched before retention.
func (s *PlanService) CleanupStale(ctx context.Context, pendingAfter, retention time.Duration) (SweepResult, error) {
	var res SweepResult
	now := s.now()
	db := s.db.WithContext(ctx)

	interrupted := db.Model(&models.LearningPlan{}).
		Where("status = ? AND created_at < ?", models.PlanPending, now.Add(-pendingAfter)).
		Updates(map[string]interface{}{
			"status":         models.PlanFailed,
			"failure_reason": "generation interrupted",
		})
	if interrupted.Error != nil {
		return res, fmt.Errorf("mark interrupted plans: %w", interrupted.Error)
	}
	res.Interrupted = interrupted.RowsAffected

	deleted := db.Unscoped().
		Where("status = ? AND updated_at < ?", models.PlanFailed, now.Add(-retention)).
		Delete(&models.LearningPlan{})
	if deleted.Error != nil {
		return res, fmt.Errorf("delete failed plans: %w", deleted.Error)
	}
	res.Deleted = deleted.RowsAffected
	return res, nil
}
