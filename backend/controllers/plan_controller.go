package controllers

import (
	"time"

	"learnplan/backend/middleware"
	"learnplan/backend/models"
	"learnplan/backend/services"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type PlanController struct {
	Plans *services.PlanService
	Log   *utils.Logger
}

func NewPlanController(plans *services.PlanService, log *utils.Logger) *PlanController {
	return &PlanController{Plans: plans, Log: log}
}

type PlanResponse struct {
	ID            uint               `json:"id"`
	Goal          string             `json:"goal"`
	Plan          models.PlanContent `json:"plan"`
	Progress      float64            `json:"progress"`
	Completed     bool               `json:"completed"`
	CompletedAt   *time.Time         `json:"completed_at"`
	CreatedAt     time.Time          `json:"created_at"`
	Status        models.PlanStatus  `json:"status"`
	FailureReason string             `json:"failure_reason,omitempty"`
	DurationDays  int                `json:"duration_days"`
	Difficulty    string             `json:"difficulty"`
}

func NewPlanResponse(plan *models.LearningPlan) PlanResponse {
	content := plan.PlanContent()
	if content == nil {
		content = models.PlanContent{}
	}
	return PlanResponse{
		ID:            plan.ID,
		Goal:          plan.Goal,
		Plan:          content,
		Progress:      plan.Progress,
		Completed:     plan.Completed,
		CompletedAt:   plan.CompletedAt,
		CreatedAt:     plan.CreatedAt,
		Status:        plan.Status,
		FailureReason: plan.FailureReason,
		DurationDays:  plan.DurationDays,
		Difficulty:    plan.Difficulty,
	}
}

// Generate godoc
// @Summary Generate a learning plan
// @Description Asks the plan generator for a new plan. At most MAX_UNFINISHED_PLANS unfinished plans per user.
// @Tags plans
// @Accept json
// @Produce json
// @Param request body services.CreatePlanInput true "Goal and optional hints"
// @Success 201 {object} PlanResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 503 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /generate-plan/ [post]
func (pc *PlanController) Generate(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var input services.CreatePlanInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	plan, err := pc.Plans.Create(c.UserContext(), user.ID, input)
	if err != nil {
		return utils.Fail(c, pc.Log, err)
	}
	return utils.Created(c, NewPlanResponse(plan))
}

// List godoc
// @Summary List learning plans
// @Tags plans
// @Produce json
// @Param status query string false "completed | in_progress | failed"
// @Success 200 {array} PlanResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /learning-plan/all [get]
func (pc *PlanController) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	plans, err := pc.Plans.List(c.UserContext(), user.ID, c.Query("status"))
	if err != nil {
		return utils.Fail(c, pc.Log, err)
	}

	out := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		out = append(out, NewPlanResponse(&plans[i]))
	}
	return utils.Success(c, fiber.StatusOK, out)
}

// Get godoc
// @Summary Get a learning plan
// @Tags plans
// @Produce json
// @Param id path int true "Plan ID"
// @Success 200 {object} PlanResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /learning-plan/{id} [get]
func (pc *PlanController) Get(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.Fail(c, pc.Log, utils.NotFound("Learning plan not found"))
	}

	plan, err := pc.Plans.Get(c.UserContext(), user.ID, uint(id))
	if err != nil {
		return utils.Fail(c, pc.Log, err)
	}
	return utils.Success(c, fiber.StatusOK, NewPlanResponse(plan))
}
