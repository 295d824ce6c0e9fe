package controllers

import (
	"learnplan/backend/middleware"
	"learnplan/backend/services"
	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type AnalyticsController struct {
	Analytics *services.AnalyticsService
	Log       *utils.Logger
}

func NewAnalyticsController(analytics *services.AnalyticsService, log *utils.Logger) *AnalyticsController {
	return &AnalyticsController{Analytics: analytics, Log: log}
}

// Progress godoc
// @Summary Progress analytics
// @Description Plan counts, completions per day over the last week, completion rate and streak
// @Tags analytics
// @Produce json
// @Success 200 {object} services.ProgressStats
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /analytics/progress [get]
func (ac *AnalyticsController) Progress(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	stats, err := ac.Analytics.ProgressStats(c.UserContext(), user.ID)
	if err != nil {
		return utils.Fail(c, ac.Log, err)
	}
	return utils.Success(c, fiber.StatusOK, stats)
}
